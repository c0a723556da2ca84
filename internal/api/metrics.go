package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/netsup"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Link          LinkMetrics    `json:"link"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// LinkMetrics summarises the supervisor state.
type LinkMetrics struct {
	State          string `json:"state"`
	SignalStrength int    `json:"signal_strength_dbm,omitempty"`
	BrokerActive   bool   `json:"broker_active"`
}

// handleMetrics returns runtime and link metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	var stats netsup.LinkStats
	if err := s.do(r, func() { stats = s.supervisor.Stats() }); err != nil {
		writeUnavailable(w, "supervisor busy")
		return
	}
	metrics.Link = LinkMetrics{
		State:          stats.State,
		SignalStrength: stats.SignalStrength,
		BrokerActive:   stats.BrokerActive,
	}

	writeJSON(w, http.StatusOK, metrics)
}
