package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/netsup"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Node          string           `json:"node"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Link          netsup.LinkStats `json:"link"`
}

// ScanResponse is the body of GET /network/scan.
type ScanResponse struct {
	Networks []netsup.Network `json:"networks"`
}

// handleStatus reports the link state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var stats netsup.LinkStats
	if err := s.do(r, func() { stats = s.supervisor.Stats() }); err != nil {
		s.logger.Warn("status command not scheduled", "error", err)
		writeUnavailable(w, "supervisor busy")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Node:          s.nodeID,
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Link:          stats,
	})
}

// changeLink runs a link command on the poll loop and returns the
// resulting snapshot. A requested teardown fires no supervisor listeners,
// so the link event and console availability are reported from here.
func (s *Server) changeLink(r *http.Request, cmd func()) (netsup.LinkStats, error) {
	var stats netsup.LinkStats
	err := s.do(r, func() {
		cmd()
		stats = s.supervisor.Stats()
	})
	if err != nil {
		return stats, err
	}
	if stats.State != netsup.StateConnected.String() {
		s.hub.Broadcast(EventLinkDisconnected, stats)
		s.SetLinkUp(false)
	}
	return stats, nil
}

// handleConnect restarts the link with the stored credentials.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	stats, err := s.changeLink(r, s.supervisor.Reconnect)
	if err != nil {
		s.logger.Warn("reconnect command not scheduled", "error", err)
		writeUnavailable(w, "supervisor busy")
		return
	}

	s.logger.Info("reconnect requested from console", "state", stats.State)
	writeJSON(w, http.StatusAccepted, stats)
}

// handleDisconnect drops the link. Automatic retries resume once the retry
// interval has elapsed.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	stats, err := s.changeLink(r, s.supervisor.Disconnect)
	if err != nil {
		s.logger.Warn("disconnect command not scheduled", "error", err)
		writeUnavailable(w, "supervisor busy")
		return
	}

	s.logger.Info("disconnect requested from console")
	writeJSON(w, http.StatusAccepted, stats)
}

// handleScan lists visible networks. The poll loop is paused for the
// duration of the scan.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var networks []netsup.Network
	if err := s.do(r, func() { networks = s.supervisor.Scan() }); err != nil {
		s.logger.Warn("scan command not scheduled", "error", err)
		writeUnavailable(w, "supervisor busy")
		return
	}
	if networks == nil {
		networks = []netsup.Network{}
	}
	writeJSON(w, http.StatusOK, ScanResponse{Networks: networks})
}
