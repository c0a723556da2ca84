package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/netsup"
)

// Measurement names.
const (
	MeasurementLinkStats     = "link_stats"
	MeasurementLinkEvent     = "link_event"
	MeasurementBrokerAttempt = "broker_attempt"
)

// Link event names recorded by WriteLinkEvent.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// WriteLinkStats records a snapshot of the link.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteLinkStats(stats netsup.LinkStats) {
	c.writePoint(linkStatsPoint(c.node, stats, time.Now()))
}

// WriteLinkEvent records a link transition.
//
// Example:
//
//	sup.OnConnect(func() { client.WriteLinkEvent(influxdb.EventConnected, sup.Stats()) })
func (c *Client) WriteLinkEvent(event string, stats netsup.LinkStats) {
	c.writePoint(linkEventPoint(c.node, event, stats, time.Now()))
}

// WriteBrokerAttempt records the outcome of one broker connect attempt.
func (c *Client) WriteBrokerAttempt(a netsup.Attempt) {
	ts := a.At
	if ts.IsZero() {
		ts = time.Now()
	}
	c.writePoint(brokerAttemptPoint(c.node, a, ts))
}

func linkStatsPoint(node string, s netsup.LinkStats, ts time.Time) *write.Point {
	tags := map[string]string{
		"node":  node,
		"state": s.State,
	}
	if s.SSID != "" {
		tags["ssid"] = s.SSID
	}

	fields := map[string]interface{}{
		"broker_active": s.BrokerActive,
	}
	if s.SignalStrength != 0 {
		fields["signal_dbm"] = s.SignalStrength
	}
	if s.Address != "" {
		fields["address"] = s.Address
	}

	return write.NewPoint(MeasurementLinkStats, tags, fields, ts)
}

func linkEventPoint(node, event string, s netsup.LinkStats, ts time.Time) *write.Point {
	tags := map[string]string{
		"node":  node,
		"event": event,
	}
	if s.SSID != "" {
		tags["ssid"] = s.SSID
	}

	fields := map[string]interface{}{
		"host_name": s.HostName,
	}
	if s.Address != "" {
		fields["address"] = s.Address
	}

	return write.NewPoint(MeasurementLinkEvent, tags, fields, ts)
}

func brokerAttemptPoint(node string, a netsup.Attempt, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBrokerAttempt,
		map[string]string{
			"node":     node,
			"endpoint": a.Endpoint,
		},
		map[string]interface{}{
			"ok":   a.OK,
			"code": a.Code,
		},
		ts,
	)
}
