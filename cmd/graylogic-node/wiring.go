package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/netsup"
)

// commandTimeout bounds a broker command waiting for the poll loop.
const commandTimeout = 10 * time.Second

// Broker commands accepted on the node's command topic.
const (
	cmdReconnect  = "reconnect"
	cmdDisconnect = "disconnect"
	cmdStats      = "stats"
)

// linkSupervisor is the supervisor surface used by the wiring.
type linkSupervisor interface {
	Stats() netsup.LinkStats
	Reconnect()
	Disconnect()
	OnConnect(fn func())
	OnDisconnect(fn func())
}

// linkConsole is the console surface driven by link events.
type linkConsole interface {
	Broadcast(channel string, payload any)
	SetLinkUp(up bool)
}

// nodeCommand is the payload of a broker command.
type nodeCommand struct {
	Command string `json:"command"`
}

// nodeWiring connects supervisor events to telemetry, the broker session
// and the console. Its listener methods run on the poll goroutine.
type nodeWiring struct {
	log        *logging.Logger
	supervisor linkSupervisor
	runner     api.Executor
	session    *mqtt.Session
	influx     *influxdb.Client
	console    linkConsole
	qos        byte

	// commandTopic is the currently subscribed command topic.
	commandTopic string
}

// attach registers the wiring's listeners.
func (n *nodeWiring) attach(broker *netsup.BrokerSession) {
	n.supervisor.OnConnect(n.linkConnected)
	n.supervisor.OnDisconnect(n.linkDisconnected)
	broker.OnAttempt(n.brokerAttempt)
}

func (n *nodeWiring) linkConnected() {
	stats := n.supervisor.Stats()
	if n.influx != nil {
		n.influx.WriteLinkEvent(influxdb.EventConnected, stats)
	}
	if n.console != nil {
		n.console.Broadcast(api.EventLinkConnected, stats)
		n.console.SetLinkUp(true)
	}
}

func (n *nodeWiring) linkDisconnected() {
	n.linkDropped(n.supervisor.Stats())
}

// linkDropped reports a link that went away, whether lost or torn down
// on request.
func (n *nodeWiring) linkDropped(stats netsup.LinkStats) {
	if n.influx != nil {
		n.influx.WriteLinkEvent(influxdb.EventDisconnected, stats)
	}
	if n.console != nil {
		n.console.Broadcast(api.EventLinkDisconnected, stats)
		n.console.SetLinkUp(false)
	}
}

func (n *nodeWiring) brokerAttempt(a netsup.Attempt) {
	if n.influx != nil {
		n.influx.WriteBrokerAttempt(a)
	}
	if n.console != nil {
		n.console.Broadcast(api.EventBrokerAttempt, map[string]any{
			"endpoint": a.Endpoint,
			"ok":       a.OK,
			"code":     a.Code,
			"reason":   mqtt.CodeText(a.Code),
		})
	}
	if !a.OK || n.session == nil {
		return
	}

	// The client ID may have changed since the last session.
	topic := n.session.Topics().Command()
	if topic != n.commandTopic {
		if n.commandTopic != "" {
			if err := n.session.Unsubscribe(n.commandTopic); err != nil {
				n.log.Debug("unsubscribing old command topic", "topic", n.commandTopic, "error", err)
			}
		}
		if err := n.session.Subscribe(topic, n.qos, n.handleCommand); err != nil {
			n.log.Warn("subscribing to command topic failed", "topic", topic, "error", err)
		} else {
			n.commandTopic = topic
		}
	}

	n.publishStats(n.supervisor.Stats())
}

// handleCommand runs on the poll goroutine from Session.Loop. Link
// commands are deferred to the next loop iteration so they never run
// inside a broker poll.
func (n *nodeWiring) handleCommand(topic string, payload []byte) error {
	var cmd nodeCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command on %s: %w", topic, err)
	}

	n.log.Info("broker command received", "command", cmd.Command)
	switch cmd.Command {
	case cmdReconnect:
		go n.schedule(cmd.Command, n.supervisor.Reconnect)
	case cmdDisconnect:
		go n.schedule(cmd.Command, n.supervisor.Disconnect)
	case cmdStats:
		n.publishStats(n.supervisor.Stats())
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
	return nil
}

// schedule runs a link command on the poll loop. Requested teardowns fire
// no supervisor listeners, so a link left down is reported here.
func (n *nodeWiring) schedule(name string, fn func()) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var stats netsup.LinkStats
	err := n.runner.Do(ctx, func() {
		fn()
		stats = n.supervisor.Stats()
	})
	if err != nil {
		n.log.Warn("link command not scheduled", "command", name, "error", err)
		return
	}
	if stats.State != netsup.StateConnected.String() {
		n.linkDropped(stats)
	}
}

func (n *nodeWiring) publishStats(stats netsup.LinkStats) {
	if n.session == nil || !n.session.Connected() {
		return
	}
	if err := n.session.PublishJSON(n.session.Topics().Stats(), stats, false); err != nil {
		n.log.Debug("publishing stats failed", "error", err)
	}
}

// telemetryLoop snapshots the link every interval until ctx is cancelled.
func (n *nodeWiring) telemetryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var stats netsup.LinkStats
			if err := n.runner.Do(ctx, func() { stats = n.supervisor.Stats() }); err != nil {
				continue
			}
			if n.influx != nil {
				n.influx.WriteLinkStats(stats)
			}
			n.publishStats(stats)
		}
	}
}
