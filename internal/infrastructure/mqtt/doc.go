// Package mqtt provides the node's broker session.
//
// Session wraps paho.mqtt.golang behind the small connect/loop/disconnect
// surface the connectivity supervisor expects:
//   - Connect performs a single handshake bounded by broker.connect_timeout
//   - Loop dispatches received messages on the caller's goroutine
//   - LastErrorCode reports why the session is not up (see Code constants)
//
// Paho's automatic reconnect is disabled; retry pacing belongs to the
// caller.
//
// # Status Topic
//
// On connect the session publishes a retained "online" status on
// <prefix>/<client_id>/status and registers a retained "offline" Last Will
// on the same topic. A clean Disconnect publishes "offline" with reason
// graceful_shutdown. Each payload carries a boot_id that changes on every
// process start, so subscribers can tell a reboot from a reconnect.
//
// # Usage
//
//	s := mqtt.NewSession(cfg.Broker, logger)
//	s.Subscribe(topics.Command(), 1, handleCommand)
//	s.SetEndpoint("broker.local", 1883)
//	if s.Connect("porch-1", "", "") {
//	    s.Loop()
//	}
package mqtt
