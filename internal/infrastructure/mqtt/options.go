package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a connect handshake when the config
	// leaves it unset. The poll loop is blocked for at most this long.
	defaultConnectTimeout = 2 * time.Second

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 15 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultPublishTimeout bounds the background wait on a publish token.
	defaultPublishTimeout = 5 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// endpoint is the per-attempt broker address and credentials.
type endpoint struct {
	host     string
	port     int
	clientID string
	username string
	password string
}

// buildClientOptions creates paho MQTT options for one connect attempt.
//
// Paho's own reconnect logic is disabled: the broker session in netsup
// decides when to try again.
func buildClientOptions(cfg config.BrokerConfig, ep endpoint) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, ep.host, ep.port))

	opts.SetClientID(ep.clientID)
	if ep.username != "" {
		opts.SetUsername(ep.username)
		opts.SetPassword(ep.password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(timeout)

	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the node vanishes without a clean
// disconnect (power loss, link drop). It is retained so new subscribers
// see the last known status.
func configureLWT(opts *pahomqtt.ClientOptions, topic string, payload []byte, qos byte) {
	opts.SetBinaryWill(topic, payload, qos, true)
}

// statusPayload is the JSON body published on the status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	BootID    string `json:"boot_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildStatusPayload creates the JSON payload for status messages.
func buildStatusPayload(status, clientID, bootID, reason string, now time.Time) []byte {
	data, err := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		BootID:    bootID,
		Reason:    reason,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Marshalling a struct of strings cannot fail.
		return nil
	}
	return data
}
