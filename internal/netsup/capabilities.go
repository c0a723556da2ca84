package netsup

import "github.com/nerrad567/gray-logic-node/internal/settings"

// LinkStatus is the link layer's view of the wireless connection.
type LinkStatus int

const (
	// LinkDown means no association or no address yet.
	LinkDown LinkStatus = iota
	// LinkUp means associated and addressed.
	LinkUp
)

// String returns a human-readable link status.
func (s LinkStatus) String() string {
	if s == LinkUp {
		return "up"
	}
	return "down"
}

// Network is one entry of a wireless scan.
type Network struct {
	SSID     string `json:"ssid"`
	Strength int    `json:"strength_dbm"`
}

// Link is the wireless interface.
//
// Connect only starts an association; progress is observed via Status.
// Implementations must not block in any method except Scan.
type Link interface {
	BeginStation(hostName string)
	Connect(ssid, passphrase string)
	Disconnect()
	Status() LinkStatus
	SignalStrength() int
	LocalAddress() string
	HardwareAddress() string
	Scan() []Network
}

// Broker is an opaque message-broker session primitive.
//
// LastErrorCode reports the status of the last connect attempt or the
// reason the session dropped; 0 means connected.
type Broker interface {
	SetEndpoint(host string, port int)
	Connect(clientID, username, password string) bool
	Connected() bool
	Loop()
	LastErrorCode() int
	Disconnect()
}

// Discovery publishes the node on the local network.
type Discovery interface {
	Begin(hostName string) bool
	AddService(service, protocol string, port int) bool
}

// SettingsReader gives read access to the configuration store.
// Values are re-read on every attempt.
type SettingsReader interface {
	Credentials() settings.Credentials
	BrokerEndpoint() settings.BrokerEndpoint
}

// Diagnostics is the append-only operator console.
type Diagnostics interface {
	Printf(format string, args ...any)
}

// Logger defines the structured logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopDiagnostics struct{}

func (noopDiagnostics) Printf(string, ...any) {}
