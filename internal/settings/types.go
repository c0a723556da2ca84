package settings

import (
	"fmt"
	"strings"
)

// Field limits of the persisted record.
const (
	// MaxFieldLen is the maximum length of every text field.
	MaxFieldLen = 63

	// MinConsolePasswordLen is the minimum remote console password length.
	MinConsolePasswordLen = 5
)

// Factory defaults.
const (
	DefaultHostName        = "mqtt-client"
	DefaultConsolePassword = "h4ckm3"
	DefaultBrokerPort      = 1883
)

// Credentials identify the wireless network and this node on it.
type Credentials struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
	HostName   string `json:"host_name"`
}

// Complete reports whether both the SSID and passphrase are set.
func (c Credentials) Complete() bool {
	return c.SSID != "" && c.Passphrase != ""
}

// BrokerEndpoint is the MQTT broker the node keeps a session with.
// An empty Host disables the broker session.
type BrokerEndpoint struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Enabled reports whether a broker host is configured.
func (b BrokerEndpoint) Enabled() bool {
	return b.Host != ""
}

// Address returns host:port for logging.
func (b BrokerEndpoint) Address() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// Console holds the remote console settings.
type Console struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"password"`
}

// Record is the complete persisted settings layout.
type Record struct {
	Credentials Credentials    `json:"wifi"`
	Broker      BrokerEndpoint `json:"mqtt"`
	Console     Console        `json:"console"`
	Debug       bool           `json:"debug"`
}

// DefaultRecord returns the factory settings.
func DefaultRecord() Record {
	return Record{
		Credentials: Credentials{HostName: DefaultHostName},
		Broker:      BrokerEndpoint{Port: DefaultBrokerPort},
		Console: Console{
			Enabled:  true,
			Password: DefaultConsolePassword,
		},
	}
}

// Validate checks field lengths and ranges.
func (r Record) Validate() error {
	var errs []string

	fields := []struct {
		name  string
		value string
	}{
		{"wifi.ssid", r.Credentials.SSID},
		{"wifi.passphrase", r.Credentials.Passphrase},
		{"wifi.host_name", r.Credentials.HostName},
		{"console.password", r.Console.Password},
		{"mqtt.host", r.Broker.Host},
		{"mqtt.username", r.Broker.Username},
		{"mqtt.password", r.Broker.Password},
		{"mqtt.client_id", r.Broker.ClientID},
	}
	for _, f := range fields {
		if len(f.value) > MaxFieldLen {
			errs = append(errs, fmt.Sprintf("%s exceeds %d characters", f.name, MaxFieldLen))
		}
	}

	if len(r.Console.Password) < MinConsolePasswordLen {
		errs = append(errs, fmt.Sprintf("console.password must have at least %d characters", MinConsolePasswordLen))
	}

	if r.Broker.Port < 1 || r.Broker.Port > 65535 {
		errs = append(errs, "mqtt.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(errs, "; "))
	}
	return nil
}

// EffectiveHostName resolves an empty host name to DefaultHostName.
// The boolean reports whether the default was substituted.
func EffectiveHostName(name string) (string, bool) {
	if name == "" {
		return DefaultHostName, true
	}
	return name, false
}
