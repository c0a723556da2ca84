package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Link       LinkConfig       `yaml:"link"`
	Broker     BrokerConfig     `yaml:"broker"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SupervisorConfig contains the link state machine timing.
type SupervisorConfig struct {
	// PollInterval is the cadence of the cooperative poll loop.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ConnectTimeout bounds how long a link attempt may stay in Connecting.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RetryInterval is the minimum time between the starts of two
	// automatic link attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// LinkConfig contains settings for the wireless link backend.
type LinkConfig struct {
	// Interface is the wireless network interface (e.g. "wlan0").
	Interface string `yaml:"interface"`

	// Binary is the path to the NetworkManager command line client.
	Binary string `yaml:"binary"`

	// ScanTimeout bounds a visible network scan.
	ScanTimeout time.Duration `yaml:"scan_timeout"`

	// WirelessStats is the kernel wireless statistics file.
	WirelessStats string `yaml:"wireless_stats"`
}

// BrokerConfig contains MQTT session settings that are not part of the
// operator-editable endpoint (host, port and credentials live in the
// settings store).
type BrokerConfig struct {
	// RetryInterval is the minimum spacing between broker connect attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`

	// ResetSpacingOnLinkUp makes a fresh link period start with an
	// immediately eligible broker attempt. When false the spacing timer
	// carries over link drops.
	ResetSpacingOnLinkUp bool `yaml:"reset_spacing_on_link_up"`

	// ConnectTimeout bounds a single broker connect handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// KeepAlive is the MQTT keepalive interval.
	KeepAlive time.Duration `yaml:"keep_alive"`

	QoS         int    `yaml:"qos"`
	TLS         bool   `yaml:"tls"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// DiscoveryConfig contains mDNS announcement settings.
type DiscoveryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Service   string        `yaml:"service"`
	Protocol  string        `yaml:"protocol"`
	Domain    string        `yaml:"domain"`
	Interface string        `yaml:"interface"`
	TTL       time.Duration `yaml:"ttl"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the remote console HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultsConfig seeds the settings store the first time the node boots
// (or after the stored record had to be reset).
type DefaultsConfig struct {
	WiFi     WiFiDefaults    `yaml:"wifi"`
	HostName string          `yaml:"host_name"`
	Console  ConsoleDefaults `yaml:"console"`
	MQTT     MQTTDefaults    `yaml:"mqtt"`
	Debug    bool            `yaml:"debug"`
}

// WiFiDefaults contains the seed network credentials.
type WiFiDefaults struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
}

// ConsoleDefaults contains the seed remote console settings.
type ConsoleDefaults struct {
	Enabled  bool   `yaml:"enabled"`
	Password string `yaml:"password"`
}

// MQTTDefaults contains the seed broker endpoint.
type MQTTDefaults struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the node's factory defaults.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID:   "node-001",
			Name: "Gray Logic Node",
		},
		Supervisor: SupervisorConfig{
			PollInterval:   100 * time.Millisecond,
			ConnectTimeout: 10 * time.Second,
			RetryInterval:  2 * time.Minute,
		},
		Link: LinkConfig{
			Interface:     "wlan0",
			Binary:        "/usr/bin/nmcli",
			ScanTimeout:   15 * time.Second,
			WirelessStats: "/proc/net/wireless",
		},
		Broker: BrokerConfig{
			RetryInterval:  time.Minute,
			ConnectTimeout: 2 * time.Second,
			KeepAlive:      15 * time.Second,
			QoS:            1,
			TopicPrefix:    "graylogic/node",
		},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Service:  "http",
			Protocol: "tcp",
			Domain:   "local.",
			TTL:      120 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/node.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 35,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Defaults: DefaultsConfig{
			HostName: "mqtt-client",
			Console: ConsoleDefaults{
				Enabled:  true,
				Password: "h4ckm3",
			},
			MQTT: MQTTDefaults{
				Port: 1883,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Credential variables only change the seed values; a record already stored
// on the node wins over them.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_NODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_WIFI_SSID"); v != "" {
		cfg.Defaults.WiFi.SSID = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_WIFI_PASS"); v != "" {
		cfg.Defaults.WiFi.Passphrase = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_HOST"); v != "" {
		cfg.Defaults.MQTT.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_USERNAME"); v != "" {
		cfg.Defaults.MQTT.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PASSWORD"); v != "" {
		cfg.Defaults.MQTT.Password = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	if c.Supervisor.PollInterval <= 0 {
		errs = append(errs, "supervisor.poll_interval must be positive")
	}
	if c.Supervisor.ConnectTimeout <= 0 {
		errs = append(errs, "supervisor.connect_timeout must be positive")
	}
	if c.Supervisor.RetryInterval < c.Supervisor.ConnectTimeout {
		errs = append(errs, "supervisor.retry_interval must not be shorter than supervisor.connect_timeout")
	}

	if c.Link.Interface == "" {
		errs = append(errs, "link.interface is required")
	}

	if c.Broker.RetryInterval <= 0 {
		errs = append(errs, "broker.retry_interval must be positive")
	}
	if c.Broker.ConnectTimeout <= 0 {
		errs = append(errs, "broker.connect_timeout must be positive")
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, "broker.qos must be 0, 1, or 2")
	}

	if c.Discovery.Enabled && (c.Discovery.Service == "" || c.Discovery.Protocol == "") {
		errs = append(errs, "discovery.service and discovery.protocol are required when discovery is enabled")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Defaults.MQTT.Port < 1 || c.Defaults.MQTT.Port > 65535 {
		errs = append(errs, "defaults.mqtt.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
