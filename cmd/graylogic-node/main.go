// Gray Logic Node - connectivity supervisor
//
// This is the main entry point for a Gray Logic field node. The node keeps
// its wireless link, broker session and discovery record alive without
// operator intervention, and exposes a small console while the link is up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/discovery"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/link"
	"github.com/nerrad567/gray-logic-node/internal/netsup"
	"github.com/nerrad567/gray-logic-node/internal/process"
	"github.com/nerrad567/gray-logic-node/internal/settings"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// telemetryInterval is the cadence of link statistics snapshots.
const telemetryInterval = time.Minute

// Compile-time checks that the adapters satisfy the supervisor's capabilities.
var (
	_ netsup.Link       = (*link.NMCLI)(nil)
	_ netsup.Broker     = (*mqtt.Session)(nil)
	_ netsup.Discovery  = (*discovery.MDNS)(nil)
	_ api.Executor      = (*netsup.Runner)(nil)
	_ api.Supervisor    = (*netsup.Supervisor)(nil)
	_ api.SettingsStore = (*settings.Store)(nil)
	_ linkConsole       = (*api.Server)(nil)
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Settings store
	store, err := settings.Open(ctx, settings.NewSQLiteRepository(db), seedRecord(cfg), log)
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	if store.Debug() && cfg.Logging.Level != "debug" {
		cfg.Logging.Level = "debug"
		log = logging.New(cfg.Logging, version)
	}
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	diag := logging.NewDiagnostics(os.Stdout, log)

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Node.ID)
		if err != nil {
			// The node must come up without the telemetry server.
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Capabilities
	nmcli := process.NewRunner(process.Config{Name: "nmcli", Binary: cfg.Link.Binary})
	nmcli.SetLogger(log)
	wifi := link.New(link.Config{
		Interface:     cfg.Link.Interface,
		ScanTimeout:   cfg.Link.ScanTimeout,
		WirelessStats: cfg.Link.WirelessStats,
	}, nmcli, log)

	session := mqtt.NewSession(cfg.Broker, log)

	var disc netsup.Discovery = disabledDiscovery{}
	if cfg.Discovery.Enabled {
		mdns := discovery.NewMDNS(discovery.Config{
			Domain:    cfg.Discovery.Domain,
			Interface: cfg.Discovery.Interface,
			TTL:       cfg.Discovery.TTL,
			Text:      []string{"node=" + cfg.Node.ID, "version=" + version},
		}, log)
		defer mdns.Shutdown()
		disc = mdns
	}

	// Core
	brokerSession, err := netsup.NewBrokerSession(netsup.BrokerSessionConfig{
		RetryInterval:        cfg.Broker.RetryInterval,
		ResetSpacingOnLinkUp: cfg.Broker.ResetSpacingOnLinkUp,
	}, session, store, diag, log, nil)
	if err != nil {
		return fmt.Errorf("creating broker session: %w", err)
	}

	announcer, err := netsup.NewAnnouncer(netsup.AnnouncerConfig{
		Service:  cfg.Discovery.Service,
		Protocol: cfg.Discovery.Protocol,
		Port:     cfg.API.Port,
	}, disc, diag, log)
	if err != nil {
		return fmt.Errorf("creating announcer: %w", err)
	}

	supervisor, err := netsup.NewSupervisor(netsup.SupervisorConfig{
		ConnectTimeout: cfg.Supervisor.ConnectTimeout,
		RetryInterval:  cfg.Supervisor.RetryInterval,
	}, netsup.Deps{
		Link:        wifi,
		Settings:    store,
		Session:     brokerSession,
		Announcer:   announcer,
		Diagnostics: diag,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}

	runner := netsup.NewRunner(supervisor, cfg.Supervisor.PollInterval, log)

	// Console
	var console *api.Server
	if cfg.API.Enabled {
		console, err = api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Supervisor: supervisor,
			Executor:   runner,
			Settings:   store,
			NodeID:     cfg.Node.ID,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
	}

	node := &nodeWiring{
		log:        log,
		supervisor: supervisor,
		runner:     runner,
		session:    session,
		influx:     influxClient,
		qos:        byte(cfg.Broker.QoS), // #nosec G115 -- validated to 0..2
	}
	if console != nil {
		node.console = console
	}
	node.attach(brokerSession)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- runner.Run(loopCtx) }()

	consoleDone := make(chan struct{})
	if console != nil {
		go func() {
			console.Manage(loopCtx)
			close(consoleDone)
		}()
	} else {
		close(consoleDone)
	}

	go node.telemetryLoop(loopCtx, telemetryInterval)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info("initialisation complete, supervising link",
		"interface", cfg.Link.Interface,
		"host_name", supervisor.HostName(),
	)

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-hup:
			log.Info("SIGHUP received, reconnecting")
			node.schedule(cmdReconnect, supervisor.Reconnect)
		}
	}

	log.Info("shutdown signal received, cleaning up")
	stopLoop()
	<-loopDone
	<-consoleDone

	// The poll loop has exited, so the session can be closed from here.
	if session.Connected() {
		log.Info("disconnecting from MQTT")
		session.Disconnect()
	}

	if store.Dirty() {
		if err := store.Persist(context.Background()); err != nil {
			log.Error("persisting settings on shutdown", "error", err)
		}
	}

	log.Info("Gray Logic Node stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_NODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_NODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seedRecord builds the settings record used on first boot and after a
// reset from the config file's defaults section.
func seedRecord(cfg *config.Config) settings.Record {
	d := cfg.Defaults
	return settings.Record{
		Credentials: settings.Credentials{
			SSID:       d.WiFi.SSID,
			Passphrase: d.WiFi.Passphrase,
			HostName:   d.HostName,
		},
		Broker: settings.BrokerEndpoint{
			Host:     d.MQTT.Host,
			Port:     d.MQTT.Port,
			ClientID: d.MQTT.ClientID,
			Username: d.MQTT.Username,
			Password: d.MQTT.Password,
		},
		Console: settings.Console{
			Enabled:  d.Console.Enabled,
			Password: d.Console.Password,
		},
		Debug: d.Debug,
	}
}

// disabledDiscovery stands in for mDNS when discovery is turned off.
type disabledDiscovery struct{}

func (disabledDiscovery) Begin(string) bool                   { return true }
func (disabledDiscovery) AddService(string, string, int) bool { return true }
