package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/netsup"
	"github.com/nerrad567/gray-logic-node/internal/settings"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GRAYLOGIC_NODE_CONFIG", "")
	assert.Equal(t, defaultConfigPath, getConfigPath())

	t.Setenv("GRAYLOGIC_NODE_CONFIG", "/etc/graylogic/node.yaml")
	assert.Equal(t, "/etc/graylogic/node.yaml", getConfigPath())
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_NODE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.ErrorContains(t, run(ctx), "loading config")
}

// TestRun_StartsAndStops boots the node without credentials, a broker or
// a network manager and shuts it down cleanly.
func TestRun_StartsAndStops(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
node:
  id: test-node

link:
  interface: wlan-test
  binary: ` + filepath.Join(tmpDir, "no-nmcli") + `
  scan_timeout: 1s

discovery:
  enabled: false

database:
  path: ` + filepath.Join(tmpDir, "node.db") + `
  wal_mode: true
  busy_timeout: 5

api:
  enabled: true
  host: 127.0.0.1
  port: 18080

logging:
  level: error
  format: text
  output: stderr
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0600))
	t.Setenv("GRAYLOGIC_NODE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx))

	_, err := os.Stat(filepath.Join(tmpDir, "node.db"))
	assert.NoError(t, err, "settings database not created")
}

func TestSeedRecord(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.WiFi = config.WiFiDefaults{SSID: "home", Passphrase: "secret"}
	cfg.Defaults.MQTT.Host = "broker.local"
	cfg.Defaults.MQTT.ClientID = "porch-1"

	rec := seedRecord(cfg)

	assert.Equal(t, settings.Credentials{SSID: "home", Passphrase: "secret", HostName: "mqtt-client"}, rec.Credentials)
	assert.Equal(t, "broker.local:1883", rec.Broker.Address())
	assert.Equal(t, "porch-1", rec.Broker.ClientID)
	assert.True(t, rec.Console.Enabled)
	assert.Equal(t, settings.DefaultConsolePassword, rec.Console.Password)
	assert.NoError(t, rec.Validate())
}

// ─── Wiring ────────────────────────────────────────────────────────

type fakeSupervisor struct {
	mu          sync.Mutex
	state       netsup.State
	reconnects  int
	disconnects int
	onConnect   []func()
	onDrop      []func()
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{state: netsup.StateConnected}
}

func (f *fakeSupervisor) Stats() netsup.LinkStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return netsup.LinkStats{State: f.state.String(), SSID: "home"}
}

func (f *fakeSupervisor) Reconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.state = netsup.StateConnecting
}

func (f *fakeSupervisor) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = netsup.StateDisconnected
}

func (f *fakeSupervisor) OnConnect(fn func())    { f.onConnect = append(f.onConnect, fn) }
func (f *fakeSupervisor) OnDisconnect(fn func()) { f.onDrop = append(f.onDrop, fn) }

func (f *fakeSupervisor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects, f.disconnects
}

type inlineExecutor struct {
	err error
}

func (e inlineExecutor) Do(_ context.Context, fn func()) error {
	if e.err != nil {
		return e.err
	}
	fn()
	return nil
}

// fakeConsole records link events and availability changes.
type fakeConsole struct {
	mu     sync.Mutex
	events []string
	linkUp []bool
}

func (c *fakeConsole) Broadcast(channel string, _ any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, channel)
}

func (c *fakeConsole) SetLinkUp(up bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linkUp = append(c.linkUp, up)
}

func (c *fakeConsole) snapshot() ([]string, []bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...), append([]bool(nil), c.linkUp...)
}

func testWiring(exec inlineExecutor) (*nodeWiring, *fakeSupervisor) {
	sup := newFakeSupervisor()
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
	return &nodeWiring{
		log:        log,
		supervisor: sup,
		runner:     exec,
		session:    mqtt.NewSession(config.BrokerConfig{}, nil),
		qos:        1,
	}, sup
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		payload         string
		wantErr         bool
		wantReconnects  int
		wantDisconnects int
	}{
		{`{"command":"reconnect"}`, false, 1, 0},
		{`{"command":"disconnect"}`, false, 0, 1},
		{`{"command":"stats"}`, false, 0, 0},
		{`{"command":"reboot"}`, true, 0, 0},
		{`not json`, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			n, sup := testWiring(inlineExecutor{})

			err := n.handleCommand("graylogic/node/test/command", []byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Eventually(t, func() bool {
				r, d := sup.counts()
				return r == tt.wantReconnects && d == tt.wantDisconnects
			}, time.Second, 5*time.Millisecond)
		})
	}
}

func TestSchedule_ExecutorFailure(t *testing.T) {
	n, sup := testWiring(inlineExecutor{err: errors.New("loop stopped")})
	console := &fakeConsole{}
	n.console = console

	n.schedule(cmdReconnect, sup.Reconnect)

	r, _ := sup.counts()
	assert.Zero(t, r)
	events, linkUp := console.snapshot()
	assert.Empty(t, events)
	assert.Empty(t, linkUp)
}

func TestSchedule_RequestedTeardownStopsConsole(t *testing.T) {
	tests := []struct {
		name string
		cmd  func(*fakeSupervisor) func()
	}{
		{"disconnect", func(s *fakeSupervisor) func() { return s.Disconnect }},
		{"reconnect", func(s *fakeSupervisor) func() { return s.Reconnect }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, sup := testWiring(inlineExecutor{})
			console := &fakeConsole{}
			n.console = console

			n.schedule(tt.name, tt.cmd(sup))

			events, linkUp := console.snapshot()
			assert.Equal(t, []string{api.EventLinkDisconnected}, events)
			assert.Equal(t, []bool{false}, linkUp)
		})
	}
}

func TestSchedule_LinkStillUpLeavesConsole(t *testing.T) {
	n, _ := testWiring(inlineExecutor{})
	console := &fakeConsole{}
	n.console = console

	n.schedule(cmdStats, func() {})

	events, linkUp := console.snapshot()
	assert.Empty(t, events)
	assert.Empty(t, linkUp)
}

func TestWiring_LinkEventsReachConsole(t *testing.T) {
	n, sup := testWiring(inlineExecutor{})
	console := &fakeConsole{}
	n.console = console

	broker, err := netsup.NewBrokerSession(netsup.BrokerSessionConfig{}, mqtt.NewSession(config.BrokerConfig{}, nil),
		staticSettings{}, nil, nil, nil)
	require.NoError(t, err)
	n.attach(broker)

	require.Len(t, sup.onConnect, 1)
	require.Len(t, sup.onDrop, 1)

	sup.onConnect[0]()
	sup.onDrop[0]()

	events, linkUp := console.snapshot()
	assert.Equal(t, []string{api.EventLinkConnected, api.EventLinkDisconnected}, events)
	assert.Equal(t, []bool{true, false}, linkUp)
}

func TestWiring_ListenersWithoutOptionalServices(t *testing.T) {
	n, sup := testWiring(inlineExecutor{})
	n.session = nil

	broker, err := netsup.NewBrokerSession(netsup.BrokerSessionConfig{}, mqtt.NewSession(config.BrokerConfig{}, nil),
		staticSettings{}, nil, nil, nil)
	require.NoError(t, err)
	n.attach(broker)

	// No influx, console or session: listeners must be no-ops.
	assert.NotPanics(t, func() {
		sup.onConnect[0]()
		sup.onDrop[0]()
		n.brokerAttempt(netsup.Attempt{Endpoint: "b:1883", OK: true})
	})
}

func TestBrokerAttempt_SubscribesCommandTopicOnce(t *testing.T) {
	n, _ := testWiring(inlineExecutor{})

	n.brokerAttempt(netsup.Attempt{OK: false, Code: mqtt.CodeConnectFailed})
	require.Zero(t, n.session.SubscriptionCount(), "failed attempt subscribed")

	n.brokerAttempt(netsup.Attempt{OK: true})
	n.brokerAttempt(netsup.Attempt{OK: true})

	assert.Equal(t, 1, n.session.SubscriptionCount())
	assert.True(t, n.session.HasSubscription(n.commandTopic))
}

type staticSettings struct{}

func (staticSettings) Credentials() settings.Credentials       { return settings.Credentials{} }
func (staticSettings) BrokerEndpoint() settings.BrokerEndpoint { return settings.BrokerEndpoint{} }
