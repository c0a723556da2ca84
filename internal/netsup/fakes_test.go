package netsup

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/settings"
)

// manualClock is a Clock advanced explicitly by tests.
type manualClock struct {
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeLink records calls and reports a scripted status.
type fakeLink struct {
	status   LinkStatus
	networks []Network
	rssi     int
	addr     string
	hw       string

	beginHosts  []string
	connects    []string
	disconnects int
	scans       int
}

func (l *fakeLink) BeginStation(host string) { l.beginHosts = append(l.beginHosts, host) }

func (l *fakeLink) Connect(ssid, _ string) { l.connects = append(l.connects, ssid) }

func (l *fakeLink) Disconnect() {
	l.disconnects++
	l.status = LinkDown
}

func (l *fakeLink) Status() LinkStatus      { return l.status }
func (l *fakeLink) SignalStrength() int     { return l.rssi }
func (l *fakeLink) LocalAddress() string    { return l.addr }
func (l *fakeLink) HardwareAddress() string { return l.hw }

func (l *fakeLink) Scan() []Network {
	l.scans++
	return l.networks
}

// fakeBroker reports scripted connect results.
type fakeBroker struct {
	accept    bool
	failCode  int
	connected bool

	endpoints   []string
	attempts    int
	loops       int
	disconnects int
	clientIDs   []string
}

func (b *fakeBroker) SetEndpoint(host string, port int) {
	b.endpoints = append(b.endpoints, fmt.Sprintf("%s:%d", host, port))
}

func (b *fakeBroker) Connect(clientID, _, _ string) bool {
	b.attempts++
	b.clientIDs = append(b.clientIDs, clientID)
	b.connected = b.accept
	return b.accept
}

func (b *fakeBroker) Connected() bool { return b.connected }
func (b *fakeBroker) Loop()           { b.loops++ }

func (b *fakeBroker) LastErrorCode() int {
	if b.connected {
		return 0
	}
	return b.failCode
}

func (b *fakeBroker) Disconnect() {
	b.disconnects++
	b.connected = false
}

// fakeDiscovery records announcements.
type fakeDiscovery struct {
	failBegin   bool
	failService bool

	hosts    []string
	services []string
}

func (d *fakeDiscovery) Begin(host string) bool {
	d.hosts = append(d.hosts, host)
	return !d.failBegin
}

func (d *fakeDiscovery) AddService(service, protocol string, port int) bool {
	d.services = append(d.services, fmt.Sprintf("%s/%s:%d", service, protocol, port))
	return !d.failService
}

// fakeSettings is a mutable SettingsReader.
type fakeSettings struct {
	creds  settings.Credentials
	broker settings.BrokerEndpoint
}

func (s *fakeSettings) Credentials() settings.Credentials       { return s.creds }
func (s *fakeSettings) BrokerEndpoint() settings.BrokerEndpoint { return s.broker }

// diagLog captures diagnostics lines.
type diagLog struct {
	lines []string
}

func (d *diagLog) Printf(format string, args ...any) {
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

func (d *diagLog) String() string { return strings.Join(d.lines, "\n") }

func (d *diagLog) Reset() { d.lines = nil }

// harness wires a supervisor to fakes with the default timings.
type harness struct {
	clock     *manualClock
	link      *fakeLink
	broker    *fakeBroker
	discovery *fakeDiscovery
	settings  *fakeSettings
	diag      *diagLog

	session   *BrokerSession
	announcer *Announcer
	sup       *Supervisor
}

type harnessOption func(*BrokerSessionConfig)

func withSpacingReset() harnessOption {
	return func(c *BrokerSessionConfig) { c.ResetSpacingOnLinkUp = true }
}

func newHarness(opts ...harnessOption) *harness {
	h := &harness{
		clock:     newManualClock(),
		link:      &fakeLink{rssi: -61, addr: "192.168.1.50", hw: "de:ad:be:ef:00:01"},
		broker:    &fakeBroker{failCode: -2},
		discovery: &fakeDiscovery{},
		settings: &fakeSettings{
			creds: settings.Credentials{SSID: "home", Passphrase: "secret", HostName: "porch"},
		},
		diag: &diagLog{},
	}

	bcfg := BrokerSessionConfig{RetryInterval: DefaultBrokerRetryInterval}
	for _, opt := range opts {
		opt(&bcfg)
	}

	var err error
	h.session, err = NewBrokerSession(bcfg, h.broker, h.settings, h.diag, nil, h.clock)
	if err != nil {
		panic(err)
	}
	h.announcer, err = NewAnnouncer(AnnouncerConfig{Service: "http", Protocol: "tcp", Port: 8080}, h.discovery, h.diag, nil)
	if err != nil {
		panic(err)
	}
	h.sup, err = NewSupervisor(SupervisorConfig{}, Deps{
		Link:        h.link,
		Settings:    h.settings,
		Session:     h.session,
		Announcer:   h.announcer,
		Diagnostics: h.diag,
		Clock:       h.clock,
	})
	if err != nil {
		panic(err)
	}
	return h
}

// connect drives the supervisor into Connected.
func (h *harness) connect() {
	h.sup.Connect()
	h.link.status = LinkUp
	h.sup.Poll()
}
