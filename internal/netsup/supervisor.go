package netsup

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/settings"
)

// State is the supervisor's link state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Default supervisor timings.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRetryInterval  = 2 * time.Minute
)

// SessionPoller is the broker session as seen by the supervisor.
// BrokerSession implements it.
type SessionPoller interface {
	Poll() bool
	LinkUp()
	Invalidate()
}

// ServiceAnnouncer publishes the node after the link comes up.
// Announcer implements it.
type ServiceAnnouncer interface {
	Announce(hostName string) bool
}

// SupervisorConfig holds the supervisor timings.
type SupervisorConfig struct {
	// ConnectTimeout bounds how long Connecting may last.
	ConnectTimeout time.Duration

	// RetryInterval is the minimum time between the starts of two
	// automatic connect attempts.
	RetryInterval time.Duration
}

// Deps bundles the supervisor's collaborators.
// Link, Settings, Session and Announcer are required.
type Deps struct {
	Link        Link
	Settings    SettingsReader
	Session     SessionPoller
	Announcer   ServiceAnnouncer
	Diagnostics Diagnostics
	Logger      Logger
	Clock       Clock
}

// LinkStats is a snapshot of the link for the command surface.
type LinkStats struct {
	State           string `json:"state"`
	SSID            string `json:"ssid,omitempty"`
	SignalStrength  int    `json:"signal_strength_dbm,omitempty"`
	Address         string `json:"address,omitempty"`
	HardwareAddress string `json:"hardware_address,omitempty"`
	HostName        string `json:"host_name"`
	BrokerActive    bool   `json:"broker_active"`
}

// Supervisor owns the link state machine.
//
// Thread Safety:
//   - Not safe for concurrent use. All methods, including the queries,
//     must be called from the poll goroutine (see Runner.Do).
type Supervisor struct {
	cfg       SupervisorConfig
	link      Link
	settings  SettingsReader
	session   SessionPoller
	announcer ServiceAnnouncer
	diag      Diagnostics
	logger    Logger
	clock     Clock

	state        State
	connectStart time.Time
	retry        Interval
	brokerActive bool

	// Attempt parameters, fixed when the attempt starts.
	attemptSSID string
	attemptHost string

	onConnect    []func()
	onDisconnect []func()
}

// NewSupervisor creates a supervisor in the Disconnected state.
// Zero timings fall back to DefaultConnectTimeout and DefaultRetryInterval.
func NewSupervisor(cfg SupervisorConfig, deps Deps) (*Supervisor, error) {
	if deps.Link == nil || deps.Settings == nil || deps.Session == nil || deps.Announcer == nil {
		return nil, fmt.Errorf("%w: supervisor needs link, settings, session and announcer", ErrMissingDependency)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if deps.Diagnostics == nil {
		deps.Diagnostics = noopDiagnostics{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}

	return &Supervisor{
		cfg:       cfg,
		link:      deps.Link,
		settings:  deps.Settings,
		session:   deps.Session,
		announcer: deps.Announcer,
		diag:      deps.Diagnostics,
		logger:    deps.Logger,
		clock:     deps.Clock,
		state:     StateDisconnected,
		retry:     NewInterval(cfg.RetryInterval),
	}, nil
}

// OnConnect registers fn to run on every transition into Connected.
// Listeners run on the poll goroutine and must not call Runner.Do.
func (s *Supervisor) OnConnect(fn func()) {
	s.onConnect = append(s.onConnect, fn)
}

// OnDisconnect registers fn to run when an established link is lost.
func (s *Supervisor) OnDisconnect(fn func()) {
	s.onDisconnect = append(s.onDisconnect, fn)
}

// Begin starts the first connect attempt.
func (s *Supervisor) Begin() {
	s.Connect()
}

// Poll advances the state machine by at most one transition.
func (s *Supervisor) Poll() {
	switch s.state {
	case StateDisconnected:
		s.pollDisconnected()
	case StateConnecting:
		s.pollConnecting()
	case StateConnected:
		s.pollConnected()
	}
}

func (s *Supervisor) pollDisconnected() {
	if !s.retry.Due(s.clock.Now()) {
		return
	}
	creds := s.settings.Credentials()
	if !creds.Complete() {
		return
	}
	s.logger.Info("retrying link connection", "ssid", creds.SSID)
	s.startAttempt(creds)
}

func (s *Supervisor) pollConnecting() {
	if s.link.Status() == LinkUp {
		s.enterConnected()
		return
	}

	elapsed := s.clock.Now().Sub(s.connectStart)
	if elapsed <= s.cfg.ConnectTimeout {
		return
	}

	s.link.Disconnect()
	s.state = StateDisconnected
	s.diag.Printf("WiFi failed to connect to SSID %q: timeout after %s", s.attemptSSID, s.cfg.ConnectTimeout)
	s.logger.Warn("link connect timeout", "ssid", s.attemptSSID, "elapsed", elapsed)
}

func (s *Supervisor) pollConnected() {
	if s.link.Status() == LinkUp {
		s.brokerActive = s.session.Poll()
		return
	}

	s.state = StateDisconnected
	s.brokerActive = false
	s.session.Invalidate()
	s.diag.Printf("WiFi connection lost")
	s.logger.Warn("link lost", "ssid", s.attemptSSID)

	for _, fn := range s.onDisconnect {
		fn()
	}
}

func (s *Supervisor) enterConnected() {
	s.state = StateConnected

	host, _ := settings.EffectiveHostName(s.attemptHost)
	rssi := s.link.SignalStrength()
	addr := s.link.LocalAddress()

	s.diag.Printf("WiFi connected to:   %s", s.attemptSSID)
	s.diag.Printf("signal strength:     %d dBm", rssi)
	s.diag.Printf("IP:                  %s", addr)
	s.diag.Printf("host name:           %s", host)
	if !s.settings.BrokerEndpoint().Enabled() {
		s.diag.Printf("MQTT server not configured or disabled")
	}
	s.logger.Info("link connected",
		"ssid", s.attemptSSID,
		"rssi", rssi,
		"address", addr,
		"host", host,
		"took", s.clock.Now().Sub(s.connectStart),
	)

	s.session.LinkUp()

	for _, fn := range s.onConnect {
		fn()
	}

	s.announcer.Announce(s.attemptHost)
}

// Connect starts a link attempt. It is a no-op unless Disconnected.
// With an empty SSID or passphrase it stays Disconnected and lists the
// visible networks on the diagnostics sink.
func (s *Supervisor) Connect() {
	if s.state != StateDisconnected {
		return
	}

	creds := s.settings.Credentials()
	if !creds.Complete() {
		s.diag.Printf("WiFi SSID (%q) or passphrase not set: can not connect to network", creds.SSID)
		s.diag.Printf("please set up your SSID and passphrase")
		s.logger.Warn("link credentials missing", "ssid_set", creds.SSID != "", "passphrase_set", creds.Passphrase != "")
		s.printVisibleNetworks()
		return
	}

	s.startAttempt(creds)
}

func (s *Supervisor) startAttempt(creds settings.Credentials) {
	now := s.clock.Now()
	s.connectStart = now
	s.retry.Mark(now)
	s.attemptSSID = creds.SSID
	s.attemptHost = creds.HostName

	host, _ := settings.EffectiveHostName(creds.HostName)
	s.link.BeginStation(host)
	s.link.Connect(creds.SSID, creds.Passphrase)
	s.state = StateConnecting

	s.logger.Debug("link connect started", "ssid", creds.SSID, "host", host)
}

func (s *Supervisor) printVisibleNetworks() {
	networks := s.link.Scan()
	if len(networks) == 0 {
		return
	}
	s.diag.Printf("visible network SSIDs:")
	for _, n := range networks {
		s.diag.Printf("  %s (%d dBm)", n.SSID, n.Strength)
	}
}

// Disconnect tears the link down. It is a no-op when Disconnected.
// Disconnect listeners are not notified; they report link loss only.
func (s *Supervisor) Disconnect() {
	if s.state == StateDisconnected {
		return
	}

	if s.state == StateConnected {
		s.session.Invalidate()
	}
	s.link.Disconnect()
	s.state = StateDisconnected
	s.brokerActive = false
	s.logger.Info("link disconnected by request", "ssid", s.attemptSSID)
}

// Reconnect drops the link and immediately starts a new attempt with the
// current credentials.
func (s *Supervisor) Reconnect() {
	s.Disconnect()
	s.Connect()
}

// State returns the current state.
func (s *Supervisor) State() State {
	return s.state
}

// IsConnected reports whether the link is up.
func (s *Supervisor) IsConnected() bool {
	return s.state == StateConnected
}

// BrokerActive reports whether the broker session was active at the last poll.
func (s *Supervisor) BrokerActive() bool {
	return s.brokerActive
}

// HostName returns the configured host name, or the default if unset.
func (s *Supervisor) HostName() string {
	host, _ := settings.EffectiveHostName(s.settings.Credentials().HostName)
	return host
}

// InvalidateBroker drops the broker session so the next eligible attempt
// uses the current endpoint.
func (s *Supervisor) InvalidateBroker() {
	s.session.Invalidate()
	s.brokerActive = false
}

// Scan lists visible networks. It blocks for the duration of the scan.
func (s *Supervisor) Scan() []Network {
	return s.link.Scan()
}

// Stats returns a snapshot of the link.
func (s *Supervisor) Stats() LinkStats {
	st := LinkStats{
		State:           s.state.String(),
		HardwareAddress: s.link.HardwareAddress(),
		HostName:        s.HostName(),
		BrokerActive:    s.brokerActive,
	}
	if s.state != StateDisconnected {
		st.SSID = s.attemptSSID
	}
	if s.state == StateConnected {
		st.SignalStrength = s.link.SignalStrength()
		st.Address = s.link.LocalAddress()
	}
	return st
}
