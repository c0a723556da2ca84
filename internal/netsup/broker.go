package netsup

import (
	"fmt"
	"time"
)

// DefaultBrokerRetryInterval is the default minimum spacing between
// broker connect attempts.
const DefaultBrokerRetryInterval = 60 * time.Second

// BrokerSessionConfig holds the broker session policy.
type BrokerSessionConfig struct {
	// RetryInterval is the minimum spacing between connect attempts,
	// measured from the start of the previous attempt.
	RetryInterval time.Duration

	// ResetSpacingOnLinkUp makes a fresh link period eligible for an
	// immediate attempt. When false the spacing carries over link cycles.
	ResetSpacingOnLinkUp bool
}

// Attempt describes one broker connect attempt.
type Attempt struct {
	Endpoint string
	OK       bool
	Code     int
	At       time.Time
}

// BrokerSession keeps a broker session alive while the link is up.
//
// Thread Safety:
//   - Not safe for concurrent use; driven from the poll goroutine.
type BrokerSession struct {
	cfg      BrokerSessionConfig
	broker   Broker
	settings SettingsReader
	diag     Diagnostics
	logger   Logger
	clock    Clock

	spacing Interval
	active  bool

	onAttempt []func(Attempt)
}

// NewBrokerSession creates an inactive session.
// diag, logger and clock may be nil.
func NewBrokerSession(cfg BrokerSessionConfig, broker Broker, reader SettingsReader, diag Diagnostics, logger Logger, clock Clock) (*BrokerSession, error) {
	if broker == nil || reader == nil {
		return nil, fmt.Errorf("%w: broker session needs broker and settings", ErrMissingDependency)
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultBrokerRetryInterval
	}
	if diag == nil {
		diag = noopDiagnostics{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &BrokerSession{
		cfg:      cfg,
		broker:   broker,
		settings: reader,
		diag:     diag,
		logger:   logger,
		clock:    clock,
		spacing:  NewInterval(cfg.RetryInterval),
	}, nil
}

// OnAttempt registers fn to run after every connect attempt.
func (b *BrokerSession) OnAttempt(fn func(Attempt)) {
	b.onAttempt = append(b.onAttempt, fn)
}

// Poll services an active session or, when eligible, attempts a new one.
// It returns whether the session is active. The caller polls only while
// the link is up.
func (b *BrokerSession) Poll() bool {
	if b.active {
		if b.broker.Connected() {
			b.broker.Loop()
			return true
		}
		b.active = false
		code := b.broker.LastErrorCode()
		b.diag.Printf("MQTT connection lost, rc = %d", code)
		b.logger.Warn("broker session lost", "code", code)
	}

	ep := b.settings.BrokerEndpoint()
	if !ep.Enabled() {
		return false
	}

	now := b.clock.Now()
	if !b.spacing.Due(now) {
		return false
	}
	b.spacing.Mark(now)

	b.broker.SetEndpoint(ep.Host, ep.Port)
	b.diag.Printf("Attempting MQTT connection to %s...", ep.Address())

	ok := b.broker.Connect(ep.ClientID, ep.Username, ep.Password)
	code := b.broker.LastErrorCode()
	if ok {
		b.active = true
		b.diag.Printf("MQTT connected")
		b.logger.Info("broker session established", "endpoint", ep.Address(), "client_id", ep.ClientID)
		b.broker.Loop()
	} else {
		b.diag.Printf("MQTT connection failed, rc = %d, retrying in %s", code, b.cfg.RetryInterval)
		b.logger.Warn("broker connect failed", "endpoint", ep.Address(), "code", code)
	}

	a := Attempt{Endpoint: ep.Address(), OK: ok, Code: code, At: now}
	for _, fn := range b.onAttempt {
		fn(a)
	}
	return ok
}

// LinkUp is called on every entry into Connected.
func (b *BrokerSession) LinkUp() {
	if b.cfg.ResetSpacingOnLinkUp {
		b.spacing.Reset()
	}
}

// Invalidate ends the session. Called when the link goes away or the
// endpoint changes.
func (b *BrokerSession) Invalidate() {
	if b.active || b.broker.Connected() {
		b.broker.Disconnect()
	}
	b.active = false
}

// Active reports whether the session is active.
func (b *BrokerSession) Active() bool {
	return b.active
}
