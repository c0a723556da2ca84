package mqtt

import (
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// inboxSize bounds messages queued between two Loop calls.
const inboxSize = 64

// maxDeliveriesPerLoop bounds the work done by one Loop call.
const maxDeliveriesPerLoop = 16

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler is the callback signature for received messages.
//
// Handlers run inside Loop on the caller's goroutine, never on paho's
// network goroutines.
//
// Returns:
//   - error: Logged, does not affect acknowledgment
type MessageHandler func(topic string, payload []byte) error

// pahoClient is the subset of pahomqtt.Client used by Session.
type pahoClient interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
}

// subscription holds subscription details for re-subscription on connect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// delivery is a received message waiting for Loop.
type delivery struct {
	handler MessageHandler
	topic   string
	payload []byte
}

// Session is a broker session with PubSubClient-like semantics:
// Connect performs one bounded handshake, Loop dispatches received
// messages, and LastErrorCode reports why the session is not up.
//
// Every Connect builds a fresh paho client from the endpoint passed in,
// so endpoint and credential changes apply on the next attempt.
//
// Thread Safety:
//   - Connect, Loop and Disconnect are meant for the poll goroutine.
//   - Publish, Subscribe and the queries are safe from any goroutine.
type Session struct {
	cfg       config.BrokerConfig
	logger    Logger
	bootID    string
	newClient func(*pahomqtt.ClientOptions) pahoClient
	now       func() time.Time

	mu     sync.Mutex
	host   string
	port   int
	client pahoClient
	topics Topics

	connected atomic.Bool
	lastCode  atomic.Int32

	inbox chan delivery

	subMu sync.RWMutex
	subs  map[string]subscription
}

// NewSession creates a disconnected session. logger may be nil.
func NewSession(cfg config.BrokerConfig, logger Logger) *Session {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Session{
		cfg:    cfg,
		logger: logger,
		bootID: uuid.NewString(),
		newClient: func(opts *pahomqtt.ClientOptions) pahoClient {
			return pahomqtt.NewClient(opts)
		},
		now:   time.Now,
		inbox: make(chan delivery, inboxSize),
		subs:  make(map[string]subscription),
	}
	s.lastCode.Store(CodeDisconnected)
	return s
}

// BootID identifies this process run in status payloads.
func (s *Session) BootID() string {
	return s.bootID
}

// Topics returns the topic builder for the current client ID.
func (s *Session) Topics() Topics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics
}

// SetEndpoint sets the broker address used by the next Connect.
func (s *Session) SetEndpoint(host string, port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = host
	s.port = port
}

// Connect performs one connect handshake, waiting at most the configured
// connect timeout. On success it restores subscriptions and publishes a
// retained online status.
//
// An empty clientID is replaced by one derived from the boot ID.
func (s *Session) Connect(clientID, username, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Disconnect(0)
		s.client = nil
		s.connected.Store(false)
	}

	if clientID == "" {
		clientID = "graylogic-node-" + s.bootID[:8]
	}
	s.topics = Topics{Prefix: s.cfg.TopicPrefix, ClientID: clientID}

	opts := buildClientOptions(s.cfg, endpoint{
		host:     s.host,
		port:     s.port,
		clientID: clientID,
		username: username,
		password: password,
	})
	configureLWT(opts, s.topics.Status(),
		buildStatusPayload("offline", clientID, s.bootID, "unexpected_disconnect", s.now()),
		s.qos())
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.handleConnectionLost(err)
	})

	client := s.newClient(opts)
	token := client.Connect()
	completed := token.WaitTimeout(opts.ConnectTimeout)
	code := connectCode(token, completed)
	s.lastCode.Store(int32(code))

	if code != CodeConnected {
		client.Disconnect(0)
		s.logger.Warn("MQTT connect failed",
			"host", s.host,
			"port", s.port,
			"code", code,
			"reason", CodeText(code),
			"error", token.Error(),
		)
		return false
	}

	s.client = client
	s.connected.Store(true)
	s.restoreSubscriptions()
	s.publishStatus("online", "")

	s.logger.Info("MQTT connected", "host", s.host, "port", s.port, "client_id", clientID)
	return true
}

// handleConnectionLost is called by paho when the connection drops.
func (s *Session) handleConnectionLost(err error) {
	s.connected.Store(false)
	s.lastCode.Store(CodeConnectionLost)
	s.logger.Warn("MQTT connection lost", "error", err)
}

// Connected reports whether the session is up.
func (s *Session) Connected() bool {
	if !s.connected.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnectionOpen()
}

// Loop dispatches queued messages to their handlers. It never blocks.
func (s *Session) Loop() {
	for i := 0; i < maxDeliveriesPerLoop; i++ {
		select {
		case d := <-s.inbox:
			s.dispatch(d)
		default:
			return
		}
	}
}

// LastErrorCode returns the status of the last attempt or the reason the
// session dropped. See the Code constants.
func (s *Session) LastErrorCode() int {
	return int(s.lastCode.Load())
}

// Disconnect publishes a graceful offline status and closes the session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return
	}

	if s.connected.Load() {
		s.publishStatus("offline", "graceful_shutdown")
	}
	s.client.Disconnect(defaultDisconnectQuiesce)
	s.client = nil
	s.connected.Store(false)
	s.lastCode.Store(CodeDisconnected)

	s.logger.Info("MQTT disconnected", "host", s.host)
}

// publishStatus publishes the retained status. Caller holds s.mu.
func (s *Session) publishStatus(status, reason string) {
	payload := buildStatusPayload(status, s.topics.ClientID, s.bootID, reason, s.now())
	token := s.client.Publish(s.topics.Status(), s.qos(), true, payload)
	s.watch(token, "status publish", s.topics.Status())
}

// watch logs the outcome of token without blocking the caller.
func (s *Session) watch(token pahomqtt.Token, op, topic string) {
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			s.logger.Warn("MQTT "+op+" timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			s.logger.Warn("MQTT "+op+" failed", "topic", topic, "error", err)
		}
	}()
}

func (s *Session) qos() byte {
	if s.cfg.QoS < 0 || s.cfg.QoS > maxQoS {
		return 1
	}
	return byte(s.cfg.QoS)
}

// enqueue hands a received message to Loop, dropping it if the inbox is full.
func (s *Session) enqueue(handler MessageHandler, topic string, payload []byte) {
	select {
	case s.inbox <- delivery{handler: handler, topic: topic, payload: payload}:
	default:
		s.logger.Warn("MQTT inbox full, dropping message", "topic", topic)
	}
}

// callback adapts handler to paho's message callback.
func (s *Session) callback(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		s.enqueue(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs a handler with panic recovery.
func (s *Session) dispatch(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("MQTT handler panic recovered",
				"topic", d.topic,
				"panic", r,
			)
		}
	}()

	if err := d.handler(d.topic, d.payload); err != nil {
		s.logger.Warn("MQTT handler returned error",
			"topic", d.topic,
			"error", err,
		)
	}
}
