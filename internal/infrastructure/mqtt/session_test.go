package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// fakeToken is a paho token that is already resolved.
type fakeToken struct {
	completed bool
	err       error
}

func (t *fakeToken) Wait() bool                     { return t.completed }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.completed }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completed {
		close(ch)
	}
	return ch
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records what the session asks of paho.
type fakeClient struct {
	mu           sync.Mutex
	connectToken pahomqtt.Token
	open         bool
	published    []published
	subscribed   map[string]pahomqtt.MessageHandler
	unsubscribed []string
	disconnects  []uint
}

func newFakeClient(token pahomqtt.Token) *fakeClient {
	return &fakeClient{connectToken: token, subscribed: make(map[string]pahomqtt.MessageHandler)}
}

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ft, ok := c.connectToken.(*fakeToken); ok && ft.completed && ft.err == nil {
		c.open = true
	}
	return c.connectToken
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.disconnects = append(c.disconnects, quiesce)
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := payload.([]byte)
	c.published = append(c.published, published{topic: topic, retained: retained, payload: data})
	return &fakeToken{completed: true}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[topic] = cb
	return &fakeToken{completed: true}
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	return &fakeToken{completed: true}
}

func testBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{
		RetryInterval:  time.Minute,
		ConnectTimeout: time.Second,
		KeepAlive:      15 * time.Second,
		QoS:            1,
		TopicPrefix:    "graylogic/node",
	}
}

// newTestSession returns a session whose paho clients are fakes. Each
// Connect consumes the next token from tokens.
func newTestSession(t *testing.T, tokens ...pahomqtt.Token) (*Session, *[]*fakeClient, *[]*pahomqtt.ClientOptions) {
	t.Helper()
	s := NewSession(testBrokerConfig(), nil)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }

	var clients []*fakeClient
	var opts []*pahomqtt.ClientOptions
	s.newClient = func(o *pahomqtt.ClientOptions) pahoClient {
		if len(tokens) == 0 {
			t.Fatal("unexpected Connect")
		}
		c := newFakeClient(tokens[0])
		tokens = tokens[1:]
		clients = append(clients, c)
		opts = append(opts, o)
		return c
	}
	return s, &clients, &opts
}

func TestConnectCode(t *testing.T) {
	tests := []struct {
		name      string
		token     pahomqtt.Token
		completed bool
		want      int
	}{
		{"timeout", &fakeToken{}, false, CodeConnectionTimeout},
		{"accepted", &fakeToken{completed: true}, true, CodeConnected},
		{"network error", &fakeToken{completed: true, err: errors.New("connection refused")}, true, CodeConnectFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connectCode(tt.token, tt.completed); got != tt.want {
				t.Errorf("connectCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCodeText(t *testing.T) {
	if got := CodeText(CodeBadCredentials); got != "bad username or password" {
		t.Errorf("CodeText(4) = %q", got)
	}
	if got := CodeText(42); got != "code 42" {
		t.Errorf("CodeText(42) = %q", got)
	}
}

func TestSession_ConnectSuccess(t *testing.T) {
	s, clients, opts := newTestSession(t, &fakeToken{completed: true})

	s.SetEndpoint("broker.local", 1884)
	if !s.Connect("porch-1", "user", "pass") {
		t.Fatal("Connect() = false, want true")
	}

	if !s.Connected() {
		t.Error("Connected() = false after successful Connect")
	}
	if code := s.LastErrorCode(); code != CodeConnected {
		t.Errorf("LastErrorCode() = %d, want 0", code)
	}

	o := (*opts)[0]
	if len(o.Servers) != 1 || o.Servers[0].String() != "tcp://broker.local:1884" {
		t.Errorf("Servers = %v, want tcp://broker.local:1884", o.Servers)
	}
	if o.ClientID != "porch-1" || o.Username != "user" || o.Password != "pass" {
		t.Errorf("credentials = %q/%q/%q", o.ClientID, o.Username, o.Password)
	}
	if o.AutoReconnect {
		t.Error("AutoReconnect = true, want false")
	}
	if !o.WillEnabled || !o.WillRetained || o.WillTopic != "graylogic/node/porch-1/status" {
		t.Errorf("will = enabled:%v retained:%v topic:%q", o.WillEnabled, o.WillRetained, o.WillTopic)
	}

	c := (*clients)[0]
	if len(c.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(c.published))
	}
	msg := c.published[0]
	if msg.topic != "graylogic/node/porch-1/status" || !msg.retained {
		t.Errorf("status publish = %q retained=%v", msg.topic, msg.retained)
	}
	var status statusPayload
	if err := json.Unmarshal(msg.payload, &status); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if status.Status != "online" || status.BootID != s.BootID() || status.ClientID != "porch-1" {
		t.Errorf("status = %+v", status)
	}
}

func TestSession_ConnectFailure(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
		want  int
	}{
		{"refused", &fakeToken{completed: true, err: errors.New("refused")}, CodeConnectFailed},
		{"timeout", &fakeToken{}, CodeConnectionTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clients, _ := newTestSession(t, tt.token)
			s.SetEndpoint("broker.local", 1883)

			if s.Connect("porch-1", "", "") {
				t.Fatal("Connect() = true, want false")
			}
			if s.Connected() {
				t.Error("Connected() = true after failure")
			}
			if got := s.LastErrorCode(); got != tt.want {
				t.Errorf("LastErrorCode() = %d, want %d", got, tt.want)
			}
			if len((*clients)[0].disconnects) != 1 {
				t.Error("failed client was not torn down")
			}
		})
	}
}

func TestSession_EmptyClientID(t *testing.T) {
	s, _, opts := newTestSession(t, &fakeToken{completed: true})

	s.Connect("", "", "")

	id := (*opts)[0].ClientID
	if !strings.HasPrefix(id, "graylogic-node-") || len(id) != len("graylogic-node-")+8 {
		t.Errorf("ClientID = %q, want graylogic-node-<8 chars>", id)
	}
	if s.Topics().ClientID != id {
		t.Errorf("Topics().ClientID = %q, want %q", s.Topics().ClientID, id)
	}
}

func TestSession_ConnectionLost(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeToken{completed: true})
	s.Connect("porch-1", "", "")

	s.handleConnectionLost(errors.New("EOF"))

	if s.Connected() {
		t.Error("Connected() = true after connection lost")
	}
	if got := s.LastErrorCode(); got != CodeConnectionLost {
		t.Errorf("LastErrorCode() = %d, want %d", got, CodeConnectionLost)
	}
}

func TestSession_ReconnectReplacesClient(t *testing.T) {
	s, clients, _ := newTestSession(t, &fakeToken{completed: true}, &fakeToken{completed: true})

	s.Connect("porch-1", "", "")
	s.Connect("porch-1", "", "")

	if len(*clients) != 2 {
		t.Fatalf("clients = %d, want 2", len(*clients))
	}
	if len((*clients)[0].disconnects) != 1 {
		t.Error("previous client was not disconnected")
	}
}

func TestSession_Disconnect(t *testing.T) {
	s, clients, _ := newTestSession(t, &fakeToken{completed: true})

	s.Disconnect()
	if len(*clients) != 0 {
		t.Fatal("Disconnect without session created a client")
	}

	s.Connect("porch-1", "", "")
	s.Disconnect()

	c := (*clients)[0]
	if len(c.disconnects) != 1 || c.disconnects[0] != defaultDisconnectQuiesce {
		t.Errorf("disconnects = %v", c.disconnects)
	}
	last := c.published[len(c.published)-1]
	var status statusPayload
	if err := json.Unmarshal(last.payload, &status); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if status.Status != "offline" || status.Reason != "graceful_shutdown" {
		t.Errorf("status = %+v", status)
	}
	if s.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
	if got := s.LastErrorCode(); got != CodeDisconnected {
		t.Errorf("LastErrorCode() = %d, want %d", got, CodeDisconnected)
	}
}

func TestSession_SubscriptionsAppliedOnConnect(t *testing.T) {
	s, clients, _ := newTestSession(t, &fakeToken{completed: true})
	handler := func(string, []byte) error { return nil }

	if err := s.Subscribe("graylogic/node/porch-1/command", 1, handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !s.HasSubscription("graylogic/node/porch-1/command") {
		t.Error("subscription not tracked before connect")
	}

	s.Connect("porch-1", "", "")

	c := (*clients)[0]
	if _, ok := c.subscribed["graylogic/node/porch-1/command"]; !ok {
		t.Error("subscription not applied on connect")
	}

	if err := s.Unsubscribe("graylogic/node/porch-1/command"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if s.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", s.SubscriptionCount())
	}
	if len(c.unsubscribed) != 1 {
		t.Errorf("unsubscribed = %v", c.unsubscribed)
	}
}

func TestSession_SubscribeValidation(t *testing.T) {
	s := NewSession(testBrokerConfig(), nil)
	handler := func(string, []byte) error { return nil }

	if err := s.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := s.Subscribe("a", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v", err)
	}
	if err := s.Subscribe("a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
}

func TestSession_LoopDispatches(t *testing.T) {
	s := NewSession(testBrokerConfig(), nil)

	var got []string
	handler := func(topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		return nil
	}

	s.enqueue(handler, "a", []byte("1"))
	s.enqueue(handler, "b", []byte("2"))

	if len(got) != 0 {
		t.Fatal("handler ran before Loop")
	}
	s.Loop()

	if len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Errorf("dispatched = %v", got)
	}
}

func TestSession_LoopBounded(t *testing.T) {
	s := NewSession(testBrokerConfig(), nil)
	var n int
	handler := func(string, []byte) error { n++; return nil }

	for i := 0; i < maxDeliveriesPerLoop+5; i++ {
		s.enqueue(handler, "t", nil)
	}

	s.Loop()
	if n != maxDeliveriesPerLoop {
		t.Errorf("first Loop dispatched %d, want %d", n, maxDeliveriesPerLoop)
	}
	s.Loop()
	if n != maxDeliveriesPerLoop+5 {
		t.Errorf("second Loop total %d, want %d", n, maxDeliveriesPerLoop+5)
	}
}

func TestSession_LoopRecoversPanic(t *testing.T) {
	s := NewSession(testBrokerConfig(), nil)
	var after bool

	s.enqueue(func(string, []byte) error { panic("boom") }, "a", nil)
	s.enqueue(func(string, []byte) error { after = true; return nil }, "b", nil)

	s.Loop()

	if !after {
		t.Error("handler after a panicking one did not run")
	}
}

func TestSession_InboxFullDrops(t *testing.T) {
	s := NewSession(testBrokerConfig(), nil)
	handler := func(string, []byte) error { return nil }

	for i := 0; i < inboxSize+10; i++ {
		s.enqueue(handler, "t", nil)
	}

	if len(s.inbox) != inboxSize {
		t.Errorf("inbox length = %d, want %d", len(s.inbox), inboxSize)
	}
}

func TestSession_Publish(t *testing.T) {
	s, clients, _ := newTestSession(t, &fakeToken{completed: true})

	if err := s.Publish("t", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish before connect error = %v, want ErrNotConnected", err)
	}
	if err := s.Publish("", nil, 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := s.Publish("t", nil, 5, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 5 error = %v", err)
	}
	if err := s.Publish("t", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversize error = %v", err)
	}

	s.Connect("porch-1", "", "")
	if err := s.PublishJSON(s.Topics().Stats(), map[string]int{"rssi": -60}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	c := (*clients)[0]
	last := c.published[len(c.published)-1]
	if last.topic != "graylogic/node/porch-1/stats" || string(last.payload) != `{"rssi":-60}` {
		t.Errorf("published %q = %s", last.topic, last.payload)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testBrokerConfig()
	cfg.TLS = true
	cfg.ConnectTimeout = 0

	o := buildClientOptions(cfg, endpoint{host: "secure.local", port: 8883, clientID: "n"})

	if o.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", o.Servers[0].Scheme)
	}
	if o.TLSConfig == nil {
		t.Error("TLSConfig not set")
	}
	if o.ConnectTimeout != defaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", o.ConnectTimeout, defaultConnectTimeout)
	}
	if o.Username != "" {
		t.Errorf("Username = %q, want empty", o.Username)
	}
}
