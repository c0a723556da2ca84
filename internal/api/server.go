package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/netsup"
	"github.com/nerrad567/gray-logic-node/internal/settings"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandTimeout bounds how long a handler waits for the poll loop.
const commandTimeout = 30 * time.Second

// Supervisor is the part of the link supervisor the console drives.
// Its methods are only called from inside Executor.Do.
type Supervisor interface {
	Stats() netsup.LinkStats
	Reconnect()
	Disconnect()
	Scan() []netsup.Network
	InvalidateBroker()
}

// Executor runs a function on the poll goroutine. *netsup.Runner implements it.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// SettingsStore is the configuration store as seen by the console.
type SettingsStore interface {
	Record() settings.Record
	Console() settings.Console
	Update(fn func(*settings.Record)) (settings.Record, error)
	Persist(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Supervisor Supervisor
	Executor   Executor
	Settings   SettingsStore
	NodeID     string
	Version    string
}

// Server is the node's remote console.
//
// It is started when the link comes up and stopped when it drops; Start
// and Stop are idempotent and may be repeated for every link period. The
// WebSocket hub outlives individual listeners.
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	supervisor Supervisor
	exec       Executor
	settings   SettingsStore
	nodeID     string
	version    string
	startTime  time.Time
	hub        *Hub

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	cancel context.CancelFunc
	linkUp chan bool
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil || deps.Executor == nil {
		return nil, fmt.Errorf("supervisor and executor are required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		supervisor: deps.Supervisor,
		exec:       deps.Executor,
		settings:   deps.Settings,
		nodeID:     deps.NodeID,
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        NewHub(deps.Logger),
		linkUp:     make(chan bool, 1),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It does nothing if the server is already running or the console is
// disabled in the settings store. The listener is bound before Start
// returns so address conflicts are reported to the caller.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}
	if !s.settings.Console().Enabled {
		s.logger.Info("remote console disabled in settings")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	s.server = srv
	s.addr = ln.Addr()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("remote console started", "address", s.addr.String())
	return nil
}

// Stop gracefully shuts down the listener. It is a no-op when the server
// is not running.
//
// Stop waits for in-flight requests, some of which may be waiting on the
// poll loop, so it must not be called from the poll goroutine. Use
// SetLinkUp from supervisor listeners.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("remote console stopping")
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.addr = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Running reports whether the listener is up.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Addr returns the bound listener address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Broadcast sends an event to websocket clients subscribed to channel.
// Events broadcast while the console is stopped reach no one.
func (s *Server) Broadcast(channel string, payload any) {
	s.hub.Broadcast(channel, payload)
}

// SetLinkUp records link availability. It never blocks; Manage applies the
// latest value. Safe to call from supervisor listeners.
func (s *Server) SetLinkUp(up bool) {
	for {
		select {
		case s.linkUp <- up:
			return
		default:
		}
		select {
		case <-s.linkUp:
		default:
		}
	}
}

// Manage starts and stops the listener to follow SetLinkUp until ctx is
// cancelled, then stops it.
func (s *Server) Manage(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if err := s.Stop(); err != nil {
				s.logger.Warn("stopping remote console", "error", err)
			}
			return
		case up := <-s.linkUp:
			var err error
			if up {
				err = s.Start(ctx)
			} else {
				err = s.Stop()
			}
			if err != nil {
				s.logger.Warn("remote console transition failed", "link_up", up, "error", err)
			}
		}
	}
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if !s.Running() {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// do runs fn on the poll goroutine, bounded by the request context.
func (s *Server) do(r *http.Request, fn func()) error {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	return s.exec.Do(ctx, fn)
}
