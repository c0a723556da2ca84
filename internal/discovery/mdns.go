package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Domain is the default mDNS domain.
const Domain = "local."

// Config controls the mDNS responder.
type Config struct {
	// Domain is the mDNS domain (default "local.").
	Domain string

	// Interface restricts announcements to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL is the record TTL. Zero uses the zeroconf default.
	TTL time.Duration

	// Text holds TXT record entries ("key=value").
	Text []string
}

// Logger is the logging interface used by MDNS.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// server is a running registration.
type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, ttl uint32) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, ttl uint32) (server, error) {
	var opts []zeroconf.ServerOption
	if ttl > 0 {
		opts = append(opts, zeroconf.TTL(ttl))
	}
	s, err := zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MDNS publishes the node's services over multicast DNS.
//
// Begin sets the instance name and drops earlier registrations, so each
// link-up announces afresh. AddService registers one service type.
type MDNS struct {
	cfg      Config
	logger   Logger
	register registerFunc
	ifaceFor func(name string) (*net.Interface, error)

	mu      sync.Mutex
	host    string
	servers map[string]server
}

// NewMDNS creates a responder. logger may be nil.
func NewMDNS(cfg Config, logger Logger) *MDNS {
	if cfg.Domain == "" {
		cfg.Domain = Domain
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &MDNS{
		cfg:      cfg,
		logger:   logger,
		register: zeroconfRegister,
		ifaceFor: net.InterfaceByName,
		servers:  make(map[string]server),
	}
}

// Begin prepares announcements under hostName.
func (m *MDNS) Begin(hostName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownLocked()
	if hostName == "" {
		return false
	}
	m.host = hostName
	return true
}

// AddService registers "_service._protocol" on port under the host name
// given to Begin.
func (m *MDNS) AddService(service, protocol string, port int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.host == "" {
		m.logger.Warn("mDNS service added before Begin", "service", service)
		return false
	}

	svcType := ServiceType(service, protocol)
	if old, ok := m.servers[svcType]; ok {
		old.Shutdown()
		delete(m.servers, svcType)
	}

	srv, err := m.register(m.host, svcType, m.cfg.Domain, port, m.cfg.Text, m.interfaces(), uint32(m.cfg.TTL.Seconds()))
	if err != nil {
		m.logger.Warn("mDNS registration failed", "host", m.host, "service", svcType, "error", err)
		return false
	}
	m.servers[svcType] = srv

	m.logger.Info("mDNS service registered", "host", m.host, "service", svcType, "port", port)
	return true
}

// Services returns the registered service types.
func (m *MDNS) Services() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.servers))
	for svc := range m.servers {
		out = append(out, svc)
	}
	return out
}

// Shutdown withdraws all registrations.
func (m *MDNS) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownLocked()
}

func (m *MDNS) shutdownLocked() {
	for svc, srv := range m.servers {
		srv.Shutdown()
		delete(m.servers, svc)
	}
	m.host = ""
}

// interfaces returns the configured interface, or nil for all.
func (m *MDNS) interfaces() []net.Interface {
	if m.cfg.Interface == "" {
		return nil
	}
	iface, err := m.ifaceFor(m.cfg.Interface)
	if err != nil {
		m.logger.Warn("mDNS interface not found, using all", "interface", m.cfg.Interface, "error", err)
		return nil
	}
	return []net.Interface{*iface}
}

// ServiceType builds a DNS-SD service type such as "_http._tcp".
func ServiceType(service, protocol string) string {
	return fmt.Sprintf("_%s._%s", service, protocol)
}
