package netsup

import (
	"fmt"

	"github.com/nerrad567/gray-logic-node/internal/settings"
)

// AnnouncerConfig describes the published service record.
type AnnouncerConfig struct {
	Service  string
	Protocol string
	Port     int
}

// Announcer registers the node's discovery record.
type Announcer struct {
	cfg       AnnouncerConfig
	discovery Discovery
	diag      Diagnostics
	logger    Logger

	count int
}

// NewAnnouncer creates an announcer. diag and logger may be nil.
func NewAnnouncer(cfg AnnouncerConfig, discovery Discovery, diag Diagnostics, logger Logger) (*Announcer, error) {
	if discovery == nil {
		return nil, fmt.Errorf("%w: announcer needs discovery", ErrMissingDependency)
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "tcp"
	}
	if diag == nil {
		diag = noopDiagnostics{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Announcer{cfg: cfg, discovery: discovery, diag: diag, logger: logger}, nil
}

// Announce publishes the service under hostName, or under the default host
// name if hostName is empty. Failures are reported but never retried here.
func (a *Announcer) Announce(hostName string) bool {
	a.count++

	host, substituted := settings.EffectiveHostName(hostName)
	if substituted {
		a.diag.Printf("host name with length zero detected, defaulting to %q", host)
		a.logger.Warn("empty host name, using default", "host", host)
	}

	if !a.discovery.Begin(host) {
		a.diag.Printf("Error setting up mDNS responder!")
		a.logger.Error("discovery responder failed", "host", host)
		return false
	}
	if !a.discovery.AddService(a.cfg.Service, a.cfg.Protocol, a.cfg.Port) {
		a.diag.Printf("Error publishing %s service record", a.cfg.Service)
		a.logger.Error("discovery service record failed", "host", host, "service", a.cfg.Service)
		return false
	}

	a.diag.Printf("published %s host name: %s", a.cfg.Service, host)
	a.logger.Info("service announced", "host", host, "service", a.cfg.Service, "port", a.cfg.Port)
	return true
}

// announcements returns the number of Announce calls.
func (a *Announcer) announcements() int {
	return a.count
}
