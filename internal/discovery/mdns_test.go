package discovery

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	stopped bool
}

func (s *fakeServer) Shutdown() { s.stopped = true }

type registration struct {
	instance string
	service  string
	domain   string
	port     int
	text     []string
	ifaces   []net.Interface
	ttl      uint32
	server   *fakeServer
}

func newTestMDNS(cfg Config, fail error) (*MDNS, *[]registration) {
	m := NewMDNS(cfg, nil)
	var regs []registration
	m.register = func(instance, service, domain string, port int, text []string, ifaces []net.Interface, ttl uint32) (server, error) {
		if fail != nil {
			return nil, fail
		}
		s := &fakeServer{}
		regs = append(regs, registration{instance, service, domain, port, text, ifaces, ttl, s})
		return s, nil
	}
	return m, &regs
}

func TestMDNS_BeginAndAddService(t *testing.T) {
	m, regs := newTestMDNS(Config{TTL: 2 * time.Minute, Text: []string{"id=porch"}}, nil)

	require.True(t, m.Begin("porch"))
	require.True(t, m.AddService("http", "tcp", 8080))

	require.Len(t, *regs, 1)
	r := (*regs)[0]
	assert.Equal(t, "porch", r.instance)
	assert.Equal(t, "_http._tcp", r.service)
	assert.Equal(t, "local.", r.domain)
	assert.Equal(t, 8080, r.port)
	assert.Equal(t, []string{"id=porch"}, r.text)
	assert.Nil(t, r.ifaces)
	assert.Equal(t, uint32(120), r.ttl)
	assert.Equal(t, []string{"_http._tcp"}, m.Services())
}

func TestMDNS_BeginRejectsEmptyHost(t *testing.T) {
	m, _ := newTestMDNS(Config{}, nil)

	assert.False(t, m.Begin(""))
	assert.False(t, m.AddService("http", "tcp", 80))
}

func TestMDNS_BeginReplacesRegistrations(t *testing.T) {
	m, regs := newTestMDNS(Config{}, nil)

	m.Begin("porch")
	m.AddService("http", "tcp", 8080)
	m.Begin("porch-renamed")
	m.AddService("http", "tcp", 8080)

	require.Len(t, *regs, 2)
	assert.True(t, (*regs)[0].server.stopped)
	assert.False(t, (*regs)[1].server.stopped)
	assert.Equal(t, "porch-renamed", (*regs)[1].instance)
}

func TestMDNS_AddServiceFailure(t *testing.T) {
	m, _ := newTestMDNS(Config{}, errors.New("no multicast"))

	require.True(t, m.Begin("porch"))
	assert.False(t, m.AddService("http", "tcp", 8080))
	assert.Empty(t, m.Services())
}

func TestMDNS_Shutdown(t *testing.T) {
	m, regs := newTestMDNS(Config{}, nil)
	m.Begin("porch")
	m.AddService("http", "tcp", 8080)
	m.AddService("mqtt", "tcp", 1883)

	m.Shutdown()

	for _, r := range *regs {
		assert.True(t, r.server.stopped, r.service)
	}
	assert.Empty(t, m.Services())
}

func TestMDNS_Interface(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		m, regs := newTestMDNS(Config{Interface: "wlan0"}, nil)
		m.ifaceFor = func(name string) (*net.Interface, error) {
			return &net.Interface{Name: name, Index: 3}, nil
		}

		m.Begin("porch")
		m.AddService("http", "tcp", 80)

		require.Len(t, (*regs)[0].ifaces, 1)
		assert.Equal(t, "wlan0", (*regs)[0].ifaces[0].Name)
	})

	t.Run("missing falls back to all", func(t *testing.T) {
		m, regs := newTestMDNS(Config{Interface: "wlan9"}, nil)
		m.ifaceFor = func(string) (*net.Interface, error) { return nil, errors.New("no such interface") }

		m.Begin("porch")
		m.AddService("http", "tcp", 80)

		assert.Nil(t, (*regs)[0].ifaces)
	})
}

func TestServiceType(t *testing.T) {
	assert.Equal(t, "_telnet._tcp", ServiceType("telnet", "tcp"))
}
