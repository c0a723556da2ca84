package link

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/process"
	"github.com/nerrad567/gray-logic-node/internal/netsup"
)

// Defaults for the NetworkManager backend.
const (
	DefaultInterface     = "wlan0"
	DefaultWirelessStats = "/proc/net/wireless"

	defaultScanTimeout = 15 * time.Second

	// connectWait is passed to nmcli --wait. The supervisor applies its own
	// shorter timeout and cancels the attempt.
	connectWait = 30 * time.Second

	// disconnectTimeout bounds the background "device disconnect".
	disconnectTimeout = 10 * time.Second
)

// Config configures the NetworkManager link.
type Config struct {
	Interface     string
	ScanTimeout   time.Duration
	WirelessStats string
}

// Logger is the logging interface used by NMCLI.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// commandRunner runs nmcli. *process.Runner implements it.
type commandRunner interface {
	Run(ctx context.Context, args ...string) (process.Result, error)
}

// attemptState is the outcome of the most recent connect request.
type attemptState int

const (
	attemptIdle attemptState = iota
	attemptPending
	attemptOK
	attemptFailed
)

// NMCLI drives a wireless interface through NetworkManager's CLI.
//
// Connect returns immediately; the association runs in a background
// goroutine whose outcome Status reports. Status is also down while the
// interface has no IPv4 address, which is how link loss is observed.
type NMCLI struct {
	cfg    Config
	nmcli  commandRunner
	logger Logger

	addrs    func(iface string) ([]net.Addr, error)
	hwAddr   func(iface string) (string, error)
	readFile func(path string) ([]byte, error)

	mu       sync.Mutex
	hostName string
	state    attemptState
	gen      uint64
	cancel   context.CancelFunc

	// teardown is closed when the last device disconnect has finished.
	teardown chan struct{}
}

// New creates a link backed by nmcli. logger may be nil.
func New(cfg Config, nmcli commandRunner, logger Logger) *NMCLI {
	if cfg.Interface == "" {
		cfg.Interface = DefaultInterface
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = defaultScanTimeout
	}
	if cfg.WirelessStats == "" {
		cfg.WirelessStats = DefaultWirelessStats
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &NMCLI{
		cfg:      cfg,
		nmcli:    nmcli,
		logger:   logger,
		addrs:    interfaceAddrs,
		hwAddr:   interfaceHardwareAddr,
		readFile: os.ReadFile,
	}
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

func interfaceHardwareAddr(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	return iface.HardwareAddr.String(), nil
}

// BeginStation records the host name applied before the next association.
func (l *NMCLI) BeginStation(hostName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hostName = hostName
}

// Connect starts associating with ssid in the background, cancelling any
// attempt still in flight.
func (l *NMCLI) Connect(ssid, passphrase string) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectWait+5*time.Second)
	l.cancel = cancel
	l.gen++
	gen := l.gen
	l.state = attemptPending
	host := l.hostName
	teardown := l.teardown
	l.mu.Unlock()

	go l.associate(ctx, teardown, gen, host, ssid, passphrase)
}

// associate waits for a preceding device disconnect so NetworkManager never
// sees the teardown after the new connect.
func (l *NMCLI) associate(ctx context.Context, teardown <-chan struct{}, gen uint64, host, ssid, passphrase string) {
	if teardown != nil {
		select {
		case <-teardown:
		case <-ctx.Done():
			l.mu.Lock()
			if gen == l.gen {
				l.state = attemptFailed
			}
			l.mu.Unlock()
			return
		}
	}

	if host != "" {
		if _, err := l.nmcli.Run(ctx, "general", "hostname", host); err != nil {
			l.logger.Warn("setting host name failed", "host", host, "error", err)
		}
	}

	_, err := l.nmcli.Run(ctx,
		"--wait", strconv.Itoa(int(connectWait.Seconds())),
		"device", "wifi", "connect", ssid,
		"password", passphrase,
		"ifname", l.cfg.Interface,
	)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	if err != nil {
		l.state = attemptFailed
		l.logger.Warn("wifi association failed", "ssid", ssid, "error", err)
		return
	}
	l.state = attemptOK
	l.logger.Debug("wifi associated", "ssid", ssid, "interface", l.cfg.Interface)
}

// Disconnect cancels any pending attempt and drops the association.
func (l *NMCLI) Disconnect() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
	l.state = attemptIdle
	prev := l.teardown
	done := make(chan struct{})
	l.teardown = done
	l.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if _, err := l.nmcli.Run(ctx, "device", "disconnect", l.cfg.Interface); err != nil {
			l.logger.Debug("device disconnect failed", "interface", l.cfg.Interface, "error", err)
		}
	}()
}

// Status reports LinkUp once the association succeeded and the interface
// holds an IPv4 address.
func (l *NMCLI) Status() netsup.LinkStatus {
	l.mu.Lock()
	ok := l.state == attemptOK
	l.mu.Unlock()

	if ok && l.LocalAddress() != "" {
		return netsup.LinkUp
	}
	return netsup.LinkDown
}

// SignalStrength returns the interface signal level in dBm, or 0 if unknown.
func (l *NMCLI) SignalStrength() int {
	data, err := l.readFile(l.cfg.WirelessStats)
	if err != nil {
		return 0
	}
	level, ok := parseWirelessLevel(string(data), l.cfg.Interface)
	if !ok {
		return 0
	}
	return level
}

// LocalAddress returns the interface's first IPv4 address.
func (l *NMCLI) LocalAddress() string {
	addrs, err := l.addrs(l.cfg.Interface)
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// HardwareAddress returns the interface MAC address.
func (l *NMCLI) HardwareAddress() string {
	hw, err := l.hwAddr(l.cfg.Interface)
	if err != nil {
		return ""
	}
	return hw
}

// Scan lists visible networks, strongest first. It blocks for up to the
// configured scan timeout.
func (l *NMCLI) Scan() []netsup.Network {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.ScanTimeout)
	defer cancel()

	res, err := l.nmcli.Run(ctx, "-t", "-f", "SSID,SIGNAL", "device", "wifi", "list", "ifname", l.cfg.Interface)
	if err != nil {
		l.logger.Warn("wifi scan failed", "interface", l.cfg.Interface, "error", err)
		return nil
	}
	return parseScan(string(res.Stdout))
}

// parseScan parses terse "SSID:SIGNAL" lines. Colons inside the SSID are
// escaped as "\:". Hidden networks are skipped and duplicate SSIDs keep
// their strongest entry.
func parseScan(out string) []netsup.Network {
	best := make(map[string]int)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		i := strings.LastIndex(line, ":")
		if i <= 0 {
			continue
		}
		ssid := strings.ReplaceAll(line[:i], `\:`, ":")
		pct, err := strconv.Atoi(line[i+1:])
		if err != nil || ssid == "" {
			continue
		}
		dbm := percentToDBm(pct)
		if cur, ok := best[ssid]; !ok || dbm > cur {
			best[ssid] = dbm
		}
	}

	networks := make([]netsup.Network, 0, len(best))
	for ssid, dbm := range best {
		networks = append(networks, netsup.Network{SSID: ssid, Strength: dbm})
	}
	sort.Slice(networks, func(i, j int) bool {
		if networks[i].Strength != networks[j].Strength {
			return networks[i].Strength > networks[j].Strength
		}
		return networks[i].SSID < networks[j].SSID
	})
	return networks
}

// percentToDBm maps NetworkManager's 0-100 signal quality onto dBm.
func percentToDBm(pct int) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct/2 - 100
}

// parseWirelessLevel extracts the signal level of iface from
// /proc/net/wireless.
func parseWirelessLevel(data, iface string) (int, bool) {
	prefix := iface + ":"
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] != prefix {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[3], "."), 64)
		if err != nil {
			return 0, false
		}
		return int(level), true
	}
	return 0, false
}

// String describes the backend for logs.
func (l *NMCLI) String() string {
	return fmt.Sprintf("nmcli(%s)", l.cfg.Interface)
}
