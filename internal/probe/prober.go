package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
)

// Prober is one bounded attempt to check a target over a specific
// protocol. Implementations never return errors: a failed probe is an
// expected steady-state outcome and is reported as a crit status value.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus
}

// DefaultProbers returns the closed set of protocol probes. Dispatch is by
// protocol tag; there is no open-ended plugin registration.
func DefaultProbers() map[string]Prober {
	return map[string]Prober{
		"icmp":    ICMPProber{},
		"ssh":     SSHProber{},
		"dns":     DNSProber{},
		"ntp":     NTPProber{},
		"snmp":    SNMPProber{},
		"netflow": NetflowProber{},
	}
}

func success(protocol string, latency time.Duration) models.ProtocolStatus {
	ms := float64(latency.Microseconds()) / 1000.0
	return models.ProtocolStatus{
		Protocol:  protocol,
		Status:    models.StatusOK,
		LatencyMs: &ms,
		CheckedAt: time.Now(),
	}
}

func failure(protocol, message string) models.ProtocolStatus {
	return models.ProtocolStatus{
		Protocol:  protocol,
		Status:    models.StatusCrit,
		Message:   message,
		CheckedAt: time.Now(),
	}
}

// classify maps transport errors onto short human-readable messages.
func classify(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "connection timed out"
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "host is down"):
		return "host unreachable"
	case strings.Contains(msg, "no such host"):
		return "name resolution failed"
	}
	return err.Error()
}

// withDefaultPort appends the protocol's well-known port when the address
// has none.
func withDefaultPort(address, port string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, port)
}

// hostOnly strips an optional port.
func hostOnly(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}
