package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
)

// NTPProber sends one SNTPv4 client request and accepts any well-formed
// server reply.
type NTPProber struct{}

func (NTPProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus {
	addr := withDefaultPort(address, "123")
	start := time.Now()

	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return failure("ntp", classify(err))
	}
	defer conn.Close()
	_ = conn.SetDeadline(start.Add(timeout))

	// 48-byte client packet: LI=0, VN=4, Mode=3 (client).
	req := make([]byte, 48)
	req[0] = 0x23

	if _, err := conn.Write(req); err != nil {
		return failure("ntp", classify(err))
	}

	resp := make([]byte, 48)
	n, err := conn.Read(resp)
	if err != nil {
		return failure("ntp", classify(err))
	}
	if n < 48 || resp[0]&0x07 != 4 {
		return failure("ntp", "malformed NTP response")
	}
	return success("ntp", time.Since(start))
}

// snmpGetSysUpTime is a pre-encoded SNMPv2c GET of sysUpTime.0 with the
// "public" community. Any datagram back counts as alive; the payload is
// not decoded.
var snmpGetSysUpTime = []byte{
	0x30, 0x29, // SEQUENCE, len 41
	0x02, 0x01, 0x01, // INTEGER version = 1 (SNMPv2c)
	0x04, 0x06, 'p', 'u', 'b', 'l', 'i', 'c', // OCTET STRING community
	0xa0, 0x1c, // GetRequest-PDU, len 28
	0x02, 0x04, 0x68, 0x70, 0x6c, 0x73, // request-id
	0x02, 0x01, 0x00, // error-status
	0x02, 0x01, 0x00, // error-index
	0x30, 0x0e, // varbind list
	0x30, 0x0c, // varbind
	0x06, 0x08, 0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x03, 0x00, // 1.3.6.1.2.1.1.3.0
	0x05, 0x00, // NULL
}

// SNMPProber checks that an SNMP agent answers a v2c GET.
type SNMPProber struct{}

func (SNMPProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus {
	addr := withDefaultPort(address, "161")
	start := time.Now()

	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return failure("snmp", classify(err))
	}
	defer conn.Close()
	_ = conn.SetDeadline(start.Add(timeout))

	if _, err := conn.Write(snmpGetSysUpTime); err != nil {
		return failure("snmp", classify(err))
	}

	resp := make([]byte, 1500)
	n, err := conn.Read(resp)
	if err != nil {
		return failure("snmp", classify(err))
	}
	if n == 0 {
		return failure("snmp", "empty SNMP response")
	}
	return success("snmp", time.Since(start))
}

// NetflowProber verifies the UDP path to a NetFlow exporter port. NetFlow
// is fire-and-forget, so no reply is expected: the check passes unless the
// stack reports the port unreachable.
type NetflowProber struct{}

func (NetflowProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus {
	addr := withDefaultPort(address, "2055")
	start := time.Now()

	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return failure("netflow", classify(err))
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{0x00, 0x05}); err != nil {
		return failure("netflow", classify(err))
	}
	latency := time.Since(start)

	// A short read window surfaces ICMP port-unreachable; a timeout is
	// the expected healthy outcome.
	wait := 300 * time.Millisecond
	if timeout < wait {
		wait = timeout
	}
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	buf := make([]byte, 64)
	if _, err := conn.Read(buf); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
			return failure("netflow", "connection refused")
		}
	}
	st := success("netflow", latency)
	st.Message = "udp path open (passive check)"
	return st
}
