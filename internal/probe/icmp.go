package probe

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ICMPProber sends one echo request and waits for the matching reply. It
// prefers the unprivileged udp4 datagram socket and falls back to a raw
// socket when the kernel does not allow datagram ICMP.
type ICMPProber struct{}

func (ICMPProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, hostOnly(address))
	if err != nil || len(addrs) == 0 {
		return failure("icmp", classify(err))
	}
	var ip net.IP
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			ip = v4
			break
		}
	}
	if ip == nil {
		return failure("icmp", "no IPv4 address")
	}

	conn, dst, err := openEcho(ip)
	if err != nil {
		return failure("icmp", classify(err))
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	req := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: id, Seq: 1, Data: []byte("hostpulse")},
	}
	wb, err := req.Marshal(nil)
	if err != nil {
		return failure("icmp", err.Error())
	}

	deadline := start.Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.WriteTo(wb, dst); err != nil {
		return failure("icmp", classify(err))
	}

	rb := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			return failure("icmp", classify(err))
		}
		msg, err := icmp.ParseMessage(ipv4.ICMPTypeEchoReply.Protocol(), rb[:n])
		if err != nil {
			continue
		}
		if msg.Type == ipv4.ICMPTypeEchoReply {
			return success("icmp", time.Since(start))
		}
		// Some other ICMP traffic on the socket; keep waiting until the
		// deadline fires.
	}
}

func openEcho(ip net.IP) (*icmp.PacketConn, net.Addr, error) {
	if conn, err := icmp.ListenPacket("udp4", "0.0.0.0"); err == nil {
		return conn, &net.UDPAddr{IP: ip}, nil
	}
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, nil, err
	}
	return conn, &net.IPAddr{IP: ip}, nil
}
