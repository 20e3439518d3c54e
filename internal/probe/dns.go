package probe

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
)

// probeName is the name queried against the target server. The answer does
// not matter: an NXDOMAIN still proves the server is up and responding.
const probeName = "example.com"

// DNSProber sends one query to the target acting as a DNS server.
type DNSProber struct{}

func (DNSProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus {
	server := withDefaultPort(address, "53")
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, network, server)
		},
	}

	start := time.Now()
	_, err := resolver.LookupHost(ctx, probeName)
	if err == nil {
		return success("dns", time.Since(start))
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			// The server answered, just not with a record.
			return success("dns", time.Since(start))
		}
		if dnsErr.IsTimeout {
			return failure("dns", "query timed out")
		}
	}
	return failure("dns", classify(err))
}
