package probe

import (
	"context"
	"strings"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"golang.org/x/crypto/ssh"
)

// SSHProber attempts an SSH handshake with no credentials. A server that
// rejects authentication has still completed key exchange, which is proof
// enough that the SSH service is alive; only transport-level failures are
// critical.
type SSHProber struct{}

func (SSHProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus {
	addr := withDefaultPort(address, "22")
	start := time.Now()

	cfg := &ssh.ClientConfig{
		User:            "hostpulse-probe",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err == nil {
		client.Close()
		return success("ssh", time.Since(start))
	}
	if isAuthRejection(err) {
		return success("ssh", time.Since(start))
	}
	return failure("ssh", classify(err))
}

func isAuthRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied")
}
