package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/sampler"
)

const reportTimeout = 5 * time.Second

// Agent is the push-mode collector: it samples the local system on an
// interval and reports each sample to a central hostpulse server. Failed
// reports are logged and skipped; the next tick tries again with a fresh
// sample, so a flaky network never builds a backlog.
type Agent struct {
	collectorURL string
	hostID       string
	interval     time.Duration
	client       *http.Client
	log          *slog.Logger

	collect func(target string) *models.Sample
}

func New(collectorURL, hostID string, interval time.Duration, logger *slog.Logger) (*Agent, error) {
	if collectorURL == "" {
		return nil, fmt.Errorf("collector URL is required in agent mode")
	}
	if hostID == "" {
		return nil, fmt.Errorf("agent host id is required in agent mode")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Agent{
		collectorURL: collectorURL,
		hostID:       hostID,
		interval:     interval,
		client:       &http.Client{Timeout: reportTimeout},
		log:          logger,
		collect:      sampler.Collect,
	}, nil
}

// Run samples and reports until the context is canceled.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("Agent started", "collector", a.collectorURL, "host_id", a.hostID, "interval", a.interval)

	a.report(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.report(ctx)
		case <-ctx.Done():
			a.log.Info("Agent stopped")
			return ctx.Err()
		}
	}
}

func (a *Agent) report(ctx context.Context) {
	sample := a.collect(a.hostID)
	if err := a.send(ctx, sample); err != nil {
		a.log.Warn("Report failed", "error", err)
	}
}

func (a *Agent) send(ctx context.Context, sample *models.Sample) error {
	body, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.collectorURL+"/api/agent/report", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}
