package probe

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/database"
	"github.com/hostpulse/hostpulse/internal/events"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// fakeProber returns scripted statuses in order, repeating the last one.
type fakeProber struct {
	mu      sync.Mutex
	results []models.ProtocolStatus
	calls   int
	delay   time.Duration
}

func (f *fakeProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProtocolStatus {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx]
}

func okResult(protocol string) models.ProtocolStatus {
	ms := 1.5
	return models.ProtocolStatus{Protocol: protocol, Status: models.StatusOK, LatencyMs: &ms}
}

func critResult(protocol, msg string) models.ProtocolStatus {
	return models.ProtocolStatus{Protocol: protocol, Status: models.StatusCrit, Message: msg}
}

func testChecker(t *testing.T, protocols string) (*Checker, *state.Table, *events.Aggregator, models.Host, *gorm.DB) {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	host := models.Host{
		Name:      "edge-1",
		Address:   "10.0.0.1",
		IsActive:  true,
		Protocols: datatypes.JSON(protocols),
	}
	require.NoError(t, db.Create(&host).Error)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table := state.NewTable()
	agg := events.NewAggregator(nil, 0, logger)

	cfg := &config.Config{
		CheckIntervalSeconds: 15,
		CheckWorkers:         4,
		ProtocolTimeouts:     map[string]time.Duration{},
		SystemDNSAddr:        "127.0.0.1:53",
		SystemNTPAddr:        "127.0.0.1:123",
	}
	c := NewChecker(db, table, agg, cfg, logger)
	return c, table, agg, host, db
}

func TestCheckerStateMachineTransitions(t *testing.T) {
	c, table, _, host, _ := testChecker(t, `["icmp"]`)
	icmp := &fakeProber{results: []models.ProtocolStatus{
		okResult("icmp"),
		critResult("icmp", "connection timed out"),
		okResult("icmp"),
	}}
	c.probers = map[string]Prober{"icmp": icmp, "dns": icmp, "ntp": icmp}

	target := host.ID.String()

	// unknown -> ok
	c.RunCycle()
	hs, found := table.HostStatus(target)
	require.True(t, found)
	assert.Equal(t, models.StatusOK, hs.Status)

	// ok -> crit
	c.RunCycle()
	hs, _ = table.HostStatus(target)
	assert.Equal(t, models.StatusCrit, hs.Status)

	// crit -> ok on the very next successful probe, no half-open state.
	c.RunCycle()
	hs, _ = table.HostStatus(target)
	assert.Equal(t, models.StatusOK, hs.Status)
}

func TestHostAggregateFollowsOnlyReachability(t *testing.T) {
	c, table, _, host, _ := testChecker(t, `["icmp","ssh"]`)
	c.probers = map[string]Prober{
		"icmp": &fakeProber{results: []models.ProtocolStatus{okResult("icmp")}},
		"ssh":  &fakeProber{results: []models.ProtocolStatus{critResult("ssh", "connection refused")}},
		"dns":  &fakeProber{results: []models.ProtocolStatus{okResult("dns")}},
		"ntp":  &fakeProber{results: []models.ProtocolStatus{okResult("ntp")}},
	}

	c.RunCycle()

	target := host.ID.String()
	hs, found := table.HostStatus(target)
	require.True(t, found)
	assert.Equal(t, models.StatusOK, hs.Status, "ssh failure must not flip the reachability aggregate")

	checks := table.Checks(target)
	require.Contains(t, checks, "ssh")
	assert.Equal(t, models.StatusCrit, checks["ssh"].Status, "ssh failure is still surfaced individually")
}

func TestThreeFailingCyclesOneEvent(t *testing.T) {
	c, _, agg, host, _ := testChecker(t, `["icmp"]`)
	c.probers = map[string]Prober{
		"icmp": &fakeProber{results: []models.ProtocolStatus{critResult("icmp", "connection timed out")}},
		"dns":  &fakeProber{results: []models.ProtocolStatus{okResult("dns")}},
		"ntp":  &fakeProber{results: []models.ProtocolStatus{okResult("ntp")}},
	}

	c.RunCycle()
	c.RunCycle()
	c.RunCycle()

	got := agg.Recent(events.Filter{HostID: &host.ID})
	require.Len(t, got, 1, "a persistent failure logs a single transition event")
	assert.Equal(t, models.LevelCrit, got[0].Level)
}

func TestSlowProbeDoesNotSerializeCycle(t *testing.T) {
	c, table, _, host, db := testChecker(t, `["icmp"]`)
	other := models.Host{Name: "edge-2", Address: "10.0.0.2", IsActive: true, Protocols: datatypes.JSON(`["icmp"]`)}
	require.NoError(t, db.Create(&other).Error)

	c.probers = map[string]Prober{
		"icmp": &fakeProber{results: []models.ProtocolStatus{okResult("icmp")}, delay: 150 * time.Millisecond},
		"dns":  &fakeProber{results: []models.ProtocolStatus{okResult("dns")}, delay: 150 * time.Millisecond},
		"ntp":  &fakeProber{results: []models.ProtocolStatus{okResult("ntp")}, delay: 150 * time.Millisecond},
	}

	start := time.Now()
	c.RunCycle()
	elapsed := time.Since(start)

	// Four probes of 150ms each, pool of 4: concurrent, not sequential.
	assert.Less(t, elapsed, 450*time.Millisecond)

	_, foundA := table.HostStatus(host.ID.String())
	_, foundB := table.HostStatus(other.ID.String())
	assert.True(t, foundA)
	assert.True(t, foundB)
}

func TestInactiveHostSkipped(t *testing.T) {
	c, table, _, host, db := testChecker(t, `["icmp"]`)
	require.NoError(t, db.Model(&models.Host{}).Where("id = ?", host.ID).Update("is_active", false).Error)

	c.probers = map[string]Prober{
		"icmp": &fakeProber{results: []models.ProtocolStatus{okResult("icmp")}},
		"dns":  &fakeProber{results: []models.ProtocolStatus{okResult("dns")}},
		"ntp":  &fakeProber{results: []models.ProtocolStatus{okResult("ntp")}},
	}

	c.RunCycle()

	_, found := table.HostStatus(host.ID.String())
	assert.False(t, found)
}

func TestSystemTargetChecked(t *testing.T) {
	c, table, _, _, _ := testChecker(t, `["icmp"]`)
	c.probers = map[string]Prober{
		"icmp": &fakeProber{results: []models.ProtocolStatus{okResult("icmp")}},
		"dns":  &fakeProber{results: []models.ProtocolStatus{okResult("dns")}},
		"ntp":  &fakeProber{results: []models.ProtocolStatus{critResult("ntp", "connection timed out")}},
	}

	c.RunCycle()

	checks := table.Checks(models.SystemTarget)
	require.Contains(t, checks, "dns")
	require.Contains(t, checks, "ntp")
	assert.Equal(t, models.StatusOK, checks["dns"].Status)
	assert.Equal(t, models.StatusCrit, checks["ntp"].Status)

	// The system pseudo-target never gets a host reachability aggregate.
	_, found := table.HostStatus(models.SystemTarget)
	assert.False(t, found)
}

func TestOnCycleBroadcast(t *testing.T) {
	c, _, _, _, _ := testChecker(t, `["icmp"]`)
	c.probers = map[string]Prober{
		"icmp": &fakeProber{results: []models.ProtocolStatus{okResult("icmp")}},
		"dns":  &fakeProber{results: []models.ProtocolStatus{okResult("dns")}},
		"ntp":  &fakeProber{results: []models.ProtocolStatus{okResult("ntp")}},
	}

	var views []state.StatusView
	c.OnCycle(func(v state.StatusView) { views = append(views, v) })

	c.RunCycle()
	require.Len(t, views, 1)
	assert.NotEmpty(t, views[0].Protocols)
}
