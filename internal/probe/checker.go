package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/events"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/state"
	"gorm.io/gorm"
)

// Checker schedules protocol probes for every active host plus the system
// pseudo-target. Probes run concurrently through a bounded worker pool so
// a hang on one host never delays checks for any other; every tick is an
// independent attempt with no backoff or half-open state.
type Checker struct {
	db      *gorm.DB
	table   *state.Table
	events  *events.Aggregator
	cfg     *config.Config
	probers map[string]Prober
	log     *slog.Logger
	now     func() time.Time

	onCycle func(state.StatusView)

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
}

func NewChecker(db *gorm.DB, table *state.Table, agg *events.Aggregator, cfg *config.Config, logger *slog.Logger) *Checker {
	workers := cfg.CheckWorkers
	if workers <= 0 {
		workers = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{
		db:      db,
		table:   table,
		events:  agg,
		cfg:     cfg,
		probers: DefaultProbers(),
		log:     logger,
		now:     time.Now,
		sem:     make(chan struct{}, workers),
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnCycle registers a callback invoked with the status view after every
// completed cycle. The hub uses it for the per-tick status broadcast.
func (c *Checker) OnCycle(fn func(state.StatusView)) {
	c.onCycle = fn
}

func (c *Checker) Start() {
	go c.loop()
	c.log.Info("Protocol checker started", "interval", c.cfg.CheckInterval(), "workers", cap(c.sem))
}

// Stop cancels in-flight probes rather than waiting for them; each probe
// is already bounded by its protocol timeout.
func (c *Checker) Stop() {
	close(c.stop)
	c.cancel()
	<-c.done
	c.log.Info("Protocol checker stopped")
}

func (c *Checker) loop() {
	defer close(c.done)

	c.RunCycle()

	ticker := time.NewTicker(c.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunCycle()
		case <-c.stop:
			return
		}
	}
}

// RunCycle probes every (target, protocol) pair once and broadcasts the
// resulting status view. Exported for tests.
func (c *Checker) RunCycle() {
	var wg sync.WaitGroup

	run := func(hostID *uuid.UUID, target, protocol, address string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case c.sem <- struct{}{}:
				defer func() { <-c.sem }()
			case <-c.ctx.Done():
				return
			}
			c.checkOne(hostID, target, protocol, address)
		}()
	}

	// System pseudo-target: resolver and clock-source health.
	run(nil, models.SystemTarget, "dns", c.cfg.SystemDNSAddr)
	run(nil, models.SystemTarget, "ntp", c.cfg.SystemNTPAddr)

	var hosts []models.Host
	if err := c.db.Where("is_active = ?", true).Find(&hosts).Error; err != nil {
		c.log.Error("Failed to list hosts for check cycle", "error", err)
	}
	for i := range hosts {
		host := hosts[i]
		id := host.ID
		for _, protocol := range host.ProtocolList() {
			run(&id, host.ID.String(), protocol, host.Address)
		}
	}

	wg.Wait()

	if c.onCycle != nil {
		select {
		case <-c.ctx.Done():
		default:
			c.onCycle(c.table.Statuses())
		}
	}
}

func (c *Checker) checkOne(hostID *uuid.UUID, target, protocol, address string) {
	prober, ok := c.probers[protocol]
	if !ok {
		c.log.Warn("Unknown protocol configured", "target", target, "protocol", protocol)
		return
	}

	ps := prober.Probe(c.ctx, address, c.cfg.Timeout(protocol))
	ps.Protocol = protocol
	ps.CheckedAt = c.now()

	c.table.SetProtocol(target, ps)
	c.events.Record(hostID, protocol, ps.Status, ps.Message)

	c.log.Debug("Probe finished", "target", target, "protocol", protocol, "status", ps.Status)
}

// DropHost clears checker-derived state for a deleted host.
func (c *Checker) DropHost(hostID uuid.UUID) {
	c.table.DropTarget(hostID.String())
	c.events.DropHost(hostID)
}
