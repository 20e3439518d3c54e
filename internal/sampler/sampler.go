package sampler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hostpulse/hostpulse/internal/history"
	"github.com/hostpulse/hostpulse/internal/hub"
	"github.com/hostpulse/hostpulse/internal/insight"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/state"
)

// Sampler drives the collection loop for the local system and ingests
// samples pushed by remote agents. Every sample, local or remote, flows
// through Ingest so history, anomaly detection, the state table, and the
// broadcast hub always see the same pipeline.
type Sampler struct {
	interval time.Duration
	store    *history.Store
	detector *insight.Detector
	table    *state.Table
	hub      *hub.Hub
	log      *slog.Logger

	collect func() *models.Sample

	mu     sync.Mutex
	lastTS map[string]time.Time

	stop chan struct{}
	done chan struct{}
}

func New(interval time.Duration, store *history.Store, detector *insight.Detector, table *state.Table, h *hub.Hub, logger *slog.Logger) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{
		interval: interval,
		store:    store,
		detector: detector,
		table:    table,
		hub:      h,
		log:      logger,
		collect:  func() *models.Sample { return Collect(models.SystemTarget) },
		lastTS:   make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the local collection loop.
func (s *Sampler) Start() {
	s.log.Info("Starting metric sampler", "interval", s.interval)
	go s.loop()
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (s *Sampler) Stop() {
	close(s.stop)
	<-s.done
	s.log.Info("Metric sampler stopped")
}

func (s *Sampler) loop() {
	defer close(s.done)

	s.tick()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Sampler) tick() {
	if err := s.Ingest(s.collect()); err != nil {
		s.log.Warn("Sample rejected", "error", err)
	}
}

// Ingest runs one sample through the full pipeline synchronously: history
// append, anomaly evaluation, state table update, then a hub broadcast of
// the sample/insight pair. Samples older than the newest one already seen
// for the target are rejected.
func (s *Sampler) Ingest(sample *models.Sample) error {
	if sample == nil {
		return fmt.Errorf("nil sample")
	}
	if sample.Target == "" {
		return fmt.Errorf("sample has no target")
	}
	if sample.TS.IsZero() {
		sample.TS = time.Now()
	}

	s.mu.Lock()
	if last, ok := s.lastTS[sample.Target]; ok && !sample.TS.After(last) {
		s.mu.Unlock()
		return fmt.Errorf("stale sample for %s: %s is not after %s",
			sample.Target, sample.TS.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
	}
	s.lastTS[sample.Target] = sample.TS
	s.mu.Unlock()

	s.store.Append(sample)
	in := s.detector.Observe(sample)
	s.table.SetSample(sample, in)
	if s.hub != nil {
		s.hub.BroadcastSample(sample, in)
	}
	return nil
}

// DropTarget forgets a target across every stage of the pipeline, used
// when a host is deleted.
func (s *Sampler) DropTarget(target string) {
	s.mu.Lock()
	delete(s.lastTS, target)
	s.mu.Unlock()

	s.store.DropTarget(target)
	s.detector.DropTarget(target)
	s.table.DropTarget(target)
}
