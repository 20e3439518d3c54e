package history

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"gorm.io/gorm"
)

// PruneInterval is the cadence of the durable-store maintenance pass.
const PruneInterval = time.Hour

// Store keeps the bounded in-memory series used for chart rendering and
// optionally mirrors samples into sqlite with time-based retention.
//
// All durable writes go through a single writer goroutine; in-memory rings
// have their own lock and are never touched by the writer, so a slow or
// failing database degrades persistence without affecting live history.
type Store struct {
	rings     *RingSet
	db        *gorm.DB // nil when storage is disabled
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time

	writeCh chan models.SampleRecord
	stop    chan struct{}
	done    chan struct{}
}

func NewStore(db *gorm.DB, capacity int, retention time.Duration, logger *slog.Logger) *Store {
	return &Store{
		rings:     NewRingSet(capacity),
		db:        db,
		retention: retention,
		log:       logger,
		now:       time.Now,
		writeCh:   make(chan models.SampleRecord, 256),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Store) Start() {
	go s.writer()
	s.log.Info("History store started", "durable", s.db != nil, "retention", s.retention)
}

func (s *Store) Stop() {
	close(s.stop)
	<-s.done
	s.log.Info("History store stopped")
}

// Append pushes a sample into the target's rings and enqueues the durable
// mirror. It never blocks: if the write queue is full the record is dropped
// and in-memory history remains authoritative.
func (s *Store) Append(sample *models.Sample) {
	p := models.Point{TS: sample.TS}
	for _, mv := range models.Metrics(sample) {
		p.Value = mv.Value
		s.rings.Push(sample.Target, mv.Metric, p)
	}

	if s.db == nil {
		return
	}
	select {
	case s.writeCh <- toRecord(sample):
	default:
		s.log.Warn("Durable write queue full, sample dropped", "target", sample.Target)
	}
}

// History returns the most-recent window of a series, oldest first.
func (s *Store) History(target, metric string, limit int) []models.Point {
	if limit <= 0 {
		limit = DefaultCapacity
	}
	return s.rings.Last(target, metric, limit)
}

// SeriesLen reports the number of in-memory points for a series.
func (s *Store) SeriesLen(target, metric string) int {
	return s.rings.Len(target, metric)
}

// DropTarget discards all in-memory and durable history for a target.
func (s *Store) DropTarget(target string) {
	s.rings.DropTarget(target)
	if s.db != nil {
		if err := s.db.Where("target = ?", target).Delete(&models.SampleRecord{}).Error; err != nil {
			s.log.Error("Failed to drop durable history", "target", target, "error", err)
		}
	}
}

// Prune deletes durable rows older than the retention window. Exposed for
// the maintenance ticker and for tests.
func (s *Store) Prune() {
	if s.db == nil {
		return
	}
	cutoff := s.now().Add(-s.retention)
	res := s.db.Where("ts < ?", cutoff).Delete(&models.SampleRecord{})
	if res.Error != nil {
		s.log.Error("History prune failed", "error", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		s.log.Info("History pruned", "rows", res.RowsAffected, "cutoff", cutoff)
	}
}

func (s *Store) writer() {
	defer close(s.done)

	pruneTicker := time.NewTicker(PruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case rec := <-s.writeCh:
			if s.db == nil {
				continue
			}
			if err := s.db.Create(&rec).Error; err != nil {
				s.log.Error("Durable sample write failed", "target", rec.Target, "error", err)
			}
		case <-pruneTicker.C:
			s.Prune()
		case <-s.stop:
			return
		}
	}
}

func toRecord(sample *models.Sample) models.SampleRecord {
	rec := models.SampleRecord{
		Target:        sample.Target,
		TS:            sample.TS,
		CPUPercent:    sample.CPUPercent,
		MemPercent:    sample.MemPercent,
		NetBytesSent:  sample.Net.BytesSent,
		NetBytesRecv:  sample.Net.BytesRecv,
		UptimeSeconds: sample.UptimeSeconds,
	}
	if b, err := json.Marshal(sample.Disk); err == nil {
		rec.Disk = b
	}
	if len(sample.GPU) > 0 {
		if b, err := json.Marshal(sample.GPU); err == nil {
			rec.GPU = b
		}
	}
	return rec
}
