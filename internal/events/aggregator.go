package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hostpulse/hostpulse/internal/models"
	"gorm.io/gorm"
)

// DefaultCapacity bounds the in-memory event ring.
const DefaultCapacity = 500

// Aggregator turns the continuous stream of check results into a sparse,
// transition-only event log. For every (host, check) pair it remembers the
// last emitted signature and emits a new event only when the signature
// changes, so a persistently failing check produces one event, not one per
// tick.
type Aggregator struct {
	mu       sync.Mutex
	capacity int
	ring     []models.Event
	head     int
	count    int
	last     map[sigKey]string

	db     *gorm.DB // nil = in-memory only
	log    *slog.Logger
	now    func() time.Time
	notify func(models.Event)
}

type sigKey struct {
	hostID string
	check  string
}

func NewAggregator(db *gorm.DB, capacity int, logger *slog.Logger) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	a := &Aggregator{
		capacity: capacity,
		ring:     make([]models.Event, capacity),
		last:     make(map[sigKey]string),
		db:       db,
		log:      logger,
		now:      time.Now,
	}
	a.reload()
	return a
}

// reload seeds the ring and the signature map from the durable log so a
// restart keeps the recent event history and does not re-emit events for
// checks still in their last known state.
func (a *Aggregator) reload() {
	if a.db == nil {
		return
	}
	var rows []models.Event
	if err := a.db.Order("ts DESC").Limit(a.capacity).Find(&rows).Error; err != nil {
		a.log.Error("Failed to reload events", "error", err)
		return
	}
	for i := len(rows) - 1; i >= 0; i-- {
		evt := rows[i]
		a.push(evt)
		key := sigKey{check: evt.Check}
		if evt.HostID != nil {
			key.hostID = evt.HostID.String()
		}
		a.last[key] = evt.Status + "|" + evt.Message
	}
	if len(rows) > 0 {
		a.log.Info("Reloaded events", "count", len(rows))
	}
}

// OnEvent registers a callback invoked for every emitted event. The hub
// uses this to push events to subscribers.
func (a *Aggregator) OnEvent(fn func(models.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notify = fn
}

// Record compares the check result against the remembered signature and
// emits an event on change. Returns nil when the signature is unchanged.
func (a *Aggregator) Record(hostID *uuid.UUID, check string, status models.CheckStatus, message string) *models.Event {
	key := sigKey{check: check}
	if hostID != nil {
		key.hostID = hostID.String()
	}
	sig := string(status) + "|" + message

	a.mu.Lock()
	if a.last[key] == sig {
		a.mu.Unlock()
		return nil
	}
	first := a.last[key] == ""
	a.last[key] = sig

	// The very first ok observation of a check is steady state, not a
	// transition worth logging.
	if first && status == models.StatusOK {
		a.mu.Unlock()
		return nil
	}

	evt := models.Event{
		ID:      uuid.New(),
		TS:      a.now(),
		Level:   levelFor(status),
		HostID:  hostID,
		Check:   check,
		Status:  string(status),
		Message: message,
	}
	a.push(evt)
	notify := a.notify
	a.mu.Unlock()

	if a.db != nil {
		if err := a.db.Create(&evt).Error; err != nil {
			a.log.Error("Durable event write failed", "check", check, "error", err)
		}
	}
	if notify != nil {
		notify(evt)
	}
	a.log.Info("Event", "level", evt.Level, "check", check, "status", status, "message", message)
	return &evt
}

// Filter narrows Recent queries. Zero values match everything.
type Filter struct {
	HostID *uuid.UUID
	Level  models.EventLevel
	Limit  int
}

// Recent returns matching events, newest first.
func (a *Aggregator) Recent(f Filter) []models.Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	limit := f.Limit
	if limit <= 0 || limit > a.count {
		limit = a.count
	}

	out := make([]models.Event, 0, limit)
	for i := 0; i < a.count && len(out) < limit; i++ {
		idx := (a.head - 1 - i + a.capacity) % a.capacity
		evt := a.ring[idx]
		if f.Level != "" && evt.Level != f.Level {
			continue
		}
		if f.HostID != nil && (evt.HostID == nil || *evt.HostID != *f.HostID) {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// DropHost forgets signatures and events of a deleted host.
func (a *Aggregator) DropHost(hostID uuid.UUID) {
	a.mu.Lock()
	for key := range a.last {
		if key.hostID == hostID.String() {
			delete(a.last, key)
		}
	}
	kept := make([]models.Event, 0, a.count)
	for i := 0; i < a.count; i++ {
		idx := (a.head - a.count + i + a.capacity) % a.capacity
		evt := a.ring[idx]
		if evt.HostID != nil && *evt.HostID == hostID {
			continue
		}
		kept = append(kept, evt)
	}
	a.ring = make([]models.Event, a.capacity)
	a.head = 0
	a.count = 0
	for _, evt := range kept {
		a.push(evt)
	}
	a.mu.Unlock()

	if a.db != nil {
		if err := a.db.Where("host_id = ?", hostID).Delete(&models.Event{}).Error; err != nil {
			a.log.Error("Failed to drop durable events", "host", hostID, "error", err)
		}
	}
}

// push appends to the ring. Caller holds the lock.
func (a *Aggregator) push(evt models.Event) {
	a.ring[a.head] = evt
	a.head = (a.head + 1) % a.capacity
	if a.count < a.capacity {
		a.count++
	}
}

func levelFor(status models.CheckStatus) models.EventLevel {
	switch status {
	case models.StatusCrit:
		return models.LevelCrit
	case models.StatusOK:
		return models.LevelInfo
	default:
		return models.LevelWarn
	}
}
