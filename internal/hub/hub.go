package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/state"
)

// DefaultQueueSize is the per-subscriber send queue depth. A subscriber
// that falls this far behind is dropped rather than allowed to block the
// broadcast path.
const DefaultQueueSize = 64

type MessageType string

const (
	TypeSnapshot   MessageType = "snapshot"
	TypeSample     MessageType = "sample"
	TypeHostStatus MessageType = "host_status"
	TypeHostEvent  MessageType = "host_event"
	TypeLog        MessageType = "log"
)

type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// SamplePayload pairs a sample with the insight computed from it; the two
// always travel together as one snapshot of the tick.
type SamplePayload struct {
	Sample  *models.Sample `json:"sample"`
	Insight models.Insight `json:"insight"`
}

// Subscriber is one live client connection. It owns nothing shared, only
// its send queue; the transport layer drains C() and calls Close() when
// the connection ends. Keepalive is the transport's job (read deadlines in
// the stream handler), not the hub's.
type Subscriber struct {
	ID uuid.UUID

	hub *Hub
	ch  chan Message

	mu     sync.Mutex
	closed bool
}

// C is the subscriber's message stream. It is closed when the subscriber
// is dropped or closes itself.
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// trySend queues a message without blocking. Send and close share the
// subscriber mutex so a concurrent Close can never turn a broadcast into a
// send on a closed channel. Returns false only when the queue is full.
func (s *Subscriber) trySend(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// closeCh closes the stream exactly once.
func (s *Subscriber) closeCh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Close unregisters the subscriber and closes its stream. Safe to call
// more than once.
func (s *Subscriber) Close() {
	s.hub.drop(s)
}

// Hub fans out snapshots, statuses, and events to every subscriber. Sends
// never block: a full queue drops that one subscriber and nobody else.
type Hub struct {
	table     *state.Table
	log       *slog.Logger
	queueSize int

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscriber
}

func NewHub(table *state.Table, logger *slog.Logger) *Hub {
	return &Hub{
		table:     table,
		log:       logger,
		queueSize: DefaultQueueSize,
		subs:      make(map[uuid.UUID]*Subscriber),
	}
}

// Subscribe registers a new subscriber. The first queued message is always
// a full snapshot so a fresh client renders immediately.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		ID:  uuid.New(),
		hub: h,
		ch:  make(chan Message, h.queueSize),
	}
	s.ch <- Message{Type: TypeSnapshot, Data: h.table.Snapshot()}

	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()

	h.log.Info("Subscriber connected", "id", s.ID, "total", h.Count())
	return s
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast queues a message for every subscriber. Slow subscribers are
// dropped, never waited for.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.trySend(msg) {
			h.log.Warn("Subscriber queue full, dropping", "id", s.ID)
			h.drop(s)
		}
	}
}

// BroadcastSample pushes the per-tick sample/insight pair.
func (h *Hub) BroadcastSample(sample *models.Sample, insight models.Insight) {
	h.Broadcast(Message{Type: TypeSample, Data: SamplePayload{Sample: sample, Insight: insight}})
}

// BroadcastStatus pushes the per-cycle status view.
func (h *Hub) BroadcastStatus(view state.StatusView) {
	h.Broadcast(Message{Type: TypeHostStatus, Data: view})
}

// BroadcastEvent pushes one emitted event.
func (h *Hub) BroadcastEvent(evt models.Event) {
	h.Broadcast(Message{Type: TypeHostEvent, Data: evt})
}

func (h *Hub) drop(s *Subscriber) {
	h.mu.Lock()
	_, present := h.subs[s.ID]
	delete(h.subs, s.ID)
	h.mu.Unlock()

	s.closeCh()
	if present {
		h.log.Info("Subscriber disconnected", "id", s.ID, "total", h.Count())
	}
}
