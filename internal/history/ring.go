package history

import (
	"sync"

	"github.com/hostpulse/hostpulse/internal/models"
)

// DefaultCapacity is the default number of points retained per series.
const DefaultCapacity = 120

// ring is a fixed-capacity circular buffer of points. Capacity is allocated
// once up front; pushing past capacity silently drops the oldest point.
type ring struct {
	data  []models.Point
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{data: make([]models.Point, capacity)}
}

func (r *ring) push(p models.Point) {
	r.data[r.head] = p
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// last returns up to n points in chronological order, oldest first.
func (r *ring) last(n int) []models.Point {
	if n <= 0 || r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]models.Point, n)
	start := (r.head - n + len(r.data)) % len(r.data)
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

type seriesKey struct {
	target string
	metric string
}

// RingSet holds the in-memory series for every (target, metric) pair.
// Buffers are created lazily on first append and never grow past capacity.
type RingSet struct {
	mu       sync.RWMutex
	capacity int
	rings    map[seriesKey]*ring
}

func NewRingSet(capacity int) *RingSet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingSet{
		capacity: capacity,
		rings:    make(map[seriesKey]*ring),
	}
}

func (rs *RingSet) Push(target, metric string, p models.Point) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	key := seriesKey{target, metric}
	r, ok := rs.rings[key]
	if !ok {
		r = newRing(rs.capacity)
		rs.rings[key] = r
	}
	r.push(p)
}

// Last returns up to n points of a series, oldest first. A missing series
// yields nil.
func (rs *RingSet) Last(target, metric string, n int) []models.Point {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rings[seriesKey{target, metric}]
	if !ok {
		return nil
	}
	return r.last(n)
}

// Len reports the number of stored points for a series.
func (rs *RingSet) Len(target, metric string) int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rings[seriesKey{target, metric}]
	if !ok {
		return 0
	}
	return r.count
}

// DropTarget removes every series belonging to a target.
func (rs *RingSet) DropTarget(target string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for key := range rs.rings {
		if key.target == target {
			delete(rs.rings, key)
		}
	}
}
