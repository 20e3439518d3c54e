package state

import (
	"sync"

	"github.com/hostpulse/hostpulse/internal/models"
)

// Table is the owned, versioned "latest" view of the whole system: newest
// sample and insight per target, newest protocol statuses, and the derived
// per-host aggregate. The sampler and checker are the only writers; every
// other component reads copies, never the internal maps.
type Table struct {
	mu        sync.RWMutex
	version   uint64
	samples   map[string]*models.Sample
	insights  map[string]models.Insight
	protocols map[string]map[string]models.ProtocolStatus
	hosts     map[string]models.HostStatus
}

// Overview is a point-in-time copy of the table, safe to serialize.
type Overview struct {
	Version   uint64                                      `json:"version"`
	Samples   map[string]*models.Sample                   `json:"samples"`
	Insights  map[string]models.Insight                   `json:"insights"`
	Protocols map[string]map[string]models.ProtocolStatus `json:"protocols"`
	Hosts     map[string]models.HostStatus                `json:"hosts"`
}

func NewTable() *Table {
	return &Table{
		samples:   make(map[string]*models.Sample),
		insights:  make(map[string]models.Insight),
		protocols: make(map[string]map[string]models.ProtocolStatus),
		hosts:     make(map[string]models.HostStatus),
	}
}

// SetSample records the newest sample and insight for a target.
func (t *Table) SetSample(sample *models.Sample, insight models.Insight) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version++
	t.samples[sample.Target] = sample
	t.insights[sample.Target] = insight
}

// SetProtocol overwrites the (target, protocol) status. When the protocol
// is the designated reachability check the host aggregate follows it;
// failures of any other protocol never flip the aggregate.
func (t *Table) SetProtocol(target string, ps models.ProtocolStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version++

	byProto, ok := t.protocols[target]
	if !ok {
		byProto = make(map[string]models.ProtocolStatus)
		t.protocols[target] = byProto
	}
	byProto[ps.Protocol] = ps

	if ps.Protocol == "icmp" && target != models.SystemTarget {
		t.hosts[target] = models.HostStatus{
			Status:    ps.Status,
			LatencyMs: ps.LatencyMs,
			Message:   ps.Message,
			CheckedAt: ps.CheckedAt,
		}
	}
}

// Latest returns the newest sample for a target, or nil.
func (t *Table) Latest(target string) *models.Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.samples[target]
}

// Insight returns the current insight for a target.
func (t *Table) Insight(target string) (models.Insight, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	in, ok := t.insights[target]
	return in, ok
}

// HostStatus returns the reachability aggregate for a host.
func (t *Table) HostStatus(target string) (models.HostStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hs, ok := t.hosts[target]
	return hs, ok
}

// Checks returns a copy of the per-protocol statuses for a target.
func (t *Table) Checks(target string) map[string]models.ProtocolStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.ProtocolStatus, len(t.protocols[target]))
	for proto, ps := range t.protocols[target] {
		out[proto] = ps
	}
	return out
}

// Version returns the current change counter.
func (t *Table) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Snapshot copies the whole table.
func (t *Table) Snapshot() Overview {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ov := Overview{
		Version:   t.version,
		Samples:   make(map[string]*models.Sample, len(t.samples)),
		Insights:  make(map[string]models.Insight, len(t.insights)),
		Protocols: make(map[string]map[string]models.ProtocolStatus, len(t.protocols)),
		Hosts:     make(map[string]models.HostStatus, len(t.hosts)),
	}
	for k, v := range t.samples {
		ov.Samples[k] = v
	}
	for k, v := range t.insights {
		ov.Insights[k] = v
	}
	for k, byProto := range t.protocols {
		m := make(map[string]models.ProtocolStatus, len(byProto))
		for proto, ps := range byProto {
			m[proto] = ps
		}
		ov.Protocols[k] = m
	}
	for k, v := range t.hosts {
		ov.Hosts[k] = v
	}
	return ov
}

// StatusView copies only the status portion of the table, used for the
// per-cycle checker broadcast.
type StatusView struct {
	Version   uint64                                      `json:"version"`
	Hosts     map[string]models.HostStatus                `json:"hosts"`
	Protocols map[string]map[string]models.ProtocolStatus `json:"protocols"`
}

func (t *Table) Statuses() StatusView {
	ov := t.Snapshot()
	return StatusView{Version: ov.Version, Hosts: ov.Hosts, Protocols: ov.Protocols}
}

// DropTarget removes every entry of a target.
func (t *Table) DropTarget(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version++
	delete(t.samples, target)
	delete(t.insights, target)
	delete(t.protocols, target)
	delete(t.hosts, target)
}
