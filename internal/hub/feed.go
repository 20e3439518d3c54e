package hub

import (
	"context"
	"errors"
	"time"

	"github.com/hostpulse/hostpulse/internal/state"
)

// ErrFeedClosed is returned by Next after a feed has ended.
var ErrFeedClosed = errors.New("feed closed")

// Feed is an abstract status stream. The push implementation rides a hub
// subscription; the poll implementation re-reads the state table on a
// fixed interval. Both deliver the same message shapes, so a client (or a
// test) can assert identical behavior over either transport.
//
// Client contract: establish push within a bounded timeout (~3s); on
// failure fall back to polling at a fixed interval, retry the push channel
// with a fixed 1.5–2s backoff, and resume push delivery once it
// re-establishes.
type Feed interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}

// PushFeed adapts a hub subscription to the Feed interface.
type PushFeed struct {
	sub *Subscriber
}

func NewPushFeed(h *Hub) *PushFeed {
	return &PushFeed{sub: h.Subscribe()}
}

func (f *PushFeed) Next(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-f.sub.C():
		if !ok {
			return Message{}, ErrFeedClosed
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (f *PushFeed) Close() error {
	f.sub.Close()
	return nil
}

// PollFeed reads equivalent snapshots from the state table. The first call
// returns immediately, mirroring the snapshot-on-connect of the push path;
// later calls block until the table version changes.
type PollFeed struct {
	table    *state.Table
	interval time.Duration

	started     bool
	lastVersion uint64
	closed      chan struct{}
}

func NewPollFeed(table *state.Table, interval time.Duration) *PollFeed {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollFeed{
		table:    table,
		interval: interval,
		closed:   make(chan struct{}),
	}
}

func (f *PollFeed) Next(ctx context.Context) (Message, error) {
	if !f.started {
		f.started = true
		ov := f.table.Snapshot()
		f.lastVersion = ov.Version
		return Message{Type: TypeSnapshot, Data: ov}, nil
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if v := f.table.Version(); v != f.lastVersion {
				ov := f.table.Snapshot()
				f.lastVersion = ov.Version
				return Message{Type: TypeSnapshot, Data: ov}, nil
			}
		case <-f.closed:
			return Message{}, ErrFeedClosed
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (f *PollFeed) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}
