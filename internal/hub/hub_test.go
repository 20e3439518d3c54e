package hub

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() (*Hub, *state.Table) {
	table := state.NewTable()
	return NewHub(table, slog.New(slog.NewTextHandler(io.Discard, nil))), table
}

func drain(s *Subscriber, n int, timeout time.Duration) []Message {
	var out []Message
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case msg, ok := <-s.C():
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestSubscribeSendsSnapshotFirst(t *testing.T) {
	h, table := testHub()
	table.SetSample(&models.Sample{Target: models.SystemTarget, TS: time.Now(), CPUPercent: 12}, models.Insight{Summary: "all metrics nominal"})

	s := h.Subscribe()
	defer s.Close()

	msgs := drain(s, 1, time.Second)
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeSnapshot, msgs[0].Type)

	ov, ok := msgs[0].Data.(state.Overview)
	require.True(t, ok)
	require.Contains(t, ov.Samples, models.SystemTarget)
	assert.Equal(t, 12.0, ov.Samples[models.SystemTarget].CPUPercent)
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h, _ := testHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer a.Close()
	defer b.Close()

	h.BroadcastSample(&models.Sample{Target: models.SystemTarget}, models.Insight{})

	for _, s := range []*Subscriber{a, b} {
		msgs := drain(s, 2, time.Second)
		require.Len(t, msgs, 2)
		assert.Equal(t, TypeSnapshot, msgs[0].Type)
		assert.Equal(t, TypeSample, msgs[1].Type)
	}
}

func TestSlowSubscriberDroppedOthersUnaffected(t *testing.T) {
	h, _ := testHub()
	slow := h.Subscribe() // never drained
	fast := h.Subscribe()
	defer fast.Close()

	// Take the fast subscriber's snapshot so only the slow queue can
	// overflow: the slow one still holds its snapshot plus the burst.
	<-fast.C()

	for i := 0; i < DefaultQueueSize; i++ {
		h.Broadcast(Message{Type: TypeLog, Data: i})
	}

	assert.Equal(t, 1, h.Count(), "slow subscriber must be dropped")

	// Its channel is closed...
	timeout := time.After(time.Second)
	closed := false
	for !closed {
		select {
		case _, ok := <-slow.C():
			if !ok {
				closed = true
			}
		case <-timeout:
			t.Fatal("slow subscriber channel never closed")
		}
	}

	// ...while the fast one received the whole burst, in order.
	msgs := drain(fast, DefaultQueueSize, time.Second)
	require.Len(t, msgs, DefaultQueueSize)
	assert.Equal(t, 0, msgs[0].Data)
	assert.Equal(t, DefaultQueueSize-1, msgs[len(msgs)-1].Data)
}

func TestCloseDuringBroadcastDoesNotPanic(t *testing.T) {
	h, _ := testHub()

	const rounds = 200
	for i := 0; i < rounds; i++ {
		subs := make([]*Subscriber, 64)
		for j := range subs {
			subs[j] = h.Subscribe()
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for k := 0; k < 8; k++ {
				h.Broadcast(Message{Type: TypeLog, Data: k})
			}
		}()
		go func() {
			defer wg.Done()
			for _, s := range subs {
				s.Close()
			}
		}()
		wg.Wait()
	}

	assert.Equal(t, 0, h.Count())
}

func TestCloseIsIdempotent(t *testing.T) {
	h, _ := testHub()
	s := h.Subscribe()
	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Count())
}

func TestPushAndPollFeedsDeliverEquivalentSnapshots(t *testing.T) {
	h, table := testHub()
	table.SetSample(&models.Sample{Target: models.SystemTarget, TS: time.Now(), CPUPercent: 42}, models.Insight{Summary: "all metrics nominal"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	push := NewPushFeed(h)
	defer push.Close()
	poll := NewPollFeed(table, 10*time.Millisecond)
	defer poll.Close()

	pushMsg, err := push.Next(ctx)
	require.NoError(t, err)
	pollMsg, err := poll.Next(ctx)
	require.NoError(t, err)

	require.Equal(t, TypeSnapshot, pushMsg.Type)
	require.Equal(t, TypeSnapshot, pollMsg.Type)

	pushOv := pushMsg.Data.(state.Overview)
	pollOv := pollMsg.Data.(state.Overview)
	assert.Equal(t, pushOv.Samples[models.SystemTarget].CPUPercent, pollOv.Samples[models.SystemTarget].CPUPercent)
}

func TestPollFeedBlocksUntilChange(t *testing.T) {
	_, table := testHub()
	poll := NewPollFeed(table, 10*time.Millisecond)
	defer poll.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := poll.Next(ctx) // initial snapshot
	require.NoError(t, err)

	// No change: Next must not return before the context deadline.
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	_, err = poll.Next(shortCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// After a change it returns the fresh snapshot.
	table.SetSample(&models.Sample{Target: models.SystemTarget, TS: time.Now(), CPUPercent: 9}, models.Insight{})
	msg, err := poll.Next(ctx)
	require.NoError(t, err)
	ov := msg.Data.(state.Overview)
	assert.Equal(t, 9.0, ov.Samples[models.SystemTarget].CPUPercent)
}

func TestClosedPushFeedReturnsErrFeedClosed(t *testing.T) {
	h, _ := testHub()
	push := NewPushFeed(h)

	ctx := context.Background()
	_, err := push.Next(ctx) // snapshot
	require.NoError(t, err)

	push.Close()
	_, err = push.Next(ctx)
	assert.ErrorIs(t, err, ErrFeedClosed)
}
