package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boardsync/internal/board"
)

// syncCollector is a thread-safe intent sink for timer-driven sends.
type syncCollector struct {
	mu      sync.Mutex
	intents []Intent
	at      []time.Time
}

func (c *syncCollector) emit(in Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, in)
	c.at = append(c.at, time.Now())
}

func (c *syncCollector) all() []Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Intent, len(c.intents))
	copy(out, c.intents)
	return out
}

func (c *syncCollector) times() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Time, len(c.at))
	copy(out, c.at)
	return out
}

func (c *syncCollector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.intents)
}

func fptr(v float64) *float64 { return &v }

func TestThrottlerCreateAndDeletePassImmediately(t *testing.T) {
	sink := &syncCollector{}
	th := NewThrottler(time.Hour, time.Hour, sink.emit)

	th.Offer(CreateIntent{Shape: rectShape("a")})
	th.Offer(DeleteIntent{ID: "a"})

	require.Equal(t, 2, sink.len())
}

func TestThrottlerDebounceCoalesces(t *testing.T) {
	sink := &syncCollector{}
	th := NewThrottler(30*time.Millisecond, time.Hour, sink.emit)

	// a burst of edits inside the quiet window
	th.Offer(UpdateIntent{ID: "a", Changes: &board.Patch{X: fptr(1)}})
	th.Offer(UpdateIntent{ID: "a", Changes: &board.Patch{X: fptr(2)}})
	th.Offer(UpdateIntent{ID: "a", Changes: &board.Patch{Y: fptr(7)}})

	require.Zero(t, sink.len(), "nothing ships before the window closes")

	require.Eventually(t, func() bool { return sink.len() == 1 }, time.Second, 5*time.Millisecond)

	up := sink.all()[0].(UpdateIntent)
	require.Equal(t, "a", up.ID)
	require.Equal(t, 2.0, *up.Changes.X, "later values win")
	require.Equal(t, 7.0, *up.Changes.Y, "distinct fields fold together")
}

func TestThrottlerDebouncePerShape(t *testing.T) {
	sink := &syncCollector{}
	th := NewThrottler(20*time.Millisecond, time.Hour, sink.emit)

	th.Offer(UpdateIntent{ID: "a", Changes: &board.Patch{X: fptr(1)}})
	th.Offer(UpdateIntent{ID: "b", Changes: &board.Patch{X: fptr(2)}})

	require.Eventually(t, func() bool { return sink.len() == 2 }, time.Second, 5*time.Millisecond)
}

func TestThrottlerDeleteDropsPendingUpdate(t *testing.T) {
	sink := &syncCollector{}
	th := NewThrottler(20*time.Millisecond, time.Hour, sink.emit)

	th.Offer(UpdateIntent{ID: "a", Changes: &board.Patch{X: fptr(1)}})
	th.Offer(DeleteIntent{ID: "a"})

	time.Sleep(60 * time.Millisecond)
	all := sink.all()
	require.Len(t, all, 1, "the coalesced update for a deleted shape is dropped")
	_, ok := all[0].(DeleteIntent)
	require.True(t, ok)
}

func TestThrottlerStrokeWindowAdmitsOneSend(t *testing.T) {
	sink := &syncCollector{}
	interval := 40 * time.Millisecond
	th := NewThrottler(time.Hour, interval, sink.emit)

	// 50 updates inside a single window
	for i := 0; i < 50; i++ {
		s := drawShape("d", i+1, false)
		th.Offer(UpdateIntent{ID: "d", Changes: board.FullPatch(s), Stroke: true})
	}
	require.Equal(t, 1, sink.len(), "only the first update of the window ships immediately")

	// exactly one trailing send follows, a full window later, with the
	// newest state
	require.Eventually(t, func() bool { return sink.len() == 2 }, time.Second, time.Millisecond)
	time.Sleep(2 * interval)
	require.Equal(t, 2, sink.len(), "no further sends once the trailing state is flushed")

	all := sink.all()
	trailing := all[1].(UpdateIntent)
	require.Len(t, trailing.Changes.Props["points"].([]any), 50)

	at := sink.times()
	require.GreaterOrEqual(t, at[1].Sub(at[0]), interval-5*time.Millisecond)
}

func TestThrottlerStrokeBurstCollapses(t *testing.T) {
	sink := &syncCollector{}
	interval := 50 * time.Millisecond
	th := NewThrottler(time.Hour, interval, sink.emit)

	// a dense stroke: 50 updates over roughly 200ms
	start := time.Now()
	for i := 0; i < 50; i++ {
		s := drawShape("d", i+1, false)
		th.Offer(UpdateIntent{ID: "d", Changes: board.FullPatch(s), Stroke: true})
		time.Sleep(4 * time.Millisecond)
	}
	// let the trailing window drain
	time.Sleep(2 * interval)

	all := sink.all()
	at := sink.times()
	require.NotEmpty(t, all)

	// one send per elapsed window plus the trailing one: nominally
	// ceil(200/50)+1 = 5, measured against the wall clock so a slow
	// scheduler stretches the allowance with the burst
	elapsed := at[len(at)-1].Sub(start)
	windows := int((elapsed + interval - 1) / interval)
	require.LessOrEqual(t, len(all), windows+1,
		"a 50-update burst over %v must collapse to one send per window", elapsed)

	// no two sends inside the same window; the slack absorbs late timer
	// fire on a loaded machine
	const slack = 10 * time.Millisecond
	for i := 1; i < len(at); i++ {
		require.GreaterOrEqual(t, at[i].Sub(at[i-1]), interval-slack,
			"sends %d and %d landed in the same window", i-1, i)
	}

	last := all[len(all)-1].(UpdateIntent)
	pts := last.Changes.Props["points"].([]any)
	require.Len(t, pts, 50, "the last send carries the newest stroke state")
}

func TestThrottlerStrokeFinalBypassesWindow(t *testing.T) {
	sink := &syncCollector{}
	th := NewThrottler(time.Hour, time.Hour, sink.emit)

	// first update consumes the window; the second is held
	th.Offer(UpdateIntent{ID: "d", Changes: board.FullPatch(drawShape("d", 1, false)), Stroke: true})
	th.Offer(UpdateIntent{ID: "d", Changes: board.FullPatch(drawShape("d", 2, false)), Stroke: true})
	require.Equal(t, 1, sink.len())

	// completion ships immediately and clears the held state
	final := drawShape("d", 3, true)
	th.Offer(UpdateIntent{ID: "d", Changes: board.FullPatch(final), Stroke: true, Final: true})

	all := sink.all()
	require.Len(t, all, 2)
	up := all[1].(UpdateIntent)
	require.True(t, up.Final)
	require.Equal(t, true, up.Changes.Props["complete"])
}

func TestThrottlerFlushShipsPending(t *testing.T) {
	sink := &syncCollector{}
	th := NewThrottler(time.Hour, time.Hour, sink.emit)

	th.Offer(UpdateIntent{ID: "a", Changes: &board.Patch{X: fptr(1)}})
	require.Zero(t, sink.len())

	th.Flush()
	require.Equal(t, 1, sink.len())
}

func TestThrottlerStopRefusesFurtherTraffic(t *testing.T) {
	sink := &syncCollector{}
	th := NewThrottler(time.Hour, time.Hour, sink.emit)

	th.Offer(UpdateIntent{ID: "a", Changes: &board.Patch{X: fptr(1)}})
	th.Stop()
	require.Equal(t, 1, sink.len(), "stop flushes what is pending")

	th.Offer(UpdateIntent{ID: "b", Changes: &board.Patch{X: fptr(2)}})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, sink.len())
}
