package engine

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"boardsync/internal/board"
)

// Throttler rate-limits outbound update traffic. Two independent
// policies, applied per shape id:
//
//   - ordinary shapes: updates are debounced, coalescing a burst into one
//     send after a quiet window, intermediate field values folded together
//   - draw strokes: at most one update per interval, always carrying the
//     most recent state; the completion update bypasses the window
//
// Create and Delete intents are never throttled.
type Throttler struct {
	debounce       time.Duration
	strokeInterval time.Duration
	send           func(Intent)

	mu           sync.Mutex
	pending      map[string]*board.Patch // coalesced ordinary updates
	timers       map[string]*time.Timer
	limiters     map[string]*rate.Limiter // per-stroke windows
	trailing     map[string]*board.Patch  // latest stroke state awaiting a window
	strokeTimers map[string]*time.Timer   // one armed trailing flush per id
	stopped      bool
}

// NewThrottler wires a throttler to a send sink.
func NewThrottler(debounce, strokeInterval time.Duration, send func(Intent)) *Throttler {
	return &Throttler{
		debounce:       debounce,
		strokeInterval: strokeInterval,
		send:           send,
		pending:        make(map[string]*board.Patch),
		timers:         make(map[string]*time.Timer),
		limiters:       make(map[string]*rate.Limiter),
		trailing:       make(map[string]*board.Patch),
		strokeTimers:   make(map[string]*time.Timer),
	}
}

// Offer routes one intent through the applicable policy.
func (t *Throttler) Offer(in Intent) {
	switch v := in.(type) {
	case CreateIntent:
		t.dropPending(v.Shape.ID)
		t.send(in)
	case DeleteIntent:
		t.dropPending(v.ID)
		t.send(in)
	case UpdateIntent:
		if v.Stroke {
			t.offerStroke(v)
		} else {
			t.offerDebounced(v)
		}
	}
}

// offerDebounced coalesces the patch into the pending state for the id
// and (re)arms the quiet-window timer.
func (t *Throttler) offerDebounced(in UpdateIntent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	if existing, ok := t.pending[in.ID]; ok {
		mergePatch(existing, in.Changes)
	} else {
		merged := &board.Patch{}
		mergePatch(merged, in.Changes)
		t.pending[in.ID] = merged
	}

	if timer, ok := t.timers[in.ID]; ok {
		timer.Reset(t.debounce)
		return
	}
	id := in.ID
	t.timers[id] = time.AfterFunc(t.debounce, func() {
		t.flushDebounced(id)
	})
}

func (t *Throttler) flushDebounced(id string) {
	t.mu.Lock()
	patch := t.pending[id]
	delete(t.pending, id)
	delete(t.timers, id)
	stopped := t.stopped
	t.mu.Unlock()

	if patch == nil || stopped {
		return
	}
	t.send(UpdateIntent{ID: id, Changes: patch})
}

// offerStroke lets one update per window through immediately and keeps
// the latest state for a trailing send so the final throttled state is
// never dropped. A throttled update reserves the id's next window for
// the trailing flush, so sends never land closer than the interval.
// Completion updates bypass the window entirely.
func (t *Throttler) offerStroke(in UpdateIntent) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	if in.Final {
		t.disarmStroke(in.ID)
		delete(t.limiters, in.ID)
		t.mu.Unlock()
		t.send(in)
		return
	}

	// a trailing flush already owns the next window; just refresh its state
	if _, armed := t.strokeTimers[in.ID]; armed {
		t.trailing[in.ID] = in.Changes
		t.mu.Unlock()
		return
	}

	limiter, ok := t.limiters[in.ID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(t.strokeInterval), 1)
		t.limiters[in.ID] = limiter
	}

	if limiter.Allow() {
		delete(t.trailing, in.ID)
		t.mu.Unlock()
		t.send(in)
		return
	}

	t.trailing[in.ID] = in.Changes
	id := in.ID
	delay := limiter.Reserve().Delay()
	t.strokeTimers[id] = time.AfterFunc(delay, func() {
		t.flushTrailing(id)
	})
	t.mu.Unlock()
}

func (t *Throttler) flushTrailing(id string) {
	t.mu.Lock()
	patch, ok := t.trailing[id]
	delete(t.trailing, id)
	delete(t.strokeTimers, id)
	stopped := t.stopped
	t.mu.Unlock()

	if !ok || stopped {
		return
	}
	t.send(UpdateIntent{ID: id, Changes: patch, Stroke: true})
}

// disarmStroke drops a stroke's trailing state and stops its flush
// timer. Callers hold t.mu.
func (t *Throttler) disarmStroke(id string) {
	delete(t.trailing, id)
	if timer, ok := t.strokeTimers[id]; ok {
		timer.Stop()
		delete(t.strokeTimers, id)
	}
}

func (t *Throttler) dropPending(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
	delete(t.limiters, id)
	t.disarmStroke(id)
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Flush sends every pending update immediately.
func (t *Throttler) Flush() {
	t.mu.Lock()
	updates := make([]UpdateIntent, 0, len(t.pending)+len(t.trailing))
	for id, patch := range t.pending {
		updates = append(updates, UpdateIntent{ID: id, Changes: patch})
	}
	for id, patch := range t.trailing {
		updates = append(updates, UpdateIntent{ID: id, Changes: patch, Stroke: true})
	}
	t.pending = make(map[string]*board.Patch)
	t.trailing = make(map[string]*board.Patch)
	for _, timer := range t.timers {
		timer.Stop()
	}
	for _, timer := range t.strokeTimers {
		timer.Stop()
	}
	t.timers = make(map[string]*time.Timer)
	t.strokeTimers = make(map[string]*time.Timer)
	t.mu.Unlock()

	for _, u := range updates {
		t.send(u)
	}
}

// Stop flushes pending updates and refuses further traffic.
func (t *Throttler) Stop() {
	t.Flush()
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// mergePatch folds src onto dst, later fields winning.
func mergePatch(dst, src *board.Patch) {
	if src.X != nil {
		dst.X = src.X
	}
	if src.Y != nil {
		dst.Y = src.Y
	}
	if src.Rotation != nil {
		dst.Rotation = src.Rotation
	}
	if src.Opacity != nil {
		dst.Opacity = src.Opacity
	}
	if src.Locked != nil {
		dst.Locked = src.Locked
	}
	if src.ParentID != nil {
		dst.ParentID = src.ParentID
	}
	if src.OrderIndex != nil {
		dst.OrderIndex = src.OrderIndex
	}
	if src.Props != nil {
		dst.Props = src.Props
	}
	if src.Meta != nil {
		dst.Meta = src.Meta
	}
}
