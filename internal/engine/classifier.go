package engine

import (
	"bytes"
	"sync"

	"github.com/goccy/go-json"

	"boardsync/internal/board"
)

// Classifier turns observed document mutations into broadcast intents.
// It filters out transient records, computes per-field diffs for
// ordinary updates, and special-cases in-progress freehand strokes.
type Classifier struct {
	guard *Guard
	emit  func(Intent)

	mu      sync.Mutex
	strokes map[string]bool // draw shape ids still in progress
}

// NewClassifier wires a classifier to a guard and an intent sink.
func NewClassifier(guard *Guard, emit func(Intent)) *Classifier {
	return &Classifier{
		guard:   guard,
		emit:    emit,
		strokes: make(map[string]bool),
	}
}

// Observe consumes one committed change batch. While the guard is
// suppressing, the whole batch is discarded: those mutations came from
// applying a remote event and must not echo back out.
func (c *Classifier) Observe(changes board.ChangeSet) {
	if c.guard.Suppressing() {
		return
	}

	for _, ch := range changes {
		c.classify(ch)
	}
}

func (c *Classifier) classify(ch board.Change) {
	switch ch.Kind {
	case board.ChangeAdded:
		s := ch.After
		if s == nil || !s.Type.Visible() {
			return
		}
		if s.Type == board.ShapeDraw && !s.StrokeComplete() {
			c.mu.Lock()
			c.strokes[s.ID] = true
			c.mu.Unlock()
		}
		c.emit(CreateIntent{Shape: s})

	case board.ChangeUpdated:
		s := ch.After
		if s == nil || !s.Type.Visible() {
			return
		}
		if s.Type == board.ShapeDraw && c.strokeInProgress(s.ID) {
			// partial diffs are not meaningful for growing stroke
			// geometry; ship the whole shape every time
			final := s.StrokeComplete()
			if final {
				c.mu.Lock()
				delete(c.strokes, s.ID)
				c.mu.Unlock()
			}
			c.emit(UpdateIntent{ID: s.ID, Changes: board.FullPatch(s), Stroke: true, Final: final})
			return
		}
		diff := diffShapes(ch.Before, s)
		if diff == nil || diff.IsZero() {
			return
		}
		c.emit(UpdateIntent{ID: s.ID, Changes: diff})

	case board.ChangeRemoved:
		s := ch.Before
		if s == nil || !s.Type.Visible() {
			return
		}
		c.mu.Lock()
		delete(c.strokes, s.ID)
		c.mu.Unlock()
		c.emit(DeleteIntent{ID: s.ID})
	}
}

func (c *Classifier) strokeInProgress(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strokes[id]
}

// diffShapes returns a patch holding only the fields whose value actually
// changed. Props and Meta are compared structurally.
func diffShapes(before, after *board.Shape) *board.Patch {
	if before == nil {
		return board.FullPatch(after)
	}

	p := &board.Patch{}
	if before.X != after.X {
		v := after.X
		p.X = &v
	}
	if before.Y != after.Y {
		v := after.Y
		p.Y = &v
	}
	if before.Rotation != after.Rotation {
		v := after.Rotation
		p.Rotation = &v
	}
	if before.Opacity != after.Opacity {
		v := after.Opacity
		p.Opacity = &v
	}
	if before.Locked != after.Locked {
		v := after.Locked
		p.Locked = &v
	}
	if before.ParentID != after.ParentID {
		v := after.ParentID
		p.ParentID = &v
	}
	if before.OrderIndex != after.OrderIndex {
		v := after.OrderIndex
		p.OrderIndex = &v
	}
	if !structEqual(before.Props, after.Props) {
		p.Props = after.Props
	}
	if !structEqual(before.Meta, after.Meta) {
		p.Meta = after.Meta
	}
	return p
}

// structEqual compares two structured values via their canonical JSON
// form. Shape props are JSON-shaped maps, so this is a faithful
// structural equality.
func structEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
