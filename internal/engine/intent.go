package engine

import "boardsync/internal/board"

// Intent is a classified local mutation awaiting broadcast.
type Intent interface {
	intent()
}

// CreateIntent announces a new shape. Never throttled.
type CreateIntent struct {
	Shape *board.Shape
}

// UpdateIntent carries changed fields for an existing shape. Stroke
// updates carry the entire current shape and flow through the tighter
// throttle window; Final marks a stroke's completion update, which is
// always flushed immediately.
type UpdateIntent struct {
	ID      string
	Changes *board.Patch
	Stroke  bool
	Final   bool
}

// DeleteIntent removes a shape. Never throttled.
type DeleteIntent struct {
	ID string
}

func (CreateIntent) intent() {}
func (UpdateIntent) intent() {}
func (DeleteIntent) intent() {}
