package board

import (
	"time"

	"github.com/google/uuid"
)

// ShapeType identifies the kind of visual element a shape renders as.
type ShapeType string

const (
	ShapeRect    ShapeType = "rect"
	ShapeEllipse ShapeType = "ellipse"
	ShapeLine    ShapeType = "line"
	ShapeDraw    ShapeType = "draw"
	ShapeText    ShapeType = "text"
	ShapeImage   ShapeType = "image"
)

// visibleTypes is the whitelist of shape types that participate in sync.
// Anything else is treated as a transient or internal record.
var visibleTypes = map[ShapeType]bool{
	ShapeRect:    true,
	ShapeEllipse: true,
	ShapeLine:    true,
	ShapeDraw:    true,
	ShapeText:    true,
	ShapeImage:   true,
}

// Visible reports whether the type is a syncable canvas element.
func (t ShapeType) Visible() bool {
	return visibleTypes[t]
}

// Shape is a single visual element on the canvas. ID is assigned once at
// creation and never reused. OrderIndex determines stacking order among
// siblings and must stay totally ordered.
type Shape struct {
	ID         string         `json:"id"`
	Type       ShapeType      `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Rotation   float64        `json:"rotation,omitempty"`
	Opacity    float64        `json:"opacity"`
	Locked     bool           `json:"locked,omitempty"`
	ParentID   string         `json:"parentId,omitempty"`
	OrderIndex string         `json:"orderIndex"`
	Props      map[string]any `json:"props,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewShapeID returns a fresh globally unique shape id.
func NewShapeID() string {
	return uuid.NewString()
}

// Clone returns a deep copy. Props and Meta maps are copied one level
// deep, which covers every schema field the engine reads or writes.
func (s *Shape) Clone() *Shape {
	if s == nil {
		return nil
	}
	c := *s
	c.Props = cloneMap(s.Props)
	c.Meta = cloneMap(s.Meta)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// StrokeComplete reports whether a draw shape's payload marks the stroke
// as finished.
func (s *Shape) StrokeComplete() bool {
	if s.Type != ShapeDraw {
		return true
	}
	done, _ := s.Props["complete"].(bool)
	return done
}

// Patch is a partial shape: only set fields are merged onto the target.
// Props and Meta replace the whole map when present, mirroring the wire
// protocol's per-field last-writer-wins semantics.
type Patch struct {
	X          *float64       `json:"x,omitempty"`
	Y          *float64       `json:"y,omitempty"`
	Rotation   *float64       `json:"rotation,omitempty"`
	Opacity    *float64       `json:"opacity,omitempty"`
	Locked     *bool          `json:"locked,omitempty"`
	ParentID   *string        `json:"parentId,omitempty"`
	OrderIndex *string        `json:"orderIndex,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// IsZero reports whether the patch carries no fields.
func (p *Patch) IsZero() bool {
	return p.X == nil && p.Y == nil && p.Rotation == nil && p.Opacity == nil &&
		p.Locked == nil && p.ParentID == nil && p.OrderIndex == nil &&
		p.Props == nil && p.Meta == nil
}

// Apply merges the patch onto the shape.
func (s *Shape) Apply(p *Patch) {
	if p == nil {
		return
	}
	if p.X != nil {
		s.X = *p.X
	}
	if p.Y != nil {
		s.Y = *p.Y
	}
	if p.Rotation != nil {
		s.Rotation = *p.Rotation
	}
	if p.Opacity != nil {
		s.Opacity = *p.Opacity
	}
	if p.Locked != nil {
		s.Locked = *p.Locked
	}
	if p.ParentID != nil {
		s.ParentID = *p.ParentID
	}
	if p.OrderIndex != nil {
		s.OrderIndex = *p.OrderIndex
	}
	if p.Props != nil {
		s.Props = cloneMap(p.Props)
	}
	if p.Meta != nil {
		s.Meta = cloneMap(p.Meta)
	}
}

// FullPatch returns a patch carrying every field of the shape. Used for
// in-progress draw strokes where partial diffs are not meaningful.
func FullPatch(s *Shape) *Patch {
	x, y, rot, op := s.X, s.Y, s.Rotation, s.Opacity
	locked := s.Locked
	parent, order := s.ParentID, s.OrderIndex
	return &Patch{
		X:          &x,
		Y:          &y,
		Rotation:   &rot,
		Opacity:    &op,
		Locked:     &locked,
		ParentID:   &parent,
		OrderIndex: &order,
		Props:      cloneMap(s.Props),
		Meta:       cloneMap(s.Meta),
	}
}

// Role is a participant's permission level on a board.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Participant is a user currently present on a board. Never persisted.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"`
	Role        Role      `json:"role"`
	IsActive    bool      `json:"isActive"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// CursorPosition is a transient per-user pointer location.
type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot is the board state fetched once at join time. The server is
// authoritative; the client holds only a cached working copy.
type Snapshot struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Elements     []*Shape      `json:"elements"`
	Participants []Participant `json:"participants"`
}
