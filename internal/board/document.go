package board

import (
	"sort"
	"sync"
)

// ChangeKind classifies a single document mutation.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
)

// Change records one mutation observed during a transaction. Before is
// the prior state (nil for adds), After the resulting state (nil for
// removals). Both are defensive copies.
type Change struct {
	Kind   ChangeKind
	Before *Shape
	After  *Shape
}

// ID returns the id of the changed shape.
func (c Change) ID() string {
	if c.After != nil {
		return c.After.ID
	}
	if c.Before != nil {
		return c.Before.ID
	}
	return ""
}

// ChangeSet is the batch of mutations produced by one transaction.
type ChangeSet []Change

// Listener observes committed change batches. It is invoked synchronously
// at commit, after the document lock is released.
type Listener func(ChangeSet)

// Document is the local board replica. It is mutated only through
// transactions; every committed transaction notifies the listener with
// the batch of changes it produced.
type Document struct {
	mu       sync.RWMutex
	shapes   map[string]*Shape
	assets   map[string]*Asset
	listener Listener
}

// NewDocument returns an empty replica.
func NewDocument() *Document {
	return &Document{
		shapes: make(map[string]*Shape),
		assets: make(map[string]*Asset),
	}
}

// SetListener registers the change observer. Only one listener is
// supported; the sync engine owns it.
func (d *Document) SetListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = l
}

// Tx collects mutations for one transaction.
type Tx struct {
	doc     *Document
	changes ChangeSet
}

// Transact runs fn against the document under the write lock and then
// delivers the recorded changes to the listener. The listener runs after
// the lock is released so it may read the document freely.
func (d *Document) Transact(fn func(tx *Tx)) {
	d.mu.Lock()
	tx := &Tx{doc: d}
	fn(tx)
	listener := d.listener
	changes := tx.changes
	d.mu.Unlock()

	if listener != nil && len(changes) > 0 {
		listener(changes)
	}
}

// PutShape inserts or replaces a shape.
func (tx *Tx) PutShape(s *Shape) {
	before := tx.doc.shapes[s.ID]
	stored := s.Clone()
	tx.doc.shapes[s.ID] = stored

	kind := ChangeAdded
	if before != nil {
		kind = ChangeUpdated
	}
	tx.changes = append(tx.changes, Change{Kind: kind, Before: before.Clone(), After: stored.Clone()})
}

// PatchShape merges a partial update onto an existing shape. Returns
// false when the target does not exist.
func (tx *Tx) PatchShape(id string, p *Patch) bool {
	existing, ok := tx.doc.shapes[id]
	if !ok {
		return false
	}
	before := existing.Clone()
	existing.Apply(p)
	tx.changes = append(tx.changes, Change{Kind: ChangeUpdated, Before: before, After: existing.Clone()})
	return true
}

// DeleteShape removes a shape. Returns false when it was not present.
func (tx *Tx) DeleteShape(id string) bool {
	existing, ok := tx.doc.shapes[id]
	if !ok {
		return false
	}
	delete(tx.doc.shapes, id)
	tx.changes = append(tx.changes, Change{Kind: ChangeRemoved, Before: existing})
	return true
}

// Shape reads a shape inside the transaction.
func (tx *Tx) Shape(id string) (*Shape, bool) {
	s, ok := tx.doc.shapes[id]
	return s.Clone(), ok
}

// PutAsset inserts or replaces an asset record. Assets are not part of
// the change stream; they are materialized alongside the image shapes
// that reference them.
func (tx *Tx) PutAsset(a *Asset) {
	tx.doc.assets[a.ID] = a.Clone()
}

// Shape returns a copy of the shape with the given id.
func (d *Document) Shape(id string) (*Shape, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.shapes[id]
	return s.Clone(), ok
}

// HasShape reports whether a shape with the given id exists.
func (d *Document) HasShape(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.shapes[id]
	return ok
}

// Shapes returns copies of all shapes in stacking order.
func (d *Document) Shapes() []*Shape {
	d.mu.RLock()
	out := make([]*Shape, 0, len(d.shapes))
	for _, s := range d.shapes {
		out = append(out, s.Clone())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ShapeCount returns the number of shapes in the replica.
func (d *Document) ShapeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.shapes)
}

// Asset returns a copy of the asset with the given id.
func (d *Document) Asset(id string) (*Asset, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.assets[id]
	return a.Clone(), ok
}

// AssetCount returns the number of asset records in the replica.
func (d *Document) AssetCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.assets)
}
