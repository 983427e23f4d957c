package engine

import (
	"log/slog"

	"boardsync/internal/asset"
	"boardsync/internal/board"
	"boardsync/internal/protocol"
)

// Applier converts inbound relay events into local document mutations.
// Every application runs under the guard so the classifier never
// re-broadcasts remote changes.
type Applier struct {
	doc       *board.Document
	guard     *Guard
	validator *board.Validator
	assets    *asset.Pipeline
	log       *slog.Logger
}

// NewApplier wires an applier to the local replica.
func NewApplier(doc *board.Document, guard *Guard, validator *board.Validator, assets *asset.Pipeline, log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{doc: doc, guard: guard, validator: validator, assets: assets, log: log}
}

// ApplyCreate inserts a remotely created shape. Duplicate delivery is an
// idempotent no-op; malformed shapes are dropped with a warning. Image
// shapes get their asset record materialized before insertion.
func (a *Applier) ApplyCreate(ev *protocol.ElementCreate) {
	defer a.recoverApply("create")

	clean, err := a.validator.ValidateShape(ev.Element)
	if err != nil {
		a.log.Warn("dropping malformed create event", "error", err)
		return
	}
	if a.doc.HasShape(clean.ID) {
		// duplicate delivery
		return
	}

	a.guard.With(func() {
		a.doc.Transact(func(tx *board.Tx) {
			a.materializeAsset(tx, clean)
			tx.PutShape(clean)
		})
	})
}

// ApplyUpdate merges a remote field set onto an existing shape. A
// missing target cannot be patched and is dropped with a warning.
func (a *Applier) ApplyUpdate(ev *protocol.ElementUpdate) {
	defer a.recoverApply("update")

	if ev.ID == "" || ev.Changes == nil {
		a.log.Warn("dropping malformed update event", "id", ev.ID)
		return
	}
	existing, ok := a.doc.Shape(ev.ID)
	if !ok {
		a.log.Warn("dropping update for unknown shape", "id", ev.ID)
		return
	}

	clean, err := a.validator.ValidatePatch(existing.Type, ev.Changes)
	if err != nil {
		a.log.Warn("dropping malformed update event", "id", ev.ID, "error", err)
		return
	}

	a.guard.With(func() {
		a.doc.Transact(func(tx *board.Tx) {
			tx.PatchShape(ev.ID, clean)
			// an update that rewrites the asset reference carries new
			// content; rebuild the local record from it
			if existing.Type == board.ShapeImage && clean.Meta != nil {
				if s, ok := tx.Shape(ev.ID); ok {
					a.materializeAsset(tx, s)
					tx.PatchShape(ev.ID, &board.Patch{Props: s.Props})
				}
			}
		})
	})
}

// ApplyDelete removes a shape. A missing target is a silent no-op.
func (a *Applier) ApplyDelete(ev *protocol.ElementDelete) {
	defer a.recoverApply("delete")

	if ev.ID == "" {
		return
	}
	a.guard.With(func() {
		a.doc.Transact(func(tx *board.Tx) {
			tx.DeleteShape(ev.ID)
		})
	})
}

// materializeAsset builds the local asset record for an image shape from
// whichever reference its meta carries. Must run inside a transaction.
// A shape keeps its asset id across reference rewrites, so a rebuilt
// record overwrites the previous one instead of orphaning it.
func (a *Applier) materializeAsset(tx *board.Tx, s *board.Shape) {
	if s.Type != board.ShapeImage || a.assets == nil {
		return
	}
	rec := a.assets.Inbound(s)
	if rec == nil {
		return
	}
	if prev, ok := s.Props[board.PropAssetID].(string); ok && prev != "" {
		rec.ID = prev
	}
	tx.PutAsset(rec)
	if s.Props == nil {
		s.Props = make(map[string]any)
	}
	s.Props[board.PropAssetID] = rec.ID
}

// recoverApply contains a failed remote application to the one event
// that caused it. The guard has already reset by the time this runs.
func (a *Applier) recoverApply(op string) {
	if r := recover(); r != nil {
		a.log.Error("panic applying remote event", "op", op, "panic", r)
	}
}
