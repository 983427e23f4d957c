package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"boardsync/internal/asset"
	"boardsync/internal/board"
)

// LoadState tracks a session's progress through initial sync and the
// one-shot import that may follow it.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoadingSnapshot
	StateReady
	StateImporting
	StateImported
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingSnapshot:
		return "loading-snapshot"
	case StateReady:
		return "ready"
	case StateImporting:
		return "importing"
	case StateImported:
		return "imported"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyLoaded   = errors.New("snapshot already loaded")
	ErrNotReady        = errors.New("session not ready")
	ErrImportConsumed  = errors.New("import payload already consumed")
	errNothingToImport = errors.New("empty import payload")
)

// Loader applies the board's persisted elements on join and runs the
// pending import exactly once after initial sync settles.
type Loader struct {
	doc       *board.Document
	guard     *Guard
	validator *board.Validator
	assets    *asset.Pipeline
	log       *slog.Logger

	mu    sync.Mutex
	state LoadState
}

// NewLoader returns a loader in the idle state.
func NewLoader(doc *board.Document, guard *Guard, validator *board.Validator, assets *asset.Pipeline, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{doc: doc, guard: guard, validator: validator, assets: assets, log: log}
}

// State returns the current load state.
func (ld *Loader) State() LoadState {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.state
}

// LoadSnapshot applies the join snapshot's element list to the replica
// under suppression. Malformed elements are dropped with a warning; the
// rest of the snapshot still loads.
func (ld *Loader) LoadSnapshot(snap *board.Snapshot) error {
	ld.mu.Lock()
	if ld.state != StateIdle {
		ld.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyLoaded, ld.state)
	}
	ld.state = StateLoadingSnapshot
	ld.mu.Unlock()

	ld.guard.With(func() {
		ld.doc.Transact(func(tx *board.Tx) {
			for _, el := range snap.Elements {
				clean, err := ld.validator.ValidateShape(el)
				if err != nil {
					ld.log.Warn("dropping malformed snapshot element", "error", err)
					continue
				}
				if clean.Type == board.ShapeImage && ld.assets != nil {
					if rec := ld.assets.Inbound(clean); rec != nil {
						tx.PutAsset(rec)
						if clean.Props == nil {
							clean.Props = make(map[string]any)
						}
						clean.Props[board.PropAssetID] = rec.ID
					}
				}
				tx.PutShape(clean)
			}
		})
	})

	ld.mu.Lock()
	ld.state = StateReady
	ld.mu.Unlock()
	return nil
}

// RunImport consumes the pending import payload exactly once: the
// synthesized shapes are applied under suppression and then broadcast as
// ordinary create intents so other participants receive them. The
// payload is discarded whether synthesis succeeds or fails; a second
// call is always an error.
func (ld *Loader) RunImport(payload *ImportPayload, broadcast func(Intent)) error {
	ld.mu.Lock()
	switch ld.state {
	case StateImporting, StateImported:
		ld.mu.Unlock()
		return ErrImportConsumed
	case StateReady:
	default:
		ld.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotReady, ld.state)
	}
	ld.state = StateImporting
	ld.mu.Unlock()

	// consumed regardless of outcome
	defer func() {
		ld.mu.Lock()
		ld.state = StateImported
		ld.mu.Unlock()
	}()

	shapes, err := synthesizeImport(payload)
	if err != nil {
		ld.log.Warn("import synthesis failed, payload discarded", "kind", payload.Kind, "error", err)
		return fmt.Errorf("synthesize %s import: %w", payload.Kind, err)
	}

	ld.guard.With(func() {
		ld.doc.Transact(func(tx *board.Tx) {
			for _, s := range shapes {
				if s.Type == board.ShapeImage && ld.assets != nil {
					if rec := ld.assets.Inbound(s); rec != nil {
						tx.PutAsset(rec)
						if s.Props == nil {
							s.Props = make(map[string]any)
						}
						s.Props[board.PropAssetID] = rec.ID
					}
				}
				tx.PutShape(s)
			}
		})
	})

	for _, s := range shapes {
		broadcast(CreateIntent{Shape: s})
	}
	ld.log.Info("import applied", "kind", payload.Kind, "shapes", len(shapes))
	return nil
}
