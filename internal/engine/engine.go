// Package engine reconciles a locally-mutable board replica with the
// relay event stream: it classifies local edits into broadcast intents,
// throttles them, applies remote events under echo suppression, and
// tracks ephemeral presence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"boardsync/internal/asset"
	"boardsync/internal/board"
	"boardsync/internal/config"
	"boardsync/internal/presence"
	"boardsync/internal/protocol"
	"boardsync/internal/transport"
)

var ErrNotConnected = errors.New("session not connected")

// Options configures a board session engine.
type Options struct {
	Link        *transport.Link
	Store       asset.Store // nil: uploads always fall back to inline
	Tunables    config.Tunables
	Logger      *slog.Logger
	UserID      string
	DisplayName string

	// PendingImport, if set, is applied exactly once after the initial
	// snapshot load settles.
	PendingImport *ImportPayload
}

// Engine is the synchronization engine for one board session.
type Engine struct {
	cfg  config.Tunables
	log  *slog.Logger
	link *transport.Link

	userID      string
	displayName string

	doc        *board.Document
	guard      *Guard
	validator  *board.Validator
	assets     *asset.Pipeline
	applier    *Applier
	loader     *Loader
	classifier *Classifier
	throttler  *Throttler
	tracker    *presence.Tracker

	pendingImport *ImportPayload

	mu           sync.Mutex
	connected    bool
	onDisconnect func(error)
}

// New builds an engine around a connected transport link. The session is
// not live until Join succeeds.
func New(opts Options) *Engine {
	cfg := tunablesWithDefaults(opts.Tunables)
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		cfg:           cfg,
		log:           log,
		link:          opts.Link,
		userID:        opts.UserID,
		displayName:   opts.DisplayName,
		doc:           board.NewDocument(),
		guard:         &Guard{},
		validator:     board.NewValidator(),
		tracker:       presence.NewTracker(cfg.CursorInterval),
		pendingImport: opts.PendingImport,
	}
	e.assets = asset.NewPipeline(opts.Store, log)
	e.applier = NewApplier(e.doc, e.guard, e.validator, e.assets, log)
	e.loader = NewLoader(e.doc, e.guard, e.validator, e.assets, log)
	e.throttler = NewThrottler(cfg.UpdateDebounce, cfg.StrokeInterval, e.sendIntent)
	e.classifier = NewClassifier(e.guard, e.throttler.Offer)

	e.registerHandlers()
	return e
}

// tunablesWithDefaults fills each unset knob with its reference default,
// leaving the caller's overrides alone.
func tunablesWithDefaults(t config.Tunables) config.Tunables {
	def := config.DefaultTunables()
	if t.JoinTimeout <= 0 {
		t.JoinTimeout = def.JoinTimeout
	}
	if t.UpdateDebounce <= 0 {
		t.UpdateDebounce = def.UpdateDebounce
	}
	if t.StrokeInterval <= 0 {
		t.StrokeInterval = def.StrokeInterval
	}
	if t.CursorInterval <= 0 {
		t.CursorInterval = def.CursorInterval
	}
	return t
}

// Join enters the board session: fetch the snapshot within the join
// timeout, load it under suppression, start classifying local edits, and
// run the pending import if one is queued. On failure no partial session
// state is retained.
func (e *Engine) Join(ctx context.Context, boardID string) error {
	joinCtx, cancel := context.WithTimeout(ctx, e.cfg.JoinTimeout)
	defer cancel()

	snap, err := e.link.Join(joinCtx, boardID, e.userID, e.displayName)
	if err != nil {
		return fmt.Errorf("join board %s: %w", boardID, err)
	}

	if err := e.loader.LoadSnapshot(snap); err != nil {
		return err
	}
	e.tracker.SetRoster(snap.Participants)

	// The classifier attaches only now: the snapshot load must never be
	// misclassified as local edits.
	e.doc.SetListener(e.classifier.Observe)

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	if e.pendingImport != nil {
		payload := e.pendingImport
		e.pendingImport = nil
		if err := e.loader.RunImport(payload, e.sendIntent); err != nil {
			// the payload is consumed either way; the session stays up
			e.log.Warn("pending import failed", "board", boardID, "error", err)
		}
	}

	e.log.Info("session connected", "board", boardID, "elements", e.doc.ShapeCount(),
		"participants", e.tracker.Count())
	return nil
}

func (e *Engine) registerHandlers() {
	e.link.OnEvent(protocol.KindElementCreate, func(ev protocol.Event) {
		if c, ok := ev.(*protocol.ElementCreate); ok {
			e.applier.ApplyCreate(c)
		}
	})
	e.link.OnEvent(protocol.KindElementUpdate, func(ev protocol.Event) {
		if u, ok := ev.(*protocol.ElementUpdate); ok {
			e.applier.ApplyUpdate(u)
		}
	})
	e.link.OnEvent(protocol.KindElementDelete, func(ev protocol.Event) {
		if d, ok := ev.(*protocol.ElementDelete); ok {
			e.applier.ApplyDelete(d)
		}
	})
	e.link.OnEvent(protocol.KindUserJoined, func(ev protocol.Event) {
		if j, ok := ev.(*protocol.UserJoined); ok {
			e.tracker.SetRoster(j.Participants)
		}
	})
	e.link.OnEvent(protocol.KindUserLeft, func(ev protocol.Event) {
		if l, ok := ev.(*protocol.UserLeft); ok {
			e.tracker.SetRoster(l.Participants)
		}
	})
	e.link.OnEvent(protocol.KindCursorMove, func(ev protocol.Event) {
		if c, ok := ev.(*protocol.CursorMove); ok {
			e.tracker.SetCursor(c.UserID, c.Position)
		}
	})
	e.link.OnDisconnect(func(err error) {
		e.mu.Lock()
		e.connected = false
		h := e.onDisconnect
		e.mu.Unlock()
		if err != nil {
			e.log.Warn("session disconnected", "error", err)
		}
		if h != nil {
			h(err)
		}
	})
}

// sendIntent converts one intent into its wire event and ships it.
func (e *Engine) sendIntent(in Intent) {
	var ev protocol.Event
	switch v := in.(type) {
	case CreateIntent:
		ev = &protocol.ElementCreate{Element: v.Shape, UserID: e.userID}
	case UpdateIntent:
		ev = &protocol.ElementUpdate{ID: v.ID, Changes: v.Changes, UserID: e.userID}
	case DeleteIntent:
		ev = &protocol.ElementDelete{ID: v.ID, UserID: e.userID}
	default:
		return
	}
	if err := e.link.Send(ev); err != nil {
		e.log.Warn("send failed", "kind", ev.Kind(), "error", err)
	}
}

// Document returns the local replica. The canvas widget mutates it
// through transactions; the engine broadcasts whatever it observes.
func (e *Engine) Document() *board.Document {
	return e.doc
}

// Presence returns the participant and cursor tracker.
func (e *Engine) Presence() *presence.Tracker {
	return e.tracker
}

// LoadState reports the session's sync/import progress.
func (e *Engine) LoadState() LoadState {
	return e.loader.State()
}

// Connected reports whether the session is live.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// OnDisconnect registers a disconnect observer. Resuming sync after a
// disconnect is a fresh Join on a fresh link.
func (e *Engine) OnDisconnect(h func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDisconnect = h
}

// CreateShape inserts a locally created shape into the replica. The
// classifier picks it up and broadcasts it.
func (e *Engine) CreateShape(s *board.Shape) {
	e.doc.Transact(func(tx *board.Tx) {
		tx.PutShape(s)
	})
}

// UpdateShape merges a local edit onto a shape.
func (e *Engine) UpdateShape(id string, p *board.Patch) bool {
	var ok bool
	e.doc.Transact(func(tx *board.Tx) {
		ok = tx.PatchShape(id, p)
	})
	return ok
}

// DeleteShape removes a shape locally.
func (e *Engine) DeleteShape(id string) bool {
	var ok bool
	e.doc.Transact(func(tx *board.Tx) {
		ok = tx.DeleteShape(id)
	})
	return ok
}

// AttachImageContent starts the asset resolution pipeline for a locally
// created image shape. It never blocks the shape's create broadcast: the
// upload runs in the background and the resulting reference is patched
// in as an ordinary local edit, which the classifier then broadcasts.
func (e *Engine) AttachImageContent(ctx context.Context, shapeID, name string, data []byte) {
	go func() {
		patch := e.assets.Outbound(ctx, e.mustShape(shapeID), name, data)
		if patch == nil {
			return
		}
		e.doc.Transact(func(tx *board.Tx) {
			if !tx.PatchShape(shapeID, patch) {
				return // shape deleted while uploading
			}
			if s, ok := tx.Shape(shapeID); ok {
				if rec := e.assets.Inbound(s); rec != nil {
					tx.PutAsset(rec)
					props := board.FullPatch(s).Props
					if props == nil {
						props = make(map[string]any)
					}
					props[board.PropAssetID] = rec.ID
					tx.PatchShape(shapeID, &board.Patch{Props: props})
				}
			}
		})
	}()
}

// MoveCursor ships the local cursor position, bounded to roughly one
// send per frame. Throttled sends are silently dropped; cursor data is
// transient and the next allowed send carries the current position.
func (e *Engine) MoveCursor(pos board.CursorPosition) error {
	if !e.Connected() {
		return ErrNotConnected
	}
	if !e.tracker.AllowCursorSend() {
		return nil
	}
	if err := e.link.Send(&protocol.CursorMove{UserID: e.userID, Position: pos}); err != nil {
		return fmt.Errorf("send cursor: %w", err)
	}
	return nil
}

// Close tears the session down: pending updates are flushed, the link is
// closed, and ephemeral presence state is cleared.
func (e *Engine) Close() error {
	e.throttler.Stop()
	e.tracker.Reset()
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	return e.link.Close()
}

func (e *Engine) mustShape(id string) *board.Shape {
	if s, ok := e.doc.Shape(id); ok {
		return s
	}
	return &board.Shape{ID: id, Type: board.ShapeImage}
}
