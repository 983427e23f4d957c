// Package asset resolves image content references for board shapes: it
// uploads local binary content to durable storage and reconstructs asset
// records on receiving ends from whichever reference survived the trip.
package asset

import (
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"boardsync/internal/board"
)

// Store is the external durable storage collaborator.
type Store interface {
	// Upload stores a blob and returns its durable file id.
	Upload(ctx context.Context, name, mime string, data []byte) (string, error)
	// PublicURL resolves a durable file id to a fetchable URL.
	PublicURL(fileID string) (string, error)
}

// Pipeline runs outbound upload-then-patch and inbound reference
// resolution for image shapes.
type Pipeline struct {
	store Store
	log   *slog.Logger
}

// NewPipeline returns a pipeline over the given store. A nil store means
// uploads always fall back to inline embedding.
func NewPipeline(store Store, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{store: store, log: log}
}

// Outbound attempts durable upload of a shape's binary content and
// returns the meta patch to broadcast as a follow-up update: a durable
// reference on success, the content embedded inline on failure. It never
// fails the shape itself; upload errors degrade to the inline fallback.
func (p *Pipeline) Outbound(ctx context.Context, s *board.Shape, name string, data []byte) *board.Patch {
	mime := metaString(s, board.MetaAssetMime)
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}

	meta := baseMeta(s)
	meta[board.MetaAssetName] = name
	meta[board.MetaAssetMime] = mime

	if p.store != nil {
		fileID, err := p.store.Upload(ctx, name, mime, data)
		if err == nil {
			meta[board.MetaAssetFileID] = fileID
			delete(meta, board.MetaAssetData)
			return &board.Patch{Meta: meta}
		}
		p.log.Warn("asset upload failed, embedding inline",
			"shape", s.ID, "name", name, "bytes", len(data), "error", err)
	}

	meta[board.MetaAssetData] = base64.StdEncoding.EncodeToString(data)
	delete(meta, board.MetaAssetFileID)
	return &board.Patch{Meta: meta}
}

// resolverFn attempts to build an asset from one reference variant.
type resolverFn func(p *Pipeline, s *board.Shape) *board.Asset

// inbound resolvers in priority order: durable reference first, then
// explicit inline SVG, then generic inline data.
var resolvers = []resolverFn{
	resolveDurable,
	resolveSVG,
	resolveData,
}

// Inbound constructs exactly one asset record for an image shape from
// whichever reference its meta carries, in priority order. Returns nil
// when no reference is present; the shape then has no renderable backing,
// which is degenerate but non-fatal.
func (p *Pipeline) Inbound(s *board.Shape) *board.Asset {
	if s.Type != board.ShapeImage {
		return nil
	}
	for _, resolve := range resolvers {
		if a := resolve(p, s); a != nil {
			return a
		}
	}
	p.log.Warn("image shape has no resolvable asset reference", "shape", s.ID)
	return nil
}

func resolveDurable(p *Pipeline, s *board.Shape) *board.Asset {
	fileID := metaString(s, board.MetaAssetFileID)
	if fileID == "" {
		return nil
	}
	a := newAsset(s)
	a.FileID = fileID
	if p.store != nil {
		url, err := p.store.PublicURL(fileID)
		if err != nil {
			p.log.Warn("resolve public url failed", "shape", s.ID, "fileId", fileID, "error", err)
		} else {
			a.URL = url
		}
	}
	return a
}

func resolveSVG(p *Pipeline, s *board.Shape) *board.Asset {
	svg := metaString(s, board.MetaAssetSVG)
	if svg == "" {
		return nil
	}
	a := newAsset(s)
	a.SVG = svg
	if a.Mime == "" {
		a.Mime = "image/svg+xml"
	}
	return a
}

func resolveData(p *Pipeline, s *board.Shape) *board.Asset {
	data := metaString(s, board.MetaAssetData)
	if data == "" {
		return nil
	}
	a := newAsset(s)
	a.Data = data
	if a.Mime == "" {
		if raw, err := base64.StdEncoding.DecodeString(data); err == nil {
			a.Mime = mimetype.Detect(raw).String()
		}
	}
	return a
}

func newAsset(s *board.Shape) *board.Asset {
	return &board.Asset{
		ID:     board.NewAssetID(),
		Kind:   "image",
		Mime:   metaString(s, board.MetaAssetMime),
		Width:  metaFloat(s, board.MetaAssetWidth),
		Height: metaFloat(s, board.MetaAssetHeight),
	}
}

func baseMeta(s *board.Shape) map[string]any {
	meta := make(map[string]any, len(s.Meta)+3)
	for k, v := range s.Meta {
		meta[k] = v
	}
	return meta
}

func metaString(s *board.Shape, key string) string {
	v, _ := s.Meta[key].(string)
	return v
}

func metaFloat(s *board.Shape, key string) float64 {
	switch v := s.Meta[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
