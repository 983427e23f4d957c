package board

import "github.com/google/uuid"

// AssetSource identifies which reference variant backs an asset.
type AssetSource string

const (
	// SourceDurable points at content stored in an object store.
	SourceDurable AssetSource = "durable"
	// SourceSVG embeds SVG markup directly in the document.
	SourceSVG AssetSource = "svg"
	// SourceData embeds generic base64 content directly in the document.
	SourceData AssetSource = "data"
	// SourceNone means the asset has no renderable backing.
	SourceNone AssetSource = "none"
)

// Asset is binary or structured content referenced by one or more image
// shapes. Exactly one of FileID, SVG, and Data is populated at a time.
type Asset struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	FileID string  `json:"fileId,omitempty"`
	URL    string  `json:"url,omitempty"`
	SVG    string  `json:"svg,omitempty"`
	Data   string  `json:"data,omitempty"` // base64 payload
	Mime   string  `json:"mime,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// NewAssetID returns a fresh globally unique asset id.
func NewAssetID() string {
	return uuid.NewString()
}

// Source reports which reference variant backs the asset, in resolution
// priority order: durable, inline SVG, inline data.
func (a *Asset) Source() AssetSource {
	switch {
	case a.FileID != "":
		return SourceDurable
	case a.SVG != "":
		return SourceSVG
	case a.Data != "":
		return SourceData
	default:
		return SourceNone
	}
}

// Clone returns a copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Shape meta keys used to carry asset references across the wire. The
// asset record itself is never sent; receivers reconstruct it from these.
const (
	MetaAssetFileID = "assetFileId"
	MetaAssetSVG    = "assetSvg"
	MetaAssetData   = "assetData"
	MetaAssetMime   = "assetMime"
	MetaAssetName   = "assetName"
	MetaAssetWidth  = "assetWidth"
	MetaAssetHeight = "assetHeight"
)

// PropAssetID is the props key linking an image shape to its local asset
// record.
const PropAssetID = "assetId"
