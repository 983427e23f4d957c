package board

// Validation limit constants
const (
	MaxTextLength   = 10000
	MaxPointsInPath = 10000
	MaxCoordinate   = 1000000
	MinCoordinate   = -1000000
	MaxStrokeWidth  = 1000
	MaxFontSize     = 500
	MaxColorLength  = 50
)

// schemaForType returns the typed props schema for a shape type, or nil
// when the type carries no structured props.
func schemaForType(t ShapeType) any {
	switch t {
	case ShapeRect:
		return &RectProps{}
	case ShapeEllipse:
		return &EllipseProps{}
	case ShapeLine:
		return &LineProps{}
	case ShapeDraw:
		return &DrawProps{}
	case ShapeText:
		return &TextProps{}
	case ShapeImage:
		return &ImageProps{}
	default:
		return nil
	}
}

// common styling properties
type StyleProps struct {
	Fill        string  `json:"fill,omitempty" validate:"omitempty,max=50"`
	Stroke      string  `json:"stroke,omitempty" validate:"omitempty,max=50"`
	StrokeWidth float64 `json:"strokeWidth,omitempty" validate:"omitempty,min=0,max=1000"`
}

// width and height dimensions
type Size struct {
	Width  float64 `json:"width" validate:"min=0,max=1000000"`
	Height float64 `json:"height" validate:"min=0,max=1000000"`
}

// single point in a stroke path, relative to the shape origin
type Point struct {
	X float64 `json:"x" validate:"min=-1000000,max=1000000"`
	Y float64 `json:"y" validate:"min=-1000000,max=1000000"`
}

type RectProps struct {
	Size
	StyleProps
}

type EllipseProps struct {
	RX float64 `json:"rx" validate:"min=0,max=1000000"`
	RY float64 `json:"ry" validate:"min=0,max=1000000"`
	StyleProps
}

type LineProps struct {
	X2 float64 `json:"x2" validate:"min=-1000000,max=1000000"`
	Y2 float64 `json:"y2" validate:"min=-1000000,max=1000000"`
	StyleProps
}

// DrawProps is the freehand stroke payload. Points grow incrementally
// while the stroke is in progress; Complete marks the stroke finished.
type DrawProps struct {
	Points      []Point `json:"points" validate:"max=10000,dive"`
	Stroke      string  `json:"stroke,omitempty" validate:"omitempty,max=50"`
	StrokeWidth float64 `json:"strokeWidth,omitempty" validate:"omitempty,min=0,max=1000"`
	Smooth      bool    `json:"smooth,omitempty"`
	Complete    bool    `json:"complete,omitempty"`
}

type TextProps struct {
	Text       string  `json:"text" validate:"max=10000"`
	FontSize   float64 `json:"fontSize,omitempty" validate:"omitempty,min=1,max=500"`
	FontFamily string  `json:"fontFamily,omitempty" validate:"omitempty,max=100"`
	Fill       string  `json:"fill,omitempty" validate:"omitempty,max=50"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
}

type ImageProps struct {
	AssetID string `json:"assetId,omitempty" validate:"omitempty,max=100"`
	Size
}
