package engine

import (
	"fmt"
	"math"

	"boardsync/internal/board"
)

// ImportKind names the diagram format of a pending import.
type ImportKind string

const (
	ImportMindmap     ImportKind = "mindmap"
	ImportInfographic ImportKind = "infographic"
)

// ImportPayload is an externally generated diagram waiting to be
// converted into shapes. Consumed exactly once per board session.
type ImportPayload struct {
	Kind        ImportKind
	Mindmap     *MindmapNode
	Infographic *Infographic
}

// MindmapNode is one labeled node of a mindmap tree.
type MindmapNode struct {
	Label    string
	Children []*MindmapNode
}

// Infographic is a structured description of a rendered diagram: a title,
// stacked sections, and optionally the rendered SVG itself.
type Infographic struct {
	Title    string
	Sections []InfographicSection
	SVG      string
	Width    float64
	Height   float64
}

// InfographicSection is one block of an infographic.
type InfographicSection struct {
	Heading string
	Body    string
}

// synthesizeImport converts an import payload into a shape set.
func synthesizeImport(p *ImportPayload) ([]*board.Shape, error) {
	if p == nil {
		return nil, errNothingToImport
	}
	switch p.Kind {
	case ImportMindmap:
		if p.Mindmap == nil {
			return nil, errNothingToImport
		}
		return synthesizeMindmap(p.Mindmap), nil
	case ImportInfographic:
		if p.Infographic == nil {
			return nil, errNothingToImport
		}
		return synthesizeInfographic(p.Infographic), nil
	default:
		return nil, fmt.Errorf("unsupported import kind: %q", p.Kind)
	}
}

const (
	mindmapRingRadius = 220.0
	mindmapFontSize   = 16.0
	sectionWidth      = 360.0
	sectionHeight     = 120.0
	sectionGap        = 24.0
)

// synthesizeMindmap lays the tree out radially: the root at the origin,
// each depth ring further out, siblings spread across their parent's
// angular span. Edges become line shapes below the node text shapes.
func synthesizeMindmap(root *MindmapNode) []*board.Shape {
	var shapes []*board.Shape
	order := ""

	next := func() string {
		order = board.OrderKeyAfter(order)
		return order
	}

	var walk func(node *MindmapNode, x, y float64, depth int, from, span float64)
	walk = func(node *MindmapNode, x, y float64, depth int, from, span float64) {
		shapes = append(shapes, &board.Shape{
			ID:         board.NewShapeID(),
			Type:       board.ShapeText,
			X:          x,
			Y:          y,
			Opacity:    1,
			OrderIndex: next(),
			Props: map[string]any{
				"text":     node.Label,
				"fontSize": mindmapFontSize,
			},
		})

		n := len(node.Children)
		if n == 0 {
			return
		}
		step := span / float64(n)
		radius := mindmapRingRadius * float64(depth+1)
		for i, child := range node.Children {
			angle := from + step*(float64(i)+0.5)
			cx := radius * math.Cos(angle)
			cy := radius * math.Sin(angle)
			shapes = append(shapes, &board.Shape{
				ID:         board.NewShapeID(),
				Type:       board.ShapeLine,
				X:          x,
				Y:          y,
				Opacity:    1,
				OrderIndex: next(),
				Props: map[string]any{
					"x2": cx - x,
					"y2": cy - y,
				},
			})
			walk(child, cx, cy, depth+1, angle-step/2, step)
		}
	}
	walk(root, 0, 0, 0, 0, 2*math.Pi)
	return shapes
}

// synthesizeInfographic stacks the sections vertically: a title, one
// rect plus heading/body text per section, and the rendered SVG as an
// inline image shape when present.
func synthesizeInfographic(ig *Infographic) []*board.Shape {
	var shapes []*board.Shape
	order := ""
	next := func() string {
		order = board.OrderKeyAfter(order)
		return order
	}

	y := 0.0
	if ig.Title != "" {
		shapes = append(shapes, &board.Shape{
			ID:         board.NewShapeID(),
			Type:       board.ShapeText,
			X:          0,
			Y:          y,
			Opacity:    1,
			OrderIndex: next(),
			Props: map[string]any{
				"text":     ig.Title,
				"fontSize": 28.0,
				"bold":     true,
			},
		})
		y += 48 + sectionGap
	}

	for _, sec := range ig.Sections {
		shapes = append(shapes, &board.Shape{
			ID:         board.NewShapeID(),
			Type:       board.ShapeRect,
			X:          0,
			Y:          y,
			Opacity:    1,
			OrderIndex: next(),
			Props: map[string]any{
				"width":  sectionWidth,
				"height": sectionHeight,
				"fill":   "#f5f5f5",
			},
		})
		shapes = append(shapes, &board.Shape{
			ID:         board.NewShapeID(),
			Type:       board.ShapeText,
			X:          16,
			Y:          y + 16,
			Opacity:    1,
			OrderIndex: next(),
			Props: map[string]any{
				"text":     sec.Heading,
				"fontSize": 18.0,
				"bold":     true,
			},
		})
		if sec.Body != "" {
			shapes = append(shapes, &board.Shape{
				ID:         board.NewShapeID(),
				Type:       board.ShapeText,
				X:          16,
				Y:          y + 48,
				Opacity:    1,
				OrderIndex: next(),
				Props: map[string]any{
					"text":     sec.Body,
					"fontSize": 14.0,
				},
			})
		}
		y += sectionHeight + sectionGap
	}

	if ig.SVG != "" {
		width, height := ig.Width, ig.Height
		if width == 0 {
			width = sectionWidth
		}
		if height == 0 {
			height = sectionHeight
		}
		shapes = append(shapes, &board.Shape{
			ID:         board.NewShapeID(),
			Type:       board.ShapeImage,
			X:          sectionWidth + sectionGap,
			Y:          0,
			Opacity:    1,
			OrderIndex: next(),
			Props: map[string]any{
				"width":  width,
				"height": height,
			},
			Meta: map[string]any{
				board.MetaAssetSVG:    ig.SVG,
				board.MetaAssetMime:   "image/svg+xml",
				board.MetaAssetWidth:  width,
				board.MetaAssetHeight: height,
			},
		})
	}
	return shapes
}
