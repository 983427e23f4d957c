package board

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrMissingID   = errors.New("shape id missing")
	ErrMissingType = errors.New("shape type missing")
)

// Validator: validation and sanitization of shapes before insertion.
type Validator struct {
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
}

func NewValidator() *Validator {
	// removes all HTML/scripts from string fields
	policy := bluemonday.StrictPolicy()

	return &Validator{
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		sanitizer: policy,
	}
}

// ValidateShape checks required fields, validates props against the
// type's schema, and returns a sanitized copy. The input is not mutated.
func (v *Validator) ValidateShape(s *Shape) (*Shape, error) {
	if s == nil || s.ID == "" {
		return nil, ErrMissingID
	}
	if s.Type == "" {
		return nil, ErrMissingType
	}
	if !s.Type.Visible() {
		return nil, fmt.Errorf("invalid shape type: %s", s.Type)
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		return nil, fmt.Errorf("opacity out of range: %v", s.Opacity)
	}

	if err := v.validateProps(s.Type, s.Props); err != nil {
		return nil, err
	}

	out := s.Clone()
	out.ID = v.sanitizer.Sanitize(out.ID)
	out.ParentID = v.sanitizer.Sanitize(out.ParentID)
	out.Props = v.sanitizeMap(out.Props)
	out.Meta = v.sanitizeMap(out.Meta)
	return out, nil
}

// ValidatePatch validates and sanitizes a partial update for a shape of
// a known type.
func (v *Validator) ValidatePatch(t ShapeType, p *Patch) (*Patch, error) {
	if p == nil {
		return nil, errors.New("empty patch")
	}
	if p.Opacity != nil && (*p.Opacity < 0 || *p.Opacity > 1) {
		return nil, fmt.Errorf("opacity out of range: %v", *p.Opacity)
	}
	if p.Props != nil {
		if err := v.validateProps(t, p.Props); err != nil {
			return nil, err
		}
	}

	out := *p
	out.Props = v.sanitizeMap(p.Props)
	out.Meta = v.sanitizeMap(p.Meta)
	return &out, nil
}

// validateProps checks a props map against the typed schema for the type.
func (v *Validator) validateProps(t ShapeType, props map[string]any) error {
	if len(props) == 0 {
		return nil
	}
	schema := schemaForType(t)
	if schema == nil {
		return fmt.Errorf("no schema for shape type: %s", t)
	}
	if err := mapToStruct(props, schema); err != nil {
		return fmt.Errorf("parse props: %w", err)
	}
	if err := v.validate.Struct(schema); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// mapToStruct: converts a map to a typed struct using JSON round-trip
func mapToStruct(data map[string]any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal props: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal props: %w", err)
	}
	return nil
}

// sanitizeMap recursively sanitizes all string values in a map. Asset
// payload keys are exempt: inline SVG markup and base64 data are consumed
// by the asset pipeline, never rendered as HTML.
func (v *Validator) sanitizeMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	result := make(map[string]any, len(data))
	for key, value := range data {
		if key == MetaAssetSVG || key == MetaAssetData {
			result[key] = value
			continue
		}
		result[key] = v.sanitizeValue(value)
	}
	return result
}

func (v *Validator) sanitizeValue(value any) any {
	switch val := value.(type) {
	case string:
		return v.sanitizer.Sanitize(val)
	case map[string]any:
		return v.sanitizeMap(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = v.sanitizeValue(item)
		}
		return result
	default:
		return value
	}
}

// formatValidationErrors converts validator errors to a short message
func formatValidationErrors(errs validator.ValidationErrors) error {
	first := errs[0]
	switch first.Tag() {
	case "required":
		return fmt.Errorf("validation failed: '%s' is required", first.Field())
	case "min", "max":
		return fmt.Errorf("validation failed: '%s' value out of allowed range", first.Field())
	default:
		return fmt.Errorf("validation failed: '%s' is invalid", first.Field())
	}
}
