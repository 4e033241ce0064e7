package layout

import (
	"fmt"
	"math"
	"strings"
)

// MinFieldSize is the smallest width or height, in render-space pixels, a field may have
const MinFieldSize = 20.0

// Default field sizes in render-space pixels, by kind
const (
	DefaultTextWidth  = 120.0
	DefaultTextHeight = 30.0
	DefaultToggleSize = 24.0
)

// FieldKind is the category of form widget a placed field becomes on export
type FieldKind string

const (
	KindText     FieldKind = "Text"
	KindCheckbox FieldKind = "Checkbox"
	KindRadio    FieldKind = "Radio"
)

// Kinds lists every supported field kind in display order
var Kinds = []FieldKind{KindText, KindCheckbox, KindRadio}

// ParseKind resolves a kind name case-insensitively
func ParseKind(s string) (FieldKind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown field kind %q (must be one of: Text, Checkbox, Radio)", s)
}

// Valid reports whether k is a supported kind
func (k FieldKind) Valid() bool {
	switch k {
	case KindText, KindCheckbox, KindRadio:
		return true
	default:
		return false
	}
}

// DefaultSize returns the size a freshly placed field of this kind gets
func (k FieldKind) DefaultSize() (width, height float64) {
	switch k {
	case KindCheckbox, KindRadio:
		return DefaultToggleSize, DefaultToggleSize
	default:
		return DefaultTextWidth, DefaultTextHeight
	}
}

// Field is one user-placed form field. Geometry is in render-space pixels,
// relative to the top-left corner of the rendered page.
type Field struct {
	ID          string    `json:"id" yaml:"id"`
	Kind        FieldKind `json:"kind" yaml:"kind"`
	PageIndex   int       `json:"page_index" yaml:"page_index"`
	X           float64   `json:"x" yaml:"x"`
	Y           float64   `json:"y" yaml:"y"`
	Width       float64   `json:"width" yaml:"width"`
	Height      float64   `json:"height" yaml:"height"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required" yaml:"required"`
	Options     []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

// Validate checks the invariants a field must hold to be stored
func (f Field) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("field id cannot be empty")
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("field %s: unknown kind %q", f.ID, f.Kind)
	}
	if f.PageIndex < 0 {
		return fmt.Errorf("field %s: page index must not be negative", f.ID)
	}
	if !finite(f.X, f.Y, f.Width, f.Height) {
		return fmt.Errorf("field %s: geometry must be finite numbers", f.ID)
	}
	if !(f.Width >= MinFieldSize) || !(f.Height >= MinFieldSize) {
		return fmt.Errorf("field %s: size %.1fx%.1f below minimum %.0f", f.ID, f.Width, f.Height, MinFieldSize)
	}
	return nil
}

func (f Field) clone() Field {
	if f.Options != nil {
		f.Options = append([]string(nil), f.Options...)
	}
	return f
}

// PageRender records how a page was rendered: its pixel size and the
// pixels-per-point scale used to produce it.
type PageRender struct {
	PageIndex int     `json:"page_index" yaml:"page_index"`
	Width     float64 `json:"width" yaml:"width"`
	Height    float64 `json:"height" yaml:"height"`
	Scale     float64 `json:"scale" yaml:"scale"`
}

// Validate checks that the render can be used for coordinate transforms
func (p PageRender) Validate() error {
	if p.PageIndex < 0 {
		return fmt.Errorf("page index must not be negative")
	}
	if !finite(p.Width, p.Height, p.Scale) {
		return fmt.Errorf("page %d: render size and scale must be finite numbers", p.PageIndex)
	}
	if !(p.Scale > 0) {
		return fmt.Errorf("page %d: scale must be positive", p.PageIndex)
	}
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("page %d: render size must not be negative", p.PageIndex)
	}
	return nil
}

// FieldUpdate is a partial change to the mutable attributes of a field.
// Nil members are left untouched.
type FieldUpdate struct {
	X           *float64
	Y           *float64
	Width       *float64
	Height      *float64
	Name        *string
	Description *string
	Required    *bool
	Options     []string
}

// IsEmpty reports whether the update changes nothing
func (u FieldUpdate) IsEmpty() bool {
	return u.X == nil && u.Y == nil && u.Width == nil && u.Height == nil &&
		u.Name == nil && u.Description == nil && u.Required == nil && u.Options == nil
}

func clampSize(v float64) float64 {
	if !(v >= MinFieldSize) {
		return MinFieldSize
	}
	return v
}

// finite reports whether every value is neither NaN nor infinite
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
