package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/fileutil"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// LayoutVersion is the current layout file format version
const LayoutVersion = 1

const layoutFilePerm = 0o644

// Layout is a persisted snapshot of a store: render info plus placed fields
type Layout struct {
	Version int          `json:"version" yaml:"version"`
	Pages   []PageRender `json:"pages" yaml:"pages"`
	Fields  []Field      `json:"fields" yaml:"fields"`
}

// Validate checks every render and field and rejects duplicate ids or pages
func (l Layout) Validate() error {
	if l.Version > LayoutVersion {
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidLayout,
			"unsupported layout version", fmt.Sprintf("%d (max %d)", l.Version, LayoutVersion))
	}

	pages := make(map[int]bool, len(l.Pages))
	for _, p := range l.Pages {
		if err := p.Validate(); err != nil {
			return pdferrors.WrapError(pdferrors.ErrorTypeInvalidLayout, "invalid page render", err)
		}
		if pages[p.PageIndex] {
			return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidLayout, "duplicate page render").
				WithPage(p.PageIndex)
		}
		pages[p.PageIndex] = true
	}

	ids := make(map[string]bool, len(l.Fields))
	for _, f := range l.Fields {
		if err := f.Validate(); err != nil {
			return pdferrors.WrapError(pdferrors.ErrorTypeInvalidLayout, "invalid field", err)
		}
		if ids[f.ID] {
			return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidLayout, "duplicate field id").WithField(f.ID)
		}
		ids[f.ID] = true
	}
	return nil
}

// Renders returns the page renders keyed by page index
func (l Layout) Renders() map[int]PageRender {
	out := make(map[int]PageRender, len(l.Pages))
	for _, p := range l.Pages {
		out[p.PageIndex] = p
	}
	return out
}

// Marshal encodes the layout as JSON when format is "json", YAML otherwise
func (l Layout) Marshal(format string) ([]byte, error) {
	if l.Version == 0 {
		l.Version = LayoutVersion
	}
	if format == "json" {
		return json.MarshalIndent(l, "", "  ")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes and validates a layout. JSON is a subset of YAML, so
// the YAML decoder handles both unless format is "json".
func Unmarshal(data []byte, format string) (Layout, error) {
	var l Layout
	var err error
	if format == "json" {
		err = json.Unmarshal(data, &l)
	} else {
		err = yaml.Unmarshal(data, &l)
	}
	if err != nil {
		return Layout{}, pdferrors.WrapError(pdferrors.ErrorTypeInvalidLayout, "failed to decode layout", err)
	}
	if l.Version == 0 {
		l.Version = LayoutVersion
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// FormatForPath picks the encoding from a file extension
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "yaml"
}

// SaveFile writes the layout to path, choosing the format by extension
func SaveFile(path string, l Layout) error {
	data, err := l.Marshal(FormatForPath(path))
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, layoutFilePerm); err != nil {
		return fmt.Errorf("failed to write layout %s: %w", path, err)
	}
	return nil
}

// LoadFile reads and validates a layout file
func LoadFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Layout{}, pdferrors.NewPDFError(pdferrors.ErrorTypeResourceNotFound, "layout file does not exist").
				WithFile(path)
		}
		return Layout{}, fmt.Errorf("failed to read layout %s: %w", path, err)
	}
	return Unmarshal(data, FormatForPath(path))
}
