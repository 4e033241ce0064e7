package pdf

import (
	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/document"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/inspect"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/synth"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/suggest"
)

// Scale limits for page rendering
const (
	MinScale     = 0.5
	MaxScale     = 3.0
	DefaultScale = 1.5
)

// OpenResult describes the document that was opened
type OpenResult struct {
	Path        string          `json:"path"`
	Size        int64           `json:"size"`
	Pages       int             `json:"pages"`
	PageSizes   []document.Size `json:"page_sizes"`
	Encrypted   bool            `json:"encrypted"`
	Permissions string          `json:"permissions"`
	// ExistingFields counts form fields already present in the source
	ExistingFields int `json:"existing_fields"`
}

// RenderResult is the render metadata recorded for a page
type RenderResult struct {
	layout.PageRender
	// FieldsOnPage counts fields that were placed before this render and keep their pixel geometry
	FieldsOnPage int `json:"fields_on_page"`
}

// ExportResult reports the outcome of an export
type ExportResult struct {
	OutputPath    string                   `json:"output_path"`
	Size          int                      `json:"size"`
	Fields        []synth.SynthesizedField `json:"fields"`
	Skipped       []synth.SkippedPage      `json:"skipped,omitempty"`
	SkippedFields int                      `json:"skipped_fields"`
	Summary       string                   `json:"summary"`
}

// InspectResult lists the form fields of a PDF on disk
type InspectResult struct {
	Path   string          `json:"path"`
	Fields []inspect.Field `json:"fields"`
}

// SuggestResult holds advisory field suggestions for one page
type SuggestResult struct {
	PageIndex   int                  `json:"page_index"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// LayoutResult describes a saved or loaded layout file
type LayoutResult struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Pages  int    `json:"pages"`
	Fields int    `json:"fields"`
}

// ToolInfo describes one tool for the server info listing
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName       string     `json:"server_name"`
	Version          string     `json:"version"`
	DefaultDirectory string     `json:"default_directory"`
	MaxFileSize      int64      `json:"max_file_size"`
	DefaultScale     float64    `json:"default_scale"`
	OpenDocument     string     `json:"open_document,omitempty"`
	PlacedFields     int        `json:"placed_fields"`
	RenderedPages    []int      `json:"rendered_pages"`
	WorkspaceFiles   []FileInfo `json:"workspace_files"`
	Truncated        bool       `json:"workspace_truncated,omitempty"`
	AvailableTools   []ToolInfo `json:"available_tools"`
	FieldKinds       []string   `json:"field_kinds"`
	UsageGuidance    string     `json:"usage_guidance"`
}
