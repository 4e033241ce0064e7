// Package synth turns placed fields into interactive PDF form fields.
package synth

import (
	"fmt"
	"io"
	"log"
	"math"
	"sort"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/document"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// SynthesizedField describes one form field written to the output document
type SynthesizedField struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Kind      layout.FieldKind `json:"kind"`
	PageIndex int              `json:"page_index"`
	Rect      Rect             `json:"rect"`
	Required  bool             `json:"required"`
}

// SkippedPage records a page whose fields were left out of the export
type SkippedPage struct {
	PageIndex int                 `json:"page_index"`
	FieldIDs  []string            `json:"field_ids"`
	Reason    pdferrors.ErrorType `json:"reason"`
}

// Result is the outcome of one synthesis run
type Result struct {
	PDF     []byte             `json:"-"`
	Fields  []SynthesizedField `json:"fields"`
	Skipped []SkippedPage      `json:"skipped,omitempty"`
}

// SkippedFieldCount returns how many placed fields were dropped
func (r *Result) SkippedFieldCount() int {
	n := 0
	for _, s := range r.Skipped {
		n += len(s.FieldIDs)
	}
	return n
}

// Warnings reports the skip conditions as a collection of non-fatal errors
func (r *Result) Warnings() *pdferrors.ErrorCollection {
	ec := pdferrors.NewErrorCollection("")
	for _, s := range r.Skipped {
		msg := "page has no render info; fields skipped"
		if s.Reason == pdferrors.ErrorTypePageOutOfRange {
			msg = "page is beyond the end of the document; fields skipped"
		}
		ec.Add(pdferrors.NewPDFErrorWithContext(s.Reason, msg, fmt.Sprintf("%d field(s)", len(s.FieldIDs))).
			WithPage(s.PageIndex + 1))
	}
	return ec
}

// Engine synthesizes form fields. It holds no per-run state, so one Engine
// may be reused, but runs are not meant to overlap on the same inputs.
type Engine struct {
	logger *log.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger routes skip notices to logger
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a synthesis engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FieldName returns the exported name for a placed field
func FieldName(f layout.Field) string {
	if f.Name != "" {
		return f.Name
	}
	return "field_" + f.ID
}

// Synthesize parses src, attaches one form field per eligible placed field and
// returns the new document. Pages without render info, or beyond the end of the
// document, are skipped; a source that cannot be parsed fails the whole run.
func (e *Engine) Synthesize(src []byte, fields []layout.Field, renders map[int]layout.PageRender) (*Result, error) {
	doc, err := document.Open(src)
	if err != nil {
		return nil, err
	}

	byPage := make(map[int][]layout.Field)
	for _, f := range fields {
		byPage[f.PageIndex] = append(byPage[f.PageIndex], f)
	}
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	result := &Result{}
	for _, pageIndex := range pages {
		pageFields := byPage[pageIndex]

		if perr := checkPage(doc, pageIndex, renders); perr != nil {
			if !perr.Type.IsRecoverable() {
				return nil, perr
			}
			e.logger.Printf("page %d %s, skipping %d field(s)", pageIndex+1, perr.Message, len(pageFields))
			result.Skipped = append(result.Skipped, skipped(pageIndex, pageFields, perr.Type))
			continue
		}
		render := renders[pageIndex]

		size, err := doc.PageSize(pageIndex)
		if err != nil {
			return nil, err
		}

		for _, f := range pageFields {
			sf, err := e.synthesizeField(doc, f, render.Scale, size.Height)
			if err != nil {
				return nil, err
			}
			result.Fields = append(result.Fields, sf)
		}
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	result.PDF = out
	return result, nil
}

func (e *Engine) synthesizeField(doc *document.Document, f layout.Field, scale, pageHeight float64) (SynthesizedField, error) {
	rect := Transform(f, scale, pageHeight)
	name := FieldName(f)
	fs := document.FieldSpec{
		Name:     name,
		Tooltip:  f.Description,
		Rect:     rect,
		Required: f.Required,
	}

	var err error
	switch f.Kind {
	case layout.KindText:
		err = doc.AddTextField(f.PageIndex, fs)
	case layout.KindCheckbox:
		err = doc.AddCheckBox(f.PageIndex, fs)
	case layout.KindRadio:
		// Radios are single-option groups and never carry the required flag.
		fs.Required = false
		onState := ""
		if len(f.Options) > 0 {
			onState = f.Options[0]
		}
		err = doc.AddRadioGroup(f.PageIndex, fs, onState)
	default:
		err = pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidField,
			"unsupported field kind", string(f.Kind)).WithField(f.ID)
	}
	if err != nil {
		return SynthesizedField{}, fmt.Errorf("failed to synthesize field %s: %w", f.ID, err)
	}

	return SynthesizedField{
		ID:        f.ID,
		Name:      name,
		Kind:      f.Kind,
		PageIndex: f.PageIndex,
		Rect:      rect,
		Required:  fs.Required,
	}, nil
}

// checkPage decides whether a page's fields can be placed. Recoverable
// errors skip the page; anything else aborts the run.
func checkPage(doc *document.Document, pageIndex int, renders map[int]layout.PageRender) *pdferrors.PDFError {
	render, ok := renders[pageIndex]
	if !ok {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeUnrenderedPageSkip, "has no render info").
			WithPage(pageIndex + 1)
	}
	if pageIndex >= doc.PageCount() {
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypePageOutOfRange, "is beyond the end of the document",
			fmt.Sprintf("document has %d page(s)", doc.PageCount())).WithPage(pageIndex + 1)
	}
	if !(render.Scale > 0) || math.IsInf(render.Scale, 0) {
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidField,
			"invalid render scale", fmt.Sprintf("%v", render.Scale)).WithPage(pageIndex + 1)
	}
	return nil
}

func skipped(pageIndex int, fields []layout.Field, reason pdferrors.ErrorType) SkippedPage {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return SkippedPage{PageIndex: pageIndex, FieldIDs: ids, Reason: reason}
}
