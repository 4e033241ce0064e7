// Package inspect reads interactive form fields back out of a PDF.
package inspect

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/document"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// FieldType is the kind of an AcroForm field as found in a document
type FieldType string

const (
	FieldTypeText      FieldType = "Text"
	FieldTypeCheckbox  FieldType = "Checkbox"
	FieldTypeRadio     FieldType = "Radio"
	FieldTypeButton    FieldType = "Button"
	FieldTypeChoice    FieldType = "Choice"
	FieldTypeSignature FieldType = "Signature"
	FieldTypeUnknown   FieldType = "Unknown"
)

// Field is one terminal form field
type Field struct {
	Name      string        `json:"name"`
	Type      FieldType     `json:"type"`
	PageIndex int           `json:"page_index"`
	Rect      document.Rect `json:"rect"`
	Required  bool          `json:"required"`
	ReadOnly  bool          `json:"read_only"`
	// States lists the on-state appearance names of checkbox and radio widgets
	States  []string `json:"states,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
}

// Extractor reads form fields using pdfcpu
type Extractor struct {
	logger *log.Logger
	pages  map[int]int // page object number -> zero-based page index
}

// NewExtractor creates an extractor; a nil logger discards diagnostics
func NewExtractor(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Extractor{logger: logger}
}

// FromBytes extracts every terminal field of a PDF held in memory
func FromBytes(b []byte) ([]Field, error) {
	return NewExtractor(nil).ExtractFromReader(bytes.NewReader(b))
}

// ExtractFromReader extracts forms from an io.ReadSeeker
func (fe *Extractor) ExtractFromReader(reader io.ReadSeeker) ([]Field, error) {
	ctx, err := api.ReadContext(reader, document.NewConfiguration())
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to read PDF context", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to ensure page count", err)
	}

	return fe.extractFromContext(ctx)
}

func (fe *Extractor) extractFromContext(ctx *model.Context) ([]Field, error) {
	var fields []Field

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return fields, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return fields, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return fields, nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	fe.indexPages(ctx)

	for i, fieldRef := range fieldsArray {
		if err := fe.walkField(ctx, fieldRef, "", &fields); err != nil {
			fe.logger.Printf("skipping field %d: %v", i, err)
		}
	}

	return fields, nil
}

func (fe *Extractor) indexPages(ctx *model.Context) {
	fe.pages = make(map[int]int, ctx.PageCount)
	for p := 1; p <= ctx.PageCount; p++ {
		_, ref, _, err := ctx.PageDict(p, false)
		if err != nil || ref == nil {
			continue
		}
		fe.pages[ref.ObjectNumber.Value()] = p - 1
	}
}

// walkField descends the field hierarchy, emitting terminal fields. Radio
// groups are terminal even though their widgets are kids.
func (fe *Extractor) walkField(ctx *model.Context, fieldObj types.Object, parentName string, out *[]Field) error {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil {
		return fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil
	}

	name := parentName
	if nameObj, found := fieldDict.Find("T"); found {
		if partial, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
			if name != "" {
				name += "."
			}
			name += partial
		}
	}

	fieldType := fe.fieldType(ctx, fieldDict)

	var kids types.Array
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kids, err = ctx.DereferenceArray(kidsObj); err != nil {
			return fmt.Errorf("failed to dereference Kids: %w", err)
		}
	}

	if len(kids) > 0 && fieldType != FieldTypeRadio && fe.hasFieldKids(ctx, kids) {
		for _, kid := range kids {
			if err := fe.walkField(ctx, kid, name, out); err != nil {
				fe.logger.Printf("skipping kid of %s: %v", name, err)
			}
		}
		return nil
	}

	field := Field{Name: name, Type: fieldType}
	flags := fe.flags(ctx, fieldDict)
	field.ReadOnly = flags&document.FlagReadOnly != 0
	field.Required = flags&document.FlagRequired != 0

	if tuObj, found := fieldDict.Find("TU"); found {
		if tu, err := ctx.DereferenceStringOrHexLiteral(tuObj, model.V10, nil); err == nil {
			field.Tooltip = tu
		}
	}

	widget := fieldDict
	if len(kids) > 0 {
		if w, err := ctx.DereferenceDict(kids[0]); err == nil && w != nil {
			widget = w
		}
		for _, kid := range kids {
			if w, err := ctx.DereferenceDict(kid); err == nil && w != nil {
				field.States = append(field.States, fe.onStates(ctx, w)...)
			}
		}
	} else if fieldType == FieldTypeCheckbox {
		field.States = fe.onStates(ctx, fieldDict)
	}

	field.Rect = fe.rect(ctx, widget)
	field.PageIndex = fe.pageIndex(ctx, widget)

	*out = append(*out, field)
	return nil
}

// hasFieldKids distinguishes child fields (which carry /T) from pure widgets
func (fe *Extractor) hasFieldKids(ctx *model.Context, kids types.Array) bool {
	for _, kid := range kids {
		d, err := ctx.DereferenceDict(kid)
		if err != nil || d == nil {
			continue
		}
		if _, found := d.Find("T"); found {
			return true
		}
	}
	return false
}

func (fe *Extractor) flags(ctx *model.Context, fieldDict types.Dict) int {
	flagsObj, found := fieldDict.Find("Ff")
	if !found {
		return 0
	}
	flags, err := ctx.DereferenceInteger(flagsObj)
	if err != nil || flags == nil {
		return 0
	}
	return flags.Value()
}

// fieldType determines the field type from the FT entry, inheriting from parents
func (fe *Extractor) fieldType(ctx *model.Context, fieldDict types.Dict) FieldType {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fe.fieldType(ctx, parentDict)
			}
		}
		return FieldTypeUnknown
	}

	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return FieldTypeUnknown
	}

	switch ftName {
	case "Btn":
		flags := fe.flags(ctx, fieldDict)
		switch {
		case flags&document.FlagRadio != 0:
			return FieldTypeRadio
		case flags&document.FlagPushbutton != 0:
			return FieldTypeButton
		}
		return FieldTypeCheckbox
	case "Tx":
		return FieldTypeText
	case "Ch":
		return FieldTypeChoice
	case "Sig":
		return FieldTypeSignature
	default:
		return FieldTypeUnknown
	}
}

func (fe *Extractor) onStates(ctx *model.Context, widget types.Dict) []string {
	apObj, found := widget.Find("AP")
	if !found {
		return nil
	}
	ap, err := ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return nil
	}
	nObj, found := ap.Find("N")
	if !found {
		return nil
	}
	n, err := ctx.DereferenceDict(nObj)
	if err != nil || n == nil {
		return nil
	}
	var states []string
	for k := range n {
		if k != "Off" {
			states = append(states, k)
		}
	}
	return states
}

func (fe *Extractor) rect(ctx *model.Context, widget types.Dict) document.Rect {
	rectObj, found := widget.Find("Rect")
	if !found {
		return document.Rect{}
	}
	rectArray, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return document.Rect{}
	}

	coords := make([]float64, 4)
	for i, coord := range rectArray {
		if f, err := ctx.DereferenceNumber(coord); err == nil {
			coords[i] = f
		}
	}

	llx, urx := minMax(coords[0], coords[2])
	lly, ury := minMax(coords[1], coords[3])
	return document.Rect{X: llx, Y: lly, Width: urx - llx, Height: ury - lly}
}

// pageIndex resolves the widget's page from /P, falling back to a scan of
// every page's /Annots. Returns -1 when the widget is on no page.
func (fe *Extractor) pageIndex(ctx *model.Context, widget types.Dict) int {
	if pObj, found := widget.Find("P"); found {
		if ref, ok := pObj.(types.IndirectRef); ok {
			if idx, ok := fe.pages[ref.ObjectNumber.Value()]; ok {
				return idx
			}
		}
	}

	for p := 1; p <= ctx.PageCount; p++ {
		pageDict, _, _, err := ctx.PageDict(p, false)
		if err != nil || pageDict == nil {
			continue
		}
		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}
		for _, a := range annots {
			d, err := ctx.DereferenceDict(a)
			if err == nil && sameDict(d, widget) {
				return p - 1
			}
		}
	}
	return -1
}

func sameDict(a, b types.Dict) bool {
	if a == nil || b == nil || len(a) != len(b) {
		return false
	}
	ra, okA := a.Find("Rect")
	rb, okB := b.Find("Rect")
	return okA && okB && ra.String() == rb.String() && a.String() == b.String()
}

func minMax(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}
