// Package document wraps a pdfcpu context with the small set of operations
// form synthesis needs: page geometry, form-field creation and write-back.
package document

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/security"
)

// Size is a width and height pair
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in PDF point space, anchored at its
// lower-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// UpperRight returns the upper-right corner
func (r Rect) UpperRight() (x, y float64) {
	return r.X + r.Width, r.Y + r.Height
}

// Array returns the rectangle as a PDF [llx lly urx ury] array
func (r Rect) Array() types.Array {
	urx, ury := r.UpperRight()
	return types.Array{types.Float(r.X), types.Float(r.Y), types.Float(urx), types.Float(ury)}
}

// Document is a parsed PDF open for form-field synthesis
type Document struct {
	ctx       *model.Context
	acroForm  types.Dict
	newFields types.Array
}

// NewConfiguration returns the pdfcpu configuration used for every read
func NewConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open parses PDF bytes. Any parse failure is reported as a malformed source document.
func Open(b []byte) (*Document, error) {
	if len(b) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeMalformedSourceDocument, "document is empty")
	}

	ctx, err := api.ReadContext(bytes.NewReader(b), NewConfiguration())
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to read PDF context", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to ensure page count", err)
	}

	return &Document{ctx: ctx}, nil
}

// Context exposes the underlying pdfcpu context
func (d *Document) Context() *model.Context {
	return d.ctx
}

// Encrypted reports whether the source carried an encryption dictionary
func (d *Document) Encrypted() bool {
	return d.ctx.Encrypt != nil && d.ctx.E != nil
}

// Permissions returns the document's access flags; unencrypted documents are unrestricted
func (d *Document) Permissions() security.Permissions {
	if !d.Encrypted() {
		return security.NewFullPermissions()
	}
	return security.NewPermissions(int32(d.ctx.E.P))
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// PageSize returns the MediaBox size of a zero-based page
func (d *Document) PageSize(pageIndex int) (Size, error) {
	_, _, inh, err := d.pageDict(pageIndex)
	if err != nil {
		return Size{}, err
	}
	if inh == nil || inh.MediaBox == nil {
		return Size{}, pdferrors.NewPDFError(pdferrors.ErrorTypeMalformedSourceDocument, "page has no MediaBox").
			WithPage(pageIndex + 1)
	}
	return Size{Width: inh.MediaBox.Width(), Height: inh.MediaBox.Height()}, nil
}

// Viewport returns the pixel size a page rasterizer reports when it renders
// the page at the given scale.
func (d *Document) Viewport(pageIndex int, scale float64) (Size, error) {
	if scale <= 0 {
		return Size{}, fmt.Errorf("scale must be positive, got %v", scale)
	}
	size, err := d.PageSize(pageIndex)
	if err != nil {
		return Size{}, err
	}
	return Size{Width: size.Width * scale, Height: size.Height * scale}, nil
}

// PageSizes returns the MediaBox size of every page
func (d *Document) PageSizes() ([]Size, error) {
	sizes := make([]Size, 0, d.PageCount())
	for i := 0; i < d.PageCount(); i++ {
		s, err := d.PageSize(i)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}
	return sizes, nil
}

// Bytes serializes the document, including any fields added since Open
func (d *Document) Bytes() ([]byte, error) {
	if d.acroForm != nil && len(d.newFields) > 0 {
		fields, err := d.existingFields()
		if err != nil {
			return nil, err
		}
		d.acroForm["Fields"] = append(fields, d.newFields...)
		d.newFields = nil
	}

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) pageDict(pageIndex int) (types.Dict, *types.IndirectRef, *model.InheritedPageAttrs, error) {
	if pageIndex < 0 || pageIndex >= d.ctx.PageCount {
		return nil, nil, nil, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypePageOutOfRange,
			"page index out of range", fmt.Sprintf("%d (document has %d pages)", pageIndex, d.ctx.PageCount)).
			WithPage(pageIndex + 1)
	}

	pageDict, pageRef, inh, err := d.ctx.PageDict(pageIndex+1, false)
	if err != nil {
		return nil, nil, nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument,
			"failed to read page dictionary", err).WithPage(pageIndex + 1)
	}
	if pageDict == nil || pageRef == nil {
		return nil, nil, nil, pdferrors.NewPDFError(pdferrors.ErrorTypeMalformedSourceDocument,
			"page dictionary missing").WithPage(pageIndex + 1)
	}
	return pageDict, pageRef, inh, nil
}

func (d *Document) existingFields() (types.Array, error) {
	obj, found := d.acroForm.Find("Fields")
	if !found || obj == nil {
		return types.Array{}, nil
	}
	arr, err := d.ctx.DereferenceArray(obj)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to dereference Fields array", err)
	}
	out := make(types.Array, len(arr))
	copy(out, arr)
	return out, nil
}
