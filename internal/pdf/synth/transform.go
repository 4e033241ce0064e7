package synth

import (
	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/document"
)

// Rect is a field rectangle in PDF point space (origin bottom-left, y up)
type Rect = document.Rect

// Transform maps a field's render-space geometry (pixels, origin top-left,
// y down, scaled by scale) to PDF point space on a page of height pageHeight.
// The vertical flip uses the field's bottom edge so its top edge lands at
// pageHeight - y/scale.
func Transform(f layout.Field, scale, pageHeight float64) Rect {
	pdfWidth := f.Width / scale
	pdfHeight := f.Height / scale
	pdfX := f.X / scale
	unscaledY := f.Y / scale
	pdfY := pageHeight - unscaledY - pdfHeight

	return Rect{X: pdfX, Y: pdfY, Width: pdfWidth, Height: pdfHeight}
}
