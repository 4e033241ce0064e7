package synth

import (
	"bytes"
	"log"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/inspect"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/pdftest"
)

func renderAt(scale float64, pages ...int) map[int]layout.PageRender {
	renders := make(map[int]layout.PageRender, len(pages))
	for _, p := range pages {
		renders[p] = layout.PageRender{
			PageIndex: p,
			Width:     pdftest.LetterWidth * scale,
			Height:    pdftest.LetterHeight * scale,
			Scale:     scale,
		}
	}
	return renders
}

func TestEngine_SynthesizeAllKinds(t *testing.T) {
	src := pdftest.Build(pdftest.Letter("Name:"), pdftest.Letter())
	fields := []layout.Field{
		{ID: "a", Kind: layout.KindText, PageIndex: 0, X: 100, Y: 50, Width: 120, Height: 30, Name: "fullName", Required: true},
		{ID: "b", Kind: layout.KindCheckbox, PageIndex: 1, X: 10, Y: 10, Width: 24, Height: 24, Name: "agree"},
		{ID: "c", Kind: layout.KindRadio, PageIndex: 1, X: 60, Y: 10, Width: 24, Height: 24, Required: true, Options: []string{"Blue", "Red"}},
	}

	res, err := NewEngine().Synthesize(src, fields, renderAt(1.5, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Fields, 3)

	text := res.Fields[0]
	assert.Equal(t, "fullName", text.Name)
	assert.True(t, text.Required)
	assert.InDelta(t, 66.6667, text.Rect.X, 1e-3)
	assert.InDelta(t, 738.6667, text.Rect.Y, 1e-3)
	assert.InDelta(t, 80, text.Rect.Width, 1e-9)
	assert.InDelta(t, 20, text.Rect.Height, 1e-9)

	radio := res.Fields[2]
	assert.Equal(t, "field_c", radio.Name)
	assert.False(t, radio.Required)

	found, err := inspect.FromBytes(res.PDF)
	require.NoError(t, err)
	require.Len(t, found, 3)

	assert.Equal(t, inspect.FieldTypeText, found[0].Type)
	assert.True(t, found[0].Required)
	assert.InDelta(t, 738.67, found[0].Rect.Y, 0.01)

	assert.Equal(t, inspect.FieldTypeCheckbox, found[1].Type)
	assert.Equal(t, 1, found[1].PageIndex)

	assert.Equal(t, inspect.FieldTypeRadio, found[2].Type)
	assert.Equal(t, "field_c", found[2].Name)
	assert.False(t, found[2].Required)
	assert.Equal(t, []string{"Blue"}, found[2].States)
}

func TestEngine_SkipsUnrenderedPages(t *testing.T) {
	src := pdftest.Build(pdftest.Letter(), pdftest.Letter())
	fields := []layout.Field{
		{ID: "1", Kind: layout.KindText, PageIndex: 0, X: 0, Y: 0, Width: 120, Height: 30, Name: "one"},
		{ID: "2", Kind: layout.KindCheckbox, PageIndex: 0, X: 0, Y: 50, Width: 24, Height: 24, Name: "two"},
		{ID: "3", Kind: layout.KindText, PageIndex: 1, X: 0, Y: 0, Width: 120, Height: 30, Name: "three"},
	}

	var logs bytes.Buffer
	engine := NewEngine(WithLogger(log.New(&logs, "", 0)))
	res, err := engine.Synthesize(src, fields, renderAt(1.5, 0))
	require.NoError(t, err)

	assert.Len(t, res.Fields, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, SkippedPage{PageIndex: 1, FieldIDs: []string{"3"}, Reason: pdferrors.ErrorTypeUnrenderedPageSkip}, res.Skipped[0])
	assert.Equal(t, 1, res.SkippedFieldCount())
	assert.Contains(t, logs.String(), "no render info")

	errs, warnings := res.Warnings().Count()
	assert.Equal(t, 0, errs)
	assert.Equal(t, 1, warnings)

	found, err := inspect.FromBytes(res.PDF)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestEngine_SkipsPagesBeyondDocument(t *testing.T) {
	src := pdftest.Build(pdftest.Letter())
	fields := []layout.Field{
		{ID: "x", Kind: layout.KindText, PageIndex: 4, Width: 120, Height: 30, Name: "ghost"},
	}

	res, err := NewEngine().Synthesize(src, fields, renderAt(1, 4))
	require.NoError(t, err)
	assert.Empty(t, res.Fields)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, pdferrors.ErrorTypePageOutOfRange, res.Skipped[0].Reason)
	assert.NotEmpty(t, res.PDF)
}

func TestEngine_MalformedSourceIsFatal(t *testing.T) {
	fields := []layout.Field{{ID: "1", Kind: layout.KindText, Width: 120, Height: 30}}

	res, err := NewEngine().Synthesize(pdftest.Malformed(), fields, renderAt(1.5, 0))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeMalformedSourceDocument))
}

func TestEngine_NoFieldsReturnsSourceUnchangedInContent(t *testing.T) {
	res, err := NewEngine().Synthesize(pdftest.Build(pdftest.Letter("hello")), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Fields)

	found, err := inspect.FromBytes(res.PDF)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestEngine_ReExportIsIdempotent(t *testing.T) {
	src := pdftest.Build(pdftest.Letter(), pdftest.Letter())
	fields := []layout.Field{
		{ID: "1", Kind: layout.KindText, PageIndex: 0, X: 15, Y: 25, Width: 120, Height: 30, Name: "a", Description: "first"},
		{ID: "2", Kind: layout.KindRadio, PageIndex: 1, X: 40, Y: 80, Width: 24, Height: 24, Name: "b"},
	}
	renders := renderAt(2, 0, 1)

	first, err := NewEngine().Synthesize(src, fields, renders)
	require.NoError(t, err)
	second, err := NewEngine().Synthesize(src, fields, renders)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Fields, second.Fields); diff != "" {
		t.Errorf("synthesized fields differ between runs (-first +second):\n%s", diff)
	}

	a, err := inspect.FromBytes(first.PDF)
	require.NoError(t, err)
	b, err := inspect.FromBytes(second.PDF)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("exported documents differ (-first +second):\n%s", diff)
	}
}

func TestEngine_RejectsUnusableScale(t *testing.T) {
	src := pdftest.Build(pdftest.Letter())
	fields := []layout.Field{{ID: "1", Kind: layout.KindText, Width: 120, Height: 30}}

	for _, scale := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		renders := map[int]layout.PageRender{0: {PageIndex: 0, Width: 10, Height: 10, Scale: scale}}
		res, err := NewEngine().Synthesize(src, fields, renders)
		assert.Nil(t, res, "scale %v", scale)
		assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidField), "scale %v: %v", scale, err)
	}
}

func TestEngine_ToleratesUndeclaredPageResources(t *testing.T) {
	// content names a font the page's resources do not declare; viewers draw it
	// with a fallback and the page geometry is intact
	src := pdftest.Build(pdftest.Letter("hello"))
	src = bytes.Replace(src, []byte("/F1 12 Tf"), []byte("/F2 12 Tf"), 1)
	fields := []layout.Field{
		{ID: "a", Kind: layout.KindText, PageIndex: 0, X: 100, Y: 50, Width: 120, Height: 30, Name: "fullName"},
	}

	res, err := NewEngine().Synthesize(src, fields, renderAt(1.5, 0))
	require.NoError(t, err)
	require.Len(t, res.Fields, 1)
	assert.InDelta(t, 738.6667, res.Fields[0].Rect.Y, 1e-3)

	found, err := inspect.FromBytes(res.PDF)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "fullName", found[0].Name)
}

func TestResult_Warnings(t *testing.T) {
	res := &Result{Skipped: []SkippedPage{
		{PageIndex: 1, FieldIDs: []string{"a", "b"}, Reason: pdferrors.ErrorTypeUnrenderedPageSkip},
		{PageIndex: 6, FieldIDs: []string{"c"}, Reason: pdferrors.ErrorTypePageOutOfRange},
	}}

	w := res.Warnings()
	assert.Equal(t, "Found 0 error(s) and 2 warning(s)", w.Summary())
	require.Len(t, w.Warnings, 2)
	assert.Equal(t, 2, w.Warnings[0].PageNumber)
	assert.Contains(t, w.Warnings[1].Error(), "[PAGE_OUT_OF_RANGE] page is beyond the end of the document")
	assert.Equal(t, "No errors or warnings", (&Result{}).Warnings().Summary())
}

func TestFieldName(t *testing.T) {
	assert.Equal(t, "given", FieldName(layout.Field{ID: "x", Name: "given"}))
	assert.Equal(t, "field_x", FieldName(layout.Field{ID: "x"}))
}
