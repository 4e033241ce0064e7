package inspect

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/document"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/pdftest"
)

func TestFromBytes_NoForm(t *testing.T) {
	fields, err := FromBytes(pdftest.Build(pdftest.Letter("plain page")))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFromBytes_Malformed(t *testing.T) {
	_, err := FromBytes(pdftest.Malformed())
	require.Error(t, err)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeMalformedSourceDocument))
}

func TestExtractor_FieldOrderAndPages(t *testing.T) {
	doc, err := document.Open(pdftest.Build(pdftest.Letter(), pdftest.Letter(), pdftest.Letter()))
	require.NoError(t, err)
	for i, name := range []string{"p3", "p1", "p2"} {
		page := []int{2, 0, 1}[i]
		require.NoError(t, doc.AddTextField(page, document.FieldSpec{
			Name: name,
			Rect: document.Rect{X: 10, Y: 10, Width: 50, Height: 15},
		}))
	}
	out, err := doc.Bytes()
	require.NoError(t, err)

	var logs bytes.Buffer
	fields, err := NewExtractor(log.New(&logs, "", 0)).ExtractFromReader(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, fields, 3)

	assert.Equal(t, "p3", fields[0].Name)
	assert.Equal(t, 2, fields[0].PageIndex)
	assert.Equal(t, "p1", fields[1].Name)
	assert.Equal(t, 0, fields[1].PageIndex)
	assert.Equal(t, "p2", fields[2].Name)
	assert.Equal(t, 1, fields[2].PageIndex)
	assert.Empty(t, logs.String())
}

func TestMinMax(t *testing.T) {
	lo, hi := minMax(5, 2)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 5.0, hi)
}
