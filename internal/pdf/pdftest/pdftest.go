// Package pdftest builds small, valid PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Letter page size in points
const (
	LetterWidth  = 612.0
	LetterHeight = 792.0
)

// Page describes one page of a generated document
type Page struct {
	Width  float64
	Height float64
	// Lines are drawn top-down in Helvetica, one per line
	Lines []string
	// Annotated adds an existing text annotation through an indirect /Annots array
	Annotated bool
}

// Letter returns a US Letter page carrying the given text lines
func Letter(lines ...string) Page {
	return Page{Width: LetterWidth, Height: LetterHeight, Lines: lines}
}

// Build returns the bytes of a PDF with the given pages
func Build(pages ...Page) []byte {
	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("") // filled in once the page tree exists
	pagesObj := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		content := contentStream(p)
		contentObj := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

		annots := ""
		if p.Annotated {
			arr := add("[ << /Type /Annot /Subtype /Text /Rect [10 10 30 30] /Contents (note) >> ]")
			annots = fmt.Sprintf(" /Annots %d 0 R", arr)
		}

		pageObj := add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R%s >>",
			pagesObj, num(p.Width), num(p.Height), font, contentObj, annots))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))
	}

	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objects[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)

	return buf.Bytes()
}

// WriteFile builds a PDF and writes it into dir, returning its path
func WriteFile(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
	return path
}

// Malformed returns bytes that start like a PDF but cannot be parsed
func Malformed() []byte {
	return []byte("%PDF-1.4\nthis is not a pdf body\n%%EOF\n")
}

func contentStream(p Page) string {
	var sb strings.Builder
	y := p.Height - 72
	for _, line := range p.Lines {
		r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
		fmt.Fprintf(&sb, "BT /F1 12 Tf 72 %s Td (%s) Tj ET\n", num(y), r.Replace(line))
		y -= 18
	}
	if sb.Len() == 0 {
		sb.WriteString("% empty page\n")
	}
	return sb.String()
}

func num(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
