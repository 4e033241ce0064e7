package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/inspect"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/pdftest"
)

func writeLayout(t *testing.T, path string) {
	t.Helper()
	l := layout.Layout{
		Version: layout.LayoutVersion,
		Pages:   []layout.PageRender{{PageIndex: 0, Width: 918, Height: 1188, Scale: 1.5}},
		Fields: []layout.Field{
			{ID: "a", Kind: layout.KindText, PageIndex: 0, X: 100, Y: 50, Width: 120, Height: 30, Name: "fullName", Required: true},
			{ID: "b", Kind: layout.KindCheckbox, PageIndex: 1, X: 10, Y: 10, Width: 24, Height: 24, Name: "agree"},
		},
	}
	require.NoError(t, layout.SaveFile(path, l))
}

func TestRun_DefaultPaths(t *testing.T) {
	dir := t.TempDir()
	input := pdftest.WriteFile(t, dir, "intake.pdf", pdftest.Letter(), pdftest.Letter())
	writeLayout(t, filepath.Join(dir, "intake.layout.yaml"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--verbose", input}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Contains(t, stdout.String(), "Wrote 1 field(s) to "+filepath.Join(dir, "intake-interactive.pdf"))
	assert.Contains(t, stdout.String(), "Rect: (66.67, 738.67) 80.00 x 20.00 pt")
	assert.Contains(t, stdout.String(), "Skipped 1 field(s), Found 0 error(s) and 1 warning(s)")
	assert.Contains(t, stdout.String(), "page 1: 1 field(s), UNRENDERED_PAGE_SKIP")
	assert.Contains(t, stderr.String(), "no render info")

	data, err := os.ReadFile(filepath.Join(dir, "intake-interactive.pdf"))
	require.NoError(t, err)
	fields, err := inspect.FromBytes(data)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "fullName", fields[0].Name)
	assert.True(t, fields[0].Required)
}

func TestRun_JSONReport(t *testing.T) {
	dir := t.TempDir()
	input := pdftest.WriteFile(t, dir, "intake.pdf", pdftest.Letter())
	layoutPath := filepath.Join(dir, "shared.layout.json")
	writeLayout(t, layoutPath)
	out := filepath.Join(dir, "final.pdf")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--layout", layoutPath, "-o", out, "--format=json", input}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Empty(t, stderr.String())

	var report struct {
		Output  string `json:"output"`
		Layout  string `json:"layout"`
		Fields  []struct{ Name string } `json:"fields"`
		Skipped []struct {
			PageIndex int    `json:"page_index"`
			Reason    string `json:"reason"`
		} `json:"skipped"`
		SkippedFields int `json:"skipped_fields"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, out, report.Output)
	assert.Equal(t, layoutPath, report.Layout)
	require.Len(t, report.Fields, 1)
	assert.Equal(t, "fullName", report.Fields[0].Name)
	require.Len(t, report.Skipped, 1)
	// render info is checked before the page range
	assert.Equal(t, "UNRENDERED_PAGE_SKIP", report.Skipped[0].Reason)
	assert.Equal(t, 1, report.SkippedFields)
	assert.FileExists(t, out)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	input := pdftest.WriteFile(t, dir, "intake.pdf", pdftest.Letter())
	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, pdftest.Malformed(), 0o644))
	writeLayout(t, filepath.Join(dir, "broken.layout.yaml"))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"no input", nil, exitUsage, "exactly one input PDF"},
		{"two inputs", []string{input, input}, exitUsage, "exactly one input PDF"},
		{"bad format", []string{"--format=xml", input}, exitUsage, "unsupported output format"},
		{"unknown flag", []string{"--bogus", input}, exitUsage, "unknown flag"},
		{"missing layout", []string{input}, exitError, "layout file does not exist"},
		{"missing input", []string{filepath.Join(dir, "nope.pdf")}, exitError, "failed to read input"},
		{"malformed input", []string{broken}, exitError, "export failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr.String(), tt.wantErr)
			assert.Empty(t, stdout.String())
		})
	}

	assert.NoFileExists(t, filepath.Join(dir, "broken-interactive.pdf"))
}

func TestRun_FailedWriteLeavesNoPartialOutput(t *testing.T) {
	dir := t.TempDir()
	input := pdftest.WriteFile(t, dir, "intake.pdf", pdftest.Letter())
	writeLayout(t, filepath.Join(dir, "intake.layout.yaml"))
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0o755))
	// a non-empty directory at the output path cannot be replaced
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "keep.txt"), []byte("x"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-o", outDir, input}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "failed to write output")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"intake.pdf", "intake.layout.yaml", "out"}, names)
}

func TestRun_WarningsInJSONReport(t *testing.T) {
	dir := t.TempDir()
	input := pdftest.WriteFile(t, dir, "intake.pdf", pdftest.Letter(), pdftest.Letter())
	writeLayout(t, filepath.Join(dir, "intake.layout.yaml"))

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run([]string{"--format", "json", input}, &stdout, &stderr), stderr.String())

	var report struct {
		Warnings struct {
			Warnings []struct {
				Type       string `json:"type"`
				PageNumber int    `json:"page_number"`
			} `json:"warnings"`
		} `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.Len(t, report.Warnings.Warnings, 1)
	assert.Equal(t, "UNRENDERED_PAGE_SKIP", report.Warnings.Warnings[0].Type)
	assert.Equal(t, 2, report.Warnings.Warnings[0].PageNumber)
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run([]string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "USAGE:")
	assert.Contains(t, stderr.String(), "--layout")
}
