// Command formflow-export applies a saved field layout to a PDF and writes
// the interactive result without starting the MCP server.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/fileutil"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/security"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/synth"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const outputFilePerm = 0o644

// Report is the outcome of one batch export
type Report struct {
	Input         string                     `json:"input"`
	Layout        string                     `json:"layout"`
	Output        string                     `json:"output"`
	Size          int                        `json:"size"`
	Fields        []synth.SynthesizedField   `json:"fields"`
	Skipped       []synth.SkippedPage        `json:"skipped,omitempty"`
	SkippedFields int                        `json:"skipped_fields"`
	Warnings      *pdferrors.ErrorCollection `json:"warnings,omitempty"`
}

type options struct {
	layoutPath string
	outPath    string
	format     string
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("formflow-export", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.layoutPath, "layout", "l", "", "Layout file (defaults to <input>.layout.yaml)")
	fs.StringVarP(&opts.outPath, "out", "o", "", "Output PDF (defaults to <input>-interactive.pdf)")
	fs.StringVarP(&opts.format, "format", "f", "text", "Report format: text, json")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log skipped pages to stderr")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: exactly one input PDF is required\n\n")
		printUsage(stderr, fs)
		return exitUsage
	}
	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: unsupported output format: %s\n", opts.format)
		return exitUsage
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(stderr, "formflow-export: ", 0)
	}

	report, err := export(fs.Arg(0), opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if opts.format == "json" {
		err = writeJSON(stdout, report)
	} else {
		err = writeText(stdout, report)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		return exitError
	}
	return exitOK
}

func export(input string, opts options, logger *log.Logger) (*Report, error) {
	input, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input path: %w", err)
	}

	layoutPath := opts.layoutPath
	if layoutPath == "" {
		layoutPath = strings.TrimSuffix(input, filepath.Ext(input)) + ".layout.yaml"
	}
	outPath := opts.outPath
	if outPath == "" {
		outPath = security.OutputPath(input)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	l, err := layout.LoadFile(layoutPath)
	if err != nil {
		return nil, err
	}

	engine := synth.NewEngine(synth.WithLogger(logger))
	result, err := engine.Synthesize(data, l.Fields, l.Renders())
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}

	if err := fileutil.WriteFileAtomic(outPath, result.PDF, outputFilePerm); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	fields := result.Fields
	if fields == nil {
		fields = []synth.SynthesizedField{}
	}
	var warnings *pdferrors.ErrorCollection
	if len(result.Skipped) > 0 {
		warnings = result.Warnings()
	}
	return &Report{
		Input:         input,
		Layout:        layoutPath,
		Output:        outPath,
		Size:          len(result.PDF),
		Fields:        fields,
		Skipped:       result.Skipped,
		SkippedFields: result.SkippedFieldCount(),
		Warnings:      warnings,
	}, nil
}

func writeJSON(w io.Writer, report *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func writeText(w io.Writer, report *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Wrote %d field(s) to %s (%d bytes)\n", len(report.Fields), report.Output, report.Size)
	fmt.Fprintf(&b, "   Layout: %s\n", report.Layout)

	for i, f := range report.Fields {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, f.Name)
		fmt.Fprintf(&b, "    Type: %s\n", f.Kind)
		fmt.Fprintf(&b, "    Page: %d\n", f.PageIndex)
		fmt.Fprintf(&b, "    Rect: (%.2f, %.2f) %.2f x %.2f pt\n", f.Rect.X, f.Rect.Y, f.Rect.Width, f.Rect.Height)
		if f.Required {
			fmt.Fprintf(&b, "    Properties: [Required]\n")
		}
	}

	if report.Warnings != nil {
		fmt.Fprintf(&b, "\n⚠️  Skipped %d field(s), %s:\n", report.SkippedFields, report.Warnings.Summary())
		for _, sp := range report.Skipped {
			fmt.Fprintf(&b, "  page %d: %d field(s), %s\n", sp.PageIndex, len(sp.FieldIDs), sp.Reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "FormFlow Export - apply a saved field layout to a PDF")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  formflow-export [OPTIONS] <input.pdf>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  formflow-export intake.pdf")
	fmt.Fprintln(w, "  formflow-export --layout shared.layout.json --out filled/intake.pdf intake.pdf")
	fmt.Fprintln(w, "  formflow-export --format json intake.pdf")
}
