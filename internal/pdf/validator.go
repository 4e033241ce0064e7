package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// Validator checks source files before they are opened for editing
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile checks that filePath names a regular, non-empty .pdf file
// within the size limit. It does not parse the document.
func (v *Validator) ValidateFile(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeResourceNotFound, "file does not exist").WithFile(filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	return v.ValidateFileInfo(filePath, fileInfo)
}

// ValidateFileInfo performs the same checks on an existing os.FileInfo
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeMalformedSourceDocument, "file is empty").WithFile(filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}

// ValidateLayoutPath checks the extension of a layout file
func (v *Validator) ValidateLayoutPath(filePath string) error {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml", ".json":
		return nil
	default:
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidLayout,
			"layout files must be .yaml, .yml or .json", filePath)
	}
}
