package errors

import (
	"errors"
	"fmt"
)

// PDFError represents a form-building failure or skip condition with context
type PDFError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Context    string    `json:"context,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	FieldID    string    `json:"field_id,omitempty"`
	Err        error     `json:"-"`
}

// ErrorType represents the categories of failures the form pipeline reports
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeMalformedSourceDocument
	ErrorTypeUnrenderedPageSkip
	ErrorTypePageOutOfRange
	ErrorTypeInvalidField
	ErrorTypeNotFound
	ErrorTypeExportInProgress
	ErrorTypeResourceNotFound
	ErrorTypeSecurityRestriction
	ErrorTypeInvalidLayout
)

// ErrorSeverity indicates how an error affects the operation that produced it
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is and errors.As
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is matches another *PDFError of the same type, so typed sentinels work with errors.Is
func (e *PDFError) Is(target error) bool {
	var other *PDFError
	if !errors.As(target, &other) {
		return false
	}
	return other.Type == e.Type && other.Message == "" && other.Err == nil
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeMalformedSourceDocument:
		return "MALFORMED_SOURCE_DOCUMENT"
	case ErrorTypeUnrenderedPageSkip:
		return "UNRENDERED_PAGE_SKIP"
	case ErrorTypePageOutOfRange:
		return "PAGE_OUT_OF_RANGE"
	case ErrorTypeInvalidField:
		return "INVALID_FIELD"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeExportInProgress:
		return "EXPORT_IN_PROGRESS"
	case ErrorTypeResourceNotFound:
		return "RESOURCE_NOT_FOUND"
	case ErrorTypeSecurityRestriction:
		return "SECURITY_RESTRICTION"
	case ErrorTypeInvalidLayout:
		return "INVALID_LAYOUT"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeUnrenderedPageSkip, ErrorTypePageOutOfRange:
		return SeverityWarning
	case ErrorTypeNotFound:
		return SeverityInfo
	case ErrorTypeMalformedSourceDocument:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether the surrounding operation can continue past this error.
// Skip conditions drop some fields but never abort an export.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeUnrenderedPageSkip, ErrorTypePageOutOfRange, ErrorTypeNotFound:
		return true
	default:
		return false
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
	}
}

// NewPDFErrorWithContext creates a new PDFError with additional context
func NewPDFErrorWithContext(errorType ErrorType, message, context string) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
		Context: context,
	}
}

// WrapError wraps a standard error as a PDFError
func WrapError(errorType ErrorType, message string, err error) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// Sentinel returns a bare error of the given type, usable as an errors.Is target
func Sentinel(errorType ErrorType) *PDFError {
	return &PDFError{Type: errorType}
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// WithField adds the placed-field id to an existing PDFError
func (e *PDFError) WithField(id string) *PDFError {
	e.FieldID = id
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsType reports whether err is, or wraps, a PDFError of the given type
func IsType(err error, errorType ErrorType) bool {
	var pdfErr *PDFError
	if !errors.As(err, &pdfErr) {
		return false
	}
	return pdfErr.Type == errorType
}

// ErrorCollection gathers the non-fatal conditions raised during one operation
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
	FilePath string      `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}

// MarshalText renders the type by name in JSON and YAML output
func (et ErrorType) MarshalText() ([]byte, error) {
	return []byte(et.String()), nil
}
