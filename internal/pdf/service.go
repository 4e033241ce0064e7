package pdf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/fileutil"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/document"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/inspect"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/security"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/synth"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/suggest"
)

var (
	// ErrNoDocument is returned by operations that need an open document
	ErrNoDocument = errors.New("no document is open; call form_open first")

	// ErrExportInProgress is returned when an export is requested while another runs
	ErrExportInProgress = pdferrors.Sentinel(pdferrors.ErrorTypeExportInProgress)
)

const outputFilePerm = 0o644

// session is the document currently being edited
type session struct {
	path        string
	data        []byte
	doc         *document.Document // read-only; exports parse data afresh
	pages       []document.Size
	permissions security.Permissions
}

// Service owns one editing session: the open source document, its geometry
// store and the export pipeline.
type Service struct {
	maxFileSize   int64
	defaultScale  float64
	validator     *Validator
	reader        *Reader
	pathValidator *security.PathValidator
	engine        *synth.Engine
	suggester     suggest.Suggester
	logger        *log.Logger
	store         *layout.Store

	mu      sync.Mutex
	session *session

	exportMu sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger used for skip notices and advisory failures
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSuggester replaces the rule-based suggester
func WithSuggester(sg suggest.Suggester) Option {
	return func(s *Service) {
		if sg != nil {
			s.suggester = sg
		}
	}
}

// WithDefaultScale sets the scale used when a render request names none
func WithDefaultScale(scale float64) Option {
	return func(s *Service) {
		if validateScale(scale) == nil {
			s.defaultScale = scale
		}
	}
}

// NewService creates a new form editing service rooted at configuredDirectory
func NewService(maxFileSize int64, configuredDirectory string, opts ...Option) (*Service, error) {
	pathValidator, err := security.NewPathValidator(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	s := &Service{
		maxFileSize:   maxFileSize,
		defaultScale:  DefaultScale,
		validator:     NewValidator(maxFileSize),
		reader:        NewReader(),
		pathValidator: pathValidator,
		suggester:     suggest.NewRuleSuggester(),
		logger:        log.Default(),
		store:         layout.NewStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = synth.NewEngine(synth.WithLogger(s.logger))

	return s, nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// GetConfiguredDirectory returns the directory all paths are confined to
func (s *Service) GetConfiguredDirectory() string {
	return s.pathValidator.GetConfiguredDirectory()
}

// DefaultScale returns the scale used when a render request names none
func (s *Service) DefaultScale() float64 {
	return s.defaultScale
}

// Store exposes the geometry store of the current session
func (s *Service) Store() *layout.Store {
	return s.store
}

// OpenFile loads a source PDF and starts a new session. Placed fields and
// render info from any previous session are discarded.
func (s *Service) OpenFile(path string) (*OpenResult, error) {
	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.validator.ValidateFile(resolved); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	doc, err := document.Open(data)
	if err != nil {
		var pdfErr *pdferrors.PDFError
		if errors.As(err, &pdfErr) {
			pdfErr.WithFile(resolved)
		}
		return nil, err
	}

	perms := doc.Permissions()
	if !perms.CanAddFormFields() {
		return nil, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeSecurityRestriction,
			"document does not permit adding form fields", perms.String()).WithFile(resolved)
	}

	sizes, err := doc.PageSizes()
	if err != nil {
		return nil, err
	}

	existing := 0
	if fields, err := inspect.FromBytes(data); err == nil {
		existing = len(fields)
	} else {
		s.logger.Printf("could not list existing fields of %s: %v", resolved, err)
	}

	s.mu.Lock()
	s.session = &session{
		path:        resolved,
		data:        data,
		doc:         doc,
		pages:       sizes,
		permissions: perms,
	}
	s.store.Reset()
	s.mu.Unlock()

	return &OpenResult{
		Path:           resolved,
		Size:           int64(len(data)),
		Pages:          len(sizes),
		PageSizes:      sizes,
		Encrypted:      doc.Encrypted(),
		Permissions:    perms.String(),
		ExistingFields: existing,
	}, nil
}

// CurrentPath returns the path of the open document, or "" when none is open
func (s *Service) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.path
}

func (s *Service) current() (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoDocument
	}
	return s.session, nil
}

func (sess *session) checkPage(pageIndex int) error {
	if pageIndex < 0 || pageIndex >= len(sess.pages) {
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypePageOutOfRange, "page index out of range",
			fmt.Sprintf("%d (document has %d pages)", pageIndex, len(sess.pages))).WithPage(pageIndex + 1)
	}
	return nil
}

func validateScale(scale float64) error {
	if scale < MinScale || scale > MaxScale {
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidField,
			fmt.Sprintf("scale must be between %.1f and %.1f", MinScale, MaxScale), fmt.Sprintf("%v", scale))
	}
	return nil
}

// RenderPage records render info for a page as a rasterizer would report it
// at scale; a zero scale uses the default. Fields already on the page keep
// their pixel geometry.
func (s *Service) RenderPage(pageIndex int, scale float64) (*RenderResult, error) {
	if scale == 0 {
		scale = s.defaultScale
	}
	if err := validateScale(scale); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return nil, ErrNoDocument
	}
	viewport, err := sess.doc.Viewport(pageIndex, scale)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.recordRender(pageIndex, viewport.Width, viewport.Height, scale)
}

// RecordRender records render info reported by an external rasterizer
func (s *Service) RecordRender(pageIndex int, width, height, scale float64) (*RenderResult, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := sess.checkPage(pageIndex); err != nil {
		return nil, err
	}
	return s.recordRender(pageIndex, width, height, scale)
}

func (s *Service) recordRender(pageIndex int, width, height, scale float64) (*RenderResult, error) {
	previous, hadPrevious := s.store.PageRender(pageIndex)
	if err := s.store.RecordPageRender(pageIndex, width, height, scale); err != nil {
		return nil, err
	}

	onPage := len(s.store.FieldsOnPage(pageIndex))
	if hadPrevious && previous.Scale != scale && onPage > 0 {
		s.logger.Printf("page %d re-rendered at scale %v (was %v); %d placed field(s) keep their pixel geometry",
			pageIndex+1, scale, previous.Scale, onPage)
	}

	render, _ := s.store.PageRender(pageIndex)
	return &RenderResult{PageRender: render, FieldsOnPage: onPage}, nil
}

// PlaceField places a field of the named kind at render-space (x, y)
func (s *Service) PlaceField(kind string, pageIndex int, x, y float64) (layout.Field, error) {
	k, err := layout.ParseKind(kind)
	if err != nil {
		return layout.Field{}, pdferrors.WrapError(pdferrors.ErrorTypeInvalidField, "invalid field kind", err)
	}
	sess, err := s.current()
	if err != nil {
		return layout.Field{}, err
	}
	if err := sess.checkPage(pageIndex); err != nil {
		return layout.Field{}, err
	}
	if _, ok := s.store.PageRender(pageIndex); !ok {
		s.logger.Printf("field placed on page %d, which has no render info yet", pageIndex+1)
	}
	return s.store.Place(k, pageIndex, x, y)
}

// UpdateField applies a partial update to a placed field
func (s *Service) UpdateField(id string, u layout.FieldUpdate) (layout.Field, error) {
	return s.store.Update(id, u)
}

// MoveField shifts a field by (dx, dy) render-space pixels
func (s *Service) MoveField(id string, dx, dy float64) (layout.Field, error) {
	return s.store.Move(id, dx, dy)
}

// ResizeField grows or shrinks a field from its bottom-right corner
func (s *Service) ResizeField(id string, dw, dh float64) (layout.Field, error) {
	return s.store.Resize(id, dw, dh)
}

// RemoveField deletes a placed field
func (s *Service) RemoveField(id string) error {
	return s.store.Remove(id)
}

// SelectField marks a field as the current selection
func (s *Service) SelectField(id string) error {
	return s.store.Select(id)
}

// Fields returns the placed fields, optionally restricted to one page (pageIndex >= 0)
func (s *Service) Fields(pageIndex int) []layout.Field {
	if pageIndex >= 0 {
		return s.store.FieldsOnPage(pageIndex)
	}
	return s.store.Fields()
}

// Export synthesizes the placed fields into a copy of the source document and
// writes it to outPath, or to "<base>-interactive.pdf" beside the source when
// outPath is empty. Only one export runs at a time; a concurrent call fails
// with ErrExportInProgress. On failure no file is written.
func (s *Service) Export(outPath string) (*ExportResult, error) {
	if !s.exportMu.TryLock() {
		return nil, ErrExportInProgress
	}
	defer s.exportMu.Unlock()

	sess, err := s.current()
	if err != nil {
		return nil, err
	}

	if outPath == "" {
		outPath = security.OutputPath(sess.path)
	}
	target, err := s.pathValidator.Resolve(outPath)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	snapshot := s.store.Snapshot()
	result, err := s.engine.Synthesize(sess.data, snapshot.Fields, snapshot.Renders())
	if err != nil {
		var pdfErr *pdferrors.PDFError
		if errors.As(err, &pdfErr) && pdfErr.FilePath == "" {
			pdfErr.WithFile(sess.path)
		}
		return nil, fmt.Errorf("export failed: %w", err)
	}

	if err := fileutil.WriteFileAtomic(target, result.PDF, outputFilePerm); err != nil {
		return nil, err
	}

	return &ExportResult{
		OutputPath:    target,
		Size:          len(result.PDF),
		Fields:        result.Fields,
		Skipped:       result.Skipped,
		SkippedFields: result.SkippedFieldCount(),
		Summary:       exportSummary(result, target),
	}, nil
}

func exportSummary(result *synth.Result, target string) string {
	summary := fmt.Sprintf("wrote %d field(s) to %s", len(result.Fields), filepath.Base(target))
	if n := result.SkippedFieldCount(); n > 0 {
		pages := make([]string, len(result.Skipped))
		for i, sp := range result.Skipped {
			pages[i] = fmt.Sprintf("%d (%s)", sp.PageIndex+1, sp.Reason)
		}
		summary += fmt.Sprintf("; skipped %d field(s) on page(s) %s (%s)",
			n, strings.Join(pages, ", "), result.Warnings().Summary())
	}
	return summary
}

// Inspect lists the form fields of a PDF; an empty path inspects the open document
func (s *Service) Inspect(path string) (*InspectResult, error) {
	var data []byte
	if path == "" {
		sess, err := s.current()
		if err != nil {
			return nil, err
		}
		path, data = sess.path, sess.data
	} else {
		resolved, err := s.pathValidator.Resolve(path)
		if err != nil {
			return nil, fmt.Errorf("security validation failed: %w", err)
		}
		if err := s.validator.ValidateFile(resolved); err != nil {
			return nil, err
		}
		if data, err = os.ReadFile(resolved); err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		path = resolved
	}

	fields, err := inspect.FromBytes(data)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []inspect.Field{}
	}
	return &InspectResult{Path: path, Fields: fields}, nil
}

// PageText returns the plain text of a page of the open document
func (s *Service) PageText(pageIndex int) (string, error) {
	sess, err := s.current()
	if err != nil {
		return "", err
	}
	if err := sess.checkPage(pageIndex); err != nil {
		return "", err
	}
	if !sess.permissions.CanExtractText() {
		return "", pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeSecurityRestriction,
			"document does not permit text extraction", sess.permissions.String()).WithFile(sess.path)
	}
	return s.reader.PageText(sess.data, pageIndex)
}

// Suggest proposes fields for a page from its text. Extraction or suggester
// failures are logged and yield an empty list.
func (s *Service) Suggest(ctx context.Context, pageIndex int) (*SuggestResult, error) {
	result := &SuggestResult{PageIndex: pageIndex, Suggestions: []suggest.Suggestion{}}

	text, err := s.PageText(pageIndex)
	if err != nil {
		if errors.Is(err, ErrNoDocument) || pdferrors.IsType(err, pdferrors.ErrorTypePageOutOfRange) {
			return nil, err
		}
		s.logger.Printf("page %d text unavailable for suggestions: %v", pageIndex+1, err)
		return result, nil
	}

	suggestions, err := s.suggester.Suggest(ctx, text)
	if err != nil {
		s.logger.Printf("field suggestion failed for page %d: %v", pageIndex+1, err)
		return result, nil
	}
	if suggestions != nil {
		result.Suggestions = suggestions
	}
	return result, nil
}

// SaveLayout writes the current geometry store to a YAML or JSON file. An
// empty path saves "<base>.layout.yaml" beside the source document.
func (s *Service) SaveLayout(path string) (*LayoutResult, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = strings.TrimSuffix(sess.path, filepath.Ext(sess.path)) + ".layout.yaml"
	}

	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.validator.ValidateLayoutPath(resolved); err != nil {
		return nil, err
	}

	snapshot := s.store.Snapshot()
	if err := layout.SaveFile(resolved, snapshot); err != nil {
		return nil, err
	}
	return &LayoutResult{
		Path:   resolved,
		Format: layout.FormatForPath(resolved),
		Pages:  len(snapshot.Pages),
		Fields: len(snapshot.Fields),
	}, nil
}

// LoadLayout replaces the geometry store with a saved layout
func (s *Service) LoadLayout(path string) (*LayoutResult, error) {
	if _, err := s.current(); err != nil {
		return nil, err
	}

	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.validator.ValidateLayoutPath(resolved); err != nil {
		return nil, err
	}

	l, err := layout.LoadFile(resolved)
	if err != nil {
		return nil, err
	}
	if err := s.store.Restore(l); err != nil {
		return nil, err
	}
	return &LayoutResult{
		Path:   resolved,
		Format: layout.FormatForPath(resolved),
		Pages:  len(l.Pages),
		Fields: len(l.Fields),
	}, nil
}
