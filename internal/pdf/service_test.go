package pdf

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/inspect"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/pdftest"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/suggest"
)

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T, opts ...Option) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]Option{WithLogger(log.New(&bytes.Buffer{}, "", 0))}, opts...)
	s, err := NewService(10*1024*1024, dir, opts...)
	require.NoError(t, err)
	return s, dir
}

func openTwoPageForm(t *testing.T, s *Service, dir string) string {
	t.Helper()
	path := pdftest.WriteFile(t, dir, "intake.pdf",
		pdftest.Letter("Full Name:", "Date of Birth: ____"),
		pdftest.Letter("[ ] I agree to the terms"),
	)
	_, err := s.OpenFile(path)
	require.NoError(t, err)
	return path
}

func TestNewService(t *testing.T) {
	_, err := NewService(1024, "")
	assert.Error(t, err)

	s, err := NewService(2048, t.TempDir(), WithDefaultScale(2), WithDefaultScale(99))
	require.NoError(t, err)
	assert.Equal(t, int64(2048), s.GetMaxFileSize())
	assert.Equal(t, 2.0, s.DefaultScale())
	assert.Equal(t, "", s.CurrentPath())
}

func TestService_OpenFile(t *testing.T) {
	s, dir := newTestService(t)
	path := openTwoPageForm(t, s, dir)

	res, err := s.OpenFile("intake.pdf")
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 612.0, res.PageSizes[0].Width)
	assert.Equal(t, 792.0, res.PageSizes[1].Height)
	assert.False(t, res.Encrypted)
	assert.Equal(t, 0, res.ExistingFields)
	assert.Equal(t, path, s.CurrentPath())
}

func TestService_OpenFileResetsSession(t *testing.T) {
	s, dir := newTestService(t)
	path := openTwoPageForm(t, s, dir)

	_, err := s.RenderPage(0, 0)
	require.NoError(t, err)
	_, err = s.PlaceField("Text", 0, 10, 10)
	require.NoError(t, err)

	_, err = s.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Store().Len())
	assert.Empty(t, s.Store().PageRenders())
}

func TestService_OpenFileErrors(t *testing.T) {
	s, dir := newTestService(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.pdf"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), pdftest.Malformed(), 0o644))

	tests := []struct {
		name     string
		path     string
		wantType pdferrors.ErrorType
	}{
		{name: "outside directory", path: "/etc/hosts.pdf", wantType: pdferrors.ErrorTypeSecurityRestriction},
		{name: "missing file", path: "missing.pdf", wantType: pdferrors.ErrorTypeResourceNotFound},
		{name: "empty file", path: "empty.pdf", wantType: pdferrors.ErrorTypeMalformedSourceDocument},
		{name: "malformed file", path: "broken.pdf", wantType: pdferrors.ErrorTypeMalformedSourceDocument},
		{name: "not a pdf", path: "notes.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.OpenFile(tt.path)
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.wantType != pdferrors.ErrorTypeUnknown {
				assert.True(t, pdferrors.IsType(err, tt.wantType), "got %v", err)
			}
		})
	}
	assert.Equal(t, "", s.CurrentPath())
}

func TestService_OpenFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	s, err := NewService(100, dir)
	require.NoError(t, err)
	pdftest.WriteFile(t, dir, "big.pdf", pdftest.Letter("some text"))

	_, err = s.OpenFile("big.pdf")
	assert.ErrorContains(t, err, "too large")
}

func TestService_RequiresDocument(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.RenderPage(0, 1.5)
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.RecordRender(0, 100, 100, 1)
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.PlaceField("Text", 0, 0, 0)
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.Export("")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.Inspect("")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.Suggest(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.SaveLayout("")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.LoadLayout("x.yaml")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestService_RenderPage(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	res, err := s.RenderPage(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PageIndex)
	assert.InDelta(t, 918, res.Width, 1e-9)
	assert.InDelta(t, 1188, res.Height, 1e-9)
	assert.Equal(t, DefaultScale, res.Scale)

	_, err = s.RenderPage(0, 0.25)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidField))
	_, err = s.RenderPage(0, 3.5)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidField))
	_, err = s.RenderPage(2, 1)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypePageOutOfRange))
}

func TestService_RerenderKeepsFieldGeometry(t *testing.T) {
	var logs bytes.Buffer
	s, dir := newTestService(t, WithLogger(log.New(&logs, "", 0)))
	openTwoPageForm(t, s, dir)

	_, err := s.RenderPage(0, 1.5)
	require.NoError(t, err)
	placed, err := s.PlaceField("checkbox", 0, 30, 40)
	require.NoError(t, err)

	res, err := s.RenderPage(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FieldsOnPage)
	assert.Contains(t, logs.String(), "keep their pixel geometry")

	got, err := s.Store().Field(placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed, got)
}

func TestService_RecordRender(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	res, err := s.RecordRender(0, 1224, 1584, 2)
	require.NoError(t, err)
	assert.Equal(t, layout.PageRender{PageIndex: 0, Width: 1224, Height: 1584, Scale: 2}, res.PageRender)

	_, err = s.RecordRender(5, 10, 10, 1)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypePageOutOfRange))
	_, err = s.RecordRender(0, 10, 10, 0)
	assert.Error(t, err)
}

func TestService_PlaceAndEdit(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	_, err := s.PlaceField("Dropdown", 0, 0, 0)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidField))
	_, err = s.PlaceField("Text", 9, 0, 0)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypePageOutOfRange))

	f, err := s.PlaceField("text", 0, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, "Field 1", f.Name)

	f, err = s.UpdateField(f.ID, layout.FieldUpdate{Name: ptr("email"), Required: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "email", f.Name)
	assert.True(t, f.Required)

	f, err = s.MoveField(f.ID, 5, -5)
	require.NoError(t, err)
	assert.Equal(t, 105.0, f.X)
	assert.Equal(t, 45.0, f.Y)

	f, err = s.ResizeField(f.ID, -1000, 10)
	require.NoError(t, err)
	assert.Equal(t, layout.MinFieldSize, f.Width)
	assert.Equal(t, 40.0, f.Height)

	require.NoError(t, s.SelectField(f.ID))
	_, err = s.PlaceField("Radio", 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, s.Fields(-1), 2)
	assert.Len(t, s.Fields(1), 1)

	require.NoError(t, s.RemoveField(f.ID))
	assert.ErrorIs(t, s.RemoveField(f.ID), layout.ErrNotFound)
	_, err = s.UpdateField("nope", layout.FieldUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, layout.ErrNotFound)
}

func TestService_Export(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	_, err := s.RenderPage(0, 1.5)
	require.NoError(t, err)
	text, err := s.PlaceField("Text", 0, 100, 50)
	require.NoError(t, err)
	_, err = s.UpdateField(text.ID, layout.FieldUpdate{Name: ptr("fullName"), Required: ptr(true)})
	require.NoError(t, err)
	unrendered, err := s.PlaceField("Checkbox", 1, 10, 10)
	require.NoError(t, err)

	res, err := s.Export("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "intake-interactive.pdf"), res.OutputPath)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, "fullName", res.Fields[0].Name)
	assert.Equal(t, 1, res.SkippedFields)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, []string{unrendered.ID}, res.Skipped[0].FieldIDs)
	assert.Contains(t, res.Summary, "skipped 1 field(s)")
	assert.Contains(t, res.Summary, "Found 0 error(s) and 1 warning(s)")

	written, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, res.Size, len(written))

	found, err := inspect.FromBytes(written)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "fullName", found[0].Name)
	assert.True(t, found[0].Required)
	assert.InDelta(t, 66.67, found[0].Rect.X, 0.01)
	assert.InDelta(t, 738.67, found[0].Rect.Y, 0.01)
	assert.InDelta(t, 80, found[0].Rect.Width, 0.01)
	assert.InDelta(t, 20, found[0].Rect.Height, 0.01)

	inspected, err := s.Inspect("intake-interactive.pdf")
	require.NoError(t, err)
	assert.Len(t, inspected.Fields, 1)

	source, err := s.Inspect("")
	require.NoError(t, err)
	assert.Empty(t, source.Fields)

	assert.Equal(t, 2, s.Store().Len())
}

func TestService_ExportToNamedPath(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	res, err := s.Export("out/final.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "final.pdf"), res.OutputPath)
	assert.FileExists(t, res.OutputPath)

	_, err = s.Export("../escape.pdf")
	assert.Error(t, err)
}

func TestService_WritesStayInsideWorkspace(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(dir, "shared")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := s.Export("shared/intake-interactive.pdf")
	require.Error(t, err)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeSecurityRestriction))

	_, err = s.SaveLayout("shared/intake.layout.yaml")
	require.Error(t, err)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeSecurityRestriction))

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_ExportFailureWritesNothing(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	_, err := s.RenderPage(0, 1.5)
	require.NoError(t, err)
	_, err = s.PlaceField("Text", 0, 10, 10)
	require.NoError(t, err)
	before := s.Store().Snapshot()

	s.session.data = pdftest.Malformed()

	res, err := s.Export("")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeMalformedSourceDocument))
	assert.NoFileExists(t, filepath.Join(dir, "intake-interactive.pdf"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the source should remain")

	if diff := cmp.Diff(before, s.Store().Snapshot()); diff != "" {
		t.Errorf("store changed by failed export (-before +after):\n%s", diff)
	}
}

func TestService_ExportInProgress(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	s.exportMu.Lock()
	_, err := s.Export("")
	s.exportMu.Unlock()
	assert.ErrorIs(t, err, ErrExportInProgress)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeExportInProgress))

	_, err = s.Export("")
	assert.NoError(t, err)
}

func TestService_ConcurrentExportsNeverOverlap(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)
	_, err := s.RenderPage(0, 1.5)
	require.NoError(t, err)
	_, err = s.PlaceField("Text", 0, 10, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Export("")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrExportInProgress)
	}
	assert.GreaterOrEqual(t, succeeded, 1)
}

func TestService_LayoutRoundTrip(t *testing.T) {
	s, dir := newTestService(t)
	path := openTwoPageForm(t, s, dir)

	_, err := s.RenderPage(0, 1.5)
	require.NoError(t, err)
	_, err = s.PlaceField("Text", 0, 10, 20)
	require.NoError(t, err)
	radio, err := s.PlaceField("Radio", 0, 50, 60)
	require.NoError(t, err)
	_, err = s.UpdateField(radio.ID, layout.FieldUpdate{Options: []string{"Blue", "Red"}})
	require.NoError(t, err)
	want := s.Fields(-1)

	saved, err := s.SaveLayout("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "intake.layout.yaml"), saved.Path)
	assert.Equal(t, 2, saved.Fields)
	assert.Equal(t, 1, saved.Pages)

	_, err = s.SaveLayout("copy.json")
	require.NoError(t, err)
	_, err = s.SaveLayout("copy.txt")
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidLayout))

	_, err = s.OpenFile(path)
	require.NoError(t, err)
	require.Equal(t, 0, s.Store().Len())

	for _, name := range []string{"intake.layout.yaml", "copy.json"} {
		loaded, err := s.LoadLayout(name)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.Fields)
		if diff := cmp.Diff(want, s.Fields(-1)); diff != "" {
			t.Errorf("%s: fields differ after load (-want +got):\n%s", name, diff)
		}
		_, ok := s.Store().PageRender(0)
		assert.True(t, ok)
	}

	_, err = s.LoadLayout("missing.yaml")
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeResourceNotFound))
}

type stubSuggester struct {
	texts []string
	err   error
}

func (s *stubSuggester) Suggest(_ context.Context, text string) ([]suggest.Suggestion, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	return []suggest.Suggestion{{Name: "stub", Kind: layout.KindText, Reason: "stub"}}, nil
}

func TestService_Suggest(t *testing.T) {
	stub := &stubSuggester{}
	s, dir := newTestService(t, WithSuggester(stub))
	openTwoPageForm(t, s, dir)

	res, err := s.Suggest(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PageIndex)
	assert.Equal(t, []suggest.Suggestion{{Name: "stub", Kind: layout.KindText, Reason: "stub"}}, res.Suggestions)
	require.Len(t, stub.texts, 1)

	_, err = s.Suggest(context.Background(), 7)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypePageOutOfRange))

	stub.err = errors.New("service unavailable")
	res, err = s.Suggest(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, res.Suggestions)
	assert.NotNil(t, res.Suggestions)
}

func TestService_PageText(t *testing.T) {
	s, dir := newTestService(t)
	openTwoPageForm(t, s, dir)

	text, err := s.PageText(0)
	require.NoError(t, err)
	assert.Contains(t, text, "Full Name")

	_, err = s.PageText(-1)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypePageOutOfRange))
}

func TestService_ServerInfo(t *testing.T) {
	s, dir := newTestService(t)
	path := openTwoPageForm(t, s, dir)
	_, err := s.RenderPage(1, 1)
	require.NoError(t, err)

	info := s.ServerInfo(context.Background(), "formflow", "test")
	assert.Equal(t, "formflow", info.ServerName)
	assert.Equal(t, path, info.OpenDocument)
	assert.Equal(t, []int{1}, info.RenderedPages)
	assert.Len(t, info.AvailableTools, 12)
	assert.Equal(t, []string{"Text", "Checkbox", "Radio"}, info.FieldKinds)
	require.Len(t, info.WorkspaceFiles, 1)
	assert.Equal(t, "pdf", info.WorkspaceFiles[0].Kind)
	assert.Contains(t, info.UsageGuidance, "form_export")
}
