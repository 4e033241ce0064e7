// Package layout holds the placed form fields and per-page render metadata
// that an export turns into PDF form widgets.
package layout

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// ErrNotFound is returned when an operation references an unknown field id
var ErrNotFound = pdferrors.Sentinel(pdferrors.ErrorTypeNotFound)

// Store is the geometry store. It is safe for concurrent use, but callers
// should treat it as a single editing session.
type Store struct {
	mu       sync.RWMutex
	fields   []Field
	renders  map[int]PageRender
	selected string
	newID    func() string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		renders: make(map[int]PageRender),
		newID:   uuid.NewString,
	}
}

// Place creates a field of the given kind at (x, y) on a page, with the
// default size for its kind, and selects it.
func (s *Store) Place(kind FieldKind, pageIndex int, x, y float64) (Field, error) {
	if !kind.Valid() {
		return Field{}, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidField,
			"cannot place field", fmt.Sprintf("unknown kind %q", kind))
	}
	if pageIndex < 0 {
		return Field{}, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidField,
			"cannot place field", "page index must not be negative")
	}
	if !finite(x, y) {
		return Field{}, nonFinite("cannot place field")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	width, height := kind.DefaultSize()
	f := Field{
		ID:        s.newID(),
		Kind:      kind,
		PageIndex: pageIndex,
		X:         x,
		Y:         y,
		Width:     width,
		Height:    height,
		Name:      fmt.Sprintf("Field %d", len(s.fields)+1),
	}
	s.fields = append(s.fields, f)
	s.selected = f.ID
	return f.clone(), nil
}

// Update applies a partial change to the field with the given id.
// Width and height are clamped to MinFieldSize.
func (s *Store) Update(id string, u FieldUpdate) (Field, error) {
	for _, v := range []*float64{u.X, u.Y, u.Width, u.Height} {
		if v != nil && !finite(*v) {
			return Field{}, nonFinite("cannot update field").WithField(id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Field{}, s.notFound(id)
	}

	f := &s.fields[i]
	if u.X != nil {
		f.X = *u.X
	}
	if u.Y != nil {
		f.Y = *u.Y
	}
	if u.Width != nil {
		f.Width = clampSize(*u.Width)
	}
	if u.Height != nil {
		f.Height = clampSize(*u.Height)
	}
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.Description != nil {
		f.Description = *u.Description
	}
	if u.Required != nil {
		f.Required = *u.Required
	}
	if u.Options != nil {
		f.Options = append([]string(nil), u.Options...)
	}
	return f.clone(), nil
}

// Move shifts a field by a drag delta
func (s *Store) Move(id string, dx, dy float64) (Field, error) {
	if !finite(dx, dy) {
		return Field{}, nonFinite("cannot move field").WithField(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Field{}, s.notFound(id)
	}
	s.fields[i].X += dx
	s.fields[i].Y += dy
	return s.fields[i].clone(), nil
}

// Resize grows or shrinks a field from its bottom-right corner. The result
// never drops below MinFieldSize in either dimension.
func (s *Store) Resize(id string, dw, dh float64) (Field, error) {
	if !finite(dw, dh) {
		return Field{}, nonFinite("cannot resize field").WithField(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Field{}, s.notFound(id)
	}
	s.fields[i].Width = clampSize(s.fields[i].Width + dw)
	s.fields[i].Height = clampSize(s.fields[i].Height + dh)
	return s.fields[i].clone(), nil
}

// Remove deletes a field, clearing the selection if it pointed at it
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.notFound(id)
	}
	s.fields = append(s.fields[:i], s.fields[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	return nil
}

// RecordPageRender inserts or overwrites the render info for a page.
// Fields already on the page keep their pixel coordinates.
func (s *Store) RecordPageRender(pageIndex int, width, height, scale float64) error {
	r := PageRender{PageIndex: pageIndex, Width: width, Height: height, Scale: scale}
	if err := r.Validate(); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidField, "invalid page render", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders[pageIndex] = r
	return nil
}

// Select marks a field as the current selection
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return s.notFound(id)
	}
	s.selected = id
	return nil
}

// Selected returns the selected field, if any
func (s *Store) Selected() (Field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(s.selected)
	if i < 0 {
		return Field{}, false
	}
	return s.fields[i].clone(), true
}

// ClearSelection deselects any selected field
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
}

// Field returns the field with the given id
func (s *Store) Field(id string) (Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Field{}, s.notFound(id)
	}
	return s.fields[i].clone(), nil
}

// Fields returns a copy of all fields in placement order
func (s *Store) Fields() []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.clone()
	}
	return out
}

// FieldsOnPage returns the fields anchored to one page, in placement order
func (s *Store) FieldsOnPage(pageIndex int) []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Field
	for _, f := range s.fields {
		if f.PageIndex == pageIndex {
			out = append(out, f.clone())
		}
	}
	return out
}

// PageRender returns the render info for a page
func (s *Store) PageRender(pageIndex int) (PageRender, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.renders[pageIndex]
	return r, ok
}

// PageRenders returns a copy of the render info map
func (s *Store) PageRenders() map[int]PageRender {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]PageRender, len(s.renders))
	for k, v := range s.renders {
		out[k] = v
	}
	return out
}

// Len returns the number of placed fields
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fields)
}

// Reset discards all fields, renders and the selection
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields = nil
	s.renders = make(map[int]PageRender)
	s.selected = ""
}

// Snapshot captures the store contents as a Layout
func (s *Store) Snapshot() Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l := Layout{Version: LayoutVersion}
	for _, f := range s.fields {
		l.Fields = append(l.Fields, f.clone())
	}
	for _, r := range s.renders {
		l.Pages = append(l.Pages, r)
	}
	sort.Slice(l.Pages, func(i, j int) bool { return l.Pages[i].PageIndex < l.Pages[j].PageIndex })
	return l
}

// Restore replaces the store contents with a validated Layout
func (s *Store) Restore(l Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields = make([]Field, 0, len(l.Fields))
	for _, f := range l.Fields {
		s.fields = append(s.fields, f.clone())
	}
	s.renders = make(map[int]PageRender, len(l.Pages))
	for _, r := range l.Pages {
		s.renders[r.PageIndex] = r
	}
	s.selected = ""
	return nil
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.fields {
		if s.fields[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notFound(id string) error {
	return pdferrors.NewPDFError(pdferrors.ErrorTypeNotFound, "field not found").WithField(id)
}

func nonFinite(msg string) *pdferrors.PDFError {
	return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidField, msg, "coordinates must be finite numbers")
}
