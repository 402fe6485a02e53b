// Package editor implements the interactive field overlay: a session owns
// one template's mapping while an operator creates, moves, resizes and
// deletes fields on top of the rendered pages.
package editor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// ErrSaveInProgress is returned when a save is requested while another is pending
var ErrSaveInProgress = stderrors.New("save already in progress")

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = stderrors.New("editor session closed")

// MappingSaver persists a template's mapping
type MappingSaver interface {
	SaveMapping(ctx context.Context, templateID string, fields mapping.Mapping) error
}

// SaveStatus is the externally visible state of the last save
type SaveStatus struct {
	Pending     bool      `json:"pending"`
	LastError   string    `json:"lastError,omitempty"`
	LastSavedAt time.Time `json:"lastSavedAt,omitempty"`
	Saves       int       `json:"saves"`
}

// FieldPatch carries a partial field update; nil members are left unchanged
type FieldPatch struct {
	Type      *mapping.FieldType `json:"type,omitempty"`
	DataKey   *string            `json:"dataKey,omitempty"`
	Page      *int               `json:"page,omitempty"`
	X         *float64           `json:"x,omitempty"`
	Y         *float64           `json:"y,omitempty"`
	Width     *float64           `json:"width,omitempty"`
	Height    *float64           `json:"height,omitempty"`
	FontSize  *float64           `json:"fontSize,omitempty"`
	Align     *mapping.Align     `json:"align,omitempty"`
	FormField *string            `json:"formField,omitempty"`
}

// Options configures a session
type Options struct {
	TemplateID string
	PageCount  int
	Mapping    mapping.Mapping
	Saver      MappingSaver
	Logger     *logger.Logger
	NewID      func() string
	Now        func() time.Time
}

// Session is one operator's editing session over a template's mapping.
// Gesture methods are synchronous and never perform I/O.
type Session struct {
	mu sync.Mutex

	templateID string
	pageCount  int
	fields     mapping.Mapping
	selected   string
	inter      Interaction
	page       int
	pageSize   PageSize

	saver  MappingSaver
	status SaveStatus
	log    *logger.Logger
	newID  func() string
	now    func() time.Time

	closed     bool
	stopAuto   context.CancelFunc
	autosaveWG sync.WaitGroup
}

// NewSession creates an editor session over a copy of opts.Mapping
func NewSession(opts Options) (*Session, error) {
	if opts.TemplateID == "" {
		return nil, apperrors.Validation("open_editor", "template id is required")
	}
	if opts.Saver == nil {
		return nil, fmt.Errorf("saver cannot be nil")
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	fields := opts.Mapping.Clone()
	if fields == nil {
		fields = mapping.Mapping{}
	}
	return &Session{
		templateID: opts.TemplateID,
		pageCount:  opts.PageCount,
		fields:     fields,
		inter:      Idle(),
		saver:      opts.Saver,
		log:        logger.OrNop(opts.Logger).With("component", "editor", "template_id", opts.TemplateID),
		newID:      opts.NewID,
		now:        opts.Now,
	}, nil
}

// TemplateID returns the template being edited
func (s *Session) TemplateID() string { return s.templateID }

// Fields returns a copy of the current mapping
func (s *Session) Fields() mapping.Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields.Clone()
}

// Field returns a copy of one field
func (s *Session) Field(id string) (mapping.Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.fields.Find(id); i >= 0 {
		return s.fields[i], true
	}
	return mapping.Field{}, false
}

// Selection returns the selected field id, empty when nothing is selected
func (s *Session) Selection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Interaction returns the current gesture state
func (s *Session) Interaction() Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inter
}

// Page returns the current page index and its pixel size
func (s *Session) Page() (int, PageSize) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page, s.pageSize
}

// SetPage switches the visible page. Any gesture in progress ends.
func (s *Session) SetPage(index int, size PageSize) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || (s.pageCount > 0 && index >= s.pageCount) {
		return apperrors.Validation("set_page", "page %d outside template (%d pages)", index, s.pageCount)
	}
	if !size.Valid() {
		return apperrors.Validation("set_page", "page size must be positive")
	}
	s.page = index
	s.pageSize = size
	s.inter = s.inter.End()
	return nil
}

// AddField appends a default text field on pageIndex and selects it
func (s *Session) AddField(pageIndex int) (mapping.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return mapping.Field{}, ErrSessionClosed
	}
	if pageIndex < 0 || (s.pageCount > 0 && pageIndex >= s.pageCount) {
		return mapping.Field{}, apperrors.Validation("add_field", "page %d outside template (%d pages)", pageIndex, s.pageCount)
	}
	f := mapping.Field{
		ID:      s.newID(),
		Type:    mapping.FieldTypeText,
		DataKey: fmt.Sprintf("field_%d", len(s.fields)+1),
		Page:    pageIndex,
		X:       mapping.DefaultFieldX,
		Y:       mapping.DefaultFieldY,
		Width:   mapping.DefaultFieldWidth,
		Height:  mapping.DefaultFieldHeight,
	}
	s.fields = append(s.fields, f)
	s.selected = f.ID
	return f, nil
}

// Select marks a field as selected
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields.Find(id) < 0 {
		return apperrors.NotFound("select_field", "field %s not found", id)
	}
	s.selected = id
	return nil
}

// Deselect clears the selection
func (s *Session) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
}

// UpdateField merges patch into the field. The merged geometry is clamped
// back inside the page and kept at least the minimum size when the page
// size is known.
func (s *Session) UpdateField(id string, patch FieldPatch) (mapping.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.fields.Find(id)
	if i < 0 {
		return mapping.Field{}, apperrors.NotFound("update_field", "field %s not found", id)
	}
	f := s.fields[i]
	if patch.Type != nil {
		f.Type = *patch.Type
	}
	if patch.DataKey != nil {
		f.DataKey = *patch.DataKey
	}
	if patch.Page != nil {
		f.Page = *patch.Page
	}
	if patch.X != nil {
		f.X = *patch.X
	}
	if patch.Y != nil {
		f.Y = *patch.Y
	}
	if patch.Width != nil {
		f.Width = *patch.Width
	}
	if patch.Height != nil {
		f.Height = *patch.Height
	}
	if patch.FontSize != nil {
		f.FontSize = *patch.FontSize
	}
	if patch.Align != nil {
		f.Align = *patch.Align
	}
	if patch.FormField != nil {
		f.FormField = *patch.FormField
	}
	f = FloorSize(f, s.pageSize).ClampBox()
	if err := f.Validate(s.pageCount); err != nil {
		return mapping.Field{}, err
	}
	s.fields[i] = f
	return f, nil
}

// DeleteField removes a field, clearing the selection and any gesture on it
func (s *Session) DeleteField(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.fields.Find(id)
	if i < 0 {
		return apperrors.NotFound("delete_field", "field %s not found", id)
	}
	s.fields = append(s.fields[:i], s.fields[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	if s.inter.FieldID == id {
		s.inter = s.inter.End()
	}
	return nil
}

// BeginDrag starts moving a field; pointer is in page pixels
func (s *Session) BeginDrag(id string, pointer Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.fields.Find(id)
	if i < 0 {
		return apperrors.NotFound("begin_drag", "field %s not found", id)
	}
	if !s.pageSize.Valid() {
		return apperrors.Validation("begin_drag", "page size unknown; render a page first")
	}
	s.selected = id
	s.inter = s.inter.BeginDrag(id, DragOffset(s.fields[i], pointer, s.pageSize))
	return nil
}

// BeginResize starts resizing a field from its bottom-right handle
func (s *Session) BeginResize(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields.Find(id) < 0 {
		return apperrors.NotFound("begin_resize", "field %s not found", id)
	}
	if !s.pageSize.Valid() {
		return apperrors.Validation("begin_resize", "page size unknown; render a page first")
	}
	s.selected = id
	s.inter = s.inter.BeginResize(id)
	return nil
}

// PointerMove applies the active gesture. It is a no-op while idle.
func (s *Session) PointerMove(pointer Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inter.Active() {
		return
	}
	i := s.fields.Find(s.inter.FieldID)
	if i < 0 {
		s.inter = s.inter.End()
		return
	}
	switch s.inter.Mode {
	case ModeDragging:
		s.fields[i] = DragTo(s.fields[i], pointer, s.inter.Offset, s.pageSize)
	case ModeResizing:
		s.fields[i] = ResizeTo(s.fields[i], pointer, s.pageSize)
	}
}

// EndInteraction returns to Idle. It is safe to call from any state.
func (s *Session) EndInteraction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inter = s.inter.End()
}

// Save persists the mapping. Local edits are kept whatever the outcome.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Pending {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	snapshot := s.fields.Clone()
	s.status.Pending = true
	s.mu.Unlock()

	err := s.saver.SaveMapping(ctx, s.templateID, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Pending = false
	if err != nil {
		s.status.LastError = err.Error()
		s.log.Warn("mapping save failed", "fields", len(snapshot), "error", err)
		if apperrors.TypeOf(err) == apperrors.ErrorTypeUnknown {
			return apperrors.Persistence("save_mapping", err)
		}
		return err
	}
	s.status.LastError = ""
	s.status.LastSavedAt = s.now()
	s.status.Saves++
	s.log.Debug("mapping saved", "fields", len(snapshot))
	return nil
}

// SaveStatus returns the state of the last save
func (s *Session) SaveStatus() SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close ends the session and cancels its autosave
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	stop := s.stopAuto
	s.stopAuto = nil
	s.inter = s.inter.End()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.autosaveWG.Wait()
}
