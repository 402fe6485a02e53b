package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-templates/internal/editor"
	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
)

// openEditor is one live editor session with the source it draws on
type openEditor struct {
	id      string
	session *editor.Session
	scale   float64
	dims    []pdf.PageDim
	source  []byte // nil for markup templates
}

type sessionRegistry struct {
	mu    sync.Mutex
	items map[string]*openEditor
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{items: make(map[string]*openEditor)}
}

func (r *sessionRegistry) add(e *openEditor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[e.id] = e
}

func (r *sessionRegistry) get(id string) (*openEditor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return nil, apperrors.NotFound("editor", "no editor session %s", id)
	}
	return e, nil
}

func (r *sessionRegistry) remove(id string) (*openEditor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	delete(r.items, id)
	return e, ok
}

func (r *sessionRegistry) drain() []*editor.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*editor.Session, 0, len(r.items))
	for id, e := range r.items {
		out = append(out, e.session)
		delete(r.items, id)
	}
	return out
}

func (r *sessionRegistry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for id := range r.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OpenEditor starts an editor session over a template's mapping, showing
// its first page at scale pixels per point
func (s *Service) OpenEditor(ctx context.Context, templateID string, scale float64) (*EditorState, error) {
	if scale <= 0 {
		scale = pdf.DefaultScale
	}
	tpl, m, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	e := &openEditor{id: uuid.NewString(), scale: scale}
	if tpl.SourceKey != "" {
		src, err := s.store.FetchSourceBytes(ctx, tpl.SourceKey)
		if err != nil {
			return nil, err
		}
		if pdf.IsPDF(src) {
			info, err := pdf.Inspect(src)
			if err != nil {
				return nil, apperrors.Validation("open_editor", "%v", err)
			}
			e.source = src
			e.dims = info.Pages
		}
	}
	if e.dims == nil {
		// markup templates are edited on a blank A4 page
		e.dims = []pdf.PageDim{pdf.A4}
	}

	sess, err := editor.NewSession(editor.Options{
		TemplateID: tpl.ID,
		PageCount:  len(e.dims),
		Mapping:    m,
		Saver:      s.store,
		Logger:     s.log,
	})
	if err != nil {
		return nil, err
	}
	if err := sess.SetPage(0, e.pageSize(0)); err != nil {
		sess.Close()
		return nil, err
	}
	if s.autosave > 0 {
		if err := sess.StartAutosave(context.WithoutCancel(ctx), s.autosave); err != nil {
			sess.Close()
			return nil, err
		}
	}
	e.session = sess
	s.sessions.add(e)
	s.log.Info("editor opened", "session_id", e.id, "template_id", tpl.ID, "fields", len(m))
	return e.state(), nil
}

// EditorSessions lists open session ids
func (s *Service) EditorSessions() []string {
	return s.sessions.ids()
}

// EditorState returns a session snapshot
func (s *Service) EditorState(sessionID string) (*EditorState, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	return e.state(), nil
}

// EditorSetPage switches the visible page
func (s *Service) EditorSetPage(sessionID string, page int) (*EditorState, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	if page < 0 || page >= len(e.dims) {
		return nil, apperrors.Validation("set_page", "page %d outside template (%d pages)", page, len(e.dims))
	}
	if err := e.session.SetPage(page, e.pageSize(page)); err != nil {
		return nil, err
	}
	return e.state(), nil
}

// EditorAddField adds a default field on the current page
func (s *Service) EditorAddField(sessionID string) (*EditorState, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	page, _ := e.session.Page()
	if _, err := e.session.AddField(page); err != nil {
		return nil, err
	}
	return e.state(), nil
}

// EditorUpdateField merges patch into one field
func (s *Service) EditorUpdateField(sessionID, fieldID string, patch editor.FieldPatch) (*EditorState, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := e.session.UpdateField(fieldID, patch); err != nil {
		return nil, err
	}
	return e.state(), nil
}

// EditorDeleteField removes one field
func (s *Service) EditorDeleteField(sessionID, fieldID string) (*EditorState, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.session.DeleteField(fieldID); err != nil {
		return nil, err
	}
	return e.state(), nil
}

// EditorPointer feeds pointer events to the overlay in order. A failing
// event stops the batch and ends any gesture in progress, since the
// release that would have ended it is not applied.
func (s *Service) EditorPointer(sessionID string, events []editor.PointerEvent) (*EditorState, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if err := e.session.HandlePointer(ev); err != nil {
			e.session.EndInteraction()
			return nil, err
		}
	}
	return e.state(), nil
}

// EditorSave persists the session's mapping
func (s *Service) EditorSave(ctx context.Context, sessionID string) (*EditorState, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.session.Save(ctx); err != nil {
		return nil, err
	}
	return e.state(), nil
}

// EditorPreview draws the field overlay on the current page as PNG
func (s *Service) EditorPreview(sessionID string) ([]byte, error) {
	e, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	page, size := e.session.Page()

	var base image.Image
	if e.source != nil {
		img, err := s.pages.RenderPage(e.source, page, e.scale)
		if err != nil {
			return nil, apperrors.Render("editor_preview", err)
		}
		base = img.Raster
	} else {
		blank := image.NewRGBA(image.Rect(0, 0, int(size.Width), int(size.Height)))
		draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		base = blank
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, e.session.Preview(base)); err != nil {
		return nil, apperrors.Render("editor_preview", err)
	}
	return buf.Bytes(), nil
}

// EditorClose ends a session, saving first when save is set. The session
// is closed even if the save fails.
func (s *Service) EditorClose(ctx context.Context, sessionID string, save bool) (*EditorState, error) {
	e, ok := s.sessions.remove(sessionID)
	if !ok {
		return nil, apperrors.NotFound("editor", "no editor session %s", sessionID)
	}
	defer e.session.Close()

	if save {
		if err := e.session.Save(ctx); err != nil {
			return e.state(), err
		}
	}
	s.log.Info("editor closed", "session_id", sessionID, "saved", save)
	return e.state(), nil
}

func (e *openEditor) pageSize(page int) editor.PageSize {
	d := e.dims[page]
	return editor.PageSize{Width: float64(int(d.Width*e.scale + 0.5)), Height: float64(int(d.Height*e.scale + 0.5))}
}

func (e *openEditor) state() *EditorState {
	page, size := e.session.Page()
	return &EditorState{
		SessionID:  e.id,
		TemplateID: e.session.TemplateID(),
		Page:       page,
		PageSize:   size,
		PageCount:  len(e.dims),
		Fields:     e.session.Fields(),
		Selected:   e.session.Selection(),
		Mode:       e.session.Interaction().Mode.String(),
		Save:       e.session.SaveStatus(),
	}
}
