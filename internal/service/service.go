// Package service ties the template catalog, the editor, the page renderer
// and the generation pipeline together behind one API used by both the MCP
// tools and the HTTP server.
package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/generate"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf/forms"
	"github.com/a3tai/mcp-pdf-templates/internal/store"
)

// Options wires a Service
type Options struct {
	Store        *store.Store
	Pages        *pdf.PageRenderer
	Orchestrator *generate.Orchestrator
	// Renderer produces PDFs without recording them
	Renderer         generate.Generator
	AutosaveInterval time.Duration
	MaxFileSize      int64
	Logger           *logger.Logger
}

// Service is the application facade
type Service struct {
	store        *store.Store
	pages        *pdf.PageRenderer
	forms        *forms.Extractor
	orchestrator *generate.Orchestrator
	renderer     generate.Generator
	autosave     time.Duration
	validator    *pdf.Validator
	log          *logger.Logger

	sessions *sessionRegistry
}

// New creates a Service with all components
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer cannot be nil")
	}
	if opts.Pages == nil {
		opts.Pages = pdf.NewPageRenderer(0, opts.Logger)
	}
	log := logger.OrNop(opts.Logger).With("component", "service")
	return &Service{
		store:        opts.Store,
		pages:        opts.Pages,
		forms:        forms.NewExtractor(nil),
		orchestrator: opts.Orchestrator,
		renderer:     opts.Renderer,
		autosave:     opts.AutosaveInterval,
		validator:    pdf.NewValidator(opts.MaxFileSize),
		log:          log,
		sessions:     newSessionRegistry(),
	}, nil
}

// ListTemplates returns the catalog, optionally filtered by category
func (s *Service) ListTemplates(ctx context.Context, req ListTemplatesRequest) (*ListTemplatesResult, error) {
	templates, err := s.store.List(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	return &ListTemplatesResult{Templates: templates, Total: len(templates)}, nil
}

// GetTemplate returns one template with its mapping and revision
func (s *Service) GetTemplate(ctx context.Context, id string) (*TemplateResult, error) {
	tpl, m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rev, err := s.store.Revision(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = mapping.Mapping{}
	}
	return &TemplateResult{Template: tpl, Mapping: m, Revision: rev}, nil
}

// RegisterTemplate stores a new template. With ImportForms and no explicit
// mapping, the native form widgets of a PDF source become the mapping.
func (s *Service) RegisterTemplate(ctx context.Context, req RegisterTemplateRequest) (*TemplateResult, error) {
	if err := s.validator.ValidateSource(req.Source); err != nil {
		return nil, apperrors.Validation("register_template", "%v", err)
	}
	m := req.Mapping
	if req.ImportForms && len(m) == 0 && pdf.IsPDF(req.Source) {
		native, err := s.forms.Extract(req.Source)
		if err != nil {
			return nil, apperrors.Validation("register_template", "cannot read form fields: %v", err)
		}
		m = forms.DraftMapping(native)
		s.log.Info("drafted mapping from form fields", "template_id", req.ID, "widgets", len(native), "fields", len(m))
	}
	_, err := s.store.Register(ctx, store.RegisterRequest{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Source:      req.Source,
		Mapping:     m,
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, req.ID)
}

// SaveMapping replaces a template's mapping and returns the new state
func (s *Service) SaveMapping(ctx context.Context, id string, m mapping.Mapping) (*TemplateResult, error) {
	if err := s.store.SaveMapping(ctx, id, m); err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, id)
}

// ImportForms reads the native form widgets of a template's PDF source.
// The drafted fields are saved only when save is set.
func (s *Service) ImportForms(ctx context.Context, id string, save bool) (*ImportFormsResult, error) {
	src, err := s.pdfSource(ctx, id, "import_forms")
	if err != nil {
		return nil, err
	}
	native, err := s.forms.Extract(src)
	if err != nil {
		return nil, apperrors.Validation("import_forms", "cannot read form fields: %v", err)
	}
	res := &ImportFormsResult{TemplateID: id, Native: native, Draft: forms.DraftMapping(native)}
	if save && len(res.Draft) > 0 {
		if err := s.store.SaveMapping(ctx, id, res.Draft); err != nil {
			return nil, err
		}
		res.Saved = true
	}
	return res, nil
}

// RenderPage rasterises one page of a template's PDF source
func (s *Service) RenderPage(ctx context.Context, req RenderPageRequest) (*PageResult, error) {
	src, err := s.pdfSource(ctx, req.TemplateID, "render_page")
	if err != nil {
		return nil, err
	}
	img, err := s.pages.RenderPage(src, req.Page, req.Scale)
	if err != nil {
		return nil, apperrors.Validation("render_page", "%v", err)
	}
	var buf bytes.Buffer
	if err := img.EncodePNG(&buf); err != nil {
		return nil, apperrors.Render("render_page", err)
	}
	return &PageResult{
		TemplateID:  req.TemplateID,
		Page:        req.Page,
		PixelWidth:  img.PixelWidth,
		PixelHeight: img.PixelHeight,
		PNG:         buf.Bytes(),
	}, nil
}

// InitRecord returns the default record of a template's mapping
func (s *Service) InitRecord(ctx context.Context, id string, prefill map[string]any) (mapping.Record, error) {
	_, m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.InitRecord(m, prefill), nil
}

// Render produces a filled PDF without storing or recording it
func (s *Service) Render(ctx context.Context, id string, rec mapping.Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	tpl, m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Generate(ctx, tpl, m, rec)
	if err != nil {
		if apperrors.TypeOf(err) == apperrors.ErrorTypeUnknown {
			return nil, apperrors.Render("render", err)
		}
		return nil, err
	}
	return data, nil
}

// Generate runs a full submission
func (s *Service) Generate(ctx context.Context, req generate.SubmitRequest) (*generate.Result, error) {
	return s.orchestrator.Submit(ctx, req)
}

// ListDocuments returns generated documents, newest first
func (s *Service) ListDocuments(ctx context.Context, templateID string, limit int) ([]mapping.GeneratedDocument, error) {
	return s.store.ListDocuments(ctx, templateID, limit)
}

// GetDocument returns a ledger entry with the stored output
func (s *Service) GetDocument(ctx context.Context, id string) (mapping.GeneratedDocument, []byte, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return mapping.GeneratedDocument{}, nil, err
	}
	data, err := s.store.FetchSourceBytes(ctx, doc.OutputRef)
	if err != nil {
		return mapping.GeneratedDocument{}, nil, err
	}
	return doc, data, nil
}

// Close ends every open editor session
func (s *Service) Close() {
	for _, sess := range s.sessions.drain() {
		sess.Close()
	}
}

func (s *Service) pdfSource(ctx context.Context, id, op string) ([]byte, error) {
	tpl, _, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl.SourceKey == "" {
		return nil, apperrors.NotFound(op, "template %s has no source document", id)
	}
	src, err := s.store.FetchSourceBytes(ctx, tpl.SourceKey)
	if err != nil {
		return nil, err
	}
	if !pdf.IsPDF(src) {
		return nil, apperrors.Validation(op, "template %s source is not a PDF", id)
	}
	return src, nil
}
