// Package generate runs a submission end to end: validate the record,
// generate the output, store it, record it in the ledger and deliver it.
package generate

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/fill"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/storage"
)

// ErrSubmissionInProgress is returned while another submission is running
var ErrSubmissionInProgress = stderrors.New("a submission is already in progress")

// TemplateSource loads templates with their mapping
type TemplateSource interface {
	Get(ctx context.Context, id string) (mapping.Template, mapping.Mapping, error)
}

// Ledger records generated documents
type Ledger interface {
	CreateDocumentRecord(ctx context.Context, doc mapping.GeneratedDocument) (mapping.GeneratedDocument, error)
}

// Options wires an Orchestrator
type Options struct {
	Templates  TemplateSource
	Generator  Generator
	Objects    storage.ObjectStore
	Ledger     Ledger
	Downloader Downloader
	Logger     *logger.Logger
	NewID      func() string
	Now        func() time.Time
}

// SubmitRequest is one generation request
type SubmitRequest struct {
	TemplateID string         `json:"templateId"`
	Record     mapping.Record `json:"record"`
	Required   []string       `json:"required,omitempty"`
}

// Result is a completed submission. Delivery problems do not undo the
// ledger entry; they are reported in DeliveryError.
type Result struct {
	Document      mapping.GeneratedDocument `json:"document"`
	FileName      string                    `json:"fileName"`
	Location      string                    `json:"location,omitempty"`
	DeliveryError string                    `json:"deliveryError,omitempty"`
	Data          []byte                    `json:"-"`
}

// Orchestrator runs submissions, one at a time
type Orchestrator struct {
	templates  TemplateSource
	generator  Generator
	objects    storage.ObjectStore
	ledger     Ledger
	downloader Downloader
	log        *logger.Logger
	newID      func() string
	now        func() time.Time

	inFlight atomic.Bool
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Templates == nil:
		return nil, fmt.Errorf("template source cannot be nil")
	case opts.Generator == nil:
		return nil, fmt.Errorf("generator cannot be nil")
	case opts.Objects == nil:
		return nil, fmt.Errorf("object store cannot be nil")
	case opts.Ledger == nil:
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if opts.Downloader == nil {
		opts.Downloader = NewMemoryDownloader()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		templates:  opts.Templates,
		generator:  opts.Generator,
		objects:    opts.Objects,
		ledger:     opts.Ledger,
		downloader: opts.Downloader,
		log:        logger.OrNop(opts.Logger).With("component", "orchestrator"),
		newID:      opts.NewID,
		now:        opts.Now,
	}, nil
}

// LoadTemplate returns the template and its mapping
func (o *Orchestrator) LoadTemplate(ctx context.Context, id string) (mapping.Template, mapping.Mapping, error) {
	return o.templates.Get(ctx, id)
}

// InitRecord returns the default record for m, prefilled from prefill
func (o *Orchestrator) InitRecord(m mapping.Mapping, prefill map[string]any) mapping.Record {
	return fill.BuildDefaultRecord(m, prefill, o.now())
}

// Busy reports whether a submission is running
func (o *Orchestrator) Busy() bool {
	return o.inFlight.Load()
}

// Submit generates, stores, records and delivers one document. Nothing is
// written to the ledger unless generation and upload both succeed.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer o.inFlight.Store(false)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	tpl, m, err := o.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	rec := req.Record.Clone()
	data, err := o.generator.Generate(ctx, tpl, m, rec)
	if err != nil {
		o.log.Warn("generation failed", "template_id", tpl.ID, "error", err)
		if apperrors.TypeOf(err) == apperrors.ErrorTypeUnknown {
			return nil, apperrors.Render("submit", err)
		}
		return nil, err
	}

	id := o.newID()
	key := storage.DocumentKey(id)
	if err := o.objects.Put(ctx, key, data, "application/pdf"); err != nil {
		return nil, apperrors.Persistence("submit", fmt.Errorf("failed to upload %s: %w", key, err))
	}

	doc, err := o.ledger.CreateDocumentRecord(ctx, mapping.GeneratedDocument{
		ID:         id,
		TemplateID: tpl.ID,
		Record:     rec,
		OutputRef:  key,
		CreatedAt:  o.now().UTC(),
	})
	if err != nil {
		if derr := o.objects.Delete(context.WithoutCancel(ctx), key); derr != nil {
			o.log.Warn("failed to remove orphaned output", "key", key, "error", derr)
		}
		if apperrors.TypeOf(err) == apperrors.ErrorTypeUnknown {
			return nil, apperrors.Persistence("submit", err)
		}
		return nil, err
	}

	res := &Result{Document: doc, FileName: FileName(tpl.Name, id), Data: data}
	loc, err := o.downloader.Deliver(ctx, res.FileName, data)
	if err != nil {
		o.log.Warn("document recorded but delivery failed", "document_id", id, "error", err)
		res.DeliveryError = err.Error()
	} else {
		res.Location = loc
	}

	o.log.Info("document generated", "document_id", id, "template_id", tpl.ID, "bytes", len(data), "output_ref", key)
	return res, nil
}

func validateRequest(req SubmitRequest) error {
	if strings.TrimSpace(req.TemplateID) == "" {
		return apperrors.Validation("submit", "no template selected")
	}
	if err := req.Record.Validate(); err != nil {
		return err
	}
	var missing []string
	for _, k := range req.Required {
		if req.Record.IsEmpty(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperrors.Validation("submit", "required fields are empty: %s", strings.Join(missing, ", "))
	}
	return nil
}
