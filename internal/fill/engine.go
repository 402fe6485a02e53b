// Package fill merges a data record into a template source: positional
// stamping for PDF sources, slot substitution for tagged markup and a
// synthesized listing when no source exists.
package fill

import (
	"context"
	"fmt"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
)

// Kind is the path a fill took
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindMarkup   Kind = "markup"
	KindFallback Kind = "fallback"
)

// Filled is the result of merging a record into a template
type Filled struct {
	Kind       Kind
	SourceKey  string
	PDF        []byte      // KindPDF
	Placements []Placement // KindPDF
	Markup     string      // KindMarkup, KindFallback; starts with the static style
}

// Engine fills templates
type Engine struct {
	locator *Locator
	log     *logger.Logger
}

func NewEngine(fetcher SourceFetcher, log *logger.Logger) *Engine {
	return &Engine{
		locator: NewLocator(fetcher),
		log:     logger.OrNop(log).With("component", "fill"),
	}
}

// Fill merges rec into tpl using m. The result depends only on the inputs
// and the stored source bytes.
func (e *Engine) Fill(ctx context.Context, tpl mapping.Template, m mapping.Mapping, rec mapping.Record) (*Filled, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	src, found, err := e.locator.Locate(ctx, tpl)
	if err != nil {
		return nil, err
	}
	if !found {
		e.log.Warn("template source not found; using fallback listing", "template_id", tpl.ID)
		return &Filled{
			Kind:   KindFallback,
			Markup: withStaticStyle(FallbackMarkup(tpl.Name, rec)),
		}, nil
	}

	if pdf.IsPDF(src.Data) {
		return e.fillPDF(src, m, rec)
	}
	return e.fillMarkup(src, rec)
}

func (e *Engine) fillPDF(src Source, m mapping.Mapping, rec mapping.Record) (*Filled, error) {
	info, err := pdf.Inspect(src.Data)
	if err != nil {
		return nil, apperrors.Render("fill_pdf", fmt.Errorf("source %s: %w", src.Key, err))
	}
	plan, err := PlanPlacements(info.Pages, m, rec)
	if err != nil {
		return nil, err
	}
	out, err := ApplyPlacements(src.Data, plan)
	if err != nil {
		return nil, err
	}
	e.log.Debug("filled PDF source", "source_key", src.Key, "placements", len(plan), "pages", info.PageCount)
	return &Filled{Kind: KindPDF, SourceKey: src.Key, PDF: out, Placements: plan}, nil
}

func (e *Engine) fillMarkup(src Source, rec mapping.Record) (*Filled, error) {
	doc, err := ParseTagged(src.Data)
	if err != nil {
		return nil, err
	}
	markup, err := doc.Substitute(rec)
	if err != nil {
		return nil, err
	}
	e.log.Debug("filled tagged source", "source_key", src.Key, "slots", len(doc.Slots))
	return &Filled{Kind: KindMarkup, SourceKey: src.Key, Markup: withStaticStyle(markup)}, nil
}
