// Package render lays filled markup out on pages and produces the final
// PDF, adding the brand mark and page numbers to every page.
package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/fill"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
)

// DefaultSettleTimeout bounds how long a render waits for its assets
const DefaultSettleTimeout = 5 * time.Second

var gofpdfPNG = gofpdf.ImageOptions{ImageType: "PNG"}

// Options configures a Renderer
type Options struct {
	Geometry      PageGeometry
	Brand         BrandOptions
	SettleTimeout time.Duration
	Logger        *logger.Logger
}

// Renderer turns fill results into paginated PDFs
type Renderer struct {
	geometry PageGeometry
	assets   *Assets
	settle   time.Duration
	log      *logger.Logger
}

// New creates a renderer and starts loading its assets with ctx
func New(ctx context.Context, opts Options) *Renderer {
	if opts.Geometry.Width == 0 {
		opts.Geometry = A4
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = DefaultSettleTimeout
	}
	log := logger.OrNop(opts.Logger).With("component", "render")
	return &Renderer{
		geometry: opts.Geometry,
		assets:   LoadAssets(ctx, opts.Brand, log),
		settle:   opts.SettleTimeout,
		log:      log,
	}
}

// Render produces the output PDF of a fill result
func (r *Renderer) Render(ctx context.Context, filled *fill.Filled) ([]byte, error) {
	if filled == nil {
		return nil, apperrors.Render("render", fmt.Errorf("nothing to render"))
	}
	if err := r.assets.Wait(ctx, r.settle); err != nil {
		return nil, apperrors.Render("render", fmt.Errorf("surface not ready: %w", err))
	}

	if filled.Kind == fill.KindPDF {
		out, err := StampNative(filled.PDF, r.assets.name)
		if err != nil {
			return nil, apperrors.Render("render", err)
		}
		return out, nil
	}
	return r.RenderMarkup(filled.Markup)
}

// RenderMarkup paginates markup and writes it as PDF
func (r *Renderer) RenderMarkup(markup string) ([]byte, error) {
	blocks, err := ParseBlocks(markup)
	if err != nil {
		return nil, apperrors.Render("render_markup", fmt.Errorf("failed to parse markup: %w", err))
	}

	var out bytes.Buffer
	err = withSurface(r.geometry, r.assets, func(s *surface) error {
		pages := Paginate(blocks, gofpdfMeasurer{s: s}, r.geometry)
		for _, p := range pages {
			s.doc.AddPage()
			for _, it := range p.Items {
				drawItem(s, it)
			}
		}
		drawFurniture(s, len(pages))

		if err := s.doc.Error(); err != nil {
			return err
		}
		if err := s.doc.Output(&out); err != nil {
			return err
		}
		r.log.Debug("rendered markup", "blocks", len(blocks), "pages", len(pages), "bytes", out.Len())
		return nil
	})
	if err != nil {
		return nil, apperrors.Render("render_markup", err)
	}
	return out.Bytes(), nil
}

func drawItem(s *surface, it Item) {
	g := s.geometry
	m := gofpdfMeasurer{s: s}
	m.setStyle(it.Style)

	y := it.Y
	if lead := leadFor(it.Class, it.Continued); lead > 0 {
		s.doc.SetDrawColor(0x99, 0x99, 0x99)
		s.doc.Line(g.MarginLeft, y+2, g.MarginLeft+g.ContentWidth()*0.45, y+2)
		y += lead
	}
	for _, l := range it.Lines {
		s.doc.SetXY(g.MarginLeft, y)
		s.doc.CellFormat(g.ContentWidth(), it.Style.Size*1.35, coreText(l.Text), "", 0, "L", false, 0, "")
		y += l.LineHeight
	}
}
