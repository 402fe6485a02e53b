package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	ledongthuc "github.com/ledongthuc/pdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/a3tai/mcp-pdf-templates/internal/logger"
)

const (
	// DefaultScale renders one PDF point as 1.5 pixels
	DefaultScale = 1.5
	maxScale     = 8.0
	maxPixels    = 40_000_000
)

// PageImage is one rendered page
type PageImage struct {
	PageIndex   int         `json:"page_index"`
	PixelWidth  int         `json:"pixel_width"`
	PixelHeight int         `json:"pixel_height"`
	Scale       float64     `json:"scale"`
	Raster      image.Image `json:"-"`
}

// EncodePNG writes the raster as PNG
func (p *PageImage) EncodePNG(w io.Writer) error {
	return png.Encode(w, p.Raster)
}

// PageRenderer rasterises source pages for the field overlay. Page geometry
// comes from pdfcpu, text runs from ledongthuc/pdf, drawing from gg.
type PageRenderer struct {
	cache *pageCache
	log   *logger.Logger

	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
}

// NewPageRenderer creates a renderer with an LRU cache of cacheSize pages
func NewPageRenderer(cacheSize int, log *logger.Logger) *PageRenderer {
	return &PageRenderer{
		cache: newPageCache(cacheSize),
		log:   logger.OrNop(log).With("component", "page_renderer"),
	}
}

// PageCount reports the page count of src
func (r *PageRenderer) PageCount(src []byte) (int, error) {
	return PageCount(src)
}

// CacheStats returns the page cache statistics
func (r *PageRenderer) CacheStats() CacheStats {
	return r.cache.stats()
}

// RenderPage renders page pageIndex (0-based) of src at scale pixels per point
func (r *PageRenderer) RenderPage(src []byte, pageIndex int, scale float64) (*PageImage, error) {
	if scale <= 0 {
		scale = DefaultScale
	}
	if scale > maxScale {
		return nil, fmt.Errorf("scale %.2f exceeds maximum %.0f", scale, maxScale)
	}

	key := cacheKey(src, pageIndex, scale)
	if img, ok := r.cache.get(key); ok {
		return img, nil
	}

	info, err := Inspect(src)
	if err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= info.PageCount {
		return nil, fmt.Errorf("invalid page index %d (document has %d pages)", pageIndex, info.PageCount)
	}

	dim := info.Pages[pageIndex]
	w := int(dim.Width*scale + 0.5)
	h := int(dim.Height*scale + 0.5)
	if w <= 0 || h <= 0 || w*h > maxPixels {
		return nil, fmt.Errorf("page %d renders to an unsupported size %dx%d", pageIndex, w, h)
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	runs, err := textRuns(src, pageIndex)
	if err != nil {
		// Geometry is enough for the overlay; text is best effort.
		r.log.Debug("text extraction failed; rendering blank page", "page", pageIndex, "error", err)
	}
	if len(runs) > 0 {
		if err := r.drawText(dc, runs, dim.Height, scale); err != nil {
			return nil, err
		}
	}

	img := &PageImage{
		PageIndex:   pageIndex,
		PixelWidth:  w,
		PixelHeight: h,
		Scale:       scale,
		Raster:      dc.Image(),
	}
	r.cache.put(key, img)
	return img, nil
}

type textRun struct {
	X, Y     float64
	FontSize float64
	S        string
}

func textRuns(src []byte, pageIndex int) (runs []textRun, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed content streams
		if rec := recover(); rec != nil {
			runs, err = nil, fmt.Errorf("text extraction panic: %v", rec)
		}
	}()

	reader, err := ledongthuc.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	page := reader.Page(pageIndex + 1)
	if page.V.IsNull() {
		return nil, nil
	}
	for _, t := range page.Content().Text {
		if t.S == "" {
			continue
		}
		runs = append(runs, textRun{X: t.X, Y: t.Y, FontSize: t.FontSize, S: t.S})
	}
	return runs, nil
}

func (r *PageRenderer) drawText(dc *gg.Context, runs []textRun, pageHeightPt, scale float64) error {
	r.fontOnce.Do(func() {
		r.font, r.fontErr = truetype.Parse(goregular.TTF)
	})
	if r.fontErr != nil {
		return fmt.Errorf("failed to load render font: %w", r.fontErr)
	}

	faces := make(map[float64]font.Face)
	defer func() {
		for _, f := range faces {
			_ = f.Close()
		}
	}()

	dc.SetRGB(0.15, 0.15, 0.15)
	for _, run := range runs {
		size := run.FontSize
		if size <= 0 {
			size = 10
		}
		px := size * scale
		face, ok := faces[px]
		if !ok {
			face = truetype.NewFace(r.font, &truetype.Options{Size: px, DPI: 72})
			faces[px] = face
		}
		dc.SetFontFace(face)
		dc.DrawString(run.S, run.X*scale, (pageHeightPt-run.Y)*scale)
	}
	return nil
}

func cacheKey(src []byte, pageIndex int, scale float64) string {
	sum := sha256.Sum256(src)
	return fmt.Sprintf("%s:%d:%.3f", hex.EncodeToString(sum[:8]), pageIndex, scale)
}
