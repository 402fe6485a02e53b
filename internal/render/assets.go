package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-pdf-templates/internal/logger"
)

// BrandOptions selects the brand mark drawn in the header band
type BrandOptions struct {
	Name      string // rendered as a text mark when no image is given
	ImagePath string // PNG file
	Color     string // hex, text mark only
}

// Assets are the resources a render needs before drawing. Loading starts
// in the background; Wait blocks until it settles.
type Assets struct {
	ready    chan struct{}
	err      error
	brandPNG []byte
	name     string
}

// LoadAssets starts loading brand assets concurrently
func LoadAssets(ctx context.Context, opts BrandOptions, log *logger.Logger) *Assets {
	a := &Assets{ready: make(chan struct{}), name: opts.Name}
	log = logger.OrNop(log).With("component", "render_assets")

	go func() {
		defer close(a.ready)

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		if opts.ImagePath != "" {
			g.Go(func() error {
				data, err := os.ReadFile(opts.ImagePath)
				if err != nil {
					return fmt.Errorf("failed to read brand image: %w", err)
				}
				if !bytes.HasPrefix(data, []byte("\x89PNG")) {
					return fmt.Errorf("brand image %s is not a PNG", opts.ImagePath)
				}
				mu.Lock()
				a.brandPNG = data
				mu.Unlock()
				return nil
			})
		} else if strings.TrimSpace(opts.Name) != "" {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				data, err := brandMark(opts.Name, opts.Color)
				if err != nil {
					return err
				}
				mu.Lock()
				a.brandPNG = data
				mu.Unlock()
				return nil
			})
		}
		a.err = g.Wait()
		if a.err != nil {
			log.Warn("brand assets failed to load", "error", a.err)
		}
	}()
	return a
}

// Wait blocks until the assets are loaded, ctx ends or timeout passes
func (a *Assets) Wait(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultSettleTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-a.ready:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("assets not ready after %s", timeout)
	}
}

// BrandPNG returns the brand mark once loaded
func (a *Assets) BrandPNG() []byte {
	select {
	case <-a.ready:
		return a.brandPNG
	default:
		return nil
	}
}

// brandMark rasterises name as a PNG text mark
func brandMark(name, hex string) ([]byte, error) {
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse brand font: %w", err)
	}
	const px = 48.0
	face := truetype.NewFace(f, &truetype.Options{Size: px})
	defer face.Close()

	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	w, _ := measure.MeasureString(name)

	dc := gg.NewContext(int(w)+16, int(math.Ceil(px*1.4)))
	dc.SetFontFace(face)
	dc.SetColor(parseHex(hex))
	dc.DrawStringAnchored(name, 8, px*0.7, 0, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode brand mark: %w", err)
	}
	return buf.Bytes(), nil
}

func parseHex(s string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(strings.TrimPrefix(s, "#"), "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{R: 0x1f, G: 0x3a, B: 0x5f, A: 0xff}
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
