package render

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"
)

// openSurfaces counts surfaces acquired and not yet released
var openSurfaces atomic.Int64

// surface is the drawing target of one render: a gofpdf document plus the
// assets registered into it.
type surface struct {
	doc      *gofpdf.Fpdf
	geometry PageGeometry
	assets   *Assets
	brandImg string
	released bool
}

func acquireSurface(g PageGeometry, assets *Assets) *surface {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: g.Width, Ht: g.Height},
	})
	doc.SetMargins(g.MarginLeft, g.MarginTop, g.MarginRight)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator("mcp-pdf-templates", true)

	s := &surface{
		doc:      doc,
		geometry: g,
		assets:   assets,
	}
	if assets != nil && len(assets.BrandPNG()) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		doc.RegisterImageOptionsReader("brand", opts, bytes.NewReader(assets.BrandPNG()))
		s.brandImg = "brand"
	}
	openSurfaces.Add(1)
	return s
}

func (s *surface) release() {
	if s.released {
		return
	}
	s.released = true
	s.doc = nil
	s.assets = nil
	openSurfaces.Add(-1)
}

// withSurface runs fn on a fresh surface and releases it on every path,
// including a panic inside the drawing code.
func withSurface(g PageGeometry, assets *Assets, fn func(*surface) error) (err error) {
	s := acquireSurface(g, assets)
	defer s.release()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("layout panic: %v", rec)
		}
	}()
	return fn(s)
}

// coreText encodes text for the core fonts, which cover cp1252 only.
// Runes outside it become '?'.
func coreText(text string) string {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return string(out)
}

// gofpdfMeasurer measures with the surface's core fonts. Lines stay UTF-8;
// encoding happens per line when drawing.
type gofpdfMeasurer struct {
	s *surface
}

func (m gofpdfMeasurer) setStyle(st Style) {
	style := ""
	if st.Bold {
		style = "B"
	}
	m.s.doc.SetFont("Helvetica", style, st.Size)
}

func (m gofpdfMeasurer) width(text string) float64 {
	return m.s.doc.GetStringWidth(coreText(text))
}

// Wrap breaks text greedily at spaces. A word wider than the line is cut
// between runes.
func (m gofpdfMeasurer) Wrap(text string, st Style, width float64) []string {
	m.setStyle(st)
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if m.width(candidate) <= width {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
			line = ""
		}
		for m.width(word) > width && utf8.RuneCountInString(word) > 1 {
			head := m.cut(word, width)
			lines = append(lines, head)
			word = word[len(head):]
		}
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// cut returns the longest rune prefix of word that fits width, at least
// one rune
func (m gofpdfMeasurer) cut(word string, width float64) string {
	end := 0
	for i, r := range word {
		next := i + utf8.RuneLen(r)
		if end > 0 && m.width(word[:next]) > width {
			break
		}
		end = next
	}
	return word[:end]
}

func (m gofpdfMeasurer) LineHeight(st Style) float64 {
	return st.Size * 1.35
}
