package fill

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
)

const (
	maxAutoFontSize = 11
	minFontSize     = 6
	boxPadding      = 2.0
	capHeightRatio  = 0.7
)

// Placement is one piece of text to stamp, in PDF points from the
// bottom-left corner of its page.
type Placement struct {
	FieldID  string  `json:"fieldId"`
	Page     int     `json:"page"` // 0-based
	Text     string  `json:"text"`
	Font     string  `json:"font"`
	FontSize int     `json:"fontSize"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// PlanPlacements computes where every non-blank value of rec lands on the
// pages described by dims. Identical inputs always yield the same plan.
func PlanPlacements(dims []pdf.PageDim, m mapping.Mapping, rec mapping.Record) ([]Placement, error) {
	metrics := newMetrics()
	var out []Placement
	for _, f := range m {
		if f.Page < 0 || f.Page >= len(dims) {
			return nil, apperrors.Validation("plan_placements", "field %s is on page %d but the source has %d pages", f.ID, f.Page, len(dims))
		}
		text := strings.TrimSpace(strings.ReplaceAll(mapping.FormatValue(f.Type, rec[f.DataKey]), "\n", " "))
		if text == "" {
			continue
		}

		page := dims[f.Page]
		left := f.X * page.Width
		boxW := f.Width * page.Width
		boxH := f.Height * page.Height
		bottom := page.Height * (1 - f.Y - f.Height)

		font := "Helvetica"
		align := f.Align
		switch f.Type {
		case mapping.FieldTypeCheckbox:
			font = "Helvetica-Bold"
			align = mapping.AlignCenter
		case mapping.FieldTypeSignature:
			font = "Helvetica-Oblique"
		}

		size := f.FontSize
		if size <= 0 {
			size = math.Min(maxAutoFontSize, boxH*0.75)
		}
		size = math.Max(minFontSize, math.Round(size))

		textW := metrics.width(font, size, text)
		for textW > boxW-2*boxPadding && size > minFontSize {
			size--
			textW = metrics.width(font, size, text)
		}

		var x float64
		switch align {
		case mapping.AlignCenter:
			x = left + (boxW-textW)/2
		case mapping.AlignRight:
			x = left + boxW - boxPadding - textW
		default:
			x = left + boxPadding
		}
		x = math.Max(left, x)
		y := bottom + math.Max(0, (boxH-size*capHeightRatio)/2)

		out = append(out, Placement{
			FieldID:  f.ID,
			Page:     f.Page,
			Text:     text,
			Font:     font,
			FontSize: int(size),
			X:        round2(x),
			Y:        round2(y),
		})
	}
	return out, nil
}

// ApplyPlacements stamps the planned text onto src with pdfcpu
func ApplyPlacements(src []byte, placements []Placement) ([]byte, error) {
	if len(placements) == 0 {
		return append([]byte(nil), src...), nil
	}

	byPage := make(map[int][]*model.Watermark)
	for _, p := range placements {
		desc := fmt.Sprintf("font:%s, points:%d, pos:bl, off:%.2f %.2f, scale:1 abs, rot:0, fillc:#000000, op:1",
			p.Font, p.FontSize, p.X, p.Y)
		wm, err := api.TextWatermark(p.Text, desc, true, false, types.POINTS)
		if err != nil {
			return nil, apperrors.Render("apply_placements", fmt.Errorf("field %s: %w", p.FieldID, err))
		}
		byPage[p.Page+1] = append(byPage[p.Page+1], wm)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(src), &out, byPage, conf); err != nil {
		return nil, apperrors.Render("apply_placements", err)
	}
	return out.Bytes(), nil
}

// metrics measures core-font strings with gofpdf's built-in font tables
type metrics struct {
	doc *gofpdf.Fpdf
}

func newMetrics() *metrics {
	return &metrics{doc: gofpdf.New("P", "pt", "A4", "")}
}

func (m *metrics) width(font string, size float64, s string) float64 {
	family, style := "Helvetica", ""
	switch font {
	case "Helvetica-Bold":
		style = "B"
	case "Helvetica-Oblique":
		style = "I"
	}
	m.doc.SetFont(family, style, size)
	return m.doc.GetStringWidth(s)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
