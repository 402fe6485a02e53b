package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/fill"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf/pdftest"
)

// wordMeasurer wraps every 8 words onto one 10pt line
type wordMeasurer struct{}

func (wordMeasurer) Wrap(text string, _ Style, _ float64) []string {
	words := strings.Fields(text)
	var lines []string
	for len(words) > 0 {
		n := 8
		if len(words) < n {
			n = len(words)
		}
		lines = append(lines, strings.Join(words[:n], " "))
		words = words[n:]
	}
	return lines
}

func (wordMeasurer) LineHeight(Style) float64 { return 10 }

var square = PageGeometry{Width: 200, Height: 200}

func words(lines int) string {
	return strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", lines))
}

func para(lines int) Block {
	return Block{Kind: BlockParagraph, Style: styleBody, Paragraph: []string{words(lines)}}
}

func atomicBlock(lines int) Block {
	return Block{Kind: BlockAtomic, Style: styleBody, Class: "clause", Paragraph: []string{words(lines)}}
}

func heading() Block {
	return Block{Kind: BlockHeading, Level: 2, Style: headingStyle(2), Paragraph: []string{"Section"}}
}

func kinds(p Page) []BlockKind {
	var out []BlockKind
	for _, it := range p.Items {
		out = append(out, it.Kind)
	}
	return out
}

func TestParseBlocks(t *testing.T) {
	markup := `<h1>Service agreement</h1>
<p>Between <span data-field="company" class="slot-filled">Acme Srl</span> and the supplier.</p>
loose text
<div><h2>Terms</h2><div class="clause"><p>One.</p><p>Two.</p></div></div>
<table class="record" data-keep="together"><tr><th>company</th><td>Acme Srl</td></tr><tr><td>a</td><td>b</td><td>c</td></tr></table>
<div class="signature">Signed<br>Director</div>`

	blocks, err := ParseBlocks(markup)
	require.NoError(t, err)
	require.Len(t, blocks, 7)

	assert.Equal(t, BlockHeading, blocks[0].Kind)
	assert.Equal(t, 1, blocks[0].Level)
	assert.Equal(t, []string{"Service agreement"}, blocks[0].Paragraph)

	assert.Equal(t, BlockParagraph, blocks[1].Kind)
	assert.Equal(t, []string{"Between Acme Srl and the supplier."}, blocks[1].Paragraph)

	assert.Equal(t, BlockParagraph, blocks[2].Kind)
	assert.Equal(t, []string{"loose text"}, blocks[2].Paragraph)

	assert.Equal(t, BlockHeading, blocks[3].Kind)
	assert.Equal(t, BlockAtomic, blocks[4].Kind)
	assert.Equal(t, []string{"One.", "Two."}, blocks[4].Paragraph)

	assert.Equal(t, BlockAtomic, blocks[5].Kind)
	assert.Equal(t, []string{"company: Acme Srl", "a | b | c"}, blocks[5].Paragraph)

	assert.Equal(t, BlockAtomic, blocks[6].Kind)
	assert.Equal(t, []string{"Signed", "Director"}, blocks[6].Paragraph)
}

func TestPaginate_SinglePage(t *testing.T) {
	pages := Paginate([]Block{heading(), para(3), atomicBlock(2)}, wordMeasurer{}, square)
	require.Len(t, pages, 1)
	assert.Equal(t, []BlockKind{BlockHeading, BlockParagraph, BlockAtomic}, kinds(pages[0]))
}

func TestPaginate_AtomicMovesWhole(t *testing.T) {
	pages := Paginate([]Block{para(15), atomicBlock(5)}, wordMeasurer{}, square)
	require.Len(t, pages, 2)
	assert.Equal(t, []BlockKind{BlockParagraph}, kinds(pages[0]))
	assert.Equal(t, []BlockKind{BlockAtomic}, kinds(pages[1]))
	assert.Len(t, pages[1].Items[0].Lines, 5)
	assert.False(t, pages[1].Items[0].Continued)
}

func TestPaginate_HeadingKeptWithNext(t *testing.T) {
	pages := Paginate([]Block{para(17), heading(), para(2)}, wordMeasurer{}, square)
	require.Len(t, pages, 2)
	assert.Equal(t, []BlockKind{BlockParagraph}, kinds(pages[0]))
	assert.Equal(t, []BlockKind{BlockHeading, BlockParagraph}, kinds(pages[1]))
}

func TestPaginate_HeadingCarriedWithAtomic(t *testing.T) {
	// the clause after the heading does not fit; both move together
	blocks := []Block{para(10), heading(), atomicBlock(4)}
	pages := Paginate(blocks, wordMeasurer{}, PageGeometry{Width: 200, Height: 160})
	require.Len(t, pages, 2)
	assert.Equal(t, []BlockKind{BlockParagraph}, kinds(pages[0]))
	assert.Equal(t, []BlockKind{BlockHeading, BlockAtomic}, kinds(pages[1]))
}

func TestPaginate_ParagraphSplits(t *testing.T) {
	pages := Paginate([]Block{para(30)}, wordMeasurer{}, square)
	require.Len(t, pages, 2)
	first, second := pages[0].Items[0], pages[1].Items[0]
	assert.Len(t, first.Lines, 19)
	assert.Len(t, second.Lines, 11)
	assert.True(t, second.Continued)
	assert.Equal(t, first.Block, second.Block)
}

func TestPaginate_OversizedAtomicSplits(t *testing.T) {
	pages := Paginate([]Block{atomicBlock(25)}, wordMeasurer{}, square)
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Items[0].Lines, 19)
	assert.Len(t, pages[1].Items[0].Lines, 6)
}

func TestPaginate_Invariants(t *testing.T) {
	blocks := []Block{heading(), para(4), atomicBlock(6), heading(), para(12), atomicBlock(3), heading(), atomicBlock(9), para(25), heading(), para(1)}
	pages := Paginate(blocks, wordMeasurer{}, square)

	total := 0
	for i, p := range pages {
		assert.Equal(t, i+1, p.Number)
		require.NotEmpty(t, p.Items)

		used := 0.0
		for _, it := range p.Items {
			used += it.Height
			total += len(it.Lines)
		}
		assert.LessOrEqual(t, used, square.ContentHeight(), "page %d overflows", p.Number)

		last := p.Items[len(p.Items)-1]
		if i < len(pages)-1 {
			assert.NotEqual(t, BlockHeading, last.Kind, "page %d ends with a heading", p.Number)
		}
		for _, it := range p.Items {
			if it.Kind == BlockAtomic {
				assert.False(t, it.Continued, "atomic block split on page %d", p.Number)
			}
		}
	}

	want := 0
	for _, b := range blocks {
		for _, para := range b.Paragraph {
			want += len(wordMeasurer{}.Wrap(para, b.Style, 0))
		}
	}
	assert.Equal(t, want, total, "no line is lost or duplicated")
}

func newTestRenderer(t *testing.T, brand BrandOptions) *Renderer {
	t.Helper()
	return New(context.Background(), Options{Brand: brand, SettleTimeout: 5 * time.Second, Logger: logger.Nop()})
}

func TestRenderMarkup(t *testing.T) {
	r := newTestRenderer(t, BrandOptions{Name: "Acme"})

	var b strings.Builder
	b.WriteString("<h1>Report</h1>")
	for i := 0; i < 40; i++ {
		b.WriteString("<h2>Clause</h2><div class=\"clause\"><p>" + words(4) + "</p></div>")
	}

	out, err := r.Render(context.Background(), &fill.Filled{Kind: fill.KindMarkup, Markup: b.String()})
	require.NoError(t, err)
	assert.True(t, pdf.IsPDF(out))

	n, err := pdf.PageCount(out)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	assert.Equal(t, int64(0), openSurfaces.Load())
}

func TestRender_Fallback(t *testing.T) {
	r := newTestRenderer(t, BrandOptions{})
	markup := fill.FallbackMarkup("Contract", map[string]any{"company": "Acme Srl"})

	out, err := r.Render(context.Background(), &fill.Filled{Kind: fill.KindFallback, Markup: markup})
	require.NoError(t, err)
	n, err := pdf.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRender_NativePDF(t *testing.T) {
	r := newTestRenderer(t, BrandOptions{Name: "Acme"})
	src := pdftest.Document(t, 3)

	out, err := r.Render(context.Background(), &fill.Filled{Kind: fill.KindPDF, PDF: src})
	require.NoError(t, err)
	n, err := pdf.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRender_NotReady(t *testing.T) {
	r := &Renderer{
		geometry: A4,
		assets:   &Assets{ready: make(chan struct{})},
		settle:   20 * time.Millisecond,
		log:      logger.Nop(),
	}
	_, err := r.Render(context.Background(), &fill.Filled{Kind: fill.KindMarkup, Markup: "<p>x</p>"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRender(err))
}

func TestLoadAssets(t *testing.T) {
	ctx := context.Background()

	a := LoadAssets(ctx, BrandOptions{Name: "Acme", Color: "#aa0000"}, nil)
	require.NoError(t, a.Wait(ctx, 5*time.Second))
	assert.True(t, bytes.HasPrefix(a.BrandPNG(), []byte("\x89PNG")))

	none := LoadAssets(ctx, BrandOptions{}, nil)
	require.NoError(t, none.Wait(ctx, 5*time.Second))
	assert.Empty(t, none.BrandPNG())

	missing := LoadAssets(ctx, BrandOptions{ImagePath: "/does/not/exist.png"}, nil)
	assert.Error(t, missing.Wait(ctx, 5*time.Second))
}

func TestWithSurface_Releases(t *testing.T) {
	before := openSurfaces.Load()

	err := withSurface(A4, nil, func(*surface) error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")
	assert.Equal(t, before, openSurfaces.Load())

	err = withSurface(A4, nil, func(*surface) error { panic("layout bug") })
	assert.ErrorContains(t, err, "layout bug")
	assert.Equal(t, before, openSurfaces.Load())
}

func TestPageLabel(t *testing.T) {
	assert.Equal(t, "Page 2 of 5", PageLabel(2, 5))
}

func TestPaginate_HeadingRunMovesTogether(t *testing.T) {
	pages := Paginate([]Block{para(15), heading(), heading(), para(3)}, wordMeasurer{}, square)
	require.Len(t, pages, 2)
	assert.Equal(t, []BlockKind{BlockParagraph}, kinds(pages[0]))
	assert.Equal(t, []BlockKind{BlockHeading, BlockHeading, BlockParagraph}, kinds(pages[1]))
	assert.Equal(t, square.ContentTop(), pages[1].Items[0].Y)
}

func TestPaginate_SignatureLeadCounted(t *testing.T) {
	sig := Block{Kind: BlockAtomic, Style: styleBody, Class: "signature", Paragraph: []string{"Signed", "Director"}}
	pages := Paginate([]Block{sig, para(1)}, wordMeasurer{}, square)
	require.Len(t, pages, 1)

	first, next := pages[0].Items[0], pages[0].Items[1]
	assert.Equal(t, blockGap+signatureLead+10+paragraphGap+10, first.Height)
	assert.Equal(t, first.Y+first.Height, next.Y)

	// without the rule the signature would still fit after the paragraph
	long := Block{Kind: BlockAtomic, Style: styleBody, Class: "signature", Paragraph: []string{words(17)}}
	pages = Paginate([]Block{para(1), long}, wordMeasurer{}, square)
	require.Len(t, pages, 2)
	assert.Equal(t, []BlockKind{BlockAtomic}, kinds(pages[1]))
	assert.False(t, pages[1].Items[0].Continued)
	for _, p := range pages {
		used := 0.0
		for _, it := range p.Items {
			used += it.Height
		}
		assert.LessOrEqual(t, used, square.ContentHeight())
	}
}

func TestParseBlocks_SkipsStyle(t *testing.T) {
	blocks, err := ParseBlocks(`<style>[data-field]{outline:none}</style>` + "\n<p>Body</p>")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"Body"}, blocks[0].Paragraph)
}

func TestCoreText(t *testing.T) {
	assert.Equal(t, "plain", coreText("plain"))
	assert.Equal(t, "Societ\xe0 \x80 ??", coreText("Società € 漢字"))
}

func TestGofpdfMeasurer_WrapNonASCII(t *testing.T) {
	text := "La società è obbligata a versare 1.200 € entro “trenta” giorni Präzisionsmessinstrumentenhersteller 漢字"
	err := withSurface(A4, nil, func(s *surface) error {
		m := gofpdfMeasurer{s: s}
		lines := m.Wrap(text, styleBody, 80)
		require.Greater(t, len(lines), 1)

		for _, l := range lines {
			if utf8.RuneCountInString(l) > 1 {
				assert.LessOrEqual(t, m.width(l), 80.0, "line %q", l)
			}
		}
		strip := func(s string) string { return strings.Join(strings.Fields(s), "") }
		assert.Equal(t, strip(text), strip(strings.Join(lines, " ")))
		return nil
	})
	require.NoError(t, err)
}

func TestRenderMarkup_NonASCII(t *testing.T) {
	r := newTestRenderer(t, BrandOptions{Name: "Società Rossi"})
	markup := `<h1>Contratto di fornitura</h1>
<p>La società è obbligata a versare 1.200 € alla “controparte” entro trenta giorni.</p>
<div class="signature">Firma<br>L'amministratore: Niccolò Bianchi</div>`

	out, err := r.RenderMarkup(markup)
	require.NoError(t, err)
	assert.True(t, pdf.IsPDF(out))
	assert.Equal(t, int64(0), openSurfaces.Load())

	fallback := fill.FallbackMarkup("Contratto", map[string]any{"company_name": "Società Rossi Srl", "amount": "1.200 €"})
	out, err = r.Render(context.Background(), &fill.Filled{Kind: fill.KindFallback, Markup: fallback})
	require.NoError(t, err)
	assert.True(t, pdf.IsPDF(out))
}
