package render

import "strings"

// Measurer wraps text and reports line heights for a style
type Measurer interface {
	Wrap(text string, style Style, width float64) []string
	LineHeight(style Style) float64
}

// PageGeometry is the page size and the reserved bands, in points
type PageGeometry struct {
	Width        float64
	Height       float64
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64
	HeaderBand   float64 // brand mark
	FooterBand   float64 // page numbers
}

// A4 is the default geometry
var A4 = PageGeometry{
	Width: 595.28, Height: 841.89,
	MarginTop: 42, MarginBottom: 42, MarginLeft: 56, MarginRight: 56,
	HeaderBand: 36, FooterBand: 24,
}

// ContentWidth is the width available to body text
func (g PageGeometry) ContentWidth() float64 {
	return g.Width - g.MarginLeft - g.MarginRight
}

// ContentHeight is the height available to body content on every page
func (g PageGeometry) ContentHeight() float64 {
	return g.Height - g.MarginTop - g.MarginBottom - g.HeaderBand - g.FooterBand
}

// ContentTop is the y coordinate where body content starts
func (g PageGeometry) ContentTop() float64 {
	return g.MarginTop + g.HeaderBand
}

// Line is one wrapped line of a block
type Line struct {
	Text       string
	ParaStart  bool // first line of a paragraph
	ParaEnd    bool // last line of a paragraph
	LineHeight float64
}

// Item is the part of a block placed on one page
type Item struct {
	Block     int // index into the paginated blocks
	Kind      BlockKind
	Style     Style
	Class     string
	Lines     []Line
	Continued bool // the block started on an earlier page
	Y         float64
	Height    float64
}

// Page is one laid-out page; Number is 1-based
type Page struct {
	Number int
	Items  []Item
}

// paragraphGap separates paragraphs, blockGap separates blocks,
// signatureLead is the rule drawn above a signature block
const (
	paragraphGap  = 4.0
	blockGap      = 8.0
	signatureLead = 6.0
)

// leadFor is the space drawn above the first line of a block
func leadFor(class string, continued bool) float64 {
	if continued || !strings.Contains(class, "signature") {
		return 0
	}
	return signatureLead
}

type measured struct {
	block  Block
	lines  []Line
	height float64
}

// Paginate lays blocks out on pages of geometry g. Pages break only when
// content no longer fits; atomic blocks move whole to the next page unless
// they are taller than a page, and a heading never ends a page while
// content follows it.
func Paginate(blocks []Block, m Measurer, g PageGeometry) []Page {
	capacity := g.ContentHeight()
	width := g.ContentWidth()

	ms := make([]measured, len(blocks))
	for i, b := range blocks {
		ms[i] = measure(b, m, width)
	}

	pages := []Page{{Number: 1}}
	used := 0.0
	newPage := func() {
		pages = append(pages, Page{Number: len(pages) + 1})
		used = 0
	}
	place := func(it Item) {
		p := &pages[len(pages)-1]
		it.Y = g.ContentTop() + used
		p.Items = append(p.Items, it)
		used += it.Height
	}
	remaining := func() float64 { return capacity - used }
	// breakPage starts a new page. A run of headings ending the current
	// page moves along when it fits together with need on the new page.
	breakPage := func(need float64) {
		p := &pages[len(pages)-1]
		k := len(p.Items)
		run := 0.0
		for k > 0 && p.Items[k-1].Kind == BlockHeading {
			k--
			run += p.Items[k].Height
		}
		var carry []Item
		if k > 0 && k < len(p.Items) && run+need <= capacity {
			carry = append(carry, p.Items[k:]...)
			p.Items = p.Items[:k]
			used -= run
		}
		newPage()
		for _, it := range carry {
			place(it)
		}
	}

	for i, mb := range ms {
		switch mb.block.Kind {
		case BlockHeading:
			need := mb.height + minNext(ms, i+1, capacity)
			if need > remaining() && used > 0 {
				breakPage(need)
			}
			place(item(i, mb, mb.lines, false))
			continue
		case BlockAtomic:
			if mb.height <= remaining() {
				place(item(i, mb, mb.lines, false))
				continue
			}
			if mb.height <= capacity {
				breakPage(mb.height)
				place(item(i, mb, mb.lines, false))
				continue
			}
			// Taller than a page: falls through and splits by lines.
		}

		lines := mb.lines
		continued := false
		for len(lines) > 0 {
			n := fitLines(lines, remaining()-leadFor(mb.block.Class, continued))
			if n == 0 {
				if used == 0 {
					n = 1 // a single line taller than the page still has to go somewhere
				} else {
					breakPage(leadFor(mb.block.Class, continued) + lines[0].LineHeight + blockGap)
					continue
				}
			}
			place(item(i, mb, lines[:n], continued))
			lines = lines[n:]
			continued = true
			if len(lines) > 0 {
				newPage()
			}
		}
	}

	if len(pages) > 1 && len(pages[len(pages)-1].Items) == 0 {
		pages = pages[:len(pages)-1]
	}
	return pages
}

func measure(b Block, m Measurer, width float64) measured {
	lh := m.LineHeight(b.Style)
	var lines []Line
	for pi, para := range b.Paragraph {
		wrapped := m.Wrap(para, b.Style, width)
		if len(wrapped) == 0 {
			wrapped = []string{""}
		}
		for li, text := range wrapped {
			l := Line{Text: text, LineHeight: lh, ParaStart: li == 0, ParaEnd: li == len(wrapped)-1}
			if l.ParaEnd && pi < len(b.Paragraph)-1 {
				l.LineHeight += paragraphGap
			}
			lines = append(lines, l)
		}
	}
	h := blockGap + leadFor(b.Class, false)
	for _, l := range lines {
		h += l.LineHeight
	}
	return measured{block: b, lines: lines, height: h}
}

// minNext is the space the block after a heading needs on the same page
func minNext(ms []measured, next int, capacity float64) float64 {
	if next >= len(ms) {
		return 0
	}
	mb := ms[next]
	switch mb.block.Kind {
	case BlockAtomic:
		if mb.height <= capacity {
			return mb.height
		}
	case BlockHeading:
		return mb.height
	}
	if len(mb.lines) == 0 {
		return 0
	}
	return mb.lines[0].LineHeight + blockGap
}

// fitLines counts the leading lines that fit in avail, reserving the gap
// that closes the block
func fitLines(lines []Line, avail float64) int {
	h := blockGap
	n := 0
	for _, l := range lines {
		if h+l.LineHeight > avail {
			break
		}
		h += l.LineHeight
		n++
	}
	return n
}

func item(idx int, mb measured, lines []Line, continued bool) Item {
	h := blockGap + leadFor(mb.block.Class, continued)
	for _, l := range lines {
		h += l.LineHeight
	}
	return Item{
		Block:     idx,
		Kind:      mb.block.Kind,
		Style:     mb.block.Style,
		Class:     mb.block.Class,
		Lines:     lines,
		Continued: continued,
		Height:    h,
	}
}
