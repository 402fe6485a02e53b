package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BlockKind decides how a block may be broken across pages
type BlockKind int

const (
	BlockParagraph BlockKind = iota // splits between lines
	BlockHeading                    // kept with the next block
	BlockAtomic                     // never split unless taller than a page
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeading:
		return "heading"
	case BlockAtomic:
		return "atomic"
	default:
		return "paragraph"
	}
}

// Style is the typographic style of a block
type Style struct {
	Size float64
	Bold bool
}

var (
	styleBody  = Style{Size: 10.5}
	styleTable = Style{Size: 10}
	headings   = map[int]Style{
		1: {Size: 18, Bold: true},
		2: {Size: 15, Bold: true},
		3: {Size: 13, Bold: true},
	}
)

func headingStyle(level int) Style {
	if s, ok := headings[level]; ok {
		return s
	}
	return Style{Size: 11.5, Bold: true}
}

// Block is one layout unit of filled markup. Paragraphs are wrapped
// individually; a block may hold several.
type Block struct {
	Kind      BlockKind
	Level     int // headings only
	Style     Style
	Class     string
	Paragraph []string
}

var atomicClasses = []string{"clause", "signature", "keep-together"}

// ParseBlocks turns filled markup into layout blocks in document order.
// Containers without layout meaning are flattened.
func ParseBlocks(markup string) ([]Block, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, err
	}
	var p blockParser
	for _, n := range nodes {
		p.visit(n)
	}
	p.flushInline()
	return p.blocks, nil
}

type blockParser struct {
	blocks []Block
	inline strings.Builder
}

func (p *blockParser) visit(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		p.inline.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch {
	case isHeading(n):
		p.flushInline()
		level := int(n.Data[1] - '0')
		p.push(Block{Kind: BlockHeading, Level: level, Style: headingStyle(level), Paragraph: []string{textOf(n)}})
	case n.DataAtom == atom.Table:
		p.flushInline()
		p.push(Block{Kind: BlockAtomic, Style: styleTable, Class: attr(n, "class"), Paragraph: tableRows(n)})
	case isAtomic(n):
		p.flushInline()
		p.push(Block{Kind: BlockAtomic, Style: styleBody, Class: attr(n, "class"), Paragraph: paragraphsOf(n)})
	case n.DataAtom == atom.P || n.DataAtom == atom.Li || n.DataAtom == atom.Blockquote:
		p.flushInline()
		p.push(Block{Kind: BlockParagraph, Style: styleBody, Class: attr(n, "class"), Paragraph: []string{textOf(n)}})
	case n.DataAtom == atom.Br:
		p.flushInline()
	case isContainer(n):
		p.flushInline()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.visit(c)
		}
		p.flushInline()
	case n.DataAtom == atom.Script || n.DataAtom == atom.Style:
	default:
		p.inline.WriteString(textOf(n))
	}
}

func (p *blockParser) flushInline() {
	text := collapse(p.inline.String())
	p.inline.Reset()
	if text != "" {
		p.blocks = append(p.blocks, Block{Kind: BlockParagraph, Style: styleBody, Paragraph: []string{text}})
	}
}

func (p *blockParser) push(b Block) {
	kept := b.Paragraph[:0]
	for _, para := range b.Paragraph {
		if para = collapse(para); para != "" {
			kept = append(kept, para)
		}
	}
	if len(kept) == 0 {
		return
	}
	b.Paragraph = kept
	p.blocks = append(p.blocks, b)
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

func isAtomic(n *html.Node) bool {
	if attr(n, "data-keep") == "together" {
		return true
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		for _, a := range atomicClasses {
			if c == a {
				return true
			}
		}
	}
	return false
}

func isContainer(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main,
		atom.Ul, atom.Ol, atom.Body, atom.Html:
		return true
	}
	return false
}

// paragraphsOf splits an atomic block into its block-level children
func paragraphsOf(n *html.Node) []string {
	var out []string
	var inline strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.P || c.DataAtom == atom.Div || c.DataAtom == atom.Li || isHeading(c)) {
			out = append(out, inline.String(), textOf(c))
			inline.Reset()
			continue
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			out = append(out, inline.String())
			inline.Reset()
			continue
		}
		inline.WriteString(textOf(c))
	}
	return append(out, inline.String())
}

// tableRows renders each row as one line. Two-cell rows led by a header
// cell read as "label: value".
func tableRows(n *html.Node) []string {
	var rows []string
	walk(n, func(tr *html.Node) {
		if tr.Type != html.ElementNode || tr.DataAtom != atom.Tr {
			return
		}
		var cells []string
		headerFirst := false
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
				continue
			}
			if len(cells) == 0 && c.DataAtom == atom.Th {
				headerFirst = true
			}
			cells = append(cells, collapse(textOf(c)))
		}
		if len(cells) == 2 && headerFirst {
			rows = append(rows, cells[0]+": "+cells[1])
			return
		}
		rows = append(rows, strings.Join(cells, " | "))
	})
	return rows
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			b.WriteString(" ")
		}
	})
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
