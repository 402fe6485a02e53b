package fill

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// SlotAttr marks an element of tagged markup as a data slot
const SlotAttr = "data-field"

// SlotKind is the shape of a slot element
type SlotKind string

const (
	SlotInline SlotKind = "inline" // span-like, value replaces the content
	SlotInput  SlotKind = "input"  // form control, value becomes static text
	SlotBlock  SlotKind = "block"  // block element, value replaces the content
)

// Slot is one data-bearing element of a parsed template
type Slot struct {
	DataKey string
	Kind    SlotKind
	node    *html.Node
}

// Document is tagged markup parsed once with its slot descriptors
type Document struct {
	root  *html.Node
	Slots []Slot
}

// ParseTagged parses markup and records every element carrying data-field,
// in document order.
func ParseTagged(markup []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, apperrors.Validation("parse_template", "malformed template markup: %v", err)
	}
	doc := &Document{root: root}
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		key := strings.TrimSpace(attr(n, SlotAttr))
		if key == "" {
			return
		}
		doc.Slots = append(doc.Slots, Slot{DataKey: key, Kind: slotKind(n), node: n})
	})
	return doc, nil
}

// Keys returns the distinct slot keys in document order
func (d *Document) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range d.Slots {
		if !seen[s.DataKey] {
			seen[s.DataKey] = true
			keys = append(keys, s.DataKey)
		}
	}
	return keys
}

// Substitute writes every non-blank record value into its slots, strips
// the editing affordances and returns the body content. It mutates the
// parsed tree, so a Document fills exactly one record.
func (d *Document) Substitute(rec mapping.Record) (string, error) {
	for _, s := range d.Slots {
		value := rec.Text(s.DataKey)
		if strings.TrimSpace(value) == "" {
			if s.Kind == SlotInput {
				replaceWithText(s.node, "", "slot-blank")
			}
			continue
		}
		switch s.Kind {
		case SlotInput:
			replaceWithText(s.node, value, "slot-filled")
		default:
			setText(s.node, value)
			addClass(s.node, "slot-filled")
		}
	}
	stripAffordances(d.root)

	body := find(d.root, atom.Body)
	if body == nil {
		body = d.root
	}
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", apperrors.Render("substitute", fmt.Errorf("failed to serialise markup: %w", err))
		}
	}
	return sanitize(buf.String()), nil
}

func slotKind(n *html.Node) SlotKind {
	switch n.DataAtom {
	case atom.Input, atom.Textarea, atom.Select:
		return SlotInput
	case atom.Div, atom.P, atom.Td, atom.Th, atom.Li, atom.Section, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return SlotBlock
	default:
		return SlotInline
	}
}

// replaceWithText swaps a form control for a span carrying its slot key
func replaceWithText(n *html.Node, text, class string) {
	if n.Parent == nil {
		return
	}
	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: SlotAttr, Val: attr(n, SlotAttr)},
			{Key: "class", Val: class},
		},
	}
	if text != "" {
		span.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	n.Parent.InsertBefore(span, n)
	n.Parent.RemoveChild(n)
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

var editableClasses = map[string]bool{
	"editable":          true,
	"field-editable":    true,
	"field-placeholder": true,
	"placeholder":       true,
	"slot-highlight":    true,
}

// stripAffordances removes what made the markup editable: contenteditable,
// placeholders, inline event handlers and editing classes.
func stripAffordances(root *html.Node) {
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			switch {
			case key == "contenteditable", key == "placeholder", key == "tabindex",
				strings.HasPrefix(key, "on"):
				continue
			case key == "class":
				a.Val = filterClasses(a.Val)
				if a.Val == "" {
					continue
				}
			}
			kept = append(kept, a)
		}
		n.Attr = kept
	})
}

func filterClasses(v string) string {
	var out []string
	for _, c := range strings.Fields(v) {
		if !editableClasses[c] {
			out = append(out, c)
		}
	}
	return strings.Join(out, " ")
}

func addClass(n *html.Node, class string) {
	for i, a := range n.Attr {
		if a.Key == "class" {
			n.Attr[i].Val = strings.TrimSpace(a.Val + " " + class)
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

// walk visits n and its descendants depth-first. fn may not detach nodes.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
