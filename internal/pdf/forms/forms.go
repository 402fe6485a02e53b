// Package forms reads the native AcroForm widgets of a PDF and turns them
// into draft fields linked to the native field names.
package forms

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// NativeType is the AcroForm field type (FT entry)
type NativeType string

const (
	NativeText      NativeType = "text"
	NativeCheckbox  NativeType = "checkbox"
	NativeRadio     NativeType = "radio"
	NativeButton    NativeType = "button"
	NativeChoice    NativeType = "choice"
	NativeSignature NativeType = "signature"
	NativeUnknown   NativeType = "unknown"
)

// Rect is a widget rectangle in PDF points, origin bottom-left
type Rect struct {
	LLX float64 `json:"llx"`
	LLY float64 `json:"lly"`
	URX float64 `json:"urx"`
	URY float64 `json:"ury"`
}

// NativeField is one widget of a native form field
type NativeField struct {
	Name       string     `json:"name"`
	Type       NativeType `json:"type"`
	Page       int        `json:"page"` // 0-based
	Rect       Rect       `json:"rect"`
	PageWidth  float64    `json:"page_width"`
	PageHeight float64    `json:"page_height"`
	FontSize   float64    `json:"font_size,omitempty"`
	Required   bool       `json:"required,omitempty"`
	ReadOnly   bool       `json:"read_only,omitempty"`
}

// Extractor walks page annotations with pdfcpu
type Extractor struct {
	debugMode bool
	debugOut  io.Writer
}

// NewExtractor creates a form extractor; debug output goes to w when non-nil
func NewExtractor(w io.Writer) *Extractor {
	return &Extractor{debugMode: w != nil, debugOut: w}
}

// Extract returns every widget found on the pages of data, in page order
func (e *Extractor) Extract(data []byte) ([]NativeField, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	var fields []NativeField
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			e.debugf("skipping page %d: %v\n", pageNr, err)
			continue
		}
		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			e.debugf("page %d: bad Annots array: %v\n", pageNr, err)
			continue
		}
		for _, annotObj := range annots {
			widget, err := ctx.DereferenceDict(annotObj)
			if err != nil || widget == nil {
				continue
			}
			if subtype := widget.NameEntry("Subtype"); subtype == nil || *subtype != "Widget" {
				continue
			}
			field, ok := e.processWidget(ctx, widget)
			if !ok {
				continue
			}
			field.Page = pageNr - 1
			if pageNr-1 < len(dims) {
				field.PageWidth = dims[pageNr-1].Width
				field.PageHeight = dims[pageNr-1].Height
			}
			fields = append(fields, field)
		}
	}
	return fields, nil
}

func (e *Extractor) processWidget(ctx *model.Context, widget types.Dict) (NativeField, bool) {
	var field NativeField

	// Merged field/widget dictionaries carry T; otherwise it sits on Parent.
	fieldDict := widget
	if _, found := widget.Find("T"); !found {
		parentObj, found := widget.Find("Parent")
		if !found {
			return field, false
		}
		parent, err := ctx.DereferenceDict(parentObj)
		if err != nil || parent == nil {
			return field, false
		}
		fieldDict = parent
	}

	if nameObj, found := fieldDict.Find("T"); found {
		if name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
			field.Name = name
		}
	}
	if field.Name == "" {
		return field, false
	}

	flags := 0
	if flagsObj, found := fieldDict.Find("Ff"); found {
		if v, err := ctx.DereferenceInteger(flagsObj); err == nil && v != nil {
			flags = int(*v)
		}
	}
	field.ReadOnly = flags&1 != 0
	field.Required = flags&2 != 0
	field.Type = fieldType(ctx, fieldDict, flags)

	rectObj, found := widget.Find("Rect")
	if !found {
		return field, false
	}
	rect, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rect) != 4 {
		return field, false
	}
	coords := make([]float64, 4)
	for i, c := range rect {
		if f, err := ctx.DereferenceNumber(c); err == nil {
			coords[i] = f
		}
	}
	field.Rect = Rect{
		LLX: minf(coords[0], coords[2]), LLY: minf(coords[1], coords[3]),
		URX: maxf(coords[0], coords[2]), URY: maxf(coords[1], coords[3]),
	}

	if daObj, found := fieldDict.Find("DA"); found {
		if da, err := ctx.DereferenceStringOrHexLiteral(daObj, model.V10, nil); err == nil {
			field.FontSize = fontSizeFromDA(da)
		}
	}

	e.debugf("widget %q type=%s rect=%v\n", field.Name, field.Type, field.Rect)
	return field, true
}

func fieldType(ctx *model.Context, fieldDict types.Dict, flags int) NativeType {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parent, err := ctx.DereferenceDict(parentObj); err == nil && parent != nil {
				return fieldType(ctx, parent, flags)
			}
		}
		return NativeUnknown
	}
	ft, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return NativeUnknown
	}
	switch ft {
	case "Btn":
		if flags&(1<<15) != 0 {
			return NativeRadio
		}
		if flags&(1<<16) != 0 {
			return NativeButton
		}
		return NativeCheckbox
	case "Tx":
		return NativeText
	case "Ch":
		return NativeChoice
	case "Sig":
		return NativeSignature
	default:
		return NativeUnknown
	}
}

// fontSizeFromDA reads the size operand of "Tf" in a default appearance string
func fontSizeFromDA(da string) float64 {
	parts := strings.Fields(da)
	for i := 1; i < len(parts); i++ {
		if parts[i] == "Tf" {
			var size float64
			if _, err := fmt.Sscanf(parts[i-1], "%f", &size); err == nil {
				return size
			}
		}
	}
	return 0
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// DataKey derives a data key from a native field name
func DataKey(name string) string {
	key := nonKeyChars.ReplaceAllString(strings.ToLower(name), "_")
	key = strings.Trim(key, "_")
	if key == "" {
		return "field"
	}
	return key
}

// DraftMapping converts native widgets into fields linked by FormField.
// Push buttons and zero-size widgets are skipped.
func DraftMapping(native []NativeField) mapping.Mapping {
	out := mapping.Mapping{}
	used := make(map[string]int)
	for _, n := range native {
		if n.Type == NativeButton || n.PageWidth <= 0 || n.PageHeight <= 0 {
			continue
		}
		w := (n.Rect.URX - n.Rect.LLX) / n.PageWidth
		h := (n.Rect.URY - n.Rect.LLY) / n.PageHeight
		if w <= 0 || h <= 0 {
			continue
		}
		f := mapping.Field{
			Type:      fieldKind(n),
			DataKey:   DataKey(n.Name),
			Page:      n.Page,
			X:         n.Rect.LLX / n.PageWidth,
			Y:         1 - n.Rect.URY/n.PageHeight,
			Width:     w,
			Height:    h,
			FontSize:  n.FontSize,
			FormField: n.Name,
		}.ClampBox()

		base := "native_" + f.DataKey
		used[base]++
		f.ID = base
		if used[base] > 1 {
			f.ID = fmt.Sprintf("%s_%d", base, used[base])
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Y < out[j].Y
	})
	return out
}

func fieldKind(n NativeField) mapping.FieldType {
	switch n.Type {
	case NativeCheckbox, NativeRadio:
		return mapping.FieldTypeCheckbox
	case NativeSignature:
		return mapping.FieldTypeSignature
	}
	lower := strings.ToLower(n.Name)
	if strings.Contains(lower, "date") || strings.Contains(lower, "data") {
		return mapping.FieldTypeDate
	}
	return mapping.FieldTypeText
}

func (e *Extractor) debugf(format string, args ...any) {
	if e.debugMode {
		fmt.Fprintf(e.debugOut, format, args...)
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
