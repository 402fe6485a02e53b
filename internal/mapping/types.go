// Package mapping defines templates, the fields mapped onto their pages,
// the data records used to fill them and the documents generated from them.
package mapping

import (
	"encoding/json"
	"time"
)

// FieldType is the kind of value a field holds
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeDate      FieldType = "date"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeSignature FieldType = "signature"
)

// Valid reports whether t is one of the known field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeDate, FieldTypeCheckbox, FieldTypeSignature:
		return true
	}
	return false
}

// Align is the horizontal alignment of a value inside its box
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Valid reports whether a is empty (default) or a known alignment
func (a Align) Valid() bool {
	switch a {
	case "", AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

const (
	// Minimum field size in pixels at edit-render scale
	MinFieldWidthPx  = 30.0
	MinFieldHeightPx = 20.0

	DefaultFieldX      = 0.1
	DefaultFieldY      = 0.1
	DefaultFieldWidth  = 0.2
	DefaultFieldHeight = 0.03

	// DateLayout is the display format of date values
	DateLayout = "02/01/2006"
)

// Template is a reusable source document plus its optional mapping
type Template struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category,omitempty"`
	SourceKey       string `json:"sourceKey,omitempty"`
	SourcePageCount int    `json:"sourcePageCount"`
	HasMapping      bool   `json:"hasMapping"`
}

// Field is a single mapped data slot on one page of a template.
// Geometry is normalized to the page: every coordinate lies in [0,1].
type Field struct {
	ID        string    `json:"id" yaml:"id"`
	Type      FieldType `json:"type" yaml:"type"`
	DataKey   string    `json:"dataKey" yaml:"dataKey"`
	Page      int       `json:"page" yaml:"page"`
	X         float64   `json:"x" yaml:"x"`
	Y         float64   `json:"y" yaml:"y"`
	Width     float64   `json:"width" yaml:"width"`
	Height    float64   `json:"height" yaml:"height"`
	FontSize  float64   `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	Align     Align     `json:"align,omitempty" yaml:"align,omitempty"`
	FormField string    `json:"formField,omitempty" yaml:"formField,omitempty"`
}

// Mapping is the ordered set of fields belonging to one template
type Mapping []Field

// Clone returns a deep copy of the mapping
func (m Mapping) Clone() Mapping {
	if m == nil {
		return nil
	}
	out := make(Mapping, len(m))
	copy(out, m)
	return out
}

// Find returns the index of the field with the given id, or -1
func (m Mapping) Find(id string) int {
	for i := range m {
		if m[i].ID == id {
			return i
		}
	}
	return -1
}

// ByKey returns the first field bound to dataKey
func (m Mapping) ByKey(dataKey string) (Field, bool) {
	for _, f := range m {
		if f.DataKey == dataKey {
			return f, true
		}
	}
	return Field{}, false
}

// MarshalMapping serializes a mapping to its wire form
func MarshalMapping(m Mapping) ([]byte, error) {
	if m == nil {
		m = Mapping{}
	}
	return json.Marshal(m)
}

// UnmarshalMapping parses the wire form of a mapping
func UnmarshalMapping(data []byte) (Mapping, error) {
	if len(data) == 0 {
		return Mapping{}, nil
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// GeneratedDocument is the immutable artifact of one successful generation
type GeneratedDocument struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	Record     Record    `json:"record"`
	OutputRef  string    `json:"outputRef"`
	CreatedAt  time.Time `json:"createdAt"`
}
