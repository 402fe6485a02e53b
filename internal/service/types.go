package service

import (
	"github.com/a3tai/mcp-pdf-templates/internal/editor"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf/forms"
)

// Request types

// ListTemplatesRequest filters the template catalog
type ListTemplatesRequest struct {
	Category string `json:"category,omitempty"`
}

// RegisterTemplateRequest adds a template. Source is a PDF or tagged HTML.
type RegisterTemplateRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Source      []byte          `json:"-"`
	Mapping     mapping.Mapping `json:"mapping,omitempty"`
	ImportForms bool            `json:"importForms,omitempty"`
}

// RenderPageRequest asks for one rasterised source page
type RenderPageRequest struct {
	TemplateID string  `json:"templateId"`
	Page       int     `json:"page"`
	Scale      float64 `json:"scale,omitempty"`
}

// Result types

// TemplateResult is a template with its mapping
type TemplateResult struct {
	Template mapping.Template `json:"template"`
	Mapping  mapping.Mapping  `json:"mapping"`
	Revision int              `json:"revision"`
}

// ListTemplatesResult is the catalog listing
type ListTemplatesResult struct {
	Templates []mapping.Template `json:"templates"`
	Total     int                `json:"total"`
}

// ImportFormsResult lists native form widgets and the fields drafted from them
type ImportFormsResult struct {
	TemplateID string               `json:"templateId"`
	Native     []forms.NativeField `json:"native"`
	Draft      mapping.Mapping      `json:"draft"`
	Saved      bool                 `json:"saved"`
}

// PageResult is a rendered page as PNG
type PageResult struct {
	TemplateID  string `json:"templateId"`
	Page        int    `json:"page"`
	PixelWidth  int    `json:"pixelWidth"`
	PixelHeight int    `json:"pixelHeight"`
	PNG         []byte `json:"-"`
}

// EditorState is a snapshot of an editor session
type EditorState struct {
	SessionID  string            `json:"sessionId"`
	TemplateID string            `json:"templateId"`
	Page       int               `json:"page"`
	PageSize   editor.PageSize   `json:"pageSize"`
	PageCount  int               `json:"pageCount"`
	Fields     mapping.Mapping   `json:"fields"`
	Selected   string            `json:"selected,omitempty"`
	Mode       string            `json:"mode"`
	Save       editor.SaveStatus `json:"save"`
}
