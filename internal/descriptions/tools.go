package descriptions

import "sort"

// Tool descriptions with practical examples and typical workflows

const (
	// Catalog Tools
	TemplateListDescription = `List the registered document templates.

**When to use:** Start of any session, to find the template a document should be generated from.

**Examples:**
• "Which contract templates are available?" → category: "contracts"
• "Show me every template" → no arguments

**Best practices:** Templates with hasMapping=false have no fields yet; open them in the editor first or generate them as a plain record summary.`

	TemplateGetDescription = `Get one template with its field mapping and revision.

**When to use:** Before editing or generating, to see which data keys a template expects.

**Why it's useful:** The mapping lists every field's data key, type, page and normalized box, which is exactly what record_init and document_generate need.`

	TemplateRenderPageDescription = `Render one page of a template's PDF source as a PNG image.

**When to use:** To look at the source document while deciding where fields go.

**Best practices:** Pages are 0-based. The scale is pixels per PDF point (1.5 by default).`

	TemplateImportFormsDescription = `Read the native form fields of a template's PDF and draft mapped fields from them.

**When to use:** The source PDF already carries an interactive form (AcroForm). Each native widget becomes a field linked by its form name.

**Common workflows:**
1. Import with save=false → review the draft → mapping_save
2. Import with save=true → editor_open to fine tune positions`

	MappingSaveDescription = `Replace a template's field mapping.

**When to use:** Applying a mapping produced outside the editor. Fields are validated against the source page count; an identical mapping is not rewritten.`

	// Editor Tools
	EditorOpenDescription = `Open an editor session over a template's mapping.

**When to use:** Creating, moving, resizing or deleting fields. Returns a session id used by every other editor_* tool.

**Workflow:** editor_open → editor_add_field / editor_pointer / editor_update_field → editor_preview → editor_close with save=true`

	EditorStateDescription = `Get the fields, selection, gesture mode and save status of an editor session.`

	EditorSetPageDescription = `Switch the page shown by an editor session. A gesture in progress ends.`

	EditorAddFieldDescription = `Add a default text field on the current page and select it.`

	EditorUpdateFieldDescription = `Change properties of one field: type, dataKey, page, x, y, width, height, fontSize, align, formField.

**Best practices:** Geometry is normalized to the page (0..1) and is clamped so the box stays on the page.`

	EditorDeleteFieldDescription = `Delete one field from an editor session.`

	EditorPointerDescription = `Replay pointer events on the field overlay to drag or resize fields.

**Events:** {"kind":"down","pos":{"x":..,"y":..},"fieldId":"..","handle":"body|resize"}, {"kind":"move","pos":{..}}, {"kind":"up"}. Positions are pixels on the rendered page (see pageSize in the state).

**Example:** drag a field 100px right: down on its body, move by +100, up.`

	EditorSaveDescription = `Persist the editor session's mapping. Local edits are kept if the save fails.`

	EditorPreviewDescription = `Render the current page with the field overlay as a PNG image. The selected field is highlighted.`

	EditorCloseDescription = `Close an editor session, optionally saving it first.`

	// Generation Tools
	RecordInitDescription = `Build the default data record of a template: dates default to today, checkboxes to false, text to empty.

**When to use:** Before document_generate, to get every data key the template expects. Prefill values for known keys are applied.`

	DocumentGenerateDescription = `Fill a template with a data record and produce a PDF.

**What happens:** The PDF is generated, stored, recorded in the document ledger and delivered as a download. Nothing is recorded if generation fails.

**Examples:**
• "Generate the service contract for Acme dated today" → record_init → set company → document_generate

**Best practices:** List mandatory keys in required to reject incomplete records before any work is done.`

	DocumentListDescription = `List generated documents, newest first, optionally for one template.`

	ServerInfoDescription = `Get server information, the template catalog size and the available tools.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"template_list":         TemplateListDescription,
	"template_get":          TemplateGetDescription,
	"template_render_page":  TemplateRenderPageDescription,
	"template_import_forms": TemplateImportFormsDescription,
	"mapping_save":          MappingSaveDescription,
	"editor_open":           EditorOpenDescription,
	"editor_state":          EditorStateDescription,
	"editor_set_page":       EditorSetPageDescription,
	"editor_add_field":      EditorAddFieldDescription,
	"editor_update_field":   EditorUpdateFieldDescription,
	"editor_delete_field":   EditorDeleteFieldDescription,
	"editor_pointer":        EditorPointerDescription,
	"editor_save":           EditorSaveDescription,
	"editor_preview":        EditorPreviewDescription,
	"editor_close":          EditorCloseDescription,
	"record_init":           RecordInitDescription,
	"document_generate":     DocumentGenerateDescription,
	"document_list":         DocumentListDescription,
	"server_info":           ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
