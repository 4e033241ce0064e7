package descriptions

import "sort"

// Tool descriptions with examples and typical workflows

const (
	// Session
	FormOpenDescription = `Open a PDF as the source document for a new form-editing session.

**When to use:** First step of every session. Opening a document discards all placed fields and render info from the previous one.

**Why it's useful:** Reports page count and page sizes in PDF points, whether the document is encrypted and whether it already contains form fields.

**Examples:**
• Start editing: "Open intake-form.pdf so I can add fillable fields"
• Check a document first: "Open lease.pdf and tell me how many pages it has"

**Best practices:** Paths are relative to the server's working directory. Save the layout before opening another document if you want to keep your work.`

	FormRenderPageDescription = `Record render information (pixel size and scale) for a page.

**When to use:** Before placing fields on a page, and whenever you switch zoom level. Without render info a page's fields are skipped on export.

**Why it's useful:** Field coordinates are captured in render space: pixels, origin top-left, y growing down, scaled by the zoom factor. Export converts them to PDF points using this scale.

**Examples:**
• Default zoom: "Render page 0" (scale 1.5, a US Letter page becomes 918×1188 px)
• A rasterizer you run yourself: pass width, height and scale as it reported them

**Best practices:** Scale must be between 0.5 and 3. Re-rendering at a new scale does NOT move or resize fields already placed; their pixel geometry is kept as-is.`

	// Geometry store
	FormPlaceFieldDescription = `Place a new Text, Checkbox or Radio field on a page.

**When to use:** Adding a fillable field at a position on the rendered page.

**Why it's useful:** Creates the field with a sensible default size (Text 120×30 px, Checkbox and Radio 24×24 px), a unique id and the name "Field N".

**Examples:**
• "Place a Text field on page 0 at x=100, y=50"
• "Add a Checkbox next to 'I agree' on page 2"

**Common workflows:**
1. form_render_page → form_place_field → form_update_field (name, size) → form_export
2. form_suggest_fields → form_place_field for each accepted suggestion

**Best practices:** x and y are the field's top-left corner in render-space pixels of the page's current render.`

	FormUpdateFieldDescription = `Change a placed field's position, size, name, description, required flag or options.

**When to use:** Renaming a field, marking it required, moving or resizing it.

**Why it's useful:** Only the properties you pass are changed. Relative moves (dx, dy) and resizes (dw, dh) are supported, matching drag and resize handles.

**Examples:**
• "Rename field 3f2a… to email and mark it required"
• "Make the signature field 300 px wide"
• "Move the checkbox 10 px right"

**Best practices:** Width and height never go below 20 px. Radio fields never carry the required flag in the exported PDF. The first radio option becomes the radio's export value.`

	FormRemoveFieldDescription = `Delete a placed field.

**When to use:** A field was placed by mistake or is no longer wanted.

**Best practices:** Removing the selected field clears the selection. Unknown ids are reported as not found; nothing else changes.`

	FormListFieldsDescription = `List placed fields and the pages that have render info.

**When to use:** Reviewing the layout before export, or finding a field's id.

**Why it's useful:** Shows every field's id, kind, page, render-space geometry, name and required flag, in placement order.

**Best practices:** Pass a page index to restrict the listing to one page.`

	// Export and inspection
	FormExportDescription = `Export the source PDF with all placed fields embedded as fillable form widgets.

**When to use:** The layout is complete and you want an interactive PDF.

**Why it's useful:** Converts each field from render space to PDF point space and writes standard AcroForm fields that any PDF viewer can fill.

**Examples:**
• "Export the form" writes <name>-interactive.pdf next to the source
• "Export to out/final.pdf"

**Best practices:** Pages without render info, or beyond the end of the document, are skipped and reported; the export still succeeds. A source that cannot be parsed fails the export and no file is written. Only one export runs at a time.`

	FormInspectDescription = `List the form fields embedded in a PDF.

**When to use:** Verifying an export, or checking which fields a document already has.

**Why it's useful:** Reports each field's name, type, page, rectangle in PDF points, and required and read-only flags.

**Examples:**
• "Inspect intake-form-interactive.pdf"
• "What fields does the open document already have?" (no path)`

	FormSuggestFieldsDescription = `Suggest fields for a page from its text.

**When to use:** Getting a starting point on a form with labelled blanks, checkbox markers or yes/no choices.

**Why it's useful:** Proposes a camelCase name, a field type and a reason for each likely field. Suggestions are advisory; nothing is placed automatically.

**Best practices:** Scanned pages without a text layer yield no suggestions.`

	// Persistence
	FormSaveLayoutDescription = `Save placed fields and page render info to a YAML or JSON layout file.

**When to use:** Keeping work between sessions, or preparing input for the batch exporter.

**Best practices:** The format follows the extension (.yaml, .yml or .json). Without a path the layout is saved as <name>.layout.yaml next to the source.`

	FormLoadLayoutDescription = `Replace the current fields and render info with a saved layout.

**When to use:** Resuming work on a document, or applying one layout to a similar document.

**Best practices:** Open the matching PDF first. Loading validates every field and render; an invalid file leaves the current layout untouched.`

	FormServerInfoDescription = `Get server information, the open session's state and usage guidance.

**When to use:** Start of a conversation, or when unsure what to do next.

**Why it's useful:** Lists the tools, the working directory, limits, the open document and how many fields are placed.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"form_open":           FormOpenDescription,
	"form_render_page":    FormRenderPageDescription,
	"form_place_field":    FormPlaceFieldDescription,
	"form_update_field":   FormUpdateFieldDescription,
	"form_remove_field":   FormRemoveFieldDescription,
	"form_list_fields":    FormListFieldsDescription,
	"form_export":         FormExportDescription,
	"form_inspect":        FormInspectDescription,
	"form_suggest_fields": FormSuggestFieldsDescription,
	"form_save_layout":    FormSaveLayoutDescription,
	"form_load_layout":    FormLoadLayoutDescription,
	"form_server_info":    FormServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all tools, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
