package fill

import (
	"html"
	"strings"

	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// FallbackMarkup lists every non-blank record value under the template
// name. It is used when no source document can be found.
func FallbackMarkup(templateName string, rec mapping.Record) string {
	var b strings.Builder
	b.WriteString(`<h1>`)
	b.WriteString(html.EscapeString(templateName))
	b.WriteString(`</h1>`)
	b.WriteString(`<table class="record" data-keep="together">`)
	for _, k := range rec.Keys() {
		v := rec.Text(k)
		if strings.TrimSpace(v) == "" {
			continue
		}
		b.WriteString(`<tr><th>`)
		b.WriteString(html.EscapeString(k))
		b.WriteString(`</th><td>`)
		b.WriteString(html.EscapeString(v))
		b.WriteString(`</td></tr>`)
	}
	b.WriteString(`</table>`)
	return b.String()
}
