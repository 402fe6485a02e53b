package fill

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// StaticStylesheet is prepended to filled markup so that nothing in the
// output looks or behaves editable.
const StaticStylesheet = `[data-field]{outline:none;border:none;background:transparent;cursor:default}
.slot-filled{color:inherit}
.slot-blank{display:inline-block;min-width:6em;border-bottom:1px solid #999}
input,textarea,select,button{display:none}`

var (
	outputPolicyOnce sync.Once
	outputPolicy     *bluemonday.Policy
)

// withStaticStyle prepends StaticStylesheet. It runs after sanitising,
// which would drop the style element.
func withStaticStyle(markup string) string {
	return "<style>" + StaticStylesheet + "</style>\n" + markup
}

func sanitize(markup string) string {
	return strings.TrimSpace(outputSanitizer().Sanitize(markup))
}

func outputSanitizer() *bluemonday.Policy {
	outputPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowElements("section", "article", "header", "footer", "span", "div")
		policy.AllowAttrs("class", SlotAttr, "data-keep").Globally()
		policy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
		outputPolicy = policy
	})
	return outputPolicy
}
