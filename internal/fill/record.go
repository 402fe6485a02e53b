package fill

import (
	"time"

	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// BuildDefaultRecord returns a record with one entry per distinct data key
// of m: dates default to now, checkboxes to false, everything else to "".
// Values in ctx whose key matches a data key override the default.
func BuildDefaultRecord(m mapping.Mapping, ctx map[string]any, now time.Time) mapping.Record {
	rec := make(mapping.Record, len(m))
	for _, f := range m {
		if _, seen := rec[f.DataKey]; seen {
			continue
		}
		switch f.Type {
		case mapping.FieldTypeDate:
			rec[f.DataKey] = now.Format(mapping.DateLayout)
		case mapping.FieldTypeCheckbox:
			rec[f.DataKey] = false
		default:
			rec[f.DataKey] = ""
		}
	}

	for k, v := range ctx {
		if _, ok := rec[k]; !ok {
			continue
		}
		switch v.(type) {
		case string, bool:
			rec[k] = v
		}
	}
	return rec
}
