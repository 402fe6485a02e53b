package mapping

import (
	"encoding/json"
	"sort"
	"strings"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
)

// Record maps data keys to values. Values are either string or bool.
type Record map[string]any

// Validate rejects values that are neither string nor bool
func (r Record) Validate() error {
	for k, v := range r {
		switch v.(type) {
		case string, bool:
		default:
			return apperrors.Validation("validate_record", "value of %q must be a string or boolean, got %T", k, v)
		}
	}
	return nil
}

// Clone returns a shallow copy; values are immutable scalars
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record keys in sorted order
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text returns the display text of the value stored under key.
// Missing keys and false booleans are blank.
func (r Record) Text(key string) string {
	return FormatValue("", r[key])
}

// IsEmpty reports whether key is missing or renders as blank text
func (r Record) IsEmpty(key string) bool {
	return strings.TrimSpace(r.Text(key)) == ""
}

// FormatValue renders a record value for a field of the given type
func FormatValue(t FieldType, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "X"
		}
		return ""
	case string:
		if t == FieldTypeCheckbox {
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true", "yes", "on", "x", "1":
				return "X"
			default:
				return ""
			}
		}
		return val
	default:
		return ""
	}
}

// UnmarshalRecord parses a flat JSON object into a record and validates it
func UnmarshalRecord(data []byte) (Record, error) {
	r := Record{}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperrors.Validation("parse_record", "record must be a flat JSON object: %v", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
