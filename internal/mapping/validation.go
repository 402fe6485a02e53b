package mapping

import (
	"math"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
)

// boundsEpsilon absorbs float rounding when a box touches the page edge
const boundsEpsilon = 1e-9

// Validate checks a single field against a template with pageCount pages.
// A pageCount of zero or less skips the page range check.
func (f Field) Validate(pageCount int) error {
	const op = "validate_field"
	if f.ID == "" {
		return apperrors.Validation(op, "field id is required")
	}
	if !f.Type.Valid() {
		return apperrors.Validation(op, "field %s: unknown type %q", f.ID, f.Type)
	}
	if !f.Align.Valid() {
		return apperrors.Validation(op, "field %s: unknown alignment %q", f.ID, f.Align)
	}
	if f.Page < 0 || (pageCount > 0 && f.Page >= pageCount) {
		return apperrors.Validation(op, "field %s: page %d outside template (%d pages)", f.ID, f.Page, pageCount)
	}
	for _, v := range []float64{f.X, f.Y, f.Width, f.Height} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return apperrors.Validation(op, "field %s: coordinates must be within [0,1]", f.ID)
		}
	}
	if f.X+f.Width > 1+boundsEpsilon || f.Y+f.Height > 1+boundsEpsilon {
		return apperrors.Validation(op, "field %s: box extends past the page edge", f.ID)
	}
	if f.FontSize < 0 {
		return apperrors.Validation(op, "field %s: font size must not be negative", f.ID)
	}
	return nil
}

// Validate checks every field and the uniqueness of ids
func (m Mapping) Validate(pageCount int) error {
	seen := make(map[string]struct{}, len(m))
	for _, f := range m {
		if err := f.Validate(pageCount); err != nil {
			return err
		}
		if _, dup := seen[f.ID]; dup {
			return apperrors.Validation("validate_mapping", "duplicate field id %q", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// ClampBox forces the field geometry back inside the unit square,
// shrinking the size first and then shifting the origin.
func (f Field) ClampBox() Field {
	f.Width = Clamp(f.Width, 0, 1)
	f.Height = Clamp(f.Height, 0, 1)
	f.X = Clamp(f.X, 0, 1-f.Width)
	f.Y = Clamp(f.Y, 0, 1-f.Height)
	return f
}

// Clamp limits v to [lo, hi]; when hi < lo the lower bound wins
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
