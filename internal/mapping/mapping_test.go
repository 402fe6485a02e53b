package mapping

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
)

func sampleMapping() Mapping {
	return Mapping{
		{ID: "f1", Type: FieldTypeText, DataKey: "company_name", Page: 0, X: 0.1, Y: 0.1, Width: 0.3, Height: 0.03},
		{ID: "f2", Type: FieldTypeDate, DataKey: "signed_on", Page: 1, X: 0.5, Y: 0.8, Width: 0.2, Height: 0.03, FontSize: 10, Align: AlignRight},
		{ID: "f3", Type: FieldTypeCheckbox, DataKey: "accepted", Page: 1, X: 0.05, Y: 0.9, Width: 0.03, Height: 0.02},
		{ID: "f4", Type: FieldTypeSignature, DataKey: "signature", Page: 1, X: 0.6, Y: 0.9, Width: 0.35, Height: 0.05, FormField: "Sig1"},
	}
}

func TestMapping_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(m Mapping) Mapping
		pageCount int
		wantErr   bool
	}{
		{name: "valid mapping", mutate: func(m Mapping) Mapping { return m }, pageCount: 2},
		{name: "page outside template", mutate: func(m Mapping) Mapping { m[0].Page = 2; return m }, pageCount: 2, wantErr: true},
		{name: "negative page", mutate: func(m Mapping) Mapping { m[0].Page = -1; return m }, pageCount: 2, wantErr: true},
		{name: "box past right edge", mutate: func(m Mapping) Mapping { m[0].X = 0.8; return m }, pageCount: 2, wantErr: true},
		{name: "box past bottom edge", mutate: func(m Mapping) Mapping { m[1].Y = 0.98; return m }, pageCount: 2, wantErr: true},
		{name: "unknown type", mutate: func(m Mapping) Mapping { m[0].Type = "radio"; return m }, pageCount: 2, wantErr: true},
		{name: "unknown align", mutate: func(m Mapping) Mapping { m[1].Align = "justify"; return m }, pageCount: 2, wantErr: true},
		{name: "duplicate ids", mutate: func(m Mapping) Mapping { m[1].ID = "f1"; return m }, pageCount: 2, wantErr: true},
		{name: "unknown page count skips range", mutate: func(m Mapping) Mapping { m[0].Page = 9; return m }, pageCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(sampleMapping()).Validate(tt.pageCount)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMapping_RoundTrip(t *testing.T) {
	original := sampleMapping()

	data, err := MarshalMapping(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dataKey":"company_name"`)
	assert.NotContains(t, string(data), `"fontSize":0`)

	decoded, err := UnmarshalMapping(data)
	require.NoError(t, err)
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Fatalf("mapping changed across round-trip (-want +got):\n%s", diff)
	}
}

func TestMapping_CloneIsIndependent(t *testing.T) {
	original := sampleMapping()
	clone := original.Clone()
	clone[0].X = 0.9
	assert.Equal(t, 0.1, original[0].X)
	assert.Equal(t, 2, original.Find("f3"))
	assert.Equal(t, -1, original.Find("missing"))

	f, ok := original.ByKey("signature")
	require.True(t, ok)
	assert.Equal(t, "Sig1", f.FormField)
}

func TestField_ClampBox(t *testing.T) {
	f := Field{X: 0.95, Y: -0.2, Width: 0.2, Height: 1.4}.ClampBox()
	assert.InDelta(t, 0.8, f.X, 1e-9)
	assert.Equal(t, 0.0, f.Y)
	assert.Equal(t, 1.0, f.Height)
}

func TestRecord(t *testing.T) {
	r := Record{"name": "Acme Srl", "accepted": true, "rejected": false}
	require.NoError(t, r.Validate())
	assert.Equal(t, "Acme Srl", r.Text("name"))
	assert.Equal(t, "X", r.Text("accepted"))
	assert.True(t, r.IsEmpty("rejected"))
	assert.True(t, r.IsEmpty("missing"))
	assert.Equal(t, []string{"accepted", "name", "rejected"}, r.Keys())

	assert.Error(t, Record{"amount": 12.5}.Validate())

	parsed, err := UnmarshalRecord([]byte(`{"a":"x","b":true}`))
	require.NoError(t, err)
	assert.Equal(t, Record{"a": "x", "b": true}, parsed)

	_, err = UnmarshalRecord([]byte(`{"nested":{"a":1}}`))
	assert.True(t, apperrors.IsValidation(err))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "X", FormatValue(FieldTypeCheckbox, "yes"))
	assert.Equal(t, "", FormatValue(FieldTypeCheckbox, "no"))
	assert.Equal(t, "01/02/2026", FormatValue(FieldTypeDate, "01/02/2026"))
	assert.Equal(t, "", FormatValue(FieldTypeText, nil))
}
