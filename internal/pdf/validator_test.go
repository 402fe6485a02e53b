package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/a3tai/mcp-pdf-templates/internal/pdf/pdftest"
)

func TestValidator_ValidateSource(t *testing.T) {
	doc := pdftest.Document(t, 1)

	tests := []struct {
		name    string
		max     int64
		data    []byte
		wantErr bool
	}{
		{"pdf", 0, doc, false},
		{"markup", 0, []byte("<p>{{name}}</p>"), false},
		{"empty", 0, nil, true},
		{"too large", 10, doc, true},
		{"broken pdf", 0, []byte("%PDF-1.4\ngarbage"), true},
		{"binary markup", 0, []byte{0xff, 0xfe, 0x00}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator(tt.max).ValidateSource(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSource() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "form.pdf")
	if err := os.WriteFile(good, pdftest.Document(t, 1), 0o600); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.pdf")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	v := NewValidator(1 << 20)
	if err := v.ValidateFile(good); err != nil {
		t.Errorf("ValidateFile(good) = %v", err)
	}
	for _, path := range []string{"", empty, text, dir, filepath.Join(dir, "missing.pdf")} {
		if err := v.ValidateFile(path); err == nil {
			t.Errorf("ValidateFile(%q) expected error", path)
		}
	}
	if err := NewValidator(10).ValidateFile(good); err == nil {
		t.Error("expected size error")
	}
}
