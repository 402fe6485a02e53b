// Package pdftest builds small PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// A4 page size in points, as gofpdf lays it out
const (
	A4Width  = 595.28
	A4Height = 841.89
)

// Document returns an A4 PDF with the given number of pages, each
// carrying a "Page N" line near the top.
func Document(t testing.TB, pages int) []byte {
	t.Helper()

	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Text(72, 72, fmt.Sprintf("Page %d", i+1))
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("failed to build test PDF: %v", err)
	}
	return buf.Bytes()
}
