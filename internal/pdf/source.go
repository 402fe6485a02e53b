package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageDim is the size of a page in PDF points (1" = 72pt)
type PageDim struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A4 is the ISO A4 page in points
var A4 = PageDim{Width: 595.28, Height: 841.89}

// SourceInfo describes a PDF source document
type SourceInfo struct {
	PageCount int       `json:"page_count"`
	Pages     []PageDim `json:"pages"`
	Size      int64     `json:"size"`
}

// IsPDF reports whether data starts with a PDF header
func IsPDF(data []byte) bool {
	trimmed := bytes.TrimLeft(data, "\x00\t\r\n ")
	return bytes.HasPrefix(trimmed, []byte("%PDF-"))
}

// relaxedConfig returns the pdfcpu configuration used for every read
func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Inspect reads page count and page sizes from PDF bytes
func Inspect(data []byte) (*SourceInfo, error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("not a PDF document")
	}

	dims, err := api.PageDims(bytes.NewReader(data), relaxedConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	info := &SourceInfo{
		PageCount: len(dims),
		Pages:     make([]PageDim, len(dims)),
		Size:      int64(len(data)),
	}
	for i, d := range dims {
		info.Pages[i] = PageDim{Width: d.Width, Height: d.Height}
	}
	return info, nil
}

// PageCount returns the number of pages in PDF bytes
func PageCount(data []byte) (int, error) {
	if !IsPDF(data) {
		return 0, fmt.Errorf("not a PDF document")
	}
	n, err := api.PageCount(bytes.NewReader(data), relaxedConfig())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
