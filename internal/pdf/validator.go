package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	ledongthuc "github.com/ledongthuc/pdf"
)

// Validator checks template sources before they are stored
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator; maxFileSize <= 0 disables the size check
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// ValidateSource accepts a readable PDF or UTF-8 markup
func (v *Validator) ValidateSource(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("source is empty")
	}
	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		return fmt.Errorf("source too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize)
	}
	if !IsPDF(data) {
		if !utf8.Valid(data) {
			return fmt.Errorf("markup source is not valid UTF-8")
		}
		return nil
	}
	return openCheck(data)
}

// ValidateFile checks a PDF file on disk
func (v *Validator) ValidateFile(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}
	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}
	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}
	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", fileInfo.Size(), v.maxFileSize)
	}
	return nil
}

func openCheck(data []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("invalid PDF: %v", rec)
		}
	}()
	r, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("invalid PDF: %w", err)
	}
	if r.NumPage() == 0 {
		return fmt.Errorf("PDF has no pages")
	}
	return nil
}
