// Command pdf_map_fields drafts a field mapping from the native form
// widgets of a PDF, ready to be saved against a template.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf/forms"
)

const maxFileSize = 100 * 1024 * 1024

// draftResult is what the tool prints
type draftResult struct {
	FilePath  string              `json:"file_path" yaml:"file_path"`
	PageCount int                 `json:"page_count" yaml:"page_count"`
	Native    []forms.NativeField `json:"native,omitempty" yaml:"native,omitempty"`
	Mapping   mapping.Mapping     `json:"mapping" yaml:"mapping"`
	Warning   string              `json:"warning,omitempty" yaml:"warning,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("pdf_map_fields", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.StringP("format", "f", "text", "Output format: text, json, yaml")
	native := fs.Bool("native", false, "Include the raw widget list in the output")
	debug := fs.Bool("debug", false, "Trace widget discovery on stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "PDF Map Fields - Draft a template field mapping from native form widgets")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "USAGE:")
		fmt.Fprintln(stderr, "  pdf_map_fields [OPTIONS] <pdf_file>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "OPTIONS:")
		fs.PrintDefaults()
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "EXAMPLES:")
		fmt.Fprintln(stderr, "  pdf_map_fields contract.pdf")
		fmt.Fprintln(stderr, "  pdf_map_fields -f json contract.pdf > mapping.json")
	}

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: exactly one PDF file path required\n\n")
		fs.Usage()
		return 2
	}

	var trace io.Writer
	if *debug {
		trace = stderr
	}
	result, err := draft(fs.Arg(0), trace)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !*native {
		result.Native = nil
	}

	if err := write(stdout, *format, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func draft(path string, trace io.Writer) (*draftResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := pdf.NewValidator(maxFileSize).ValidateFile(absPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	count, err := pdf.PageCount(data)
	if err != nil {
		return nil, err
	}

	widgets, err := forms.NewExtractor(trace).Extract(data)
	if err != nil {
		return nil, err
	}
	result := &draftResult{
		FilePath:  absPath,
		PageCount: count,
		Native:    widgets,
		Mapping:   forms.DraftMapping(widgets),
	}
	if err := result.Mapping.Validate(count); err != nil {
		result.Warning = err.Error()
	}
	return result, nil
}

func write(w io.Writer, format string, result *draftResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		writeText(w, result)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeText(w io.Writer, result *draftResult) {
	fmt.Fprintf(w, "%s (%d page(s))\n", result.FilePath, result.PageCount)
	if len(result.Mapping) == 0 {
		fmt.Fprintln(w, "No form fields detected; map the template in the editor instead.")
		return
	}

	fmt.Fprintf(w, "Drafted %d field(s)\n\n", len(result.Mapping))
	for i, f := range result.Mapping {
		fmt.Fprintf(w, "[%d] %s -> %s\n", i+1, f.ID, f.DataKey)
		fmt.Fprintf(w, "    Type: %s  Page: %d\n", f.Type, f.Page+1)
		fmt.Fprintf(w, "    Box: x=%.3f y=%.3f w=%.3f h=%.3f\n", f.X, f.Y, f.Width, f.Height)
		if f.FormField != "" {
			fmt.Fprintf(w, "    Form field: %s\n", f.FormField)
		}
	}
	if result.Warning != "" {
		fmt.Fprintf(w, "\nwarning: %s\n", result.Warning)
	}
}
