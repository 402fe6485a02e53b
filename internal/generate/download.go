package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Downloader hands a generated file to the operator and returns where it went
type Downloader interface {
	Deliver(ctx context.Context, name string, data []byte) (string, error)
}

// DirDownloader writes deliveries into a directory
type DirDownloader struct {
	dir string
}

func NewDirDownloader(dir string) (*DirDownloader, error) {
	if dir == "" {
		return nil, fmt.Errorf("download directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	return &DirDownloader{dir: dir}, nil
}

func (d *DirDownloader) Deliver(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := filepath.Join(d.dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", p, err)
	}
	return p, nil
}

// MemoryDownloader keeps deliveries in memory; the HTTP API streams them
type MemoryDownloader struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{files: make(map[string][]byte)}
}

func (d *MemoryDownloader) Deliver(_ context.Context, name string, data []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[name] = append([]byte(nil), data...)
	return "memory://" + name, nil
}

// Take removes and returns a delivered file
func (d *MemoryDownloader) Take(name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[name]
	delete(d.files, name)
	return data, ok
}

// Names lists pending deliveries
func (d *MemoryDownloader) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.files))
	for n := range d.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileName is the download name of document id generated from tplName
func FileName(tplName, id string) string {
	base := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(tplName), "-"), "-.")
	if base == "" {
		base = "document"
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return base + "-" + short + ".pdf"
}
