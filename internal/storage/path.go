package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// pathValidator confines object keys to a root directory
type pathValidator struct {
	root string
}

func newPathValidator(root string) (*pathValidator, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &pathValidator{root: filepath.Clean(abs)}, nil
}

// resolve maps a key to an absolute path under root
func (v *pathValidator) resolve(key string) (string, error) {
	key = strings.ReplaceAll(key, "\x00", "")
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key cannot be empty")
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("object key must be relative: %s", key)
	}

	p := filepath.Clean(filepath.Join(v.root, filepath.FromSlash(key)))
	if !v.within(p) {
		return "", fmt.Errorf("object key escapes storage root: %s", key)
	}

	// A symlinked object must also resolve inside root.
	if info, err := os.Lstat(p); err == nil && info.Mode()&os.ModeSymlink != 0 {
		real, err := filepath.EvalSymlinks(p)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", key, err)
		}
		if !v.within(real) {
			return "", fmt.Errorf("object key escapes storage root: %s", key)
		}
	}
	return p, nil
}

func (v *pathValidator) within(p string) bool {
	roots := []string{v.root}
	if real, err := filepath.EvalSymlinks(v.root); err == nil && real != v.root {
		roots = append(roots, real)
	}
	for _, r := range roots {
		if p == r || strings.HasPrefix(p, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
