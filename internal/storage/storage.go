// Package storage holds template sources and generated documents as
// objects addressed by slash-separated keys.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrObjectNotFound is returned when no object exists under a key
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the blob store used for sources and generated output
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ContentTypeFor guesses the content type of an object from its key
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// DocumentKey is the key under which generated output id is stored
func DocumentKey(id string) string {
	return "documents/" + id + ".pdf"
}
