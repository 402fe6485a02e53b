package fill

import (
	"context"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// SourceFetcher reads template source bytes by key. A missing key must be
// reported as a NotFound TemplateError.
type SourceFetcher interface {
	FetchSourceBytes(ctx context.Context, key string) ([]byte, error)
}

// Source is a located template source
type Source struct {
	Key  string
	Data []byte
}

// Candidates returns the keys probed for a template's source, in order
func Candidates(tpl mapping.Template) []string {
	keys := []string{
		"templates/" + tpl.ID + "/source.pdf",
		"templates/" + tpl.ID + "/source.html",
		"templates/" + tpl.ID + ".pdf",
		"templates/" + tpl.ID + ".html",
	}
	if tpl.SourceKey == "" {
		return keys
	}
	for _, k := range keys {
		if k == tpl.SourceKey {
			return keys
		}
	}
	return append(keys, tpl.SourceKey)
}

// Locator finds the source of a template among the candidate keys
type Locator struct {
	fetcher SourceFetcher
}

func NewLocator(fetcher SourceFetcher) *Locator {
	return &Locator{fetcher: fetcher}
}

// Locate returns the first candidate that exists. found is false when every
// candidate is missing; any other fetch failure is returned as an error.
func (l *Locator) Locate(ctx context.Context, tpl mapping.Template) (src Source, found bool, err error) {
	for _, key := range Candidates(tpl) {
		data, err := l.fetcher.FetchSourceBytes(ctx, key)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return Source{}, false, err
		}
		return Source{Key: key, Data: data}, true, nil
	}
	return Source{}, false, nil
}
