package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pdf-templates/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "templates.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return New(db, storage.NewMemoryStore(), nil)
}

func registerPDF(t *testing.T, s *Store, id string, pages int) mapping.Template {
	t.Helper()
	tpl, err := s.Register(context.Background(), RegisterRequest{
		ID:       id,
		Name:     "Contract " + id,
		Category: "contracts",
		Source:   pdftest.Document(t, pages),
	})
	require.NoError(t, err)
	return tpl
}

func sampleMapping() mapping.Mapping {
	return mapping.Mapping{
		{ID: "f1", Type: mapping.FieldTypeText, DataKey: "company", Page: 0, X: 0.1, Y: 0.1, Width: 0.4, Height: 0.03, FontSize: 11, Align: mapping.AlignLeft},
		{ID: "f2", Type: mapping.FieldTypeDate, DataKey: "date", Page: 1, X: 0.6, Y: 0.9, Width: 0.2, Height: 0.03},
		{ID: "f3", Type: mapping.FieldTypeCheckbox, DataKey: "agree", Page: 1, X: 0.1, Y: 0.8, Width: 0.05, Height: 0.03, FormField: "Agree"},
	}
}

func TestRegister(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := registerPDF(t, s, "tpl-1", 2)
	assert.Equal(t, "templates/tpl-1/source.pdf", tpl.SourceKey)
	assert.Equal(t, 2, tpl.SourcePageCount)
	assert.False(t, tpl.HasMapping)

	src, err := s.FetchSourceBytes(ctx, tpl.SourceKey)
	require.NoError(t, err)
	assert.True(t, len(src) > 0)

	html, err := s.Register(ctx, RegisterRequest{Name: "Letter", Source: []byte(`<p data-field="name"></p>`)})
	require.NoError(t, err)
	assert.NotEmpty(t, html.ID)
	assert.Equal(t, "templates/"+html.ID+"/source.html", html.SourceKey)
	assert.Equal(t, 1, html.SourcePageCount)
}

func TestRegister_Invalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing name", RegisterRequest{Source: []byte("x")}},
		{"missing source", RegisterRequest{Name: "x"}},
		{"corrupt pdf", RegisterRequest{Name: "x", Source: []byte("%PDF-1.4 garbage")}},
		{"mapping page out of range", RegisterRequest{Name: "x", Source: []byte("<p></p>"), Mapping: mapping.Mapping{
			{ID: "a", Type: mapping.FieldTypeText, DataKey: "a", Page: 3, X: 0, Y: 0, Width: 0.1, Height: 0.1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestSaveMapping_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerPDF(t, s, "tpl-1", 2)

	want := sampleMapping()
	require.NoError(t, s.SaveMapping(ctx, "tpl-1", want))

	tpl, got, err := s.Get(ctx, "tpl-1")
	require.NoError(t, err)
	assert.True(t, tpl.HasMapping)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveMapping_IdenticalIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerPDF(t, s, "tpl-1", 2)

	require.NoError(t, s.SaveMapping(ctx, "tpl-1", sampleMapping()))
	rev, err := s.Revision(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveMapping(ctx, "tpl-1", sampleMapping()))
	}
	rev, err = s.Revision(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rev, "identical saves must not produce new revisions")
}

func TestSaveMapping_LastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerPDF(t, s, "tpl-1", 2)

	first := sampleMapping()
	second := sampleMapping()[:1]
	second[0].X = 0.3

	require.NoError(t, s.SaveMapping(ctx, "tpl-1", first))
	require.NoError(t, s.SaveMapping(ctx, "tpl-1", second))

	_, got, err := s.Get(ctx, "tpl-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.3, got[0].X)

	require.NoError(t, s.SaveMapping(ctx, "tpl-1", nil))
	tpl, got, err := s.Get(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, tpl.HasMapping)
}

func TestSaveMapping_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerPDF(t, s, "tpl-1", 1)

	err := s.SaveMapping(ctx, "missing", sampleMapping())
	assert.True(t, apperrors.IsNotFound(err))

	// sampleMapping places a field on page 1 of a single-page source
	err = s.SaveMapping(ctx, "tpl-1", sampleMapping())
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = s.Get(ctx, "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerPDF(t, s, "b", 1)
	registerPDF(t, s, "a", 1)
	_, err := s.Register(ctx, RegisterRequest{ID: "c", Name: "Memo", Category: "memos", Source: []byte("<p></p>")})
	require.NoError(t, err)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	contracts, err := s.List(ctx, "contracts")
	require.NoError(t, err)
	assert.Len(t, contracts, 2)
}

func TestFetchSourceBytes_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FetchSourceBytes(context.Background(), "templates/none/source.pdf")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDocumentLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerPDF(t, s, "tpl-1", 1)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc, err := s.CreateDocumentRecord(ctx, mapping.GeneratedDocument{
		ID:         "doc-1",
		TemplateID: "tpl-1",
		Record:     mapping.Record{"company": "Acme Srl", "agree": true},
		OutputRef:  storage.DocumentKey("doc-1"),
		CreatedAt:  created,
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)

	_, err = s.CreateDocumentRecord(ctx, mapping.GeneratedDocument{
		ID: "doc-2", TemplateID: "tpl-1", OutputRef: storage.DocumentKey("doc-2"), CreatedAt: created.Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Srl", got.Record["company"])
	assert.Equal(t, true, got.Record["agree"])
	assert.True(t, created.Equal(got.CreatedAt))

	list, err := s.ListDocuments(ctx, "tpl-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "doc-2", list[0].ID, "newest first")

	_, err = s.GetDocument(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = s.CreateDocumentRecord(ctx, mapping.GeneratedDocument{ID: "x"})
	assert.True(t, apperrors.IsValidation(err))
}
