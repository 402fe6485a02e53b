// Package servicetest wires a complete Service over sqlite and in-memory
// object storage for tests.
package servicetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-templates/internal/fill"
	"github.com/a3tai/mcp-pdf-templates/internal/generate"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pdf-templates/internal/render"
	"github.com/a3tai/mcp-pdf-templates/internal/service"
	"github.com/a3tai/mcp-pdf-templates/internal/storage"
	"github.com/a3tai/mcp-pdf-templates/internal/store"
)

// Template ids registered by New
const (
	ContractID = "contract"
	LetterID   = "letter"
)

// OfferLetter is the tagged markup source of LetterID
const OfferLetter = `<h1>Offer</h1><p>Dear <span data-field="name" contenteditable="true">[name]</span>,</p>`

// Fixture exposes the parts behind the Service
type Fixture struct {
	Service   *service.Service
	Store     *store.Store
	Objects   *storage.MemoryStore
	Downloads *generate.MemoryDownloader
}

// ContractMapping is the mapping of ContractID
func ContractMapping() mapping.Mapping {
	return mapping.Mapping{
		{ID: "f1", Type: mapping.FieldTypeText, DataKey: "company", Page: 0, X: 0.1, Y: 0.1, Width: 0.4, Height: 0.03},
		{ID: "f2", Type: mapping.FieldTypeDate, DataKey: "date", Page: 1, X: 0.6, Y: 0.9, Width: 0.2, Height: 0.03},
	}
}

// New returns a Service with a two page PDF contract and an HTML letter
func New(t testing.TB) *Fixture {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "templates.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	objects := storage.NewMemoryStore()
	st := store.New(db, objects, nil)

	_, err = st.Register(ctx, store.RegisterRequest{
		ID:       ContractID,
		Name:     "Service contract",
		Category: "contracts",
		Source:   pdftest.Document(t, 2),
		Mapping:  ContractMapping(),
	})
	require.NoError(t, err)
	_, err = st.Register(ctx, store.RegisterRequest{
		ID:       LetterID,
		Name:     "Offer letter",
		Category: "letters",
		Source:   []byte(OfferLetter),
	})
	require.NoError(t, err)

	gen := generate.NewLocalGenerator(fill.NewEngine(st, nil), render.New(ctx, render.Options{}))
	downloads := generate.NewMemoryDownloader()
	orch, err := generate.NewOrchestrator(generate.Options{
		Templates:  st,
		Generator:  gen,
		Objects:    objects,
		Ledger:     st,
		Downloader: downloads,
	})
	require.NoError(t, err)

	svc, err := service.New(service.Options{
		Store:        st,
		Orchestrator: orch,
		Renderer:     gen,
		MaxFileSize:  10 << 20,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return &Fixture{Service: svc, Store: st, Objects: objects, Downloads: downloads}
}
