package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
	"github.com/a3tai/mcp-pdf-templates/internal/storage"
)

// Store is the template store and document ledger
type Store struct {
	db      *gorm.DB
	objects storage.ObjectStore
	log     *logger.Logger
}

// New creates a store over an open database and object store
func New(db *gorm.DB, objects storage.ObjectStore, log *logger.Logger) *Store {
	return &Store{
		db:      db,
		objects: objects,
		log:     logger.OrNop(log).With("component", "store"),
	}
}

// Objects returns the object store holding sources and outputs
func (s *Store) Objects() storage.ObjectStore { return s.objects }

// List returns all templates ordered by name
func (s *Store) List(ctx context.Context, category string) ([]mapping.Template, error) {
	var rows []templateRow
	q := s.db.WithContext(ctx).Order("name ASC, id ASC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Persistence("list_templates", err)
	}

	out := make([]mapping.Template, 0, len(rows))
	for i := range rows {
		m, err := mapping.UnmarshalMapping(rows[i].Mapping)
		if err != nil {
			return nil, apperrors.Persistence("list_templates", fmt.Errorf("template %s: %w", rows[i].ID, err))
		}
		out = append(out, rows[i].toTemplate(len(m)))
	}
	return out, nil
}

// Get returns a template and its mapping (empty when none has been saved)
func (s *Store) Get(ctx context.Context, id string) (mapping.Template, mapping.Mapping, error) {
	row, err := s.load(ctx, s.db, id, "get_template")
	if err != nil {
		return mapping.Template{}, nil, err
	}
	m, err := mapping.UnmarshalMapping(row.Mapping)
	if err != nil {
		return mapping.Template{}, nil, apperrors.Persistence("get_template", err)
	}
	return row.toTemplate(len(m)), m, nil
}

// SaveMapping replaces the mapping of a template. Concurrent writers are
// last-write-wins; saving a mapping identical to the stored one is a no-op.
func (s *Store) SaveMapping(ctx context.Context, templateID string, m mapping.Mapping) error {
	if m == nil {
		m = mapping.Mapping{}
	}
	data, err := mapping.MarshalMapping(m)
	if err != nil {
		return apperrors.Validation("save_mapping", "cannot encode mapping: %v", err)
	}
	hash := contentHash(data)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(ctx, tx, templateID, "save_mapping")
		if err != nil {
			return err
		}
		if err := m.Validate(row.SourcePageCount); err != nil {
			return err
		}
		if row.MappingHash == hash {
			s.log.Debug("mapping unchanged; skipping write", "template_id", templateID)
			return nil
		}

		res := tx.Model(&templateRow{}).
			Where("id = ?", templateID).
			Updates(map[string]interface{}{
				"mapping":      data,
				"mapping_hash": hash,
				"revision":     gorm.Expr("revision + 1"),
			})
		if res.Error != nil {
			return apperrors.Persistence("save_mapping", res.Error)
		}
		s.log.Info("mapping saved", "template_id", templateID, "fields", len(m), "revision", row.Revision+1)
		return nil
	})
}

// Revision returns how many distinct mappings have been written for id
func (s *Store) Revision(ctx context.Context, id string) (int, error) {
	row, err := s.load(ctx, s.db, id, "get_revision")
	if err != nil {
		return 0, err
	}
	return row.Revision, nil
}

// FetchSourceBytes reads source bytes by object key
func (s *Store) FetchSourceBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := s.objects.Get(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, apperrors.NotFound("fetch_source", "no source at %s", key)
	}
	if err != nil {
		return nil, apperrors.Persistence("fetch_source", err)
	}
	return data, nil
}

// RegisterRequest describes a new template and its source document
type RegisterRequest struct {
	ID          string
	Name        string
	Description string
	Category    string
	Source      []byte
	Mapping     mapping.Mapping
}

// Register uploads the source and creates the template row. PDF sources
// are stored as source.pdf with their page count; anything else is
// stored as single-page tagged markup.
func (s *Store) Register(ctx context.Context, req RegisterRequest) (mapping.Template, error) {
	if strings.TrimSpace(req.Name) == "" {
		return mapping.Template{}, apperrors.Validation("register_template", "name is required")
	}
	if len(req.Source) == 0 {
		return mapping.Template{}, apperrors.Validation("register_template", "source document is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	pages := 1
	key := "templates/" + req.ID + "/source.html"
	if pdf.IsPDF(req.Source) {
		n, err := pdf.PageCount(req.Source)
		if err != nil {
			return mapping.Template{}, apperrors.Validation("register_template", "unreadable PDF source: %v", err)
		}
		pages = n
		key = "templates/" + req.ID + "/source.pdf"
	}

	m := req.Mapping
	if m == nil {
		m = mapping.Mapping{}
	}
	if err := m.Validate(pages); err != nil {
		return mapping.Template{}, err
	}
	data, err := mapping.MarshalMapping(m)
	if err != nil {
		return mapping.Template{}, apperrors.Validation("register_template", "cannot encode mapping: %v", err)
	}

	if err := s.objects.Put(ctx, key, req.Source, storage.ContentTypeFor(key)); err != nil {
		return mapping.Template{}, apperrors.Persistence("register_template", err)
	}

	row := templateRow{
		ID:              req.ID,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		SourceKey:       key,
		SourcePageCount: pages,
		Mapping:         data,
		MappingHash:     contentHash(data),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return mapping.Template{}, apperrors.Persistence("register_template", err)
	}
	s.log.Info("template registered", "template_id", row.ID, "source_key", key, "pages", pages)
	return row.toTemplate(len(m)), nil
}

func (s *Store) load(ctx context.Context, db *gorm.DB, id, op string) (*templateRow, error) {
	if id == "" {
		return nil, apperrors.Validation(op, "template id is required")
	}
	var row templateRow
	err := db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(op, "template %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	return &row, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
