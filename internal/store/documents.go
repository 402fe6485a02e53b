package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// CreateDocumentRecord appends doc to the ledger. There is no update path.
func (s *Store) CreateDocumentRecord(ctx context.Context, doc mapping.GeneratedDocument) (mapping.GeneratedDocument, error) {
	if doc.ID == "" || doc.TemplateID == "" || doc.OutputRef == "" {
		return mapping.GeneratedDocument{}, apperrors.Validation("create_document", "id, template id and output ref are required")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	record := doc.Record
	if record == nil {
		record = mapping.Record{}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return mapping.GeneratedDocument{}, apperrors.Validation("create_document", "cannot encode record: %v", err)
	}

	row := documentRow{
		ID:         doc.ID,
		TemplateID: doc.TemplateID,
		Record:     data,
		OutputRef:  doc.OutputRef,
		CreatedAt:  doc.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return mapping.GeneratedDocument{}, apperrors.Persistence("create_document", err)
	}
	doc.Record = record.Clone()
	return doc, nil
}

// GetDocument returns a ledger entry by id
func (s *Store) GetDocument(ctx context.Context, id string) (mapping.GeneratedDocument, error) {
	var row documentRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return mapping.GeneratedDocument{}, apperrors.NotFound("get_document", "document %s not found", id)
	}
	if err != nil {
		return mapping.GeneratedDocument{}, apperrors.Persistence("get_document", err)
	}
	return row.toDocument()
}

// ListDocuments returns the newest ledger entries for a template
func (s *Store) ListDocuments(ctx context.Context, templateID string, limit int) ([]mapping.GeneratedDocument, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []documentRow
	q := s.db.WithContext(ctx).Order("created_at DESC, id ASC").Limit(limit)
	if templateID != "" {
		q = q.Where("template_id = ?", templateID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Persistence("list_documents", err)
	}

	out := make([]mapping.GeneratedDocument, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *documentRow) toDocument() (mapping.GeneratedDocument, error) {
	rec, err := mapping.UnmarshalRecord(r.Record)
	if err != nil {
		return mapping.GeneratedDocument{}, apperrors.Persistence("decode_document", err)
	}
	return mapping.GeneratedDocument{
		ID:         r.ID,
		TemplateID: r.TemplateID,
		Record:     rec,
		OutputRef:  r.OutputRef,
		CreatedAt:  r.CreatedAt,
	}, nil
}
