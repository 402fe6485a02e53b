package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// templateRow is the persisted template plus its mapping
type templateRow struct {
	ID              string         `gorm:"primaryKey;size:64"`
	Name            string         `gorm:"not null"`
	Description     string
	Category        string         `gorm:"index"`
	SourceKey       string         `gorm:"not null"`
	SourcePageCount int            `gorm:"not null;default:1"`
	Mapping         datatypes.JSON `gorm:"column:mapping"`
	MappingHash     string         `gorm:"column:mapping_hash;size:64"`
	Revision        int            `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (templateRow) TableName() string { return "templates" }

func (r *templateRow) toTemplate(fieldCount int) mapping.Template {
	return mapping.Template{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Category:        r.Category,
		SourceKey:       r.SourceKey,
		SourcePageCount: r.SourcePageCount,
		HasMapping:      fieldCount > 0,
	}
}

// documentRow is an append-only ledger entry
type documentRow struct {
	ID         string         `gorm:"primaryKey;size:64"`
	TemplateID string         `gorm:"not null;index;size:64"`
	Record     datatypes.JSON `gorm:"column:record"`
	OutputRef  string         `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

func (documentRow) TableName() string { return "generated_documents" }
