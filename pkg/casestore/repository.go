// Package casestore persists cases and fans their row projection out to the
// dashboard.
package casestore

import (
	"context"
	"errors"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("case not found")

var upsertColumns = []string{
	"case_number", "status", "risk_score", "suspect_drug", "adverse_event",
	"meddra_pt", "reporter_type", "narrative", "snapshot", "updated_at",
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&CaseRecord{})
}

// Upsert writes the case by id and returns the stored row. The first
// extraction and completion timestamps are kept once set, so the row is read
// back from the same statement rather than rebuilt from the case.
func (r *Repository) Upsert(ctx context.Context, c models.Case) (models.CaseRow, error) {
	rec, err := NewCaseRecord(c)
	if err != nil {
		return nil, err
	}
	if err := r.upsert(ctx, &rec).Error; err != nil {
		return nil, err
	}
	return rec.Row(), nil
}

func (r *Repository) upsert(ctx context.Context, rec *CaseRecord) *gorm.DB {
	updates := clause.AssignmentColumns(upsertColumns)
	updates = append(updates,
		clause.Assignment{Column: clause.Column{Name: "extraction_completed_at"}, Value: gorm.Expr("COALESCE(cases.extraction_completed_at, excluded.extraction_completed_at)")},
		clause.Assignment{Column: clause.Column{Name: "completed_at"}, Value: gorm.Expr("COALESCE(cases.completed_at, excluded.completed_at)")},
	)

	return r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: updates,
		},
		clause.Returning{},
	).Create(rec)
}

func (r *Repository) Get(ctx context.Context, id string) (models.Case, error) {
	var rec CaseRecord
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.Case{}, ErrNotFound
	}
	if result.Error != nil {
		return models.Case{}, result.Error
	}
	return rec.Case()
}

// ListRows returns every case row, newest first.
func (r *Repository) ListRows(ctx context.Context) ([]models.CaseRow, error) {
	var recs []CaseRecord
	if err := r.db.WithContext(ctx).Omit("snapshot").Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	rows := make([]models.CaseRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, rec.Row())
	}
	return rows, nil
}
