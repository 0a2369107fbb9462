package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
)

const defaultListLimit = 20

// GormDumpRepository implements DumpRepository using GORM.
type GormDumpRepository struct {
	db *gorm.DB
}

// NewGormDumpRepository creates a new GormDumpRepository.
func NewGormDumpRepository(db *gorm.DB) *GormDumpRepository {
	return &GormDumpRepository{db: db}
}

// Save inserts the record and its descriptor rows in one transaction.
func (r *GormDumpRepository) Save(ctx context.Context, s *model.DumpSummary) (int64, error) {
	rec, err := FromSummary(s)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidInput, "failed to encode dump stats", err)
	}

	rows := rec.Descriptors
	rec.Descriptors = nil

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to insert dump record: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].RecordID = rec.ID
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("failed to insert descriptor rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save dump", err)
	}

	return rec.ID, nil
}

// List retrieves recent summaries, newest first.
func (r *GormDumpRepository) List(ctx context.Context, artifactPath string, limit int) ([]*model.DumpSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var records []DumpRecord
	q := r.db.WithContext(ctx).Preload("Descriptors")
	if artifactPath != "" {
		q = q.Where("artifact_path = ?", artifactPath)
	}
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query dump records", err)
	}

	result := make([]*model.DumpSummary, 0, len(records))
	for i := range records {
		s, err := records[i].ToModel()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError,
				fmt.Sprintf("failed to decode dump record %d", records[i].ID), err)
		}
		result = append(result, s)
	}

	return result, nil
}

// Latest retrieves the newest summary for an artifact path.
func (r *GormDumpRepository) Latest(ctx context.Context, artifactPath string) (*model.DumpSummary, error) {
	var rec DumpRecord

	err := r.db.WithContext(ctx).
		Preload("Descriptors").
		Where("artifact_path = ?", artifactPath).
		Order("created_at DESC").
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "no dump recorded for %s", artifactPath)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get dump record", err)
	}

	return rec.ToModel()
}
