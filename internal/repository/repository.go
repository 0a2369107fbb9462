package repository

import (
	"context"

	"github.com/oatdump/pkg/model"
)

// DumpRepository stores and retrieves dump summaries.
type DumpRepository interface {
	// Save persists a summary and its descriptor rows, returning the record ID.
	Save(ctx context.Context, s *model.DumpSummary) (int64, error)

	// List returns the most recent summaries for an artifact path, newest first.
	// An empty path lists across all artifacts.
	List(ctx context.Context, artifactPath string, limit int) ([]*model.DumpSummary, error)

	// Latest returns the newest summary for an artifact path, or a NOT_FOUND error.
	Latest(ctx context.Context, artifactPath string) (*model.DumpSummary, error)
}
