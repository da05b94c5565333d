// internal/repository/change_tracking_repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// ChangeTrackingRepository stores the per-stage content hashes used to skip
// unchanged work.
type ChangeTrackingRepository interface {
	// GetLatest returns the most recent tracking record for the processing
	// type with snapshot_date <= asOf, or nil when none exists.
	GetLatest(ctx context.Context, processingType domain.ProcessingType, asOf time.Time) (*domain.ChangeTrackingRecord, error)

	Upsert(ctx context.Context, record *domain.ChangeTrackingRecord) error
}
