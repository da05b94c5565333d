// internal/repository/postgres/change_tracking_repository.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

type changeTrackingRepository struct {
	db *DB
}

func NewChangeTrackingRepository(db *DB) repository.ChangeTrackingRepository {
	return &changeTrackingRepository{db: db}
}

func (r *changeTrackingRepository) GetLatest(ctx context.Context, processingType domain.ProcessingType, asOf time.Time) (*domain.ChangeTrackingRecord, error) {
	query := `
		SELECT processing_type, snapshot_date, data_hash, last_processed_at,
		       records_processed, change_summary
		FROM change_tracking
		WHERE processing_type = $1 AND snapshot_date <= $2
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var record domain.ChangeTrackingRecord
	err := r.db.GetContext(ctx, &record, query, processingType, asOf)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting change tracking record: %w", err)
	}

	return &record, nil
}

func (r *changeTrackingRepository) Upsert(ctx context.Context, record *domain.ChangeTrackingRecord) error {
	query := `
		INSERT INTO change_tracking (
			processing_type, snapshot_date, data_hash, last_processed_at,
			records_processed, change_summary
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (processing_type, snapshot_date) DO UPDATE SET
			data_hash = EXCLUDED.data_hash,
			last_processed_at = EXCLUDED.last_processed_at,
			records_processed = EXCLUDED.records_processed,
			change_summary = EXCLUDED.change_summary
	`

	if _, err := r.db.ExecContext(ctx, query,
		record.ProcessingType, record.SnapshotDate, record.DataHash,
		record.LastProcessedAt, record.RecordsProcessed, record.ChangeSummary,
	); err != nil {
		return fmt.Errorf("failed to upsert change tracking record: %w", err)
	}

	return nil
}
