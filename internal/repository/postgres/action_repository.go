// internal/repository/postgres/action_repository.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

// actionInsertBatchSize groups inserts; the transaction commits once at the
// end so IDs are only returned for a fully persisted set.
const actionInsertBatchSize = 100

type actionRepository struct {
	db *DB
}

func NewActionRepository(db *DB) repository.ActionRepository {
	return &actionRepository{db: db}
}

func (r *actionRepository) InsertActions(ctx context.Context, actions []*domain.Action) ([]int64, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO actions (
			action_type, from_store, to_store, sku_id, batch_id,
			qty, discount_pct, expected_savings, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id
	`

	ids := make([]int64, 0, len(actions))
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(actions); start += actionInsertBatchSize {
			end := start + actionInsertBatchSize
			if end > len(actions) {
				end = len(actions)
			}
			for _, a := range actions[start:end] {
				if err := tx.QueryRowContext(ctx, query,
					a.ActionType, a.FromStore, a.ToStore, a.SKUID, a.BatchID,
					a.Qty, a.DiscountPct, a.ExpectedSavings, a.Status,
				).Scan(&a.ID); err != nil {
					return fmt.Errorf("failed to insert action: %w", err)
				}
				ids = append(ids, a.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *actionRepository) GetAction(ctx context.Context, id int64) (*domain.Action, error) {
	query := `
		SELECT id, action_type, from_store, to_store, sku_id, batch_id,
		       qty, discount_pct, expected_savings, status, created_at, updated_at
		FROM actions
		WHERE id = $1
	`

	var action domain.Action
	err := r.db.GetContext(ctx, &action, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting action %d: %w", id, err)
	}

	return &action, nil
}

func (r *actionRepository) UpdateActionStatus(ctx context.Context, id int64, status domain.ActionStatus) error {
	query := `
		UPDATE actions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("error updating action %d status: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("action %d not found", id)
	}

	return nil
}

func (r *actionRepository) UpsertOutcome(ctx context.Context, outcome *domain.ActionOutcome) error {
	query := `
		INSERT INTO action_outcomes (action_id, recovered_value, cleared_units, measured_at, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (action_id) DO UPDATE SET
			recovered_value = EXCLUDED.recovered_value,
			cleared_units = EXCLUDED.cleared_units,
			measured_at = EXCLUDED.measured_at,
			notes = EXCLUDED.notes
	`

	if _, err := r.db.ExecContext(ctx, query,
		outcome.ActionID, outcome.RecoveredValue, outcome.ClearedUnits,
		outcome.MeasuredAt, outcome.Notes,
	); err != nil {
		return fmt.Errorf("failed to upsert action outcome: %w", err)
	}

	return nil
}

func (r *actionRepository) GetOutcome(ctx context.Context, actionID int64) (*domain.ActionOutcome, error) {
	query := `
		SELECT action_id, recovered_value, cleared_units, measured_at, notes
		FROM action_outcomes
		WHERE action_id = $1
	`

	var outcome domain.ActionOutcome
	err := r.db.GetContext(ctx, &outcome, query, actionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting outcome for action %d: %w", actionID, err)
	}

	return &outcome, nil
}
