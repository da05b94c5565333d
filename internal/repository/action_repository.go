// internal/repository/action_repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// ActionRepository persists mitigation actions and their measured outcomes.
type ActionRepository interface {
	// InsertActions inserts the actions in batches within one transaction and
	// fills in the database-assigned IDs. Returns the IDs in input order.
	InsertActions(ctx context.Context, actions []*domain.Action) ([]int64, error)

	GetAction(ctx context.Context, id int64) (*domain.Action, error)

	UpdateActionStatus(ctx context.Context, id int64, status domain.ActionStatus) error

	// UpsertOutcome records the outcome for an action; re-recording overwrites
	// the previous row (last write wins).
	UpsertOutcome(ctx context.Context, outcome *domain.ActionOutcome) error

	GetOutcome(ctx context.Context, actionID int64) (*domain.ActionOutcome, error)
}
