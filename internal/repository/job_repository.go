// internal/repository/job_repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// JobRepository persists job execution history.
type JobRepository interface {
	// CreateExecution inserts the execution and fills in its ID.
	CreateExecution(ctx context.Context, exec *domain.JobExecution) error

	UpdateExecution(ctx context.Context, exec *domain.JobExecution) error

	// GetLatestExecution returns the most recently started execution of the
	// job, or nil when the job has never run.
	GetLatestExecution(ctx context.Context, jobName string) (*domain.JobExecution, error)

	// ListExecutions returns up to limit executions of the job, newest first.
	ListExecutions(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error)

	// ListExecutionsSince returns all executions of the job started at or
	// after since, newest first.
	ListExecutionsSince(ctx context.Context, jobName string, since time.Time) ([]*domain.JobExecution, error)
}
