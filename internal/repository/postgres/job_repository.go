// internal/repository/postgres/job_repository.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

type jobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) repository.JobRepository {
	return &jobRepository{db: db}
}

const jobExecutionColumns = `
	id, job_name, job_type, status, started_at, completed_at,
	error_message, result_summary, parameters
`

func (r *jobRepository) CreateExecution(ctx context.Context, exec *domain.JobExecution) error {
	query := `
		INSERT INTO job_executions (
			job_name, job_type, status, started_at, completed_at,
			error_message, result_summary, parameters
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		exec.JobName, exec.JobType, exec.Status, exec.StartedAt, exec.CompletedAt,
		exec.ErrorMessage, exec.ResultSummary, exec.Parameters,
	).Scan(&exec.ID)
	if err != nil {
		return fmt.Errorf("failed to create job execution: %w", err)
	}

	return nil
}

func (r *jobRepository) UpdateExecution(ctx context.Context, exec *domain.JobExecution) error {
	query := `
		UPDATE job_executions
		SET status = $1, completed_at = $2, error_message = $3, result_summary = $4
		WHERE id = $5
	`

	if _, err := r.db.ExecContext(ctx, query,
		exec.Status, exec.CompletedAt, exec.ErrorMessage, exec.ResultSummary, exec.ID,
	); err != nil {
		return fmt.Errorf("failed to update job execution %d: %w", exec.ID, err)
	}

	return nil
}

func (r *jobRepository) GetLatestExecution(ctx context.Context, jobName string) (*domain.JobExecution, error) {
	query := `
		SELECT ` + jobExecutionColumns + `
		FROM job_executions
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	var exec domain.JobExecution
	err := r.db.GetContext(ctx, &exec, query, jobName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting latest execution of %s: %w", jobName, err)
	}

	return &exec, nil
}

func (r *jobRepository) ListExecutions(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + jobExecutionColumns + `
		FROM job_executions
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	var execs []*domain.JobExecution
	if err := r.db.SelectContext(ctx, &execs, query, jobName, limit); err != nil {
		return nil, fmt.Errorf("error listing executions of %s: %w", jobName, err)
	}

	return execs, nil
}

func (r *jobRepository) ListExecutionsSince(ctx context.Context, jobName string, since time.Time) ([]*domain.JobExecution, error) {
	query := `
		SELECT ` + jobExecutionColumns + `
		FROM job_executions
		WHERE job_name = $1 AND started_at >= $2
		ORDER BY started_at DESC
	`

	var execs []*domain.JobExecution
	if err := r.db.SelectContext(ctx, &execs, query, jobName, since); err != nil {
		return nil, fmt.Errorf("error listing executions of %s since %s: %w", jobName, since.Format("2006-01-02"), err)
	}

	return execs, nil
}
