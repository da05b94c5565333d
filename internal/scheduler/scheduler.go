// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

// ErrJobAlreadyRunning is returned when a job is triggered while a previous
// run of the same name has not finished. The second invocation is rejected,
// never queued.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrJobNotFound is returned for job names the scheduler does not know.
var ErrJobNotFound = errors.New("job not found")

// Statistics summarizes a job's executions over a trailing window.
type Statistics struct {
	JobName            string  `json:"job_name"`
	WindowDays         int     `json:"window_days"`
	TotalExecutions    int     `json:"total_executions"`
	Completed          int     `json:"completed"`
	Failed             int     `json:"failed"`
	SuccessRate        float64 `json:"success_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// Scheduler runs registered jobs with retry and persists one execution
// record per logical run. Only one run of a given job name may be in flight
// at a time; the runningJobs map acts as the mutex.
type Scheduler struct {
	executions repository.JobRepository
	policy     RetryPolicy

	mu          sync.Mutex
	jobs        map[string]Job
	runningJobs map[string]bool

	cron *cron.Cron
}

func NewScheduler(executions repository.JobRepository, policy RetryPolicy) *Scheduler {
	return &Scheduler{
		executions:  executions,
		policy:      policy,
		jobs:        make(map[string]Job),
		runningJobs: make(map[string]bool),
	}
}

// Register adds a job under its own name. Registering the same name twice
// replaces the earlier job.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name()] = job
}

// IsRunning reports whether a run of the named job is currently in flight.
func (s *Scheduler) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningJobs[name]
}

// RunJob executes the named job, retrying failed attempts per the policy.
// One JobExecution record spans all retries; only the terminal status is
// committed as final.
func (s *Scheduler) RunJob(ctx context.Context, name string, params JobParams) (*JobResult, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%q: %w", name, ErrJobNotFound)
	}
	if s.runningJobs[name] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%q: %w", name, ErrJobAlreadyRunning)
	}
	s.runningJobs[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.runningJobs, name)
		s.mu.Unlock()
	}()

	paramsJSON, _ := json.Marshal(params)
	exec := &domain.JobExecution{
		JobName:    name,
		JobType:    job.Type(),
		Status:     domain.JobPending,
		StartedAt:  time.Now().UTC(),
		Parameters: string(paramsJSON),
	}
	if err := s.executions.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create job execution: %w", err)
	}

	exec.Status = domain.JobRunning
	if err := s.executions.UpdateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to mark job execution running: %w", err)
	}

	result := s.runWithRetry(ctx, job, params, exec)

	now := time.Now().UTC()
	exec.CompletedAt = &now
	if result.Success {
		exec.Status = domain.JobCompleted
		exec.ErrorMessage = ""
	} else {
		exec.Status = domain.JobFailed
	}
	if summary, err := json.Marshal(result); err == nil {
		exec.ResultSummary = string(summary)
	}
	if err := s.executions.UpdateExecution(ctx, exec); err != nil {
		log.Error().Err(err).Str("job", name).Msg("failed to finalize job execution")
	}

	log.Info().
		Str("job", name).
		Bool("success", result.Success).
		Int("retry_count", result.RetryCount).
		Str("skipped_reason", result.SkippedReason).
		Msg("job run finished")

	return result, nil
}

// runWithRetry drives the attempt loop. Attempt failures before the last one
// are recorded transiently on the execution row without finalizing it.
func (s *Scheduler) runWithRetry(ctx context.Context, job Job, params JobParams, exec *domain.JobExecution) *JobResult {
	var lastErr string

	for attempt := 0; attempt <= s.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.policy.Delay(attempt)
			log.Warn().
				Str("job", job.Name()).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Str("last_error", lastErr).
				Msg("retrying job")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &JobResult{
					Success:    false,
					Message:    fmt.Sprintf("cancelled while waiting to retry: %v", ctx.Err()),
					RetryCount: attempt,
				}
			}
		}

		result, err := job.Execute(ctx, params)
		if err == nil && result != nil && result.Success {
			result.RetryCount = attempt
			return result
		}

		switch {
		case err != nil:
			lastErr = err.Error()
		case result != nil && result.Message != "":
			lastErr = result.Message
		default:
			lastErr = "job reported failure"
		}

		exec.ErrorMessage = lastErr
		exec.ResultSummary = fmt.Sprintf(`{"attempt":%d,"error":%q}`, attempt+1, lastErr)
		if uerr := s.executions.UpdateExecution(ctx, exec); uerr != nil {
			log.Error().Err(uerr).Str("job", job.Name()).Msg("failed to record attempt failure")
		}
	}

	return &JobResult{
		Success:    false,
		Message:    lastErr,
		RetryCount: s.policy.MaxRetries,
	}
}

// GetJobStatus returns the latest execution of the job, or nil when the job
// has never run.
func (s *Scheduler) GetJobStatus(ctx context.Context, name string) (*domain.JobExecution, error) {
	return s.executions.GetLatestExecution(ctx, name)
}

// GetJobHistory returns up to limit executions of the job, newest first.
func (s *Scheduler) GetJobHistory(ctx context.Context, name string, limit int) ([]*domain.JobExecution, error) {
	return s.executions.ListExecutions(ctx, name, limit)
}

// GetJobStatistics aggregates the job's executions over the trailing window.
// Average duration counts only completed executions with both timestamps.
func (s *Scheduler) GetJobStatistics(ctx context.Context, name string, days int) (*Statistics, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	execs, err := s.executions.ListExecutionsSince(ctx, name, since)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{JobName: name, WindowDays: days, TotalExecutions: len(execs)}

	var totalDuration time.Duration
	var durationCount int
	for _, e := range execs {
		switch e.Status {
		case domain.JobCompleted:
			stats.Completed++
			if e.CompletedAt != nil && !e.StartedAt.IsZero() {
				totalDuration += e.CompletedAt.Sub(e.StartedAt)
				durationCount++
			}
		case domain.JobFailed:
			stats.Failed++
		}
	}

	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalExecutions)
	}
	if durationCount > 0 {
		stats.AvgDurationSeconds = (totalDuration / time.Duration(durationCount)).Seconds()
	}

	return stats, nil
}

// StartCron schedules the nightly composite job on the given cron spec. The
// nightly run is incremental: change detection makes an unchanged night a
// cheap no-op.
func (s *Scheduler) StartCron(spec string) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(spec, func() {
		params := JobParams{SnapshotDate: today(), Incremental: true}
		if _, err := s.RunJob(context.Background(), JobNameNightly, params); err != nil {
			log.Error().Err(err).Msg("scheduled nightly run failed to start")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule nightly job: %w", err)
	}

	s.cron.Start()
	log.Info().Str("cron", spec).Msg("nightly schedule started")
	return nil
}

// StopCron stops the cron loop and waits for in-flight scheduled runs.
func (s *Scheduler) StopCron() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
