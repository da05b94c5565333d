// internal/repository/kpi_repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// KPIRepository is the read side over persisted risk, action and outcome
// rows. It never participates in the decision pipeline.
type KPIRepository interface {
	GetSummary(ctx context.Context, filter domain.KPIFilter) (*domain.KPISummary, error)
	GetActionBreakdown(ctx context.Context, filter domain.KPIFilter) ([]domain.ActionBreakdown, error)
	GetRiskTimeSeries(ctx context.Context, days int, filter domain.KPIFilter) ([]domain.RiskTimeSeriesPoint, error)
	GetAvailableDates(ctx context.Context, limit int) ([]time.Time, error)
}
