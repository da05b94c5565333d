package service

import (
	"context"
	"time"

	"github.com/andresuchdata/freshrisk/internal/cache"
	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
	"github.com/rs/zerolog/log"
)

// KPIService assembles the read-side dashboard from persisted risk, action
// and outcome rows, caching the full dashboard per filter. Cache failures
// degrade to direct reads, never to request failures.
type KPIService struct {
	repo  repository.KPIRepository
	cache cache.KPICache
}

func NewKPIService(repo repository.KPIRepository, cacheImpl cache.KPICache) *KPIService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopKPICache()
	}
	return &KPIService{repo: repo, cache: cacheImpl}
}

func (s *KPIService) GetSummary(ctx context.Context, filter domain.KPIFilter) (*domain.KPISummary, error) {
	return s.repo.GetSummary(ctx, filter)
}

func (s *KPIService) GetActionBreakdown(ctx context.Context, filter domain.KPIFilter) ([]domain.ActionBreakdown, error) {
	return s.repo.GetActionBreakdown(ctx, filter)
}

func (s *KPIService) GetRiskTimeSeries(ctx context.Context, days int, filter domain.KPIFilter) ([]domain.RiskTimeSeriesPoint, error) {
	if days <= 0 {
		days = 30
	}
	return s.repo.GetRiskTimeSeries(ctx, days, filter)
}

func (s *KPIService) GetDashboard(ctx context.Context, days int, filter domain.KPIFilter) (*domain.KPIDashboard, error) {
	if days <= 0 {
		days = 30
	}

	if dashboard, ok, err := s.cache.GetDashboard(ctx, filter, days); err == nil && ok {
		return dashboard, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("kpi: cache get dashboard failed")
	}

	summary, err := s.repo.GetSummary(ctx, filter)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.repo.GetActionBreakdown(ctx, filter)
	if err != nil {
		return nil, err
	}
	if breakdown == nil {
		breakdown = make([]domain.ActionBreakdown, 0)
	}

	timeSeries, err := s.repo.GetRiskTimeSeries(ctx, days, filter)
	if err != nil {
		return nil, err
	}
	if timeSeries == nil {
		timeSeries = make([]domain.RiskTimeSeriesPoint, 0)
	}

	dashboard := &domain.KPIDashboard{
		Summary:         *summary,
		ActionBreakdown: breakdown,
		TimeSeries:      timeSeries,
	}

	if err := s.cache.SetDashboard(ctx, filter, days, dashboard); err != nil {
		log.Warn().Err(err).Msg("kpi: cache set dashboard failed")
	}

	return dashboard, nil
}

func (s *KPIService) GetAvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	return s.repo.GetAvailableDates(ctx, limit)
}

// InvalidateCache drops all cached dashboards; called after a pipeline run
// lands new rows.
func (s *KPIService) InvalidateCache(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("kpi: cache invalidation failed")
	}
}
