// internal/repository/postgres/kpi_repository.go
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type kpiRepository struct {
	db *sqlx.DB
}

func NewKPIRepository(db *sqlx.DB) repository.KPIRepository {
	return &kpiRepository{db: db}
}

// riskFilterClause builds the optional WHERE fragments shared by the KPI
// queries, using the table alias of the batch_risks relation.
func riskFilterClause(alias string, filter domain.KPIFilter, args []interface{}, argCounter int) (string, []interface{}, int) {
	var conditions []string

	if len(filter.StoreIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("%s.store_id = ANY($%d::bigint[])", alias, argCounter))
		args = append(args, pq.Array(filter.StoreIDs))
		argCounter++
	}

	if len(filter.SKUIds) > 0 {
		conditions = append(conditions, fmt.Sprintf("%s.sku_id = ANY($%d::text[])", alias, argCounter))
		args = append(args, pq.Array(filter.SKUIds))
		argCounter++
	}

	if filter.DateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("%s.snapshot_date >= $%d::date", alias, argCounter))
		args = append(args, filter.DateFrom)
		argCounter++
	}

	if filter.DateTo != "" {
		conditions = append(conditions, fmt.Sprintf("%s.snapshot_date <= $%d::date", alias, argCounter))
		args = append(args, filter.DateTo)
		argCounter++
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	return clause, args, argCounter
}

func (r *kpiRepository) GetSummary(ctx context.Context, filter domain.KPIFilter) (*domain.KPISummary, error) {
	// At-risk exposure comes from the newest snapshot in range; recovered
	// value comes from outcomes of DONE actions.
	query := `
		WITH latest AS (
			SELECT MAX(snapshot_date) AS snapshot_date
			FROM batch_risks br
			WHERE 1=1
	`

	var args []interface{}
	argCounter := 1
	clause, args, argCounter := riskFilterClause("br", filter, args, argCounter)
	query += clause

	query += `
		),
		risk AS (
			SELECT
				COALESCE(SUM(br.at_risk_value), 0) AS at_risk_value,
				COALESCE(SUM(br.at_risk_units), 0) AS at_risk_units,
				COUNT(*) FILTER (WHERE br.at_risk_units > 0) AS batches_at_risk
			FROM batch_risks br
			JOIN latest l ON br.snapshot_date = l.snapshot_date
			WHERE 1=1
	`
	clause, args, argCounter = riskFilterClause("br", filter, args, argCounter)
	query += clause

	query += `
		),
		acted AS (
			SELECT
				COALESCE(SUM(a.expected_savings) FILTER (WHERE a.status = 'PROPOSED'), 0) AS proposed_savings,
				COALESCE(SUM(a.expected_savings) FILTER (WHERE a.status IN ('APPROVED', 'DONE')), 0) AS approved_savings
			FROM actions a
		),
		measured AS (
			SELECT
				COALESCE(SUM(o.recovered_value), 0) AS recovered_value,
				COALESCE(SUM(o.cleared_units), 0) AS cleared_units
			FROM action_outcomes o
			JOIN actions a ON a.id = o.action_id AND a.status = 'DONE'
		)
		SELECT
			risk.at_risk_value, risk.at_risk_units, risk.batches_at_risk,
			acted.proposed_savings, acted.approved_savings,
			measured.recovered_value, measured.cleared_units
		FROM risk, acted, measured
	`

	var summary domain.KPISummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("error getting kpi summary: %w", err)
	}

	if summary.AtRiskValue > 0 {
		summary.ROI = summary.RecoveredValue / summary.AtRiskValue
	}

	return &summary, nil
}

func (r *kpiRepository) GetActionBreakdown(ctx context.Context, filter domain.KPIFilter) ([]domain.ActionBreakdown, error) {
	query := `
		SELECT
			action_type,
			status,
			COUNT(*) AS count,
			COALESCE(SUM(expected_savings), 0) AS expected_savings
		FROM actions
		WHERE 1=1
	`

	var args []interface{}
	var conditions []string
	argCounter := 1

	if len(filter.StoreIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("from_store = ANY($%d::bigint[])", argCounter))
		args = append(args, pq.Array(filter.StoreIDs))
		argCounter++
	}

	if len(filter.SKUIds) > 0 {
		conditions = append(conditions, fmt.Sprintf("sku_id = ANY($%d::text[])", argCounter))
		args = append(args, pq.Array(filter.SKUIds))
		argCounter++
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += `
		GROUP BY action_type, status
		ORDER BY action_type, status
	`

	var breakdown []domain.ActionBreakdown
	if err := r.db.SelectContext(ctx, &breakdown, query, args...); err != nil {
		return nil, fmt.Errorf("error getting action breakdown: %w", err)
	}

	return breakdown, nil
}

func (r *kpiRepository) GetRiskTimeSeries(ctx context.Context, days int, filter domain.KPIFilter) ([]domain.RiskTimeSeriesPoint, error) {
	query := `
		SELECT
			to_char(br.snapshot_date, 'YYYY-MM-DD') AS date,
			COALESCE(SUM(br.at_risk_value), 0) AS at_risk_value,
			COALESCE(SUM(br.at_risk_units), 0) AS at_risk_units,
			COALESCE(AVG(br.risk_score), 0) AS avg_score
		FROM batch_risks br
		WHERE br.snapshot_date >= (current_date - ($1 || ' days')::interval)
	`

	args := []interface{}{days - 1}
	argCounter := 2

	clause, args, _ := riskFilterClause("br", filter, args, argCounter)
	query += clause

	query += `
		GROUP BY br.snapshot_date
		ORDER BY br.snapshot_date
	`

	var points []domain.RiskTimeSeriesPoint
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("error getting risk time series: %w", err)
	}

	return points, nil
}

func (r *kpiRepository) GetAvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT DISTINCT snapshot_date
		FROM batch_risks
		ORDER BY snapshot_date DESC
		LIMIT $1
	`

	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, limit); err != nil {
		return nil, fmt.Errorf("error getting available dates: %w", err)
	}

	return dates, nil
}
