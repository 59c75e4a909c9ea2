package repository

import (
	"context"
	"fmt"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository records per-run stats and maintains the daily rollup.
type StatsRepository interface {
	// RecordAnalysis stores the run's stats and upserts the daily usage summary
	// in one transaction.
	RecordAnalysis(ctx context.Context, jobID string, userID int64, stat *model.AnalysisStat) error
	GetOverview(ctx context.Context, days int) (*model.StatsOverview, error)
}

type statsRepo struct {
	pool *pgxpool.Pool
}

// NewStatsRepo creates a new StatsRepository.
func NewStatsRepo(pool *pgxpool.Pool) StatsRepository {
	return &statsRepo{pool: pool}
}

func (r *statsRepo) RecordAnalysis(ctx context.Context, jobID string, userID int64, stat *model.AnalysisStat) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for stats: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertQ = `
        INSERT INTO analysis_stats (job_id, user_id, file_name, stock_count, search_count, token_estimate, duration_secs)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = tx.Exec(ctx, insertQ, jobID, userID, stat.FileName, stat.StockCount, stat.SearchCount, stat.TokenEstimate, stat.DurationSecs)
	if err != nil {
		return fmt.Errorf("recording stats for job %s: %w", jobID, err)
	}

	const upsertQ = `
        INSERT INTO usage_summary (date, analyses, stocks, searches, tokens)
        VALUES (CURRENT_DATE, 1, $1, $2, $3)
        ON CONFLICT (date) DO UPDATE
        SET analyses = usage_summary.analyses + 1,
            stocks = usage_summary.stocks + EXCLUDED.stocks,
            searches = usage_summary.searches + EXCLUDED.searches,
            tokens = usage_summary.tokens + EXCLUDED.tokens,
            updated_at = NOW()
    `
	if _, err := tx.Exec(ctx, upsertQ, stat.StockCount, stat.SearchCount, stat.TokenEstimate); err != nil {
		return fmt.Errorf("updating daily summary for job %s: %w", jobID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing stats for job %s: %w", jobID, err)
	}
	return nil
}

func (r *statsRepo) GetOverview(ctx context.Context, days int) (*model.StatsOverview, error) {
	const dailyQ = `
        SELECT date::text, analyses, stocks, tokens
        FROM usage_summary
        WHERE date >= CURRENT_DATE - $1::int
        ORDER BY date DESC
    `
	rows, err := r.pool.Query(ctx, dailyQ, days)
	if err != nil {
		return nil, fmt.Errorf("listing daily summaries: %w", err)
	}
	defer rows.Close()

	var overview model.StatsOverview
	for rows.Next() {
		var d model.DailySummary
		if err := rows.Scan(&d.Date, &d.TotalAnalyses, &d.TotalStocks, &d.TotalTokens); err != nil {
			return nil, fmt.Errorf("scanning daily summary: %w", err)
		}
		overview.Daily = append(overview.Daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily summaries: %w", err)
	}

	const totalQ = `
        SELECT COALESCE(SUM(analyses), 0), COALESCE(SUM(stocks), 0), COALESCE(SUM(tokens), 0)
        FROM usage_summary
    `
	err = r.pool.QueryRow(ctx, totalQ).Scan(&overview.TotalAnalyses, &overview.TotalStocks, &overview.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage totals: %w", err)
	}
	return &overview, nil
}
