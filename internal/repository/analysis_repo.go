package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrJobNotFound is returned when no analysis job matches the id.
var ErrJobNotFound = errors.New("job_not_found")

// AnalysisRepository persists analysis jobs and their per-stock results.
type AnalysisRepository interface {
	CreateJob(ctx context.Context, job *model.AnalysisJob) error
	// GetJob fetches a job. When userID is non-zero the job must belong to that user.
	GetJob(ctx context.Context, id string, userID int64) (*model.AnalysisJob, error)
	ListJobsByUser(ctx context.Context, userID int64, limit int) ([]model.AnalysisJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, searchCount, tokenEstimate, durationSecs int) error
	MarkFailed(ctx context.Context, id string, errorDetails string) error
	IncrementStocksDone(ctx context.Context, id string) error
	InsertResult(ctx context.Context, jobID string, result *model.StockAnalysis) error
	GetResults(ctx context.Context, jobID string) ([]model.StockAnalysis, error)
}

type analysisRepo struct {
	pool *pgxpool.Pool
}

// NewAnalysisRepo creates a new AnalysisRepository.
func NewAnalysisRepo(pool *pgxpool.Pool) AnalysisRepository {
	return &analysisRepo{pool: pool}
}

func (r *analysisRepo) CreateJob(ctx context.Context, job *model.AnalysisJob) error {
	const q = `
        INSERT INTO analysis_jobs (id, user_id, subscription_id, file_key, file_name, stock_count, credits_used, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued')
        RETURNING status, created_at
    `
	err := r.pool.QueryRow(ctx, q,
		job.ID, job.UserID, job.SubscriptionID, job.FileKey, job.FileName, job.StockCount, job.CreditsUsed,
	).Scan(&job.Status, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating analysis job for user %d: %w", job.UserID, err)
	}
	return nil
}

const jobColumns = `
        id, user_id, subscription_id, file_key, file_name, stock_count, stocks_done,
        credits_used, status, error_details, search_count, token_estimate, duration_secs,
        created_at, started_at, finished_at
`

func scanJob(row pgx.Row) (*model.AnalysisJob, error) {
	var j model.AnalysisJob
	err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.SubscriptionID,
		&j.FileKey,
		&j.FileName,
		&j.StockCount,
		&j.StocksDone,
		&j.CreditsUsed,
		&j.Status,
		&j.ErrorDetails,
		&j.SearchCount,
		&j.TokenEstimate,
		&j.DurationSecs,
		&j.CreatedAt,
		&j.StartedAt,
		&j.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *analysisRepo) GetJob(ctx context.Context, id string, userID int64) (*model.AnalysisJob, error) {
	q := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`
	args := []any{id}
	if userID != 0 {
		q += ` AND user_id = $2`
		args = append(args, userID)
	}
	j, err := scanJob(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("fetching analysis job %s: %w", id, err)
	}
	return j, nil
}

func (r *analysisRepo) ListJobsByUser(ctx context.Context, userID int64, limit int) ([]model.AnalysisJob, error) {
	const q = `
        SELECT ` + jobColumns + `
        FROM analysis_jobs
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs for user %d: %w", userID, err)
	}
	defer rows.Close()

	var jobs []model.AnalysisJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs for user %d: %w", userID, err)
	}
	return jobs, nil
}

func (r *analysisRepo) MarkRunning(ctx context.Context, id string) error {
	const q = `
        UPDATE analysis_jobs
        SET status = 'running', started_at = NOW()
        WHERE id = $1
          AND status = 'queued'
    `
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("marking job %s running: %w", id, err)
	}
	return nil
}

func (r *analysisRepo) MarkCompleted(ctx context.Context, id string, searchCount, tokenEstimate, durationSecs int) error {
	const q = `
        UPDATE analysis_jobs
        SET status = 'completed',
            search_count = $2,
            token_estimate = $3,
            duration_secs = $4,
            finished_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, searchCount, tokenEstimate, durationSecs); err != nil {
		return fmt.Errorf("marking job %s completed: %w", id, err)
	}
	return nil
}

func (r *analysisRepo) MarkFailed(ctx context.Context, id string, errorDetails string) error {
	const q = `
        UPDATE analysis_jobs
        SET status = 'failed', error_details = $2, finished_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, errorDetails); err != nil {
		return fmt.Errorf("marking job %s failed: %w", id, err)
	}
	return nil
}

func (r *analysisRepo) IncrementStocksDone(ctx context.Context, id string) error {
	const q = `UPDATE analysis_jobs SET stocks_done = stocks_done + 1 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("incrementing progress for job %s: %w", id, err)
	}
	return nil
}

func (r *analysisRepo) InsertResult(ctx context.Context, jobID string, result *model.StockAnalysis) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result for job %s: %w", jobID, err)
	}
	const q = `
        INSERT INTO analysis_results (job_id, stock_name, stock_code, result)
        VALUES ($1, $2, $3, $4)
    `
	if _, err := r.pool.Exec(ctx, q, jobID, result.Name, result.Code, payload); err != nil {
		return fmt.Errorf("inserting result for job %s: %w", jobID, err)
	}
	return nil
}

func (r *analysisRepo) GetResults(ctx context.Context, jobID string) ([]model.StockAnalysis, error) {
	const q = `
        SELECT id, job_id, result, created_at
        FROM analysis_results
        WHERE job_id = $1
        ORDER BY id ASC
    `
	rows, err := r.pool.Query(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing results for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var results []model.StockAnalysis
	for rows.Next() {
		var res model.StockAnalysis
		var payload []byte
		if err := rows.Scan(&res.ID, &res.JobID, &payload, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning result for job %s: %w", jobID, err)
		}
		createdAt := res.CreatedAt
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, fmt.Errorf("unmarshaling result for job %s: %w", jobID, err)
		}
		res.CreatedAt = createdAt
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results for job %s: %w", jobID, err)
	}
	return results, nil
}
