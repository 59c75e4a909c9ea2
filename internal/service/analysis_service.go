package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"catalyst/internal/model"
	"catalyst/internal/pgmq"
	"catalyst/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QuotaDeniedError carries the evaluation detail for an insufficient-credits
// rejection so handlers can tell the user exactly how many credits are missing.
type QuotaDeniedError struct {
	Decision *model.QuotaDecision
}

func (e *QuotaDeniedError) Error() string {
	if e.Decision != nil && e.Decision.Reason != "" {
		return e.Decision.Reason
	}
	return "insufficient credits"
}

// AnalysisTask is the queue message handed to the analysis worker.
type AnalysisTask struct {
	JobID  string            `json:"job_id"`
	UserID int64             `json:"user_id"`
	Stocks []model.StockInfo `json:"stocks"`
}

// AnalysisService owns the API side of the analysis pipeline: accept the
// spreadsheet, charge the ledger, create the job and enqueue it.
type AnalysisService interface {
	// Start parses the uploaded spreadsheet, reserves quota and credits for its
	// stocks, persists the job and enqueues it for the worker.
	Start(ctx context.Context, userID int64, fileName string, data []byte) (*model.AnalysisJob, error)
	GetJob(ctx context.Context, jobID string, userID int64) (*model.AnalysisJob, error)
	GetResults(ctx context.Context, jobID string, userID int64) ([]model.StockAnalysis, error)
	ListJobs(ctx context.Context, userID int64, limit int) ([]model.AnalysisJob, error)
}

type analysisService struct {
	jobs      repository.AnalysisRepository
	quota     QuotaService
	credits   CreditService
	storage   StorageService
	queue     *pgmq.Client
	queueName string
	logger    zerolog.Logger
}

// NewAnalysisService creates a new AnalysisService with a scoped logger.
func NewAnalysisService(
	jobs repository.AnalysisRepository,
	quota QuotaService,
	credits CreditService,
	storage StorageService,
	queue *pgmq.Client,
	queueName string,
	logger zerolog.Logger,
) AnalysisService {
	return &analysisService{
		jobs:      jobs,
		quota:     quota,
		credits:   credits,
		storage:   storage,
		queue:     queue,
		queueName: queueName,
		logger:    logger.With().Str("service", "AnalysisService").Logger(),
	}
}

func (s *analysisService) Start(ctx context.Context, userID int64, fileName string, data []byte) (*model.AnalysisJob, error) {
	stocks, err := ParseStocks(data)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	fileKey := fmt.Sprintf("uploads/%d/%s.xlsx", userID, jobID)
	if err := s.storage.Upload(ctx, fileKey, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data); err != nil {
		return nil, err
	}

	res, sub, err := s.quota.Reserve(ctx, userID, len(stocks), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			decision, evalErr := s.quota.Evaluate(ctx, userID, len(stocks))
			if evalErr != nil {
				return nil, err
			}
			return nil, &QuotaDeniedError{Decision: decision}
		}
		return nil, err
	}

	job := &model.AnalysisJob{
		ID:             jobID,
		UserID:         userID,
		SubscriptionID: sub.ID,
		FileKey:        fileKey,
		FileName:       fileName,
		StockCount:     len(stocks),
		CreditsUsed:    res.CreditsUsed,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		s.refund(ctx, userID, res.CreditsUsed, jobID)
		return nil, err
	}

	payload, err := json.Marshal(AnalysisTask{JobID: jobID, UserID: userID, Stocks: stocks})
	if err != nil {
		return nil, fmt.Errorf("marshaling analysis task: %w", err)
	}
	if err := s.queue.Send(ctx, s.queueName, payload); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to enqueue analysis task")
		s.refund(ctx, userID, res.CreditsUsed, jobID)
		_ = s.jobs.MarkFailed(ctx, jobID, "failed to enqueue analysis task")
		return nil, err
	}

	s.logger.Info().
		Str("job_id", jobID).
		Int64("user_id", userID).
		Int("stock_count", len(stocks)).
		Int("credits_used", res.CreditsUsed).
		Msg("Queued analysis job")
	return job, nil
}

// refund returns the reserved credits when the job never made it onto the queue.
func (s *analysisService) refund(ctx context.Context, userID int64, creditsUsed int, jobID string) {
	if creditsUsed == 0 {
		return
	}
	desc := fmt.Sprintf("refund for failed analysis job %s", jobID)
	if _, err := s.credits.Grant(ctx, userID, creditsUsed, model.TxRefund, desc); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Int("credits", creditsUsed).Msg("Failed to refund credits")
	}
}

func (s *analysisService) GetJob(ctx context.Context, jobID string, userID int64) (*model.AnalysisJob, error) {
	return s.jobs.GetJob(ctx, jobID, userID)
}

func (s *analysisService) GetResults(ctx context.Context, jobID string, userID int64) ([]model.StockAnalysis, error) {
	if _, err := s.jobs.GetJob(ctx, jobID, userID); err != nil {
		return nil, err
	}
	return s.jobs.GetResults(ctx, jobID)
}

func (s *analysisService) ListJobs(ctx context.Context, userID int64, limit int) ([]model.AnalysisJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobs.ListJobsByUser(ctx, userID, limit)
}
