package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalyst/internal/config"
	"catalyst/internal/metrics"
	"catalyst/internal/model"
	"catalyst/internal/pgmq"
	"catalyst/internal/pubsub"
	"catalyst/internal/repository"
	"catalyst/internal/service"

	"github.com/rs/zerolog"
)

// usageEvent is published after every completed analysis.
type usageEvent struct {
	JobID        string `json:"job_id"`
	UserID       int64  `json:"user_id"`
	StockCount   int    `json:"stock_count"`
	CreditsUsed  int    `json:"credits_used"`
	SearchCount  int    `json:"search_count"`
	Tokens       int    `json:"tokens"`
	DurationSecs int    `json:"duration_secs"`
	CompletedAt  string `json:"completed_at"`
}

// Worker drains the analysis queue: one job per message, one research-and-
// score pass per stock.
type Worker struct {
	cfg       *config.Config
	client    *pgmq.Client
	jobs      repository.AnalysisRepository
	credits   repository.CreditRepository
	analyzer  *service.Analyzer
	stats     service.StatsService
	notify    service.NotifyService
	publisher pubsub.Publisher
	logger    zerolog.Logger
}

// NewWorker wires an analysis worker from its dependencies.
func NewWorker(
	cfg *config.Config,
	client *pgmq.Client,
	jobs repository.AnalysisRepository,
	credits repository.CreditRepository,
	analyzer *service.Analyzer,
	stats service.StatsService,
	notify service.NotifyService,
	publisher pubsub.Publisher,
	logger zerolog.Logger,
) *Worker {
	return &Worker{
		cfg:       cfg,
		client:    client,
		jobs:      jobs,
		credits:   credits,
		analyzer:  analyzer,
		stats:     stats,
		notify:    notify,
		publisher: publisher,
		logger:    logger.With().Str("orchestrator", "analysis").Logger(),
	}
}

// Run starts the analysis orchestrator loop.
func (w *Worker) Run(ctx context.Context) error {
	queue := w.cfg.AnalysisQueueName
	w.logger.Info().Str("queue", queue).Msg("Starting analysis orchestrator")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Shutting down analysis orchestrator")
			return nil
		default:
		}

		msgs, err := w.client.ReadWithPoll(ctx, queue, w.cfg.AnalysisPollTimeoutSec, w.cfg.AnalysisPollMaxMsg)
		if err != nil {
			w.logger.Error().Err(err).Msg("Error reading analysis queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		var task service.AnalysisTask
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			w.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to unmarshal analysis task; deleting message")
			w.ack(ctx, queue, msg.ID)
			continue
		}

		w.process(ctx, &task)
		w.ack(ctx, queue, msg.ID)
	}
}

func (w *Worker) ack(ctx context.Context, queue string, msgID int64) {
	if err := w.client.Delete(ctx, queue, []int64{msgID}); err != nil {
		w.logger.Error().Err(err).Int64("msg_id", msgID).Msg("Error deleting analysis message")
	}
}

func (w *Worker) process(ctx context.Context, task *service.AnalysisTask) {
	logger := w.logger.With().Str("job_id", task.JobID).Logger()

	job, err := w.jobs.GetJob(ctx, task.JobID, 0)
	if err != nil {
		logger.Error().Err(err).Msg("Analysis task references unknown job")
		return
	}
	if job.Status != model.JobQueued {
		logger.Warn().Str("status", job.Status).Msg("Skipping job not in queued state")
		return
	}

	if err := w.jobs.MarkRunning(ctx, task.JobID); err != nil {
		logger.Error().Err(err).Msg("Failed to mark job running")
		return
	}
	logger.Info().Int("stock_count", len(task.Stocks)).Msg("Starting analysis job")

	start := time.Now()
	totalSearches := 0
	totalTokens := 0

	for _, stock := range task.Stocks {
		result, searches, tokens, err := w.analyzeWithRetry(ctx, stock)
		totalSearches += searches
		totalTokens += tokens
		if err != nil {
			w.fail(ctx, job, fmt.Sprintf("analysis of %s (%s) failed: %v", stock.Name, stock.Code, err))
			return
		}

		if err := w.jobs.InsertResult(ctx, task.JobID, result); err != nil {
			w.fail(ctx, job, fmt.Sprintf("storing result for %s failed: %v", stock.Code, err))
			return
		}
		if err := w.jobs.IncrementStocksDone(ctx, task.JobID); err != nil {
			logger.Error().Err(err).Str("stock", stock.Code).Msg("Failed to increment progress")
		}
		metrics.StocksAnalyzedTotal.Inc()
		logger.Info().Str("stock", stock.Code).Int("score", result.CatalystScore).Msg("Analyzed stock")
	}

	durationSecs := int(time.Since(start).Seconds())
	if err := w.jobs.MarkCompleted(ctx, task.JobID, totalSearches, totalTokens, durationSecs); err != nil {
		logger.Error().Err(err).Msg("Failed to mark job completed")
		return
	}

	metrics.AnalysesTotal.WithLabelValues(model.JobCompleted).Inc()
	metrics.AnalysisDuration.Observe(float64(durationSecs))

	stat := &model.AnalysisStat{
		FileName:      job.FileName,
		StockCount:    job.StockCount,
		SearchCount:   totalSearches,
		TokenEstimate: totalTokens,
		DurationSecs:  durationSecs,
	}
	if err := w.stats.RecordAnalysis(ctx, task.JobID, task.UserID, stat); err != nil {
		logger.Error().Err(err).Msg("Failed to record stats for completed job")
	}

	job.Status = model.JobCompleted
	job.StocksDone = job.StockCount
	job.SearchCount = totalSearches
	job.TokenEstimate = totalTokens
	job.DurationSecs = durationSecs
	w.notify.AnalysisCompleted(ctx, job)
	w.publishUsage(ctx, job, totalSearches, totalTokens, durationSecs)

	logger.Info().
		Int("searches", totalSearches).
		Int("tokens", totalTokens).
		Int("duration_secs", durationSecs).
		Msg("Completed analysis job")
}

// analyzeWithRetry retries a stock with exponential backoff before giving up.
func (w *Worker) analyzeWithRetry(ctx context.Context, stock model.StockInfo) (*model.StockAnalysis, int, int, error) {
	backoff := time.Duration(w.cfg.AnalysisBackoffInitialSec) * time.Second
	maxBackoff := time.Duration(w.cfg.AnalysisBackoffMaxSec) * time.Second

	var lastErr error
	searches := 0
	tokens := 0
	for attempt := 1; attempt <= w.cfg.AnalysisMaxRetries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(w.cfg.AnalysisRequestTimeoutSec)*time.Second)
		result, s, t, err := w.analyzer.AnalyzeStock(reqCtx, stock)
		cancel()
		searches += s
		tokens += t
		if err == nil {
			return result, searches, tokens, nil
		}
		lastErr = err
		w.logger.Error().Err(err).Int("attempt", attempt).Str("stock", stock.Code).Msg("Stock analysis failed, retrying")

		select {
		case <-ctx.Done():
			return nil, searches, tokens, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, searches, tokens, lastErr
}

// fail marks the job failed, refunds its credits, notifies and dead-letters it.
func (w *Worker) fail(ctx context.Context, job *model.AnalysisJob, reason string) {
	logger := w.logger.With().Str("job_id", job.ID).Logger()

	if err := w.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		logger.Error().Err(err).Msg("Failed to mark job failed")
	}
	metrics.AnalysesTotal.WithLabelValues(model.JobFailed).Inc()

	if job.CreditsUsed > 0 {
		desc := fmt.Sprintf("refund for failed analysis job %s", job.ID)
		if _, err := w.credits.GrantCredits(ctx, job.UserID, job.SubscriptionID, job.CreditsUsed, model.TxRefund, desc); err != nil {
			logger.Error().Err(err).Int("credits", job.CreditsUsed).Msg("Failed to refund credits for failed job")
		} else {
			metrics.CreditsGrantedTotal.WithLabelValues(model.TxRefund).Add(float64(job.CreditsUsed))
			logger.Info().Int("credits", job.CreditsUsed).Msg("Refunded credits for failed job")
		}
	}

	if payload, err := json.Marshal(job); err == nil {
		if err := w.client.Send(ctx, w.cfg.AnalysisDeadLetterQueueName, payload); err != nil {
			logger.Error().Err(err).Str("dlq", w.cfg.AnalysisDeadLetterQueueName).Msg("Failed to send job to dead-letter queue")
		}
	}

	w.notify.AnalysisFailed(ctx, job, reason)
	logger.Warn().Str("reason", reason).Msg("Analysis job failed")
}

func (w *Worker) publishUsage(ctx context.Context, job *model.AnalysisJob, searches, tokens, durationSecs int) {
	event := usageEvent{
		JobID:        job.ID,
		UserID:       job.UserID,
		StockCount:   job.StockCount,
		CreditsUsed:  job.CreditsUsed,
		SearchCount:  searches,
		Tokens:       tokens,
		DurationSecs: durationSecs,
		CompletedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to marshal usage event")
		return
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.PubSubUsageTopic, payload); err != nil {
		w.logger.Error().Err(err).Str("topic", w.cfg.PubSubUsageTopic).Msg("Failed to publish usage event")
	}
}
