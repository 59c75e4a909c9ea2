package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalyst/internal/config"
	"catalyst/internal/metrics"
	"catalyst/internal/pgmq"

	"github.com/rs/zerolog"
)

// envelope mirrors the message shape enqueued by the notify service.
type envelope struct {
	Kind string          `json:"kind"`
	Card json.RawMessage `json:"card"`
}

// Worker drains the notify queue and delivers cards to the Feishu webhook.
type Worker struct {
	cfg    *config.Config
	client *pgmq.Client
	http   *http.Client
	logger zerolog.Logger
}

// NewWorker wires a notification worker from its dependencies.
func NewWorker(cfg *config.Config, client *pgmq.Client, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		client: client,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("orchestrator", "notify").Logger(),
	}
}

// Run starts the notification orchestrator loop.
func (w *Worker) Run(ctx context.Context) error {
	queue := w.cfg.NotifyQueueName
	if w.cfg.FeishuWebhookURL == "" {
		w.logger.Warn().Msg("FEISHU_WEBHOOK_URL is not set; notifications will be dropped after retries")
	}
	w.logger.Info().Str("queue", queue).Msg("Starting notify orchestrator")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Shutting down notify orchestrator")
			return nil
		default:
		}

		msgs, err := w.client.ReadWithPoll(ctx, queue, w.cfg.NotifyPollTimeoutSec, w.cfg.NotifyPollMaxMsg)
		if err != nil {
			w.logger.Error().Err(err).Msg("Error reading notify queue")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			var env envelope
			if err := json.Unmarshal(msg.Data, &env); err != nil {
				w.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to unmarshal notification; deleting message")
				w.ack(ctx, queue, msg.ID)
				continue
			}

			if err := w.deliverWithRetry(ctx, &env); err != nil {
				w.logger.Error().Err(err).Str("kind", env.Kind).Msg("Notification delivery exhausted retries; dead-lettering")
				metrics.NotificationsTotal.WithLabelValues("failed").Inc()
				if err := w.client.Send(ctx, w.cfg.NotifyDeadLetterQueueName, msg.Data); err != nil {
					w.logger.Error().Err(err).Str("dlq", w.cfg.NotifyDeadLetterQueueName).Msg("Failed to dead-letter notification")
				}
			} else {
				metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
				w.logger.Info().Str("kind", env.Kind).Msg("Delivered notification")
			}
			w.ack(ctx, queue, msg.ID)
		}
	}
}

func (w *Worker) ack(ctx context.Context, queue string, msgID int64) {
	if err := w.client.Delete(ctx, queue, []int64{msgID}); err != nil {
		w.logger.Error().Err(err).Int64("msg_id", msgID).Msg("Error deleting notify message")
	}
}

// deliverWithRetry posts the card to the webhook with exponential backoff.
func (w *Worker) deliverWithRetry(ctx context.Context, env *envelope) error {
	backoff := time.Duration(w.cfg.NotifyBackoffInitialSec) * time.Second
	maxBackoff := time.Duration(w.cfg.NotifyBackoffMaxSec) * time.Second

	var lastErr error
	for attempt := 1; attempt <= w.cfg.NotifyMaxRetries; attempt++ {
		if err := w.deliver(ctx, env.Card); err != nil {
			lastErr = err
			w.logger.Warn().Err(err).Int("attempt", attempt).Str("kind", env.Kind).Msg("Notification delivery failed, retrying")
		} else {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return lastErr
}

func (w *Worker) deliver(ctx context.Context, card json.RawMessage) error {
	if w.cfg.FeishuWebhookURL == "" {
		return fmt.Errorf("feishu webhook url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.FeishuWebhookURL, bytes.NewReader(card))
	if err != nil {
		return fmt.Errorf("building webhook request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}
