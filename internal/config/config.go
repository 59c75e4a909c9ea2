package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`

	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// S3-compatible object storage for uploaded stock lists and payment receipts.
	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" default:"cn-beijing"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Web search provider.
	SearchAPIURL string `envconfig:"SEARCH_API_URL" default:"https://api.bochaai.com/v1"`
	SearchAPIKey string `envconfig:"SEARCH_API_KEY" default:""`

	// LLM provider (OpenAI-compatible chat completions).
	LLMAPIURL string `envconfig:"LLM_API_URL" default:"https://api.deepseek.com/v1"`
	LLMAPIKey string `envconfig:"LLM_API_KEY" default:""`
	LLMModel  string `envconfig:"LLM_MODEL" default:"deepseek-chat"`

	// Stripe credit-pack checkout.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" default:""`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" default:""`
	StripeReturnURL     string `envconfig:"STRIPE_RETURN_URL" default:"http://localhost:3000/pricing"`

	// Feishu review-bot webhook.
	FeishuWebhookURL string `envconfig:"FEISHU_WEBHOOK_URL" default:""`
	AppBaseURL       string `envconfig:"APP_BASE_URL" default:"http://localhost:8080"`

	// GCP project for Pub/Sub usage events and Secret Manager. Empty disables both.
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID" default:""`
	PubSubUsageTopic              string `envconfig:"PUBSUB_USAGE_TOPIC" default:"analysis-usage-events"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST" default:""`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL" default:""`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL" default:""`

	// Secret Manager secret names overriding the corresponding env values in
	// production. Empty names keep the env value.
	SecretNameStripeKey string `envconfig:"SECRET_NAME_STRIPE_KEY" default:""`
	SecretNameLLMKey    string `envconfig:"SECRET_NAME_LLM_KEY" default:""`
	SecretNameSearchKey string `envconfig:"SECRET_NAME_SEARCH_KEY" default:""`

	// Analysis orchestrator settings.
	AnalysisQueueName           string `envconfig:"ANALYSIS_QUEUE_NAME" default:"analysis_queue"`
	AnalysisDeadLetterQueueName string `envconfig:"ANALYSIS_DEAD_LETTER_QUEUE_NAME" default:"analysis_queue_dlq"`
	AnalysisPollTimeoutSec      int    `envconfig:"ANALYSIS_POLL_TIMEOUT_SEC" default:"30"`
	AnalysisPollMaxMsg          int    `envconfig:"ANALYSIS_POLL_MAX_MSG" default:"1"`
	AnalysisMaxRetries          int    `envconfig:"ANALYSIS_MAX_RETRIES" default:"3"`
	AnalysisBackoffInitialSec   int    `envconfig:"ANALYSIS_BACKOFF_INITIAL_SEC" default:"1"`
	AnalysisBackoffMaxSec       int    `envconfig:"ANALYSIS_BACKOFF_MAX_SEC" default:"60"`
	AnalysisRequestTimeoutSec   int    `envconfig:"ANALYSIS_REQUEST_TIMEOUT_SEC" default:"120"`

	// Notification orchestrator settings.
	NotifyQueueName           string `envconfig:"NOTIFY_QUEUE_NAME" default:"notify_queue"`
	NotifyDeadLetterQueueName string `envconfig:"NOTIFY_DEAD_LETTER_QUEUE_NAME" default:"notify_queue_dlq"`
	NotifyPollTimeoutSec      int    `envconfig:"NOTIFY_POLL_TIMEOUT_SEC" default:"30"`
	NotifyPollMaxMsg          int    `envconfig:"NOTIFY_POLL_MAX_MSG" default:"1"`
	NotifyMaxRetries          int    `envconfig:"NOTIFY_MAX_RETRIES" default:"5"`
	NotifyBackoffInitialSec   int    `envconfig:"NOTIFY_BACKOFF_INITIAL_SEC" default:"1"`
	NotifyBackoffMaxSec       int    `envconfig:"NOTIFY_BACKOFF_MAX_SEC" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}
