package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"catalyst/internal/config"
	"catalyst/internal/logger"
	"catalyst/internal/orchestrator/analysis"
	"catalyst/internal/orchestrator/notify"
	"catalyst/internal/pgmq"
	"catalyst/internal/pubsub"
	"catalyst/internal/repository"
	"catalyst/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: analysis|notify")
	flag.Parse()

	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize DB pool
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	// Initialize PGMQ client
	pgmqClient := pgmq.New(pool)
	logger.Info().Msg("PGMQ client initialized")

	// Dispatch to the selected orchestrator
	var runErr error
	switch *mode {
	case "analysis":
		if cfg.Environment != "development" {
			if err := service.ResolveSecrets(ctx, cfg, logger); err != nil {
				logger.Fatal().Msgf("Failed to resolve secrets: %v", err)
			}
		}

		var publisher pubsub.Publisher = pubsub.NopPublisher{}
		if cfg.GCPProjectID != "" {
			p, err := pubsub.NewPublisher(ctx, cfg)
			if err != nil {
				logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
			}
			defer p.Close()
			publisher = p
		}

		searchClient := service.NewSearchClient(cfg.SearchAPIURL, cfg.SearchAPIKey, logger)
		llmClient := service.NewLLMClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
		analyzer := service.NewAnalyzer(searchClient, llmClient, logger)

		statsSvc := service.NewStatsService(repository.NewStatsRepo(pool), logger)
		notifySvc := service.NewNotifyService(cfg, pgmqClient, logger)

		worker := analysis.NewWorker(
			cfg,
			pgmqClient,
			repository.NewAnalysisRepo(pool),
			repository.NewCreditRepo(pool),
			analyzer,
			statsSvc,
			notifySvc,
			publisher,
			logger,
		)
		runErr = worker.Run(ctx)
	case "notify":
		runErr = notify.NewWorker(cfg, pgmqClient, logger).Run(ctx)
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}
