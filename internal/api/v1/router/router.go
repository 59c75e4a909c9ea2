package router

import (
	"context"
	"database/sql"
	"net/http"

	"catalyst/internal"
	"catalyst/internal/api/v1/handler"
	"catalyst/internal/config"
	"catalyst/internal/middleware"
	"catalyst/internal/pgmq"
	"catalyst/internal/repository"
	"catalyst/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// Run migrations through database/sql, then serve traffic from a pgx pool.
	migrationDB, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB connection for migrations")
		return nil, nil, err
	}
	if err := internal.RunMigrations(migrationDB); err != nil {
		migrationDB.Close()
		logger.Error().Err(err).Msg("Failed to run migrations")
		return nil, nil, err
	}
	migrationDB.Close()
	logger.Info().Msg("Database migrations applied")

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create connection pool")
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error().Err(err).Msg("Failed to ping DB")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// Production secrets override env-provided API keys.
	if cfg.Environment != "development" {
		if err := service.ResolveSecrets(ctx, cfg, logger); err != nil {
			pool.Close()
			logger.Error().Err(err).Msg("Failed to resolve secrets")
			return nil, nil, err
		}
	}

	// S3-compatible object storage.
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		pool.Close()
		logger.Error().Err(err).Msg("Failed to load S3 config")
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	validate := validator.New(validator.WithRequiredStructEnabled())

	queue := pgmq.New(pool)

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	topupRepo := repository.NewTopupRepo(pool)
	analysisRepo := repository.NewAnalysisRepo(pool)
	statsRepo := repository.NewStatsRepo(pool)
	dlqRepo := repository.NewDLQRepo(pool)

	// Services
	notifySvc := service.NewNotifyService(cfg, queue, logger)
	userSvc := service.NewUserService(userRepo, cfg.JWTSecret, logger)
	quotaSvc := service.NewQuotaService(subRepo, usageRepo, logger)
	creditSvc := service.NewCreditService(creditRepo, subRepo, userRepo, logger)
	topupSvc := service.NewTopupService(topupRepo, subRepo, notifySvc, logger)
	storageSvc := service.NewStorageService(s3Client, cfg.S3Bucket, logger)
	analysisSvc := service.NewAnalysisService(analysisRepo, quotaSvc, creditSvc, storageSvc, queue, cfg.AnalysisQueueName, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, subRepo, creditRepo, notifySvc, logger)
	statsSvc := service.NewStatsService(statsRepo, logger)
	dlqSvc := service.NewDLQService(dlqRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(userSvc, validate)
	subHandler := handler.NewSubscriptionHandler(subRepo, quotaSvc)
	creditHandler := handler.NewCreditHandler(creditSvc, stripeSvc, validate)
	topupHandler := handler.NewTopupHandler(topupSvc, validate, cfg.JWTSecret)
	analysisHandler := handler.NewAnalysisHandler(analysisSvc, quotaSvc, validate)
	statsHandler := handler.NewStatsHandler(statsSvc)
	dlqHandler := handler.NewDLQHandler(dlqSvc, logger)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	isLocalDev := cfg.Environment == "development" || cfg.PubSubEmulatorHost != ""
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	authHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	creditHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	topupHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	analysisHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	statsHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	dlqHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
