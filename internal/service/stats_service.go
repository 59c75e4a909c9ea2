package service

import (
	"context"

	"catalyst/internal/model"
	"catalyst/internal/repository"

	"github.com/rs/zerolog"
)

// StatsService exposes the admin reporting rollups.
type StatsService interface {
	RecordAnalysis(ctx context.Context, jobID string, userID int64, stat *model.AnalysisStat) error
	GetOverview(ctx context.Context, days int) (*model.StatsOverview, error)
}

type statsService struct {
	stats  repository.StatsRepository
	logger zerolog.Logger
}

// NewStatsService creates a new StatsService with a scoped logger.
func NewStatsService(stats repository.StatsRepository, logger zerolog.Logger) StatsService {
	return &statsService{
		stats:  stats,
		logger: logger.With().Str("service", "StatsService").Logger(),
	}
}

func (s *statsService) RecordAnalysis(ctx context.Context, jobID string, userID int64, stat *model.AnalysisStat) error {
	if err := s.stats.RecordAnalysis(ctx, jobID, userID, stat); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to record analysis stats")
		return err
	}
	return nil
}

func (s *statsService) GetOverview(ctx context.Context, days int) (*model.StatsOverview, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	overview, err := s.stats.GetOverview(ctx, days)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch stats overview")
		return nil, err
	}
	return overview, nil
}
