package service

import (
	"context"
	"errors"

	"catalyst/internal/model"
	"catalyst/internal/repository"
	"catalyst/internal/util"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
)

// UserService handles registration, login and profile lookups.
type UserService interface {
	// Register creates the account and its free-plan subscription, then returns
	// a signed token. The user never exists without a subscription.
	Register(ctx context.Context, email, name, password string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	Get(ctx context.Context, id int64) (*model.User, error)
}

type userService struct {
	users     repository.UserRepository
	jwtSecret string
	logger    zerolog.Logger
}

// NewUserService creates a new UserService with a scoped logger.
func NewUserService(users repository.UserRepository, jwtSecret string, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) Register(ctx context.Context, email, name, password string) (*model.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		return nil, "", err
	}

	u := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	}
	if _, err := s.users.CreateWithSubscription(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, "", ErrEmailAlreadyRegistered
		}
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to create user")
		return nil, "", err
	}

	token, err := util.CreateToken(u.ID, u.Email, u.Role, s.jwtSecret)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", u.ID).Msg("Failed to issue token")
		return nil, "", err
	}
	s.logger.Info().Int64("user_id", u.ID).Msg("Registered new user")
	return u, token, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("Failed to fetch user for login")
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := util.CreateToken(u.ID, u.Email, u.Role, s.jwtSecret)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", u.ID).Msg("Failed to issue token")
		return nil, "", err
	}
	return u, token, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Error().Err(err).Int64("user_id", id).Msg("Failed to fetch user")
		}
		return nil, err
	}
	return u, nil
}
