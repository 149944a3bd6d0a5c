package service

import (
	"context"
	"errors"

	"doclens/internal/model"
	"doclens/internal/repository"

	"github.com/rs/zerolog"
)

var ErrUserNotFound = errors.New("user not found")

// UserService manages user profiles mirrored from the identity provider.
type UserService interface {
	// Provision upserts the profile row after signup and ensures the Role
	// Store row exists with role=free. Replays are safe: the role insert
	// never clobbers a row the reconciler already wrote.
	Provision(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, roleRepo repository.RoleRepository, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) Provision(ctx context.Context, u *model.User) (*model.User, error) {
	if err := s.userRepo.UpsertUser(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.UserID).Msg("Failed to upsert user profile")
		return nil, err
	}
	if err := s.roleRepo.EnsureDefault(ctx, u.UserID); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.UserID).Msg("Failed to provision default role")
		return nil, err
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
