package service

import (
	"context"

	"doclens/internal/model"
	"doclens/internal/repository"

	"github.com/rs/zerolog"
)

// RoleService reads the per-user subscription role. Writes happen only
// through the webhook reconciler and signup provisioning; the dashboard
// never upgrades a role.
type RoleService interface {
	Get(ctx context.Context, userID string) (*model.UserRole, error)
}

type roleService struct {
	repo   repository.RoleRepository
	logger zerolog.Logger
}

// NewRoleService creates a new RoleService with a scoped logger.
func NewRoleService(repo repository.RoleRepository, logger zerolog.Logger) RoleService {
	return &roleService{
		repo:   repo,
		logger: logger.With().Str("service", "RoleService").Logger(),
	}
}

// Get returns the user's role row. A user without a row reads as free
// with no expiry, so the dashboard RPC never 404s for a valid session.
func (s *roleService) Get(ctx context.Context, userID string) (*model.UserRole, error) {
	role, err := s.repo.Get(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch role")
		return nil, err
	}
	if role == nil {
		return &model.UserRole{UserID: userID, Role: model.RoleFree}, nil
	}
	return role, nil
}
