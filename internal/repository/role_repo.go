package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doclens/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepository defines methods for accessing the per-user role record.
type RoleRepository interface {
	Get(ctx context.Context, userID string) (*model.UserRole, error)
	// Upsert writes the role row keyed on user_id so redelivery of the
	// same provider event lands on the same row.
	Upsert(ctx context.Context, userID, role string, planExpiresAt *time.Time) error
	// EnsureDefault creates the free row at signup without clobbering a
	// row the reconciler may already have written.
	EnsureDefault(ctx context.Context, userID string) error
}

type roleRepo struct {
	pool *pgxpool.Pool
}

// NewRoleRepo creates a new RoleRepository.
func NewRoleRepo(pool *pgxpool.Pool) RoleRepository {
	return &roleRepo{pool: pool}
}

// Get returns the user's role row, or nil when none exists yet.
func (r *roleRepo) Get(ctx context.Context, userID string) (*model.UserRole, error) {
	const q = `
        SELECT user_id, role, plan_expires_at, updated_at
        FROM user_roles
        WHERE user_id = $1
    `
	var ur model.UserRole
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&ur.UserID,
		&ur.Role,
		&ur.PlanExpiresAt,
		&ur.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch role for user %s: %w", userID, err)
	}
	return &ur, nil
}

func (r *roleRepo) Upsert(ctx context.Context, userID, role string, planExpiresAt *time.Time) error {
	const q = `
        INSERT INTO user_roles (user_id, role, plan_expires_at, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET role = EXCLUDED.role,
            plan_expires_at = EXCLUDED.plan_expires_at,
            updated_at = NOW();
    `
	if _, err := r.pool.Exec(ctx, q, userID, role, planExpiresAt); err != nil {
		return fmt.Errorf("upsert role for user %s: %w", userID, err)
	}
	return nil
}

func (r *roleRepo) EnsureDefault(ctx context.Context, userID string) error {
	const q = `
        INSERT INTO user_roles (user_id, role, plan_expires_at, updated_at)
        VALUES ($1, 'free', NULL, NOW())
        ON CONFLICT (user_id) DO NOTHING;
    `
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("ensure default role for user %s: %w", userID, err)
	}
	return nil
}
