package model

import "time"

// Subscription roles. Only the webhook reconciler writes anything other
// than RoleFree.
const (
	RoleFree = "free"
	RolePro  = "pro"
)

// UserRole is the per-user subscription record. One row per user,
// upserted by user_id. PlanExpiresAt is non-nil only while Role is pro.
type UserRole struct {
	UserID        string     `db:"user_id" json:"user_id"`
	Role          string     `db:"role" json:"role"`
	PlanExpiresAt *time.Time `db:"plan_expires_at" json:"plan_expires_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
