package dto

import "time"

// RoleResponseDTO reports the caller's effective role
type RoleResponseDTO struct {
	Role          string     `json:"role"`
	PlanExpiresAt *time.Time `json:"plan_expires_at"`
}
