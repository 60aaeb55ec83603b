// Package models - audit_log.go defines the AuditLog model: one row per state-changing
// request or explicitly logged security event, with before/after snapshots of the entity.
package models

import "time"

// AuditLog represents a persisted audit trail entry
type AuditLog struct {
	ID         int64     `json:"id" db:"id"`
	UserID     *int64    `json:"user_id,omitempty" db:"user_id"` // Nullable for system actions
	SessionID  *string   `json:"session_id,omitempty" db:"session_id"`
	Action     string    `json:"action" db:"action"`           // CREATE, UPDATE, DELETE, LOGIN, ...
	EntityType string    `json:"entity_type" db:"entity_type"` // card, board, user, system, ...
	EntityID   string    `json:"entity_id" db:"entity_id"`     // numeric id as text, or "system"
	IPAddress  *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string   `json:"user_agent,omitempty" db:"user_agent"`
	OldData    RawJSON   `json:"old_data" db:"old_data"`
	NewData    RawJSON   `json:"new_data" db:"new_data"`
	Metadata   JSONMap   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
