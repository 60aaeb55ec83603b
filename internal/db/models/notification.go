// Package models - notification.go defines the in-app Notification model. Notifications are
// never physically removed by read or clear operations; Deleted hides them from listings.
package models

import "time"

// Notification types
const (
	NotificationTaskAssigned   = "task_assigned"
	NotificationTaskUnassigned = "task_unassigned"
	NotificationTaskCompleted  = "task_completed"
	NotificationDeadline       = "deadline"
	NotificationComment        = "comment"
	NotificationMention        = "mention"
	NotificationInvitation     = "invitation"
)

// Notification is a message addressed to a single recipient
type Notification struct {
	ID              int64     `json:"id" db:"id"`
	UserID          int64     `json:"user_id" db:"user_id"`
	Type            string    `json:"type" db:"type"`
	Title           string    `json:"title" db:"title"`
	Message         string    `json:"message" db:"message"`
	Read            bool      `json:"read" db:"read"`
	Deleted         bool      `json:"deleted" db:"deleted"`
	ActionURL       *string   `json:"action_url,omitempty" db:"action_url"`
	CardID          *int64    `json:"card_id,omitempty" db:"card_id"`
	ChecklistItemID *int64    `json:"checklist_item_id,omitempty" db:"checklist_item_id"`
	ActorID         *int64    `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
