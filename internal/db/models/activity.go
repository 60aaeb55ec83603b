// Package models - activity.go defines the Activity timeline model shown on dashboards.
// Descriptions are rendered once at write time and never rebuilt at read time.
package models

import "time"

// Activity represents one entry in the business activity timeline
type Activity struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	BoardID     *int64    `json:"board_id,omitempty" db:"board_id"`
	Type        string    `json:"activity_type" db:"activity_type"`
	EntityType  string    `json:"entity_type" db:"entity_type"`
	EntityID    string    `json:"entity_id" db:"entity_id"`
	Description string    `json:"description" db:"description"`
	Metadata    JSONMap   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ActivityTypeCount is one row of the count-by-type aggregation
type ActivityTypeCount struct {
	Type  string `json:"activity_type" db:"activity_type"`
	Count int64  `json:"count" db:"count"`
}
