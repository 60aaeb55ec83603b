// activity_repository.go implements ActivityRepository, the append-only store behind the
// dashboard activity timeline, with filtered listing and a grouped count-by-type report.
package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/taskboard/taskboard/internal/db/models"
)

// ActivityRepository handles activity timeline database operations
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ActivityFilters narrows activity reads. Zero values are ignored.
type ActivityFilters struct {
	UserID     *int64
	BoardID    *int64
	Type       *string
	EntityType *string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

const activityColumns = `id, user_id, board_id, activity_type, entity_type, entity_id, description, metadata, created_at`

// CreateActivity appends a timeline entry, populating ID and CreatedAt
func (r *ActivityRepository) CreateActivity(ctx context.Context, a *models.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activities (user_id, board_id, activity_type, entity_type, entity_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		a.UserID, a.BoardID, a.Type, a.EntityType, a.EntityID, a.Description, a.Metadata, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// ListActivities returns matching entries newest first
func (r *ActivityRepository) ListActivities(ctx context.Context, f ActivityFilters) ([]models.Activity, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	query, args, err := psql.Select(activityColumns).From("activities").Where(f.where()).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build activity query: %w", err)
	}

	activities := make([]models.Activity, 0)
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

// CountByType aggregates matching entries by activity type, most frequent first.
// Pagination fields of the filter are ignored.
func (r *ActivityRepository) CountByType(ctx context.Context, f ActivityFilters) ([]models.ActivityTypeCount, error) {
	query, args, err := psql.Select("activity_type", "COUNT(*) AS count").From("activities").Where(f.where()).
		GroupBy("activity_type").
		OrderBy("count DESC", "activity_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build activity count query: %w", err)
	}

	counts := make([]models.ActivityTypeCount, 0)
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}
	return counts, nil
}

func (f ActivityFilters) where() sq.And {
	where := sq.And{}
	if f.UserID != nil {
		where = append(where, sq.Eq{"user_id": *f.UserID})
	}
	if f.BoardID != nil {
		where = append(where, sq.Eq{"board_id": *f.BoardID})
	}
	if f.Type != nil {
		where = append(where, sq.Eq{"activity_type": *f.Type})
	}
	if f.EntityType != nil {
		where = append(where, sq.Eq{"entity_type": *f.EntityType})
	}
	if f.StartDate != nil {
		where = append(where, sq.GtOrEq{"created_at": *f.StartDate})
	}
	if f.EndDate != nil {
		where = append(where, sq.LtOrEq{"created_at": *f.EndDate})
	}
	return where
}
