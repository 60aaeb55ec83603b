// notification_repository.go implements NotificationRepository: creation of in-app
// notifications, the recipient's inbox reads, read/soft-delete state transitions, and the
// recent-notification lookup the overdue sweeper uses for deduplication.
package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/taskboard/taskboard/internal/db/models"
)

// NotificationRepository handles notification database operations
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// NotificationFilters narrows a recipient's inbox listing
type NotificationFilters struct {
	Read           *bool
	Type           *string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

const notificationColumns = `id, user_id, type, title, message, read, deleted, action_url,
	card_id, checklist_item_id, actor_id, created_at`

// CreateNotification inserts a notification, populating ID and CreatedAt.
// Read and Deleted are always stored as false.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.Read = false
	n.Deleted = false

	query := `
		INSERT INTO notifications (user_id, type, title, message, read, deleted, action_url,
			card_id, checklist_item_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, false, false, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		n.UserID, n.Type, n.Title, n.Message, n.ActionURL,
		n.CardID, n.ChecklistItemID, n.ActorID, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a recipient's notifications newest first. Soft-deleted rows
// are hidden unless IncludeDeleted is set.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID int64, f NotificationFilters) ([]models.Notification, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	where := sq.And{sq.Eq{"user_id": userID}}
	if !f.IncludeDeleted {
		where = append(where, sq.Eq{"deleted": false})
	}
	if f.Read != nil {
		where = append(where, sq.Eq{"read": *f.Read})
	}
	if f.Type != nil {
		where = append(where, sq.Eq{"type": *f.Type})
	}

	query, args, err := psql.Select(notificationColumns).From("notifications").Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build notification query: %w", err)
	}

	notifications := make([]models.Notification, 0)
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the number of visible unread notifications for a recipient
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false AND deleted = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the recipient's notifications as read.
// Returns ErrNotFound when the notification does not exist or belongs to someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	return r.execOne(ctx, "mark notification read",
		`UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
}

// MarkAllRead marks every visible notification of the recipient as read and returns the
// number of rows changed
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return r.execMany(ctx, "mark all notifications read",
		`UPDATE notifications SET read = true WHERE user_id = $1 AND read = false AND deleted = false`, userID)
}

// SoftDelete hides one notification from default listings
func (r *NotificationRepository) SoftDelete(ctx context.Context, userID, id int64) error {
	return r.execOne(ctx, "delete notification",
		`UPDATE notifications SET deleted = true WHERE id = $1 AND user_id = $2`, id, userID)
}

// SoftDeleteAll hides every notification of the recipient
func (r *NotificationRepository) SoftDeleteAll(ctx context.Context, userID int64) (int64, error) {
	return r.execMany(ctx, "clear notifications",
		`UPDATE notifications SET deleted = true WHERE user_id = $1 AND deleted = false`, userID)
}

// HardDelete physically removes one notification
func (r *NotificationRepository) HardDelete(ctx context.Context, userID, id int64) error {
	return r.execOne(ctx, "permanently delete notification",
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
}

// HasRecentNotification reports whether the recipient already has a notification of the
// given type referencing the card or checklist item, created after since. Soft-deleted
// rows still count so that clearing the inbox does not re-trigger a reminder.
func (r *NotificationRepository) HasRecentNotification(ctx context.Context, userID int64, notificationType string, cardID, checklistItemID *int64, since time.Time) (bool, error) {
	where := sq.And{
		sq.Eq{"user_id": userID},
		sq.Eq{"type": notificationType},
		sq.Gt{"created_at": since},
	}
	if checklistItemID != nil {
		where = append(where, sq.Eq{"checklist_item_id": *checklistItemID})
	} else if cardID != nil {
		where = append(where, sq.Eq{"card_id": *cardID}, sq.Eq{"checklist_item_id": nil})
	} else {
		return false, fmt.Errorf("notification reference requires a card or checklist item")
	}

	inner, args, err := psql.Select("1").From("notifications").Where(where).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build dedup query: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS ("+inner+")", args...); err != nil {
		return false, fmt.Errorf("failed to check recent notifications: %w", err)
	}
	return exists, nil
}

func (r *NotificationRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	n, err := r.execMany(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) execMany(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return n, nil
}
