// audit_repository.go implements AuditRepository, the append-only store for audit log
// entries, plus the filtered, paginated reads used by the admin audit viewer.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/taskboard/taskboard/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	UserID     *int64
	Action     *string
	EntityType *string
	EntityID   *string
	StartDate  *time.Time
	EndDate    *time.Time
}

const auditColumns = `id, user_id, session_id, action, entity_type, entity_id, ip_address, user_agent,
	old_data, new_data, metadata, created_at`

// CreateAuditLog appends a new audit log entry, populating ID and CreatedAt
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (user_id, session_id, action, entity_type, entity_id, ip_address, user_agent,
			old_data, new_data, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		log.UserID,
		log.SessionID,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.IPAddress,
		log.UserAgent,
		log.OldData,
		log.NewData,
		log.Metadata,
		log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs retrieves audit logs with optional filters and pagination, newest first
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	limit, offset = clampPage(limit, offset)
	where := filters.where()

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("audit_logs").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build audit count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	listSQL, listArgs, err := psql.Select(auditColumns).From("audit_logs").Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build audit list query: %w", err)
	}

	logs := make([]*models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

// GetAuditLog retrieves a single audit log entry by ID
func (r *AuditRepository) GetAuditLog(ctx context.Context, id int64) (*models.AuditLog, error) {
	var log models.AuditLog
	err := r.db.GetContext(ctx, &log, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return &log, nil
}

func (f AuditFilters) where() sq.And {
	where := sq.And{}
	if f.UserID != nil {
		where = append(where, sq.Eq{"user_id": *f.UserID})
	}
	if f.Action != nil {
		where = append(where, sq.Eq{"action": *f.Action})
	}
	if f.EntityType != nil {
		where = append(where, sq.Eq{"entity_type": *f.EntityType})
	}
	if f.EntityID != nil {
		where = append(where, sq.Eq{"entity_id": *f.EntityID})
	}
	if f.StartDate != nil {
		where = append(where, sq.GtOrEq{"created_at": *f.StartDate})
	}
	if f.EndDate != nil {
		where = append(where, sq.LtOrEq{"created_at": *f.EndDate})
	}
	return where
}
