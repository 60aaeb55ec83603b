// board_repository.go implements BoardRepository, read-only access to the task-board
// hierarchy (portfolios, boards, lists, cards, checklists, items), membership relations,
// and the overdue scans consumed by the deadline sweeper.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/taskboard/taskboard/internal/db/models"
)

// BoardRepository reads boards and the entities nested under them
type BoardRepository struct {
	db *sqlx.DB
}

// NewBoardRepository creates a new BoardRepository
func NewBoardRepository(db *sqlx.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// getOne runs a single-row query into dest. found is false when no row matched.
func (r *BoardRepository) getOne(ctx context.Context, what string, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := r.db.GetContext(ctx, dest, query, args...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return true, nil
}

// GetPortfolio retrieves a portfolio by ID
func (r *BoardRepository) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	var p models.Portfolio
	found, err := r.getOne(ctx, "portfolio", &p,
		`SELECT id, name, owner_id, created_at, updated_at FROM portfolios WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// GetBoard retrieves a board by ID
func (r *BoardRepository) GetBoard(ctx context.Context, id int64) (*models.Board, error) {
	var b models.Board
	found, err := r.getOne(ctx, "board", &b,
		`SELECT id, name, description, owner_id, portfolio_id, created_at, updated_at FROM boards WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// GetList retrieves a list by ID
func (r *BoardRepository) GetList(ctx context.Context, id int64) (*models.List, error) {
	var l models.List
	found, err := r.getOne(ctx, "list", &l,
		`SELECT id, board_id, title, position, created_at, updated_at FROM lists WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &l, nil
}

// GetCard retrieves a card by ID, resolving its board through the owning list
func (r *BoardRepository) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	query := `
		SELECT c.id, c.list_id, l.board_id, c.title, c.description, c.due_date, c.completed,
			c.position, c.created_at, c.updated_at
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE c.id = $1
	`
	var c models.Card
	found, err := r.getOne(ctx, "card", &c, query, id)
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

// GetChecklist retrieves a checklist by ID
func (r *BoardRepository) GetChecklist(ctx context.Context, id int64) (*models.Checklist, error) {
	var cl models.Checklist
	found, err := r.getOne(ctx, "checklist", &cl,
		`SELECT id, card_id, title, created_at, updated_at FROM checklists WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &cl, nil
}

// GetChecklistItem retrieves a checklist item by ID, resolving its card through the checklist
func (r *BoardRepository) GetChecklistItem(ctx context.Context, id int64) (*models.ChecklistItem, error) {
	query := `
		SELECT i.id, i.checklist_id, cl.card_id, i.content, i.assigned_to, i.due_date, i.completed,
			i.created_at, i.updated_at
		FROM checklist_items i
		JOIN checklists cl ON cl.id = i.checklist_id
		WHERE i.id = $1
	`
	var item models.ChecklistItem
	found, err := r.getOne(ctx, "checklist item", &item, query, id)
	if err != nil || !found {
		return nil, err
	}
	return &item, nil
}

// ListBoardMembers returns a board's members with their per-board role.
// When roles is non-empty only members holding one of them are returned.
func (r *BoardRepository) ListBoardMembers(ctx context.Context, boardID int64, roles ...string) ([]models.BoardMember, error) {
	query := `SELECT board_id, user_id, role, created_at FROM board_members WHERE board_id = $1`
	args := []interface{}{boardID}
	if len(roles) > 0 {
		query += ` AND role = ANY($2)`
		args = append(args, pq.Array(roles))
	}
	query += ` ORDER BY created_at, user_id`

	members := make([]models.BoardMember, 0)
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list board members: %w", err)
	}
	return members, nil
}

// ListCardMembers returns a card's assigned users in assignment order
func (r *BoardRepository) ListCardMembers(ctx context.Context, cardID int64) ([]models.CardMember, error) {
	members := make([]models.CardMember, 0)
	err := r.db.SelectContext(ctx, &members,
		`SELECT card_id, user_id, created_at FROM card_members WHERE card_id = $1 ORDER BY created_at, user_id`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list card members: %w", err)
	}
	return members, nil
}

// ListOverdueCardAssignments returns one row per incomplete card whose due date is before
// now, addressed to the card's assignee: its first recorded member, ordered the same way
// as GetCardMembers
func (r *BoardRepository) ListOverdueCardAssignments(ctx context.Context, now time.Time) ([]models.OverdueCardAssignment, error) {
	query := `
		SELECT * FROM (
			SELECT DISTINCT ON (c.id) c.id AS card_id, c.title AS card_title,
				b.id AS board_id, b.name AS board_name, cm.user_id, c.due_date
			FROM cards c
			JOIN lists l ON l.id = c.list_id
			JOIN boards b ON b.id = l.board_id
			JOIN card_members cm ON cm.card_id = c.id
			WHERE c.due_date IS NOT NULL AND c.due_date < $1 AND c.completed = false
			ORDER BY c.id, cm.created_at, cm.user_id
		) overdue
		ORDER BY due_date, card_id
	`
	rows := make([]models.OverdueCardAssignment, 0)
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to list overdue cards: %w", err)
	}
	return rows, nil
}

// ListOverdueChecklistItems returns every incomplete, assigned checklist item whose due
// date is before now
func (r *BoardRepository) ListOverdueChecklistItems(ctx context.Context, now time.Time) ([]models.OverdueChecklistItem, error) {
	query := `
		SELECT i.id AS item_id, i.content, c.id AS card_id, c.title AS card_title,
			b.id AS board_id, b.name AS board_name, i.assigned_to, i.due_date
		FROM checklist_items i
		JOIN checklists cl ON cl.id = i.checklist_id
		JOIN cards c ON c.id = cl.card_id
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
		WHERE i.due_date IS NOT NULL AND i.due_date < $1
			AND i.assigned_to IS NOT NULL AND i.completed = false
		ORDER BY i.due_date, i.id
	`
	rows := make([]models.OverdueChecklistItem, 0)
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to list overdue checklist items: %w", err)
	}
	return rows, nil
}
