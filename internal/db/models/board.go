// Package models - board.go defines the task-board entities (portfolios, boards, lists,
// cards, checklists, checklist items) and their membership relations. The subsystem reads
// these rows but never writes them.
package models

import "time"

// Board member roles
const (
	BoardRoleOwner  = "owner"
	BoardRoleAdmin  = "admin"
	BoardRoleMember = "member"
	BoardRoleViewer = "viewer"
)

// Portfolio groups boards
type Portfolio struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Board is a project; OwnerID is the creator
type Board struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	OwnerID     int64     `json:"owner_id" db:"owner_id"`
	PortfolioID *int64    `json:"portfolio_id,omitempty" db:"portfolio_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BoardMember is a user's membership on a board with a per-board role
type BoardMember struct {
	BoardID   int64     `json:"board_id" db:"board_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsManager reports whether the member's role is owner or admin
func (m BoardMember) IsManager() bool {
	return m.Role == BoardRoleOwner || m.Role == BoardRoleAdmin
}

// List is a column on a board
type List struct {
	ID        int64     `json:"id" db:"id"`
	BoardID   int64     `json:"board_id" db:"board_id"`
	Title     string    `json:"title" db:"title"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Card is a task. BoardID is resolved through the owning list.
type Card struct {
	ID          int64      `json:"id" db:"id"`
	ListID      int64      `json:"list_id" db:"list_id"`
	BoardID     int64      `json:"board_id" db:"board_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Completed   bool       `json:"completed" db:"completed"`
	Position    int        `json:"position" db:"position"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CardMember records a user assigned to a card, in assignment order
type CardMember struct {
	CardID    int64     `json:"card_id" db:"card_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Checklist belongs to a card
type Checklist struct {
	ID        int64     `json:"id" db:"id"`
	CardID    int64     `json:"card_id" db:"card_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ChecklistItem is a subtask; AssignedTo is its single assignee
type ChecklistItem struct {
	ID          int64      `json:"id" db:"id"`
	ChecklistID int64      `json:"checklist_id" db:"checklist_id"`
	CardID      int64      `json:"card_id" db:"card_id"`
	Content     string     `json:"content" db:"content"`
	AssignedTo  *int64     `json:"assigned_to,omitempty" db:"assigned_to"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Completed   bool       `json:"completed" db:"completed"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// OverdueCardAssignment is one (assignee, card) pair returned by the overdue query
type OverdueCardAssignment struct {
	CardID    int64     `db:"card_id"`
	CardTitle string    `db:"card_title"`
	BoardID   int64     `db:"board_id"`
	BoardName string    `db:"board_name"`
	UserID    int64     `db:"user_id"`
	DueDate   time.Time `db:"due_date"`
}

// OverdueChecklistItem is one assigned checklist item whose due date has passed
type OverdueChecklistItem struct {
	ItemID     int64     `db:"item_id"`
	Content    string    `db:"content"`
	CardID     int64     `db:"card_id"`
	CardTitle  string    `db:"card_title"`
	BoardID    int64     `db:"board_id"`
	BoardName  string    `db:"board_name"`
	AssignedTo int64     `db:"assigned_to"`
	DueDate    time.Time `db:"due_date"`
}
