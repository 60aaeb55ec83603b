// Package activity records the human-facing business timeline shown on dashboards. It is
// separate from the audit trail: entries carry a description rendered once at write time
// with entity names embedded, so reads need no joins.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/db/repositories"
	"github.com/taskboard/taskboard/internal/safego"
	"github.com/taskboard/taskboard/internal/telemetry"
)

// Type is an activity type. The set is open; these are the ones the service emits.
type Type string

// Activity types
const (
	BoardCreated       Type = "board_created"
	BoardUpdated       Type = "board_updated"
	ListCreated        Type = "list_created"
	CardCreated        Type = "card_created"
	CardMoved          Type = "card_moved"
	CardAssigned       Type = "card_assigned"
	ChecklistCreated   Type = "checklist_created"
	ChecklistCompleted Type = "checklist_completed"
	TaskCompleted      Type = "task_completed"
	SubtaskCompleted   Type = "subtask_completed"
	MemberInvited      Type = "member_invited"
	CommentCreated     Type = "comment_created"
	UserRegistered     Type = "user_registered"
)

// Filter narrows timeline reads
type Filter = repositories.ActivityFilters

// Store persists and queries timeline entries
type Store interface {
	CreateActivity(ctx context.Context, a *models.Activity) error
	ListActivities(ctx context.Context, f repositories.ActivityFilters) ([]models.Activity, error)
	CountByType(ctx context.Context, f repositories.ActivityFilters) ([]models.ActivityTypeCount, error)
}

// Ref names an entity in a description
type Ref struct {
	ID   int64
	Name string
}

// Params is one timeline entry before persistence
type Params struct {
	UserID      int64
	BoardID     *int64
	Type        Type
	EntityType  string
	EntityID    string
	Description string
	Metadata    map[string]interface{}
}

// Recorder writes timeline entries without blocking or failing the caller
type Recorder struct {
	store   Store
	spawner safego.Spawner
	timeout time.Duration
}

// NewRecorder creates a Recorder. A nil spawner selects safego.Async.
func NewRecorder(store Store, spawner safego.Spawner) *Recorder {
	if spawner == nil {
		spawner = safego.Async{}
	}
	return &Recorder{store: store, spawner: spawner, timeout: 5 * time.Second}
}

// Log schedules persistence of p. Failures are logged and dropped.
func (r *Recorder) Log(ctx context.Context, p Params) {
	a := &models.Activity{
		UserID:      p.UserID,
		BoardID:     p.BoardID,
		Type:        string(p.Type),
		EntityType:  p.EntityType,
		EntityID:    p.EntityID,
		Description: p.Description,
		Metadata:    models.JSONMap(p.Metadata),
		CreatedAt:   time.Now().UTC(),
	}
	detached := context.WithoutCancel(ctx)

	r.spawner.Spawn(func() {
		writeCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		if err := r.store.CreateActivity(writeCtx, a); err != nil {
			telemetry.ActivityEntriesWrittenTotal.WithLabelValues(telemetry.ResultError).Inc()
			slog.Error("failed to record activity", "error", err, "type", a.Type, "user_id", a.UserID)
			return
		}
		telemetry.ActivityEntriesWrittenTotal.WithLabelValues(telemetry.ResultSuccess).Inc()
	})
}

// List returns timeline entries matching f, newest first
func (r *Recorder) List(ctx context.Context, f Filter) ([]models.Activity, error) {
	return r.store.ListActivities(ctx, f)
}

// CountByType returns entry counts grouped by type for entries matching f
func (r *Recorder) CountByType(ctx context.Context, f Filter) ([]models.ActivityTypeCount, error) {
	return r.store.CountByType(ctx, f)
}

// BoardCreated records a new board
func (r *Recorder) BoardCreated(ctx context.Context, actor, board Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &board.ID,
		Type:        BoardCreated,
		EntityType:  "board",
		EntityID:    id(board.ID),
		Description: fmt.Sprintf("%s created board %q", actor.Name, board.Name),
		Metadata:    map[string]interface{}{"board_name": board.Name},
	})
}

// BoardUpdated records a board edit; changed lists the edited fields
func (r *Recorder) BoardUpdated(ctx context.Context, actor, board Ref, changed []string) {
	desc := fmt.Sprintf("%s updated board %q", actor.Name, board.Name)
	if len(changed) > 0 {
		desc += " (" + strings.Join(changed, ", ") + ")"
	}
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &board.ID,
		Type:        BoardUpdated,
		EntityType:  "board",
		EntityID:    id(board.ID),
		Description: desc,
		Metadata:    map[string]interface{}{"board_name": board.Name, "changed_fields": changed},
	})
}

// ListCreated records a new list on a board
func (r *Recorder) ListCreated(ctx context.Context, actor, board, list Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &board.ID,
		Type:        ListCreated,
		EntityType:  "list",
		EntityID:    id(list.ID),
		Description: fmt.Sprintf("%s added list %q to %q", actor.Name, list.Name, board.Name),
		Metadata:    map[string]interface{}{"list_title": list.Name, "board_name": board.Name},
	})
}

// CardCreated records a new card in a list
func (r *Recorder) CardCreated(ctx context.Context, actor Ref, boardID int64, card, list Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &boardID,
		Type:        CardCreated,
		EntityType:  "card",
		EntityID:    id(card.ID),
		Description: fmt.Sprintf("%s created card %q in %q", actor.Name, card.Name, list.Name),
		Metadata:    map[string]interface{}{"card_title": card.Name, "list_id": list.ID, "list_title": list.Name},
	})
}

// CardMoved records a card moving between lists
func (r *Recorder) CardMoved(ctx context.Context, actor Ref, boardID int64, card, from, to Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &boardID,
		Type:        CardMoved,
		EntityType:  "card",
		EntityID:    id(card.ID),
		Description: fmt.Sprintf("%s moved card %q from %q to %q", actor.Name, card.Name, from.Name, to.Name),
		Metadata: map[string]interface{}{
			"card_title":     card.Name,
			"from_list_id":   from.ID,
			"from_list_name": from.Name,
			"to_list_id":     to.ID,
			"to_list_name":   to.Name,
		},
	})
}

// CardAssigned records a user being assigned to a card
func (r *Recorder) CardAssigned(ctx context.Context, actor Ref, boardID int64, card, assignee Ref) {
	desc := fmt.Sprintf("%s assigned %s to card %q", actor.Name, assignee.Name, card.Name)
	if actor.ID == assignee.ID {
		desc = fmt.Sprintf("%s joined card %q", actor.Name, card.Name)
	}
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &boardID,
		Type:        CardAssigned,
		EntityType:  "card",
		EntityID:    id(card.ID),
		Description: desc,
		Metadata:    map[string]interface{}{"card_title": card.Name, "assignee_id": assignee.ID, "assignee_name": assignee.Name},
	})
}

// ChecklistCreated records a checklist added to a card
func (r *Recorder) ChecklistCreated(ctx context.Context, actor Ref, boardID int64, checklist, card Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &boardID,
		Type:        ChecklistCreated,
		EntityType:  "checklist",
		EntityID:    id(checklist.ID),
		Description: fmt.Sprintf("%s added checklist %q to card %q", actor.Name, checklist.Name, card.Name),
		Metadata:    map[string]interface{}{"checklist_title": checklist.Name, "card_id": card.ID, "card_title": card.Name},
	})
}

// ChecklistCompleted records every item of a checklist being done
func (r *Recorder) ChecklistCompleted(ctx context.Context, actor Ref, boardID int64, checklist, card Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &boardID,
		Type:        ChecklistCompleted,
		EntityType:  "checklist",
		EntityID:    id(checklist.ID),
		Description: fmt.Sprintf("%s completed checklist %q on card %q", actor.Name, checklist.Name, card.Name),
		Metadata:    map[string]interface{}{"checklist_title": checklist.Name, "card_id": card.ID, "card_title": card.Name},
	})
}

// TaskCompleted records a card being marked complete
func (r *Recorder) TaskCompleted(ctx context.Context, actor Ref, board, card Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &board.ID,
		Type:        TaskCompleted,
		EntityType:  "card",
		EntityID:    id(card.ID),
		Description: fmt.Sprintf("%s completed task %q in %q", actor.Name, card.Name, board.Name),
		Metadata:    map[string]interface{}{"card_title": card.Name, "board_name": board.Name},
	})
}

// SubtaskCompleted records a checklist item being marked complete
func (r *Recorder) SubtaskCompleted(ctx context.Context, actor Ref, boardID int64, item, card Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &boardID,
		Type:        SubtaskCompleted,
		EntityType:  "checklist_item",
		EntityID:    id(item.ID),
		Description: fmt.Sprintf("%s completed subtask %q on card %q", actor.Name, item.Name, card.Name),
		Metadata:    map[string]interface{}{"item_content": item.Name, "card_id": card.ID, "card_title": card.Name},
	})
}

// MemberInvited records a user being added to a board with a role
func (r *Recorder) MemberInvited(ctx context.Context, actor, board, invitee Ref, role string) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &board.ID,
		Type:        MemberInvited,
		EntityType:  "board",
		EntityID:    id(board.ID),
		Description: fmt.Sprintf("%s invited %s to %q as %s", actor.Name, invitee.Name, board.Name, role),
		Metadata:    map[string]interface{}{"invitee_id": invitee.ID, "invitee_name": invitee.Name, "role": role},
	})
}

// CommentCreated records a comment on a card
func (r *Recorder) CommentCreated(ctx context.Context, actor Ref, boardID int64, commentID int64, card Ref) {
	r.Log(ctx, Params{
		UserID:      actor.ID,
		BoardID:     &boardID,
		Type:        CommentCreated,
		EntityType:  "comment",
		EntityID:    id(commentID),
		Description: fmt.Sprintf("%s commented on card %q", actor.Name, card.Name),
		Metadata:    map[string]interface{}{"card_id": card.ID, "card_title": card.Name},
	})
}

// UserRegistered records a new account; it has no board scope
func (r *Recorder) UserRegistered(ctx context.Context, user Ref) {
	r.Log(ctx, Params{
		UserID:      user.ID,
		Type:        UserRegistered,
		EntityType:  "user",
		EntityID:    id(user.ID),
		Description: fmt.Sprintf("%s joined the workspace", user.Name),
	})
}

func id(v int64) string { return strconv.FormatInt(v, 10) }
