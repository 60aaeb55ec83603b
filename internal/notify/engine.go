// Package notify is the notification rule engine: given a task or subtask lifecycle
// event it decides who is told, renders role-sensitive wording, and writes one in-app
// notification per recipient. Writes are independent; one failed recipient never blocks
// the others.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Kind is a lifecycle event the engine fans out
type Kind string

// Event kinds
const (
	TaskCompleted    Kind = "task_completed"
	SubtaskCompleted Kind = "subtask_completed"
	TaskOverdue      Kind = "task_overdue"
	SubtaskOverdue   Kind = "subtask_overdue"
)

const (
	kindCompleted = "completed"
	kindOverdue   = "overdue"
)

func (k Kind) base() string {
	if k == TaskOverdue || k == SubtaskOverdue {
		return kindOverdue
	}
	return kindCompleted
}

func (k Kind) valid() bool {
	switch k {
	case TaskCompleted, SubtaskCompleted, TaskOverdue, SubtaskOverdue:
		return true
	}
	return false
}

// notificationType maps an event kind to the stored notification type
func (k Kind) notificationType() string {
	if k.base() == kindOverdue {
		return models.NotificationDeadline
	}
	return models.NotificationTaskCompleted
}

// Event is a lifecycle event. ActorID is nil for events raised by the service itself.
// ChecklistItemID selects subtask wording and the subtask's assignee.
type Event struct {
	Kind            Kind
	ActorID         *int64
	BoardID         int64
	CardID          int64
	ChecklistItemID *int64
}

// Store persists notifications
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Users looks up display names
type Users interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Boards reads the board hierarchy and its memberships
type Boards interface {
	GetBoard(ctx context.Context, id int64) (*models.Board, error)
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	GetChecklistItem(ctx context.Context, id int64) (*models.ChecklistItem, error)
	ListBoardMembers(ctx context.Context, boardID int64, roles ...string) ([]models.BoardMember, error)
	ListCardMembers(ctx context.Context, cardID int64) ([]models.CardMember, error)
}

// ErrUnknownEntity is returned when an event references a board, card, or checklist
// item that does not exist
var ErrUnknownEntity = errors.New("referenced entity not found")

// Engine resolves recipients and writes notifications
type Engine struct {
	store   Store
	users   Users
	boards  Boards
	baseURL string
	now     func() time.Time
}

// NewEngine creates an Engine. baseURL prefixes action links; empty keeps them relative.
func NewEngine(store Store, users Users, boards Boards, baseURL string) *Engine {
	return &Engine{
		store:   store,
		users:   users,
		boards:  boards,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// eventContext is everything loaded for one event
type eventContext struct {
	board     *models.Board
	card      *models.Card
	item      *models.ChecklistItem
	actor     *models.User
	managers  []models.BoardMember
	cardUsers []models.CardMember
}

func (c *eventContext) subject() string {
	if c.item != nil {
		return c.item.Content
	}
	return c.card.Title
}

// assignee is the item's assignee for subtasks, otherwise the card's first member
func (c *eventContext) assignee() *int64 {
	if c.item != nil {
		return c.item.AssignedTo
	}
	if len(c.cardUsers) > 0 {
		id := c.cardUsers[0].UserID
		return &id
	}
	return nil
}

// load fetches the event's entities concurrently
func (e *Engine) load(ctx context.Context, boardID, cardID int64, itemID, actorID *int64, withManagers bool) (*eventContext, error) {
	ec := &eventContext{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		ec.board, err = e.boards.GetBoard(gctx, boardID)
		return err
	})
	g.Go(func() (err error) {
		ec.card, err = e.boards.GetCard(gctx, cardID)
		return err
	})
	if itemID != nil {
		g.Go(func() (err error) {
			ec.item, err = e.boards.GetChecklistItem(gctx, *itemID)
			return err
		})
	} else {
		g.Go(func() (err error) {
			ec.cardUsers, err = e.boards.ListCardMembers(gctx, cardID)
			return err
		})
	}
	if actorID != nil {
		g.Go(func() (err error) {
			ec.actor, err = e.users.GetUserByID(gctx, *actorID)
			return err
		})
	}
	if withManagers {
		g.Go(func() (err error) {
			ec.managers, err = e.boards.ListBoardMembers(gctx, boardID, models.BoardRoleOwner, models.BoardRoleAdmin)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	switch {
	case ec.board == nil:
		return nil, fmt.Errorf("board %d: %w", boardID, ErrUnknownEntity)
	case ec.card == nil:
		return nil, fmt.Errorf("card %d: %w", cardID, ErrUnknownEntity)
	case itemID != nil && ec.item == nil:
		return nil, fmt.Errorf("checklist item %d: %w", *itemID, ErrUnknownEntity)
	}
	return ec, nil
}

// recipient is one resolved addressee
type recipient struct {
	userID   int64
	assignee bool
}

// resolveRecipients unions the assignee, board owners and admins, and the board creator,
// excluding the actor. Each user appears once; the assignee flag wins.
func resolveRecipients(ec *eventContext, actorID *int64) []recipient {
	seen := make(map[int64]bool)
	out := make([]recipient, 0, len(ec.managers)+2)
	add := func(id int64, assignee bool) {
		if actorID != nil && id == *actorID {
			return
		}
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, recipient{userID: id, assignee: assignee})
	}

	if a := ec.assignee(); a != nil {
		add(*a, true)
	}
	for _, m := range ec.managers {
		if m.IsManager() {
			add(m.UserID, false)
		}
	}
	add(ec.board.OwnerID, false)
	return out
}

// Dispatch fans a lifecycle event out to its recipients and returns how many
// notifications were written. Lookup failures abort the event; individual write
// failures are logged and skipped.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (int, error) {
	if !ev.Kind.valid() {
		return 0, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if (ev.Kind == SubtaskCompleted || ev.Kind == SubtaskOverdue) && ev.ChecklistItemID == nil {
		return 0, fmt.Errorf("%s event requires a checklist item", ev.Kind)
	}

	ec, err := e.load(ctx, ev.BoardID, ev.CardID, ev.ChecklistItemID, ev.ActorID, true)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s event context: %w", ev.Kind, err)
	}

	subtask := ev.ChecklistItemID != nil
	actorName := ec.actor.DisplayName()
	link := e.actionURL(ev.BoardID, ev.CardID, ev.ChecklistItemID)

	written := 0
	for _, r := range resolveRecipients(ec, ev.ActorID) {
		msg := lifecycleMessage(ev.Kind, subtask, r.assignee, ec.subject(), actorName, ec.board.Name)
		n := &models.Notification{
			UserID:          r.userID,
			Type:            ev.Kind.notificationType(),
			Title:           msg.title,
			Message:         msg.body,
			ActionURL:       &link,
			CardID:          &ev.CardID,
			ChecklistItemID: ev.ChecklistItemID,
			ActorID:         ev.ActorID,
		}
		if e.write(ctx, n) {
			written++
		}
	}
	return written, nil
}

// Deadline is one overdue (assignee, entity) pair found by the sweeper
type Deadline struct {
	UserID          int64
	BoardID         int64
	BoardName       string
	CardID          int64
	CardTitle       string
	ChecklistItemID *int64
	ItemContent     string
}

// NotifyDeadline writes one deadline notification addressed to the assignee only
func (e *Engine) NotifyDeadline(ctx context.Context, d Deadline) error {
	kind, subject := TaskOverdue, d.CardTitle
	if d.ChecklistItemID != nil {
		kind, subject = SubtaskOverdue, d.ItemContent
	}
	msg := lifecycleMessage(kind, d.ChecklistItemID != nil, true, subject, "", d.BoardName)
	link := e.actionURL(d.BoardID, d.CardID, d.ChecklistItemID)
	cardID := d.CardID

	n := &models.Notification{
		UserID:          d.UserID,
		Type:            models.NotificationDeadline,
		Title:           msg.title,
		Message:         msg.body,
		ActionURL:       &link,
		CardID:          &cardID,
		ChecklistItemID: d.ChecklistItemID,
	}
	if !e.write(ctx, n) {
		return fmt.Errorf("failed to write deadline notification for user %d", d.UserID)
	}
	return nil
}

// Assignment describes an assignee being added to or removed from a card or subtask
type Assignment struct {
	ActorID         int64
	AssigneeID      int64
	BoardID         int64
	CardID          int64
	ChecklistItemID *int64
}

// NotifyAssigned tells the assignee they were assigned. Self-assignment is silent.
func (e *Engine) NotifyAssigned(ctx context.Context, a Assignment) (int, error) {
	return e.notifyAssignee(ctx, a, models.NotificationTaskAssigned, assignedMessage)
}

// NotifyUnassigned tells the former assignee they were removed. Self-removal is silent.
func (e *Engine) NotifyUnassigned(ctx context.Context, a Assignment) (int, error) {
	return e.notifyAssignee(ctx, a, models.NotificationTaskUnassigned, unassignedMessage)
}

func (e *Engine) notifyAssignee(ctx context.Context, a Assignment, typ string, render func(bool, string, string, string) message) (int, error) {
	if a.ActorID == a.AssigneeID {
		return 0, nil
	}
	ec, err := e.load(ctx, a.BoardID, a.CardID, a.ChecklistItemID, &a.ActorID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to load assignment context: %w", err)
	}

	msg := render(a.ChecklistItemID != nil, ec.subject(), ec.actor.DisplayName(), ec.board.Name)
	link := e.actionURL(a.BoardID, a.CardID, a.ChecklistItemID)
	n := &models.Notification{
		UserID:          a.AssigneeID,
		Type:            typ,
		Title:           msg.title,
		Message:         msg.body,
		ActionURL:       &link,
		CardID:          &a.CardID,
		ChecklistItemID: a.ChecklistItemID,
		ActorID:         &a.ActorID,
	}
	if !e.write(ctx, n) {
		return 0, nil
	}
	return 1, nil
}

// Comment describes a new comment on a card
type Comment struct {
	ActorID int64
	BoardID int64
	CardID  int64
	Text    string
}

// NotifyComment tells every card member except the author about a new comment
func (e *Engine) NotifyComment(ctx context.Context, c Comment) (int, error) {
	ec, err := e.load(ctx, c.BoardID, c.CardID, nil, &c.ActorID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to load comment context: %w", err)
	}

	msg := commentMessage(ec.actor.DisplayName(), ec.card.Title, c.Text)
	link := e.actionURL(c.BoardID, c.CardID, nil)
	written := 0
	seen := make(map[int64]bool)
	for _, m := range ec.cardUsers {
		if m.UserID == c.ActorID || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		n := &models.Notification{
			UserID:    m.UserID,
			Type:      models.NotificationComment,
			Title:     msg.title,
			Message:   msg.body,
			ActionURL: &link,
			CardID:    &c.CardID,
			ActorID:   &c.ActorID,
		}
		if e.write(ctx, n) {
			written++
		}
	}
	return written, nil
}

// Invitation describes a user being added to a board
type Invitation struct {
	ActorID   int64
	InviteeID int64
	BoardID   int64
	Role      string
}

// NotifyInvitation tells the invitee they were added to a board
func (e *Engine) NotifyInvitation(ctx context.Context, inv Invitation) (int, error) {
	if inv.ActorID == inv.InviteeID {
		return 0, nil
	}

	var (
		board *models.Board
		actor *models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		board, err = e.boards.GetBoard(gctx, inv.BoardID)
		return err
	})
	g.Go(func() (err error) {
		actor, err = e.users.GetUserByID(gctx, inv.ActorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("failed to load invitation context: %w", err)
	}
	if board == nil {
		return 0, fmt.Errorf("board %d: %w", inv.BoardID, ErrUnknownEntity)
	}

	msg := invitationMessage(actor.DisplayName(), board.Name, inv.Role)
	link := e.baseURL + "/boards/" + strconv.FormatInt(inv.BoardID, 10)
	n := &models.Notification{
		UserID:    inv.InviteeID,
		Type:      models.NotificationInvitation,
		Title:     msg.title,
		Message:   msg.body,
		ActionURL: &link,
		ActorID:   &inv.ActorID,
	}
	if !e.write(ctx, n) {
		return 0, nil
	}
	return 1, nil
}

// write persists one notification, reporting success. Failures are logged and counted.
func (e *Engine) write(ctx context.Context, n *models.Notification) bool {
	n.CreatedAt = e.now().UTC()
	if err := e.store.CreateNotification(ctx, n); err != nil {
		telemetry.NotificationWriteFailuresTotal.Inc()
		slog.Error("failed to create notification",
			"error", err,
			"user_id", n.UserID,
			"type", n.Type)
		return false
	}
	telemetry.NotificationsCreatedTotal.WithLabelValues(n.Type).Inc()
	return true
}

func (e *Engine) actionURL(boardID, cardID int64, itemID *int64) string {
	url := fmt.Sprintf("%s/boards/%d/cards/%d", e.baseURL, boardID, cardID)
	if itemID != nil {
		url += "?checklistItem=" + strconv.FormatInt(*itemID, 10)
	}
	return url
}
