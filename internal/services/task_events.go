// Package services implements higher-level business logic that coordinates across
// several subsystems. TaskEvents is what the task-board CRUD handlers call after a
// completion, assignment, comment, or invitation: it records the activity timeline entry
// and fans the event out to notifications, neither of which may fail the request.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskboard/taskboard/internal/activity"
	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/notify"
	"github.com/taskboard/taskboard/internal/safego"
)

// DefaultNotifyTimeout bounds one asynchronous notification fan-out
const DefaultNotifyTimeout = 10 * time.Second

// Notifier is the notification rule engine
type Notifier interface {
	Dispatch(ctx context.Context, ev notify.Event) (int, error)
	NotifyAssigned(ctx context.Context, a notify.Assignment) (int, error)
	NotifyUnassigned(ctx context.Context, a notify.Assignment) (int, error)
	NotifyComment(ctx context.Context, c notify.Comment) (int, error)
	NotifyInvitation(ctx context.Context, inv notify.Invitation) (int, error)
}

// TaskEvents records business events and triggers their notifications
type TaskEvents struct {
	activity *activity.Recorder
	notifier Notifier
	spawner  safego.Spawner
	timeout  time.Duration
}

// NewTaskEvents creates a TaskEvents. Notifications fan out on spawner.
func NewTaskEvents(recorder *activity.Recorder, notifier Notifier, spawner safego.Spawner) *TaskEvents {
	if spawner == nil {
		spawner = safego.Async{}
	}
	return &TaskEvents{
		activity: recorder,
		notifier: notifier,
		spawner:  spawner,
		timeout:  DefaultNotifyTimeout,
	}
}

// Activity exposes the recorder for events that carry no notifications
func (t *TaskEvents) Activity() *activity.Recorder { return t.activity }

// Completion is a card or checklist item having its completion state toggled
type Completion struct {
	Actor     *models.User
	Board     *models.Board
	Card      *models.Card
	Item      *models.ChecklistItem
	Completed bool
}

// CompletionChanged records a completion and notifies the assignee, board managers, and
// board owner. Reopening a task is neither recorded nor notified.
func (t *TaskEvents) CompletionChanged(ctx context.Context, c Completion) {
	if !c.Completed {
		return
	}

	actor := userRef(c.Actor)
	card := activity.Ref{ID: c.Card.ID, Name: c.Card.Title}
	ev := notify.Event{
		Kind:    notify.TaskCompleted,
		ActorID: idOf(c.Actor),
		BoardID: c.Board.ID,
		CardID:  c.Card.ID,
	}

	if c.Item != nil {
		t.activity.SubtaskCompleted(ctx, actor, c.Board.ID, activity.Ref{ID: c.Item.ID, Name: c.Item.Content}, card)
		ev.Kind = notify.SubtaskCompleted
		itemID := c.Item.ID
		ev.ChecklistItemID = &itemID
	} else {
		t.activity.TaskCompleted(ctx, actor, activity.Ref{ID: c.Board.ID, Name: c.Board.Name}, card)
	}

	t.fanOut(ctx, string(ev.Kind), func(ctx context.Context) (int, error) {
		return t.notifier.Dispatch(ctx, ev)
	})
}

// AssignmentChange is a user being added to or removed from a card or checklist item
type AssignmentChange struct {
	Actor    *models.User
	Board    *models.Board
	Card     *models.Card
	Item     *models.ChecklistItem
	Assignee *models.User
}

// toNotify reports false when the actor or assignee is unknown
func (a AssignmentChange) toNotify() (notify.Assignment, bool) {
	if a.Actor == nil || a.Assignee == nil {
		return notify.Assignment{}, false
	}
	out := notify.Assignment{
		ActorID:    a.Actor.ID,
		AssigneeID: a.Assignee.ID,
		BoardID:    a.Board.ID,
		CardID:     a.Card.ID,
	}
	if a.Item != nil {
		itemID := a.Item.ID
		out.ChecklistItemID = &itemID
	}
	return out, true
}

// Assigned records a card assignment and notifies the assignee
func (t *TaskEvents) Assigned(ctx context.Context, a AssignmentChange) {
	if a.Item == nil {
		t.activity.CardAssigned(ctx, userRef(a.Actor), a.Board.ID,
			activity.Ref{ID: a.Card.ID, Name: a.Card.Title}, userRef(a.Assignee))
	}
	n, ok := a.toNotify()
	if !ok {
		slog.Warn("assignment notification skipped: missing actor or assignee", "card_id", a.Card.ID)
		return
	}
	t.fanOut(ctx, models.NotificationTaskAssigned, func(ctx context.Context) (int, error) {
		return t.notifier.NotifyAssigned(ctx, n)
	})
}

// Unassigned notifies the former assignee
func (t *TaskEvents) Unassigned(ctx context.Context, a AssignmentChange) {
	n, ok := a.toNotify()
	if !ok {
		slog.Warn("unassignment notification skipped: missing actor or assignee", "card_id", a.Card.ID)
		return
	}
	t.fanOut(ctx, models.NotificationTaskUnassigned, func(ctx context.Context) (int, error) {
		return t.notifier.NotifyUnassigned(ctx, n)
	})
}

// NewComment is a comment posted on a card
type NewComment struct {
	Actor     *models.User
	Board     *models.Board
	Card      *models.Card
	CommentID int64
	Text      string
}

// Commented records the comment and notifies the card's other members
func (t *TaskEvents) Commented(ctx context.Context, c NewComment) {
	t.activity.CommentCreated(ctx, userRef(c.Actor), c.Board.ID, c.CommentID,
		activity.Ref{ID: c.Card.ID, Name: c.Card.Title})

	if c.Actor == nil {
		slog.Warn("comment notification skipped: missing actor", "card_id", c.Card.ID)
		return
	}
	n := notify.Comment{ActorID: c.Actor.ID, BoardID: c.Board.ID, CardID: c.Card.ID, Text: c.Text}
	t.fanOut(ctx, models.NotificationComment, func(ctx context.Context) (int, error) {
		return t.notifier.NotifyComment(ctx, n)
	})
}

// Invite is a user being added to a board
type Invite struct {
	Actor   *models.User
	Board   *models.Board
	Invitee *models.User
	Role    string
}

// MemberInvited records the invitation and notifies the invitee
func (t *TaskEvents) MemberInvited(ctx context.Context, inv Invite) {
	t.activity.MemberInvited(ctx, userRef(inv.Actor),
		activity.Ref{ID: inv.Board.ID, Name: inv.Board.Name}, userRef(inv.Invitee), inv.Role)

	if inv.Actor == nil || inv.Invitee == nil {
		slog.Warn("invitation notification skipped: missing actor or invitee", "board_id", inv.Board.ID)
		return
	}
	n := notify.Invitation{ActorID: inv.Actor.ID, InviteeID: inv.Invitee.ID, BoardID: inv.Board.ID, Role: inv.Role}
	t.fanOut(ctx, models.NotificationInvitation, func(ctx context.Context) (int, error) {
		return t.notifier.NotifyInvitation(ctx, n)
	})
}

// fanOut runs a notification write off the request path. The request context's
// cancellation does not reach it; the timeout does.
func (t *TaskEvents) fanOut(ctx context.Context, kind string, fn func(context.Context) (int, error)) {
	detached := context.WithoutCancel(ctx)
	t.spawner.Spawn(func() {
		ctx, cancel := context.WithTimeout(detached, t.timeout)
		defer cancel()

		n, err := fn(ctx)
		if err != nil {
			slog.Error("notification fan-out failed", "error", err, "kind", kind)
			return
		}
		slog.Debug("notifications written", "kind", kind, "count", n)
	})
}

// idOf copies the user's id so async work never aliases the caller's user.
// A nil user yields nil, which the engine treats as a system event.
func idOf(u *models.User) *int64 {
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}

func userRef(u *models.User) activity.Ref {
	if u == nil {
		return activity.Ref{Name: "Someone"}
	}
	return activity.Ref{ID: u.ID, Name: u.DisplayName()}
}
