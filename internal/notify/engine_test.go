package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard/taskboard/internal/db/models"
)

type fakeStore struct {
	mu      sync.Mutex
	created []*models.Notification
	failFor map[int64]bool
}

func (s *fakeStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[n.UserID] {
		return errors.New("insert failed")
	}
	n.ID = int64(len(s.created) + 1)
	s.created = append(s.created, n)
	return nil
}

func (s *fakeStore) byUser() map[int64]*models.Notification {
	out := make(map[int64]*models.Notification, len(s.created))
	for _, n := range s.created {
		out[n.UserID] = n
	}
	return out
}

func (s *fakeStore) recipients() []int64 {
	ids := make([]int64, 0, len(s.created))
	for _, n := range s.created {
		ids = append(ids, n.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeUsers map[int64]*models.User

func (u fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return u[id], nil
}

type fakeBoards struct {
	boards      map[int64]*models.Board
	cards       map[int64]*models.Card
	items       map[int64]*models.ChecklistItem
	members     map[int64][]models.BoardMember
	cardMembers map[int64][]models.CardMember
	err         error
}

func (b *fakeBoards) GetBoard(_ context.Context, id int64) (*models.Board, error) {
	return b.boards[id], b.err
}

func (b *fakeBoards) GetCard(_ context.Context, id int64) (*models.Card, error) {
	return b.cards[id], nil
}

func (b *fakeBoards) GetChecklistItem(_ context.Context, id int64) (*models.ChecklistItem, error) {
	return b.items[id], nil
}

func (b *fakeBoards) ListBoardMembers(_ context.Context, boardID int64, roles ...string) ([]models.BoardMember, error) {
	want := make(map[string]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []models.BoardMember
	for _, m := range b.members[boardID] {
		if len(roles) == 0 || want[m.Role] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (b *fakeBoards) ListCardMembers(_ context.Context, cardID int64) ([]models.CardMember, error) {
	return b.cardMembers[cardID], nil
}

func ptr(v int64) *int64 { return &v }

func user(id int64, name string) *models.User {
	return &models.User{ID: id, Username: name}
}

// fixture: board 3 "Launch" created by user 1; user 9 is an admin, user 4 a plain member.
// Card 10 "Ship report" has members 7 then 4. Item 42 "Draft spec" is assigned to user 5.
func newFixture() (*Engine, *fakeStore, *fakeBoards) {
	boards := &fakeBoards{
		boards: map[int64]*models.Board{3: {ID: 3, Name: "Launch", OwnerID: 1}},
		cards:  map[int64]*models.Card{10: {ID: 10, BoardID: 3, Title: "Ship report"}},
		items:  map[int64]*models.ChecklistItem{42: {ID: 42, CardID: 10, Content: "Draft spec", AssignedTo: ptr(5)}},
		members: map[int64][]models.BoardMember{3: {
			{BoardID: 3, UserID: 1, Role: models.BoardRoleOwner},
			{BoardID: 3, UserID: 9, Role: models.BoardRoleAdmin},
			{BoardID: 3, UserID: 4, Role: models.BoardRoleMember},
		}},
		cardMembers: map[int64][]models.CardMember{10: {
			{CardID: 10, UserID: 7},
			{CardID: 10, UserID: 4},
		}},
	}
	users := fakeUsers{
		1: user(1, "olivia"), 4: user(4, "max"), 5: user(5, "alice"),
		7: user(7, "bob"), 9: user(9, "ines"),
	}
	store := &fakeStore{}
	e := NewEngine(store, users, boards, "https://tasks.example.com/")
	e.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	return e, store, boards
}

func TestDispatch_SubtaskCompletedBySelfAssignee(t *testing.T) {
	e, store, boards := newFixture()
	boards.members[3] = []models.BoardMember{{BoardID: 3, UserID: 1, Role: models.BoardRoleOwner}}

	n, err := e.Dispatch(context.Background(), Event{
		Kind: SubtaskCompleted, ActorID: ptr(5), BoardID: 3, CardID: 10, ChecklistItemID: ptr(42),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, store.recipients())

	got := store.created[0]
	assert.Equal(t, models.NotificationTaskCompleted, got.Type)
	assert.Equal(t, "Subtask completed", got.Title)
	assert.Equal(t, `The subtask "Draft spec" was marked complete by alice in project "Launch"`, got.Message)
	require.NotNil(t, got.ActionURL)
	assert.Equal(t, "https://tasks.example.com/boards/3/cards/10?checklistItem=42", *got.ActionURL)
	assert.Equal(t, ptr(10), got.CardID)
	assert.Equal(t, ptr(42), got.ChecklistItemID)
	assert.Equal(t, ptr(5), got.ActorID)
	assert.False(t, got.Read)
}

func TestDispatch_FanOutExcludesActorAndDedups(t *testing.T) {
	e, store, _ := newFixture()

	// Actor 9 is an admin; assignee 7 is the first card member; owner 1 appears both as
	// an owner member and as the creator.
	n, err := e.Dispatch(context.Background(), Event{Kind: TaskCompleted, ActorID: ptr(9), BoardID: 3, CardID: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 7}, store.recipients())

	byUser := store.byUser()
	assert.Equal(t, `Your task "Ship report" was marked complete by ines`, byUser[7].Message)
	assert.Equal(t, `The task "Ship report" was marked complete by ines in project "Launch"`, byUser[1].Message)
	assert.Equal(t, "https://tasks.example.com/boards/3/cards/10", *byUser[1].ActionURL)
	assert.Nil(t, byUser[1].ChecklistItemID)
}

func TestDispatch_UnionOfDistinctSets(t *testing.T) {
	e, store, boards := newFixture()
	// A is the actor, B the assignee, C an admin, D the creator
	boards.boards[3].OwnerID = 104
	boards.members[3] = []models.BoardMember{
		{BoardID: 3, UserID: 101, Role: models.BoardRoleAdmin},
		{BoardID: 3, UserID: 103, Role: models.BoardRoleAdmin},
	}
	boards.cardMembers[10] = []models.CardMember{{CardID: 10, UserID: 102}}

	n, err := e.Dispatch(context.Background(), Event{Kind: TaskCompleted, ActorID: ptr(101), BoardID: 3, CardID: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{102, 103, 104}, store.recipients())
}

func TestDispatch_AssigneeWhoIsAlsoManagerGetsFirstPerson(t *testing.T) {
	e, store, boards := newFixture()
	boards.cardMembers[10] = []models.CardMember{{CardID: 10, UserID: 9}}

	_, err := e.Dispatch(context.Background(), Event{Kind: TaskCompleted, ActorID: ptr(4), BoardID: 3, CardID: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 9}, store.recipients())
	assert.Equal(t, `Your task "Ship report" was marked complete by max`, store.byUser()[9].Message)
}

func TestDispatch_OverdueWording(t *testing.T) {
	e, store, _ := newFixture()

	_, err := e.Dispatch(context.Background(), Event{Kind: TaskOverdue, BoardID: 3, CardID: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 7, 9}, store.recipients())

	byUser := store.byUser()
	assert.Equal(t, models.NotificationDeadline, byUser[7].Type)
	assert.Equal(t, "Task overdue", byUser[7].Title)
	assert.Equal(t, `Your task "Ship report" is overdue`, byUser[7].Message)
	assert.Equal(t, `The task "Ship report" in project "Launch" is overdue`, byUser[9].Message)
	assert.Nil(t, byUser[9].ActorID)
}

func TestDispatch_WriteFailureIsolated(t *testing.T) {
	e, store, _ := newFixture()
	store.failFor = map[int64]bool{7: true}

	n, err := e.Dispatch(context.Background(), Event{Kind: TaskCompleted, ActorID: ptr(4), BoardID: 3, CardID: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 9}, store.recipients())
}

func TestDispatch_Errors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		e, _, _ := newFixture()
		_, err := e.Dispatch(context.Background(), Event{Kind: "archived", BoardID: 3, CardID: 10})
		assert.Error(t, err)
	})

	t.Run("subtask without item", func(t *testing.T) {
		e, _, _ := newFixture()
		_, err := e.Dispatch(context.Background(), Event{Kind: SubtaskOverdue, BoardID: 3, CardID: 10})
		assert.Error(t, err)
	})

	t.Run("missing card", func(t *testing.T) {
		e, store, _ := newFixture()
		_, err := e.Dispatch(context.Background(), Event{Kind: TaskCompleted, BoardID: 3, CardID: 99})
		assert.ErrorIs(t, err, ErrUnknownEntity)
		assert.Empty(t, store.created)
	})

	t.Run("lookup failure", func(t *testing.T) {
		e, store, boards := newFixture()
		boards.err = errors.New("connection reset")
		_, err := e.Dispatch(context.Background(), Event{Kind: TaskCompleted, BoardID: 3, CardID: 10})
		assert.ErrorContains(t, err, "connection reset")
		assert.Empty(t, store.created)
	})
}

func TestNotifyDeadline_AssigneeOnly(t *testing.T) {
	e, store, _ := newFixture()

	err := e.NotifyDeadline(context.Background(), Deadline{
		UserID: 7, BoardID: 3, BoardName: "Launch", CardID: 10, CardTitle: "Ship report",
	})
	require.NoError(t, err)
	require.Len(t, store.created, 1)

	got := store.created[0]
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, models.NotificationDeadline, got.Type)
	assert.Equal(t, `Your task "Ship report" is overdue`, got.Message)
	assert.Equal(t, ptr(10), got.CardID)
	assert.Nil(t, got.ChecklistItemID)
	assert.Nil(t, got.ActorID)
}

func TestNotifyDeadline_Subtask(t *testing.T) {
	e, store, _ := newFixture()

	err := e.NotifyDeadline(context.Background(), Deadline{
		UserID: 5, BoardID: 3, BoardName: "Launch", CardID: 10, CardTitle: "Ship report",
		ChecklistItemID: ptr(42), ItemContent: "Draft spec",
	})
	require.NoError(t, err)
	require.Len(t, store.created, 1)
	assert.Equal(t, "Subtask overdue", store.created[0].Title)
	assert.Equal(t, `Your subtask "Draft spec" is overdue`, store.created[0].Message)
	assert.Equal(t, "https://tasks.example.com/boards/3/cards/10?checklistItem=42", *store.created[0].ActionURL)
}

func TestNotifyDeadline_WriteFailure(t *testing.T) {
	e, store, _ := newFixture()
	store.failFor = map[int64]bool{7: true}

	err := e.NotifyDeadline(context.Background(), Deadline{UserID: 7, BoardID: 3, CardID: 10, CardTitle: "Ship report"})
	assert.Error(t, err)
}

func TestNotifyAssigned(t *testing.T) {
	e, store, _ := newFixture()

	n, err := e.NotifyAssigned(context.Background(), Assignment{ActorID: 1, AssigneeID: 7, BoardID: 3, CardID: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, store.created, 1)
	assert.Equal(t, models.NotificationTaskAssigned, store.created[0].Type)
	assert.Equal(t, `olivia assigned you to the task "Ship report" in project "Launch"`, store.created[0].Message)
}

func TestNotifyAssigned_SelfIsSilent(t *testing.T) {
	e, store, _ := newFixture()

	n, err := e.NotifyAssigned(context.Background(), Assignment{ActorID: 7, AssigneeID: 7, BoardID: 3, CardID: 10})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.created)
}

func TestNotifyUnassigned_Subtask(t *testing.T) {
	e, store, _ := newFixture()

	n, err := e.NotifyUnassigned(context.Background(), Assignment{
		ActorID: 1, AssigneeID: 5, BoardID: 3, CardID: 10, ChecklistItemID: ptr(42),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.NotificationTaskUnassigned, store.created[0].Type)
	assert.Equal(t, "Subtask unassigned", store.created[0].Title)
	assert.Equal(t, `olivia removed you from the subtask "Draft spec" in project "Launch"`, store.created[0].Message)
}

func TestNotifyComment_SkipsAuthor(t *testing.T) {
	e, store, _ := newFixture()

	n, err := e.NotifyComment(context.Background(), Comment{ActorID: 7, BoardID: 3, CardID: 10, Text: "  looks good  "})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{4}, store.recipients())
	assert.Equal(t, `bob commented on "Ship report": looks good`, store.created[0].Message)
}

func TestCommentMessage_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "é"
	}
	msg := commentMessage("bob", "Ship report", long)
	assert.Equal(t, `bob commented on "Ship report": `+long[:commentExcerptLen*2]+"...", msg.body)
}

func TestNotifyInvitation(t *testing.T) {
	e, store, _ := newFixture()

	n, err := e.NotifyInvitation(context.Background(), Invitation{ActorID: 1, InviteeID: 4, BoardID: 3, Role: "member"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.NotificationInvitation, store.created[0].Type)
	assert.Equal(t, `olivia added you to project "Launch" as member`, store.created[0].Message)
	assert.Equal(t, "https://tasks.example.com/boards/3", *store.created[0].ActionURL)
}

func TestNotifyInvitation_UnknownBoard(t *testing.T) {
	e, _, _ := newFixture()

	_, err := e.NotifyInvitation(context.Background(), Invitation{ActorID: 1, InviteeID: 4, BoardID: 99})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}
