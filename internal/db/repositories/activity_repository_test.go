package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/taskboard/taskboard/internal/db/models"
)

var activityCols = []string{
	"id", "user_id", "board_id", "activity_type", "entity_type", "entity_id", "description", "metadata", "created_at",
}

func newActivityRepo(t *testing.T) (*ActivityRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewActivityRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCreateActivity_Success(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("INSERT INTO activities").
		WithArgs(int64(5), int64(3), "card_created", "card", "10", `Alice created card "Ship report"`,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	a := &models.Activity{
		UserID:      5,
		BoardID:     int64Ptr(3),
		Type:        "card_created",
		EntityType:  "card",
		EntityID:    "10",
		Description: `Alice created card "Ship report"`,
		Metadata:    models.JSONMap{"card_title": "Ship report"},
	}
	if err := repo.CreateActivity(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != 9 {
		t.Errorf("ID = %d, want 9", a.ID)
	}
}

func TestCreateActivity_DBError(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("INSERT INTO activities").WillReturnError(errDB)

	if err := repo.CreateActivity(context.Background(), &models.Activity{UserID: 1}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestListActivities_Filters(t *testing.T) {
	repo, mock := newActivityRepo(t)
	typ := "task_completed"
	mock.ExpectQuery(`FROM activities WHERE \(board_id = \$1 AND activity_type = \$2\) ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 40`).
		WithArgs(int64(3), typ).
		WillReturnRows(sqlmock.NewRows(activityCols).
			AddRow(int64(1), int64(5), int64(3), typ, "card", "10", "Alice completed task", nil, time.Now()))

	got, err := repo.ListActivities(context.Background(), ActivityFilters{
		BoardID: int64Ptr(3),
		Type:    &typ,
		Limit:   20,
		Offset:  40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Description != "Alice completed task" {
		t.Errorf("got %+v", got)
	}
	if got[0].Metadata != nil {
		t.Errorf("Metadata = %v, want nil for NULL column", got[0].Metadata)
	}
}

func TestCountByType(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery(`SELECT activity_type, COUNT\(\*\) AS count FROM activities WHERE \(user_id = \$1\) GROUP BY activity_type`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"activity_type", "count"}).
			AddRow("card_created", int64(4)).
			AddRow("task_completed", int64(2)))

	counts, err := repo.CountByType(context.Background(), ActivityFilters{UserID: int64Ptr(5), Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("len = %d, want 2", len(counts))
	}
	if counts[0].Type != "card_created" || counts[0].Count != 4 {
		t.Errorf("counts[0] = %+v", counts[0])
	}
}

func TestCountByType_DBError(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("GROUP BY activity_type").WillReturnError(errDB)

	if _, err := repo.CountByType(context.Background(), ActivityFilters{}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
