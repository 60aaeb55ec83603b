package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var errDB = errors.New("db error")

var userCols = []string{"id", "username", "email", "full_name", "role", "created_at", "updated_at"}

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow(int64(1), "alice", "alice@example.com", "Alice Doe", "user", time.Now(), time.Now())
}

func emptyUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols)
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// GetUserByID
// ---------------------------------------------------------------------------

func TestGetUserByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.DisplayName() != "Alice Doe" {
		t.Errorf("DisplayName() = %q, want Alice Doe", user.DisplayName())
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(emptyUserRow())

	user, err := repo.GetUserByID(context.Background(), 404)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for not found, got %v", user)
	}
}

func TestGetUserByID_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs(int64(1)).
		WillReturnError(errDB)

	if _, err := repo.GetUserByID(context.Background(), 1); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetUsersByIDs
// ---------------------------------------------------------------------------

func TestGetUsersByIDs(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery(`FROM users WHERE id = ANY\(\$1\)`).
		WithArgs("{1,2}").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(1), "alice", "a@example.com", nil, "user", time.Now(), time.Now()).
			AddRow(int64(2), "bob", "b@example.com", "Bob B", "user", time.Now(), time.Now()))

	users, err := repo.GetUsersByIDs(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[1].DisplayName() != "alice" {
		t.Errorf("users[1].DisplayName() = %q, want alice", users[1].DisplayName())
	}
	if users[2].DisplayName() != "Bob B" {
		t.Errorf("users[2].DisplayName() = %q, want Bob B", users[2].DisplayName())
	}
}

func TestGetUsersByIDs_Empty(t *testing.T) {
	repo, mock := newUserRepo(t)

	users, err := repo.GetUsersByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("len = %d, want 0", len(users))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected query: %v", err)
	}
}
