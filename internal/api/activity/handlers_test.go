package activity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/db/repositories"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubReader struct {
	last   repositories.ActivityFilters
	items  []models.Activity
	counts []models.ActivityTypeCount
	err    error
}

func (s *stubReader) List(_ context.Context, f repositories.ActivityFilters) ([]models.Activity, error) {
	s.last = f
	return s.items, s.err
}

func (s *stubReader) CountByType(_ context.Context, f repositories.ActivityFilters) ([]models.ActivityTypeCount, error) {
	s.last = f
	return s.counts, s.err
}

func newRouter(reader Reader) *gin.Engine {
	r := gin.New()
	NewHandlers(reader).RegisterRoutes(r.Group("/api"))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestList_PassesFilters(t *testing.T) {
	boardID := int64(3)
	reader := &stubReader{items: []models.Activity{
		{ID: 1, UserID: 1, BoardID: &boardID, Type: "task_completed", Description: `olivia completed task "Ship report" in "Launch"`},
	}}

	w := get(newRouter(reader), "/api/activity?user_id=1&board_id=3&type=task_completed&entity_type=card&from=2026-03-01&to=2026-03-31T23:59:59Z&limit=10&offset=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	f := reader.last
	if f.UserID == nil || *f.UserID != 1 {
		t.Errorf("UserID = %v", f.UserID)
	}
	if f.BoardID == nil || *f.BoardID != 3 {
		t.Errorf("BoardID = %v", f.BoardID)
	}
	if f.Type == nil || *f.Type != "task_completed" || f.EntityType == nil || *f.EntityType != "card" {
		t.Errorf("Type/EntityType = %v/%v", f.Type, f.EntityType)
	}
	if f.StartDate == nil || !f.StartDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartDate = %v", f.StartDate)
	}
	if f.EndDate == nil || f.EndDate.Day() != 31 {
		t.Errorf("EndDate = %v", f.EndDate)
	}
	if f.Limit != 10 || f.Offset != 5 {
		t.Errorf("page = %d/%d", f.Limit, f.Offset)
	}

	var body struct {
		Activities []models.Activity `json:"activities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Activities) != 1 || body.Activities[0].Type != "task_completed" {
		t.Errorf("activities = %+v", body.Activities)
	}
}

func TestList_BadParams(t *testing.T) {
	for _, q := range []string{"user_id=x", "board_id=1.5", "from=last-week", "to=soon"} {
		if w := get(newRouter(&stubReader{}), "/api/activity?"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestList_ReaderError(t *testing.T) {
	w := get(newRouter(&stubReader{err: errors.New("db down")}), "/api/activity")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCounts(t *testing.T) {
	reader := &stubReader{counts: []models.ActivityTypeCount{
		{Type: "card_created", Count: 4},
		{Type: "task_completed", Count: 2},
	}}

	w := get(newRouter(reader), "/api/activity/counts?board_id=3")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Counts []models.ActivityTypeCount `json:"counts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Counts) != 2 || body.Counts[0].Count != 4 {
		t.Errorf("counts = %+v", body.Counts)
	}
	if reader.last.BoardID == nil || *reader.last.BoardID != 3 {
		t.Errorf("BoardID = %v", reader.last.BoardID)
	}
}

func TestCounts_ReaderError(t *testing.T) {
	w := get(newRouter(&stubReader{err: errors.New("db down")}), "/api/activity/counts")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
