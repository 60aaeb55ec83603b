package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/auth"
)

func newIdentityRouter(guards ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(IdentityMiddleware())
	handlers := append(guards, func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id":    id,
			"authed":     ok,
			"session_id": c.GetString(SessionIDKey),
			"role":       c.GetString(RoleKey),
		})
	})
	r.GET("/me", handlers...)
	return r
}

func get(r *gin.Engine, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentityMiddleware_ValidToken(t *testing.T) {
	token, err := auth.GenerateJWT(5, RoleAdmin, "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := get(newIdentityRouter(), "Bearer "+token)

	body := w.Body.String()
	for _, want := range []string{`"user_id":5`, `"authed":true`, `"session_id":"sess-1"`, `"role":"admin"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}

func TestIdentityMiddleware_Anonymous(t *testing.T) {
	tests := []struct {
		name, authz string
	}{
		{"no header", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"invalid bearer", "Bearer garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newIdentityRouter(), tt.authz)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if !strings.Contains(w.Body.String(), `"authed":false`) {
				t.Errorf("body = %s, want anonymous", w.Body.String())
			}
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	r := newIdentityRouter(RequireIdentity())

	w := get(r, "")
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Authentication required") {
		t.Errorf("no token: %d %s", w.Code, w.Body.String())
	}

	w = get(r, "Bearer garbage")
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Invalid credentials") {
		t.Errorf("bad token: %d %s", w.Code, w.Body.String())
	}

	token, _ := auth.GenerateJWT(7, "", "", time.Hour)
	if w = get(r, "Bearer "+token); w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	r := newIdentityRouter(RequireIdentity(), RequireRole(RoleAdmin))

	member, _ := auth.GenerateJWT(7, "member", "", time.Hour)
	if w := get(r, "Bearer "+member); w.Code != http.StatusForbidden {
		t.Errorf("member: status = %d, want 403", w.Code)
	}

	admin, _ := auth.GenerateJWT(1, RoleAdmin, "", time.Hour)
	if w := get(r, "Bearer "+admin); w.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", w.Code)
	}
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name   string
		value  interface{}
		wantID int64
		wantOK bool
	}{
		{"set", int64(9), 9, true},
		{"zero", int64(0), 0, false},
		{"wrong type", 9, 0, false},
		{"unset", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			if tt.value != nil {
				c.Set(UserIDKey, tt.value)
			}
			id, ok := UserID(c)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("UserID() = %d, %v; want %d, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
