package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/config"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for k, want := range apiSecurityHeaders {
		if got := w.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func newCORSRouter(cfg config.CORSConfig) *gin.Engine {
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/api/notifications", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantStatus  int
		wantAllowed string
	}{
		{"listed origin", []string{"https://app.example.com"}, "https://app.example.com", http.MethodGet, http.StatusOK, "https://app.example.com"},
		{"unlisted origin", []string{"https://app.example.com"}, "https://evil.example.com", http.MethodGet, http.StatusOK, ""},
		{"wildcard", []string{"*"}, "https://any.example.com", http.MethodGet, http.StatusOK, "https://any.example.com"},
		{"no origin header", []string{"*"}, "", http.MethodGet, http.StatusOK, ""},
		{"preflight", []string{"*"}, "https://app.example.com", http.MethodOptions, http.StatusNoContent, "https://app.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/notifications", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			newCORSRouter(config.CORSConfig{AllowedOrigins: tt.allowed}).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
		})
	}
}

func TestCORSMiddleware_ConfiguredMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	newCORSRouter(config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "PATCH"}}).ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, PATCH" {
		t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, "GET, PATCH")
	}
}
