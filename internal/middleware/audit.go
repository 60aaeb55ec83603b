// audit.go provides the request interceptor: Gin middleware that records every successful
// state-changing API call, plus configured important reads, to the audit trail without
// any per-route instrumentation.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/audit"
	"github.com/taskboard/taskboard/internal/config"
)

// defaultMaxAuditBody caps how much of a response body is buffered for the after-state
const defaultMaxAuditBody = 1 << 20

// AuditLogger accepts entries for asynchronous persistence
type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

// AuditOptions configures the interceptor
type AuditOptions struct {
	APIPrefix           string
	ImportantReadRoutes []string
	SkipRoutes          []string
	Rules               []EntityRule
	Snapshots           SnapshotRegistry
	MaxBodyBytes        int
}

// AuditOptionsFromConfig builds interceptor options from the audit config section
func AuditOptionsFromConfig(cfg *config.AuditConfig, snapshots SnapshotRegistry) AuditOptions {
	return AuditOptions{
		APIPrefix:           cfg.APIPrefix,
		ImportantReadRoutes: cfg.ImportantReadRoutes,
		SkipRoutes:          cfg.SkipRoutes,
		Rules:               EntityRules,
		Snapshots:           snapshots,
	}
}

// methodActions maps mutating methods to their base audit action
var methodActions = map[string]audit.Action{
	http.MethodPost:   audit.ActionCreate,
	http.MethodPut:    audit.ActionUpdate,
	http.MethodPatch:  audit.ActionUpdate,
	http.MethodDelete: audit.ActionDelete,
}

// subActions refine the base action from the path's sub-action segment
var subActions = map[string]audit.Action{
	"login":           audit.ActionLogin,
	"logout":          audit.ActionLogout,
	"change-password": audit.ActionPasswordChange,
	"password":        audit.ActionPasswordChange,
	"profile-image":   audit.ActionUpload,
	"attachments":     audit.ActionUpload,
	"permissions":     audit.ActionPermissionChange,
	"role":            audit.ActionPermissionChange,
	"assign":          audit.ActionAssign,
	"unassign":        audit.ActionUnassign,
	"complete":        audit.ActionComplete,
	"toggle":          audit.ActionComplete,
}

// AuditMiddleware returns the request interceptor. For UPDATE and DELETE it loads the
// entity's prior state before the handler runs; after the handler it hands a 2xx
// outcome to logger. Nothing here can change the response.
func AuditMiddleware(logger AuditLogger, opts AuditOptions) gin.HandlerFunc {
	if opts.Rules == nil {
		opts.Rules = EntityRules
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxAuditBody
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		action, audited := opts.classify(c.Request.Method, path)
		if !audited {
			c.Next()
			return
		}

		ref := ResolveEntity(opts.Rules, opts.APIPrefix, path)
		action = refineAction(action, c.Request.Method, ref)

		var oldData interface{}
		if action.CapturesPriorState() && opts.Snapshots != nil {
			var err error
			oldData, err = opts.Snapshots.Capture(c.Request.Context(), ref)
			if err != nil {
				slog.Warn("audit: prior state capture failed",
					"error", err, "entity_type", ref.Type, "entity_id", ref.ID)
			}
		}

		var recorder *bodyRecorder
		if action != audit.ActionView {
			recorder = &bodyRecorder{ResponseWriter: c.Writer, limit: opts.MaxBodyBytes}
			c.Writer = recorder
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				slog.Error("audit: interceptor panic recovered", "panic", r, "path", path)
			}
		}()
		logger.Log(c.Request.Context(), buildEntry(c, action, ref, oldData, recorder, status))
	}
}

// classify reports whether a request is audited and with which base action
func (o AuditOptions) classify(method, path string) (audit.Action, bool) {
	if skipped(method, path, o.SkipRoutes) {
		return "", false
	}
	if method == http.MethodGet {
		if matchesAny(path, o.ImportantReadRoutes) {
			return audit.ActionView, true
		}
		return "", false
	}
	action, ok := methodActions[method]
	if !ok || !underPrefix(path, o.APIPrefix) {
		return "", false
	}
	return action, true
}

// refineAction maps sub-actions to their specific action. Completion and assignment
// sub-actions only apply to writes; DELETE on an assign endpoint is an unassignment.
func refineAction(base audit.Action, method string, ref EntityRef) audit.Action {
	if base == audit.ActionView {
		return base
	}
	sub, ok := subActions[ref.SubAction]
	if !ok {
		return base
	}
	switch sub {
	case audit.ActionComplete:
		if method == http.MethodDelete {
			return base
		}
	case audit.ActionAssign:
		if method == http.MethodDelete {
			return audit.ActionUnassign
		}
	}
	return sub
}

func buildEntry(c *gin.Context, action audit.Action, ref EntityRef, oldData interface{}, rec *bodyRecorder, status int) audit.Entry {
	e := audit.Entry{
		DeliveryContext: DeliveryContextFrom(c),
		Action:          action,
		EntityType:      ref.Type,
		EntityID:        ref.ID,
		OldData:         oldData,
		Metadata: map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": status,
		},
	}
	if id, ok := c.Get(RequestIDKey); ok {
		e.Metadata["request_id"] = id
	}
	if ref.SubAction != "" {
		e.Metadata["sub_action"] = ref.SubAction
	}

	if action == audit.ActionView {
		if q := c.Request.URL.RawQuery; q != "" {
			e.Metadata["query"] = audit.RedactQuery(q)
		}
		return e
	}

	newData := parseSnapshot(rec)
	e.NewData = newData
	if obj, ok := newData.(map[string]interface{}); ok {
		if e.EntityID == "" {
			if id, ok := obj["id"].(json.Number); ok {
				e.EntityID = id.String()
			}
		}
		if action == audit.ActionComplete {
			if done, ok := obj["completed"].(bool); ok && !done {
				e.Action = audit.ActionUncomplete
			}
		}
	}
	return e
}

// statusSnapshot stands in for response bodies that are empty, truncated, or not JSON
var statusSnapshot = map[string]interface{}{"status": "success"}

func parseSnapshot(rec *bodyRecorder) interface{} {
	if rec == nil || rec.truncated || rec.buf.Len() == 0 {
		return statusSnapshot
	}
	dec := json.NewDecoder(bytes.NewReader(rec.buf.Bytes()))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil || v == nil {
		return statusSnapshot
	}
	return v
}

// DeliveryContextFrom builds the audit delivery context from identity set by
// IdentityMiddleware and the request itself
func DeliveryContextFrom(c *gin.Context) audit.DeliveryContext {
	dc := audit.DeliveryContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if uid, ok := UserID(c); ok {
		dc.UserID = &uid
	}
	dc.SessionID = c.GetString(SessionIDKey)
	return dc
}

// bodyRecorder tees the response body into a bounded buffer. Whatever finalize path a
// handler takes (c.JSON, c.String, c.Data, c.Writer.Write), bytes pass through Write or
// WriteString.
type bodyRecorder struct {
	gin.ResponseWriter
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *bodyRecorder) capture(b []byte) {
	if w.truncated {
		return
	}
	if w.buf.Len()+len(b) > w.limit {
		w.truncated = true
		w.buf.Reset()
		return
	}
	w.buf.Write(b)
}

// matchesAny reports whether path equals a route or lies below it on a segment boundary
func matchesAny(path string, routes []string) bool {
	for _, r := range routes {
		if underPrefix(path, r) {
			return true
		}
	}
	return false
}

// skipped reports whether a skip-list entry covers the request. An entry is a path, or a
// method and path such as "GET /api/users/me"; a bare path applies to every method.
func skipped(method, path string, routes []string) bool {
	for _, r := range routes {
		route := strings.TrimSpace(r)
		if m, p, ok := strings.Cut(route, " "); ok {
			if !strings.EqualFold(m, method) {
				continue
			}
			route = strings.TrimSpace(p)
		}
		if underPrefix(path, route) {
			return true
		}
	}
	return false
}

func underPrefix(path, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
