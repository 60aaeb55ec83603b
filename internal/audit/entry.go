package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/taskboard/taskboard/internal/db/models"
)

// Action is the kind of operation an audit entry records
type Action string

// Audit actions
const (
	ActionCreate           Action = "CREATE"
	ActionRead             Action = "READ"
	ActionUpdate           Action = "UPDATE"
	ActionDelete           Action = "DELETE"
	ActionLogin            Action = "LOGIN"
	ActionLogout           Action = "LOGOUT"
	ActionAssign           Action = "ASSIGN"
	ActionUnassign         Action = "UNASSIGN"
	ActionComplete         Action = "COMPLETE"
	ActionUncomplete       Action = "UNCOMPLETE"
	ActionPermissionChange Action = "PERMISSION_CHANGE"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionUpload           Action = "UPLOAD"
	ActionView             Action = "VIEW"
)

// CapturesPriorState reports whether entries of this action carry the entity's
// state from before the operation.
func (a Action) CapturesPriorState() bool {
	return a == ActionUpdate || a == ActionDelete
}

// EntityType identifies the kind of entity an audit entry refers to
type EntityType string

// Entity types
const (
	EntityUser          EntityType = "user"
	EntityBoard         EntityType = "board"
	EntityList          EntityType = "list"
	EntityCard          EntityType = "card"
	EntityChecklist     EntityType = "checklist"
	EntityChecklistItem EntityType = "checklist_item"
	EntityComment       EntityType = "comment"
	EntityLabel         EntityType = "label"
	EntityPortfolio     EntityType = "portfolio"
	EntityNotification  EntityType = "notification"
	EntitySession       EntityType = "session"
	EntitySystem        EntityType = "system"
)

// SystemEntityID is the entity id used when no concrete entity applies
const SystemEntityID = "system"

// DeliveryContext identifies who performed an operation and from where
type DeliveryContext struct {
	UserID    *int64
	SessionID string
	IPAddress string
	UserAgent string
}

// Entry is an audit record before persistence. OldData and NewData hold any
// JSON-serializable value.
type Entry struct {
	DeliveryContext
	Action     Action
	EntityType EntityType
	EntityID   string
	OldData    interface{}
	NewData    interface{}
	Metadata   map[string]interface{}
	Timestamp  time.Time
}

// normalize enforces the entry invariants: prior state only for UPDATE/DELETE, no
// after-state for DELETE, and a non-empty entity reference.
func (e *Entry) normalize(now time.Time) {
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	if !e.Action.CapturesPriorState() {
		e.OldData = nil
	}
	if e.Action == ActionDelete {
		e.NewData = nil
	}
	if e.EntityType == "" {
		e.EntityType = EntitySystem
	}
	if e.EntityID == "" {
		e.EntityID = SystemEntityID
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	if _, ok := e.Metadata["timestamp"]; !ok {
		e.Metadata["timestamp"] = e.Timestamp.Format(time.RFC3339)
	}
	if _, ok := e.Metadata["actor_id"]; !ok && e.UserID != nil {
		e.Metadata["actor_id"] = *e.UserID
	}
}

// toModel converts the entry to its persisted form, redacting secrets in both snapshots
func (e *Entry) toModel() (*models.AuditLog, error) {
	oldData, err := encodeSnapshot(e.OldData)
	if err != nil {
		return nil, fmt.Errorf("old data: %w", err)
	}
	newData, err := encodeSnapshot(e.NewData)
	if err != nil {
		return nil, fmt.Errorf("new data: %w", err)
	}

	return &models.AuditLog{
		UserID:     e.UserID,
		SessionID:  optional(e.SessionID),
		Action:     string(e.Action),
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		IPAddress:  optional(e.IPAddress),
		UserAgent:  optional(e.UserAgent),
		OldData:    oldData,
		NewData:    newData,
		Metadata:   models.JSONMap(Redact(e.Metadata).(map[string]interface{})),
		CreatedAt:  e.Timestamp,
	}, nil
}

// encodeSnapshot serializes a snapshot value with redaction applied. nil yields an empty
// (NULL) document.
func encodeSnapshot(v interface{}) (models.RawJSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	redacted, err := json.Marshal(Redact(generic))
	if err != nil {
		return nil, err
	}
	return models.RawJSON(redacted), nil
}

// toLogEntry converts a persisted row to the shipper wire format
func toLogEntry(log *models.AuditLog) *LogEntry {
	entry := &LogEntry{
		ID:         log.ID,
		Timestamp:  log.CreatedAt,
		Action:     log.Action,
		EntityType: log.EntityType,
		EntityID:   log.EntityID,
		OldData:    json.RawMessage(log.OldData),
		NewData:    json.RawMessage(log.NewData),
		Metadata:   log.Metadata,
	}
	if log.UserID != nil {
		entry.UserID = strconv.FormatInt(*log.UserID, 10)
	}
	if log.SessionID != nil {
		entry.SessionID = *log.SessionID
	}
	if log.IPAddress != nil {
		entry.IPAddress = *log.IPAddress
	}
	if status, ok := log.Metadata["status_code"].(int); ok {
		entry.StatusCode = status
	}
	return entry
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
