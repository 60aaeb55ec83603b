package audit

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
)

// The helpers below give each action kind a stable metadata shape. Every entry also
// carries actor_id (when known) and timestamp, added by normalize.

// LogLogin records a successful sign-in
func (w *Writer) LogLogin(ctx context.Context, dc DeliveryContext, username string) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionLogin,
		EntityType:      EntityUser,
		EntityID:        userEntityID(dc.UserID),
		Metadata: map[string]interface{}{
			"username":   username,
			"session_id": dc.SessionID,
		},
	})
}

// LogLogout records a sign-out
func (w *Writer) LogLogout(ctx context.Context, dc DeliveryContext) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionLogout,
		EntityType:      EntitySession,
		EntityID:        nonEmpty(dc.SessionID, userEntityID(dc.UserID)),
		Metadata: map[string]interface{}{
			"session_id": dc.SessionID,
		},
	})
}

// LogCreate records creation of an entity
func (w *Writer) LogCreate(ctx context.Context, dc DeliveryContext, entityType EntityType, entityID string, newData interface{}) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionCreate,
		EntityType:      entityType,
		EntityID:        entityID,
		NewData:         newData,
		Metadata: map[string]interface{}{
			"operation": "create",
		},
	})
}

// LogUpdate records a modification, listing the top-level fields whose values changed
func (w *Writer) LogUpdate(ctx context.Context, dc DeliveryContext, entityType EntityType, entityID string, oldData, newData interface{}) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionUpdate,
		EntityType:      entityType,
		EntityID:        entityID,
		OldData:         oldData,
		NewData:         newData,
		Metadata: map[string]interface{}{
			"operation":      "update",
			"changed_fields": ChangedFields(oldData, newData),
		},
	})
}

// LogDelete records removal of an entity along with its last known state
func (w *Writer) LogDelete(ctx context.Context, dc DeliveryContext, entityType EntityType, entityID string, oldData interface{}) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionDelete,
		EntityType:      entityType,
		EntityID:        entityID,
		OldData:         oldData,
		Metadata: map[string]interface{}{
			"operation": "delete",
		},
	})
}

// LogPasswordChange records a password change for targetUserID. The password itself is
// never part of the entry.
func (w *Writer) LogPasswordChange(ctx context.Context, dc DeliveryContext, targetUserID int64) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionPasswordChange,
		EntityType:      EntityUser,
		EntityID:        strconv.FormatInt(targetUserID, 10),
		Metadata: map[string]interface{}{
			"target_user_id": targetUserID,
			"self_service":   dc.UserID != nil && *dc.UserID == targetUserID,
		},
	})
}

// LogPermissionChange records a role change for targetUserID on the given entity
func (w *Writer) LogPermissionChange(ctx context.Context, dc DeliveryContext, entityType EntityType, entityID string, targetUserID int64, oldRole, newRole string) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionPermissionChange,
		EntityType:      entityType,
		EntityID:        entityID,
		OldData:         map[string]interface{}{"user_id": targetUserID, "role": oldRole},
		NewData:         map[string]interface{}{"user_id": targetUserID, "role": newRole},
		Metadata: map[string]interface{}{
			"target_user_id": targetUserID,
			"old_role":       oldRole,
			"new_role":       newRole,
		},
	})
}

// LogAssignment records assigneeID being assigned to a card, or to a checklist item
// when checklistItemID is set
func (w *Writer) LogAssignment(ctx context.Context, dc DeliveryContext, cardID int64, checklistItemID *int64, assigneeID int64) {
	w.Log(ctx, taskEntry(dc, ActionAssign, cardID, checklistItemID, map[string]interface{}{
		"assignee_id": assigneeID,
	}))
}

// LogUnassignment records assigneeID being removed from a card or checklist item
func (w *Writer) LogUnassignment(ctx context.Context, dc DeliveryContext, cardID int64, checklistItemID *int64, assigneeID int64) {
	w.Log(ctx, taskEntry(dc, ActionUnassign, cardID, checklistItemID, map[string]interface{}{
		"assignee_id": assigneeID,
	}))
}

// LogTaskCompletion records a completion toggle. completed=false records UNCOMPLETE.
func (w *Writer) LogTaskCompletion(ctx context.Context, dc DeliveryContext, cardID int64, checklistItemID *int64, completed bool) {
	action := ActionComplete
	if !completed {
		action = ActionUncomplete
	}
	w.Log(ctx, taskEntry(dc, action, cardID, checklistItemID, map[string]interface{}{
		"completed": completed,
	}))
}

// LogFileUpload records a file attached to an entity
func (w *Writer) LogFileUpload(ctx context.Context, dc DeliveryContext, entityType EntityType, entityID, fileName string, size int64, contentType string) {
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          ActionUpload,
		EntityType:      entityType,
		EntityID:        entityID,
		NewData: map[string]interface{}{
			"file_name":    fileName,
			"file_size":    size,
			"content_type": contentType,
		},
		Metadata: map[string]interface{}{
			"file_name":    fileName,
			"file_size":    size,
			"content_type": contentType,
		},
	})
}

// Notification inbox operations
const (
	NotificationOpRead        = "read"
	NotificationOpReadAll     = "read_all"
	NotificationOpDelete      = "delete"
	NotificationOpClear       = "clear_all"
	NotificationOpPermanentRm = "permanent_delete"
)

// LogNotificationAction records a recipient acting on their inbox. notificationID is nil
// for bulk operations.
func (w *Writer) LogNotificationAction(ctx context.Context, dc DeliveryContext, op string, notificationID *int64, affected int64) {
	action := ActionUpdate
	switch op {
	case NotificationOpDelete, NotificationOpClear, NotificationOpPermanentRm:
		action = ActionDelete
	}
	entityID := "all"
	if notificationID != nil {
		entityID = strconv.FormatInt(*notificationID, 10)
	}
	w.Log(ctx, Entry{
		DeliveryContext: dc,
		Action:          action,
		EntityType:      EntityNotification,
		EntityID:        entityID,
		Metadata: map[string]interface{}{
			"notification_action": op,
			"affected":            affected,
		},
	})
}

// LogSystemOperation records work performed by the service itself, such as a sweep
func (w *Writer) LogSystemOperation(ctx context.Context, action Action, operation string, details map[string]interface{}) {
	metadata := map[string]interface{}{"operation": operation}
	for k, v := range details {
		metadata[k] = v
	}
	w.Log(ctx, Entry{
		Action:     action,
		EntityType: EntitySystem,
		EntityID:   SystemEntityID,
		Metadata:   metadata,
	})
}

func taskEntry(dc DeliveryContext, action Action, cardID int64, checklistItemID *int64, metadata map[string]interface{}) Entry {
	e := Entry{
		DeliveryContext: dc,
		Action:          action,
		EntityType:      EntityCard,
		EntityID:        strconv.FormatInt(cardID, 10),
		Metadata:        metadata,
	}
	metadata["card_id"] = cardID
	if checklistItemID != nil {
		e.EntityType = EntityChecklistItem
		e.EntityID = strconv.FormatInt(*checklistItemID, 10)
		metadata["checklist_item_id"] = *checklistItemID
	}
	return e
}

// ChangedFields returns the sorted top-level keys of newData whose values differ from
// oldData. Non-object snapshots yield no fields.
func ChangedFields(oldData, newData interface{}) []string {
	oldMap := asObject(oldData)
	newMap := asObject(newData)
	changed := make([]string, 0)
	for k, nv := range newMap {
		if ov, ok := oldMap[k]; !ok || !reflect.DeepEqual(ov, nv) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func asObject(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func userEntityID(id *int64) string {
	if id == nil {
		return SystemEntityID
	}
	return strconv.FormatInt(*id, 10)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
