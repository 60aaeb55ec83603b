package middleware

import (
	"context"
	"fmt"
	"strconv"

	"github.com/taskboard/taskboard/internal/audit"
	"github.com/taskboard/taskboard/internal/db/models"
)

// SnapshotFunc loads the current state of one entity. A nil result with nil error means
// the entity does not exist.
type SnapshotFunc func(ctx context.Context, id string) (interface{}, error)

// SnapshotRegistry maps entity types to their prior-state loaders. It is populated once
// at startup and read concurrently afterwards.
type SnapshotRegistry map[audit.EntityType]SnapshotFunc

// Capture loads the prior state of ref. Entity types with no loader yield nil.
func (r SnapshotRegistry) Capture(ctx context.Context, ref EntityRef) (interface{}, error) {
	fn, ok := r[ref.Type]
	if !ok || ref.ID == "" {
		return nil, nil
	}
	return fn(ctx, ref.ID)
}

// EntityReader is the read side of the task-board datastore used for prior-state capture
type EntityReader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
	GetBoard(ctx context.Context, id int64) (*models.Board, error)
	GetList(ctx context.Context, id int64) (*models.List, error)
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	GetChecklist(ctx context.Context, id int64) (*models.Checklist, error)
	GetChecklistItem(ctx context.Context, id int64) (*models.ChecklistItem, error)
}

// NewSnapshotRegistry registers loaders for every entity type the datastore can read
func NewSnapshotRegistry(r EntityReader) SnapshotRegistry {
	return SnapshotRegistry{
		audit.EntityUser:          byID(r.GetUserByID),
		audit.EntityPortfolio:     byID(r.GetPortfolio),
		audit.EntityBoard:         byID(r.GetBoard),
		audit.EntityList:          byID(r.GetList),
		audit.EntityCard:          byID(r.GetCard),
		audit.EntityChecklist:     byID(r.GetChecklist),
		audit.EntityChecklistItem: byID(r.GetChecklistItem),
	}
}

// byID adapts a typed getter to a SnapshotFunc. A typed nil pointer becomes an untyped
// nil so "not found" compares equal to nil.
func byID[T any](get func(context.Context, int64) (*T, error)) SnapshotFunc {
	return func(ctx context.Context, id string) (interface{}, error) {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id %q", id)
		}
		v, err := get(ctx, n)
		if err != nil || v == nil {
			return nil, err
		}
		return v, nil
	}
}
