package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/safego"
	"github.com/taskboard/taskboard/internal/telemetry"
)

// DefaultWriteTimeout bounds a single asynchronous audit write
const DefaultWriteTimeout = 5 * time.Second

// Store persists audit rows
type Store interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Writer is the single persistence boundary for audit entries. Log never blocks on
// the datastore and never reports failure to its caller: a failed write is logged,
// counted, and dropped.
type Writer struct {
	store   Store
	spawner safego.Spawner
	shipper Shipper
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Writer
type Option func(*Writer)

// WithSpawner overrides how writes are scheduled (safego.Inline in tests)
func WithSpawner(s safego.Spawner) Option {
	return func(w *Writer) { w.spawner = s }
}

// WithShipper forwards every persisted entry to an external destination
func WithShipper(s Shipper) Option {
	return func(w *Writer) { w.shipper = s }
}

// WithTimeout sets the per-write timeout
func WithTimeout(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithClock overrides the time source used for entry timestamps
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a Writer backed by store
func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{
		store:   store,
		spawner: safego.Async{},
		timeout: DefaultWriteTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Log schedules persistence of e and returns immediately. Cancellation of ctx does not
// abort the write; only the writer's own timeout does.
func (w *Writer) Log(ctx context.Context, e Entry) {
	e.normalize(w.now())
	detached := context.WithoutCancel(ctx)

	w.spawner.Spawn(func() {
		writeCtx, cancel := context.WithTimeout(detached, w.timeout)
		defer cancel()

		log, err := w.persist(writeCtx, &e)
		if err != nil {
			telemetry.AuditEntriesWrittenTotal.WithLabelValues(telemetry.ResultError).Inc()
			slog.Error("failed to write audit log",
				"error", err,
				"action", e.Action,
				"entity_type", e.EntityType,
				"entity_id", e.EntityID)
			return
		}
		telemetry.AuditEntriesWrittenTotal.WithLabelValues(telemetry.ResultSuccess).Inc()

		if w.shipper != nil {
			if err := w.shipper.Ship(writeCtx, toLogEntry(log)); err != nil {
				slog.Warn("failed to ship audit log", "error", err, "audit_id", log.ID)
			}
		}
	})
}

func (w *Writer) persist(ctx context.Context, e *Entry) (*models.AuditLog, error) {
	log, err := e.toModel()
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit entry: %w", err)
	}
	if err := w.store.CreateAuditLog(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}
