// overdue_sweeper.go implements the OverdueSweeper background job, which periodically
// scans for cards and checklist items whose due date has passed and writes a deadline
// notification to each assignee. Dedup state lives in the notifications table itself: a
// deadline notification for the same recipient and entity inside the trailing window
// suppresses another one, so repeated or overlapping runs are harmless.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskboard/taskboard/internal/config"
	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/notify"
	"github.com/taskboard/taskboard/internal/telemetry"
)

const (
	defaultSweepInterval = 6 * time.Hour
	defaultDedupWindow   = 24 * time.Hour
)

// OverdueSource lists overdue assignments as of now
type OverdueSource interface {
	ListOverdueCardAssignments(ctx context.Context, now time.Time) ([]models.OverdueCardAssignment, error)
	ListOverdueChecklistItems(ctx context.Context, now time.Time) ([]models.OverdueChecklistItem, error)
}

// DedupIndex reports whether a recipient was already notified about an entity
type DedupIndex interface {
	HasRecentNotification(ctx context.Context, userID int64, notificationType string, cardID, checklistItemID *int64, since time.Time) (bool, error)
}

// DeadlineNotifier writes a single deadline notification
type DeadlineNotifier interface {
	NotifyDeadline(ctx context.Context, d notify.Deadline) error
}

// OverdueSweeper periodically notifies assignees about missed deadlines.
type OverdueSweeper struct {
	source   OverdueSource
	dedup    DedupIndex
	notifier DeadlineNotifier
	enabled  bool
	interval time.Duration
	window   time.Duration
	now      func() time.Time

	mu       sync.Mutex // serializes runs
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewOverdueSweeper creates a new OverdueSweeper. Zero interval and window fall back to
// 6h and 24h.
func NewOverdueSweeper(source OverdueSource, dedup DedupIndex, notifier DeadlineNotifier, cfg *config.NotificationsConfig) *OverdueSweeper {
	interval := cfg.OverdueSweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	window := cfg.DeadlineDedupWindow
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &OverdueSweeper{
		source:   source,
		dedup:    dedup,
		notifier: notifier,
		enabled:  cfg.OverdueSweepEnabled,
		interval: interval,
		window:   window,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
// It runs an initial sweep immediately, then repeats on the configured interval.
// The loop exits when ctx is cancelled or Stop() is called.
func (s *OverdueSweeper) Start(ctx context.Context) {
	if !s.enabled {
		slog.Info("overdue sweeper: disabled (notifications.overdue_sweep_enabled=false)")
		return
	}
	if s.interval >= s.window {
		slog.Warn("overdue sweeper: interval is not shorter than the dedup window; deadlines may be re-notified every run",
			"interval", s.interval, "window", s.window)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("overdue sweeper started", "interval", s.interval, "window", s.window)

	s.runAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			s.runAndLog(ctx)
		case <-s.stopChan:
			slog.Info("overdue sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("overdue sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit. Safe to call more than once.
func (s *OverdueSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *OverdueSweeper) runAndLog(ctx context.Context) {
	created, err := s.RunOnce(ctx)
	if err != nil {
		slog.Error("overdue sweep failed", "error", err, "created", created)
		return
	}
	slog.Info("overdue sweep complete", "created", created)
}

// RunOnce performs one sweep and returns how many notifications it created. Query
// failures abort the sweep; a failure on a single pair is logged and skipped.
func (s *OverdueSweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { telemetry.OverdueSweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now().UTC()
	cards, err := s.source.ListOverdueCardAssignments(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue cards: %w", err)
	}
	items, err := s.source.ListOverdueChecklistItems(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue checklist items: %w", err)
	}

	deadlines := make([]notify.Deadline, 0, len(cards)+len(items))
	for _, c := range cards {
		deadlines = append(deadlines, notify.Deadline{
			UserID:    c.UserID,
			BoardID:   c.BoardID,
			BoardName: c.BoardName,
			CardID:    c.CardID,
			CardTitle: c.CardTitle,
		})
	}
	for _, it := range items {
		itemID := it.ItemID
		deadlines = append(deadlines, notify.Deadline{
			UserID:          it.AssignedTo,
			BoardID:         it.BoardID,
			BoardName:       it.BoardName,
			CardID:          it.CardID,
			CardTitle:       it.CardTitle,
			ChecklistItemID: &itemID,
			ItemContent:     it.Content,
		})
	}

	since := now.Add(-s.window)
	created := 0
	for _, d := range deadlines {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}

		var cardRef *int64
		if d.ChecklistItemID == nil {
			cardID := d.CardID
			cardRef = &cardID
		}
		seen, err := s.dedup.HasRecentNotification(ctx, d.UserID, models.NotificationDeadline, cardRef, d.ChecklistItemID, since)
		if err != nil {
			slog.Error("overdue sweep: dedup check failed", "error", err, "user_id", d.UserID, "card_id", d.CardID)
			continue
		}
		if seen {
			continue
		}

		if err := s.notifier.NotifyDeadline(ctx, d); err != nil {
			slog.Error("overdue sweep: notify failed", "error", err, "user_id", d.UserID, "card_id", d.CardID)
			continue
		}
		created++
	}

	telemetry.OverdueSweepNotificationsTotal.Add(float64(created))
	return created, nil
}
