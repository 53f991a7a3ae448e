package jobs

import (
	"context"
	"log/slog"
	"time"

	"klik-api/services"
)

// NotificationRetentionJob periodically deletes read notifications older than
// the retention period.
type NotificationRetentionJob struct {
	notifications *services.NotificationService
	retention     time.Duration
	interval      time.Duration
	now           func() time.Time
	done          chan struct{}
	stopped       chan struct{}
}

// NewNotificationRetentionJob creates a new retention job
func NewNotificationRetentionJob(notifications *services.NotificationService, retention, interval time.Duration) *NotificationRetentionJob {
	return &NotificationRetentionJob{
		notifications: notifications,
		retention:     retention,
		interval:      interval,
		now:           time.Now,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Start begins the cleanup job
func (j *NotificationRetentionJob) Start(ctx context.Context) {
	slog.Info("notification retention job started", "retention", j.retention, "interval", j.interval)

	go func() {
		defer close(j.stopped)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		// Run immediately on start
		j.cleanup(ctx)

		for {
			select {
			case <-ticker.C:
				j.cleanup(ctx)
			case <-ctx.Done():
				slog.Info("notification retention job stopped")
				return
			case <-j.done:
				slog.Info("notification retention job stopped")
				return
			}
		}
	}()
}

// Stop stops the job and waits for a running cleanup to finish.
func (j *NotificationRetentionJob) Stop() {
	select {
	case <-j.done:
	default:
		close(j.done)
	}
	<-j.stopped
}

// RunOnce performs a single cleanup pass and returns how many rows were deleted.
func (j *NotificationRetentionJob) RunOnce(ctx context.Context) (int64, error) {
	return j.notifications.CleanupRead(ctx, j.now().Add(-j.retention))
}

func (j *NotificationRetentionJob) cleanup(ctx context.Context) {
	deleted, err := j.RunOnce(ctx)
	if err != nil {
		slog.Error("notification retention cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("notification retention cleanup completed", "deleted", deleted)
	}
}
