package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"klik-api/database"
	"klik-api/models"
	"klik-api/services"
)

func TestNotificationRetentionDeletesOldReadOnly(t *testing.T) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Initialize("sqlite", "file:"+name+"?mode=memory&cache=shared", "silent")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	now := time.Now()
	old := now.Add(-100 * 24 * time.Hour)
	rows := []models.Notification{
		{ID: "old-read", Type: models.NotificationTypeLike, ActorID: "a", UserID: "b", Read: true, CreatedAt: old},
		{ID: "old-unread", Type: models.NotificationTypeLike, ActorID: "a", UserID: "b", Read: false, CreatedAt: old},
		{ID: "new-read", Type: models.NotificationTypeLike, ActorID: "a", UserID: "b", Read: true, CreatedAt: now},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("failed to insert notifications: %v", err)
	}

	job := NewNotificationRetentionJob(services.NewNotificationService(db, nil), 90*24*time.Hour, time.Hour)
	job.now = func() time.Time { return now }

	deleted, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted notification, got %d", deleted)
	}

	var remaining []string
	db.Model(&models.Notification{}).Order("id").Pluck("id", &remaining)
	if len(remaining) != 2 || remaining[0] != "new-read" || remaining[1] != "old-unread" {
		t.Errorf("unexpected remaining notifications %v", remaining)
	}
}

func TestNotificationRetentionStartStop(t *testing.T) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Initialize("sqlite", "file:"+name+"?mode=memory&cache=shared", "silent")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	job := NewNotificationRetentionJob(services.NewNotificationService(db, nil), time.Hour, time.Millisecond)
	job.Start(context.Background())

	done := make(chan struct{})
	go func() {
		job.Stop()
		job.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
