package notify

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/db"
)

func setupRepository(t *testing.T) *GormRepository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "notify.db")
	gormDB, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := db.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := silentLogger()
	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := NewRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	return repo
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestListForRecipientScopesAndOrders(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	err := repo.CreateMany(ctx, []Notification{
		{RecipientID: 1, Message: "first"},
		{RecipientID: 1, Message: "second"},
		{RecipientID: 2, Message: "other"},
	})
	if err != nil {
		t.Fatalf("CreateMany returned error: %v", err)
	}

	notifications, err := repo.ListForRecipient(ctx, 1)
	if err != nil {
		t.Fatalf("ListForRecipient returned error: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications for recipient 1, got %d", len(notifications))
	}
	for _, n := range notifications {
		if n.RecipientID != 1 {
			t.Fatalf("listing leaked another recipient's notification: %#v", n)
		}
	}
}

func TestMarkReadEnforcesRecipient(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	if err := repo.CreateMany(ctx, []Notification{{RecipientID: 1, Message: "hi"}}); err != nil {
		t.Fatalf("CreateMany returned error: %v", err)
	}
	stored, err := repo.ListForRecipient(ctx, 1)
	if err != nil || len(stored) != 1 {
		t.Fatalf("listing notification: %v %d", err, len(stored))
	}

	if err := repo.MarkRead(ctx, stored[0].ID, 2); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign recipient, got %v", err)
	}

	if err := repo.MarkRead(ctx, stored[0].ID, 1); err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}
	stored, err = repo.ListForRecipient(ctx, 1)
	if err != nil || !stored[0].Read {
		t.Fatalf("expected notification marked read, got %v %v", err, stored)
	}
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	err := repo.CreateMany(ctx, []Notification{
		{RecipientID: 1, Message: "a"},
		{RecipientID: 1, Message: "b"},
	})
	if err != nil {
		t.Fatalf("CreateMany returned error: %v", err)
	}

	if err := repo.MarkAllRead(ctx, 1); err != nil {
		t.Fatalf("MarkAllRead returned error: %v", err)
	}

	stored, err := repo.ListForRecipient(ctx, 1)
	if err != nil {
		t.Fatalf("ListForRecipient returned error: %v", err)
	}
	for _, n := range stored {
		if !n.Read {
			t.Fatalf("expected every notification read, got %#v", n)
		}
	}
}

func TestDeleteOlderThan(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	old := Notification{RecipientID: 1, Message: "stale"}
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := Notification{RecipientID: 1, Message: "fresh"}

	if err := repo.CreateMany(ctx, []Notification{old, fresh}); err != nil {
		t.Fatalf("CreateMany returned error: %v", err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		t.Fatalf("DeleteOlderThan returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted notification, got %d", deleted)
	}

	remaining, err := repo.ListForRecipient(ctx, 1)
	if err != nil {
		t.Fatalf("ListForRecipient returned error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Message != "fresh" {
		t.Fatalf("expected only the fresh notification, got %#v", remaining)
	}
}

func TestCleanupJobRun(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	old := Notification{RecipientID: 1, Message: "stale"}
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	if err := repo.CreateMany(ctx, []Notification{old}); err != nil {
		t.Fatalf("CreateMany returned error: %v", err)
	}

	job, err := NewCleanupJob(repo, silentLogger())
	if err != nil {
		t.Fatalf("NewCleanupJob returned error: %v", err)
	}
	if job.Name() != "notification-cleanup" || job.Schedule() != "@hourly" {
		t.Fatalf("unexpected job identity: %q %q", job.Name(), job.Schedule())
	}

	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	remaining, err := repo.ListForRecipient(ctx, 1)
	if err != nil {
		t.Fatalf("ListForRecipient returned error: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected stale notifications removed, got %d", len(remaining))
	}
}
