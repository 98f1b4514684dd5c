package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/mediaforge/mediaforge-api/internal/domain/notification"
	"github.com/mediaforge/mediaforge-api/internal/pkg/database/dbtest"
)

func TestPostgresOwnerScopedMutations(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	repo := notification.NewRepository(db)
	svc := notification.NewService(repo, nil)

	alice := "user_ntf_" + uuid.NewString()[:12]
	bob := "user_ntf_" + uuid.NewString()[:12]
	t.Cleanup(func() {
		db.Exec(`DELETE FROM notifications WHERE user_id IN ($1, $2)`, alice, bob)
	})

	a1, err := svc.Create(ctx, alice, "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, alice, "second"); err != nil {
		t.Fatalf("create: %v", err)
	}
	b1, _ := svc.Create(ctx, bob, "bob's")

	if err := repo.MarkAsRead(ctx, alice, b1.ID); !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("foreign mark: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, alice, b1.ID); !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if n, _ := repo.CountUnread(ctx, bob); n != 1 {
		t.Fatalf("bob's notification was touched, unread=%d", n)
	}

	if err := repo.MarkAsRead(ctx, alice, a1.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	items, unread, err := svc.List(ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || unread != 1 || items[0].Content != "second" {
		t.Fatalf("unexpected list: %d items, %d unread, first=%q", len(items), unread, items[0].Content)
	}

	if n, err := repo.DeleteRead(ctx, alice); err != nil || n != 1 {
		t.Fatalf("delete read: %d (%v)", n, err)
	}

	_, _ = repo.MarkAllAsRead(ctx, alice)
	db.Exec(`UPDATE notifications SET created_at = $2 WHERE user_id = $1`, alice, time.Now().Add(-72*time.Hour))
	n, err := notification.NewCleanupJob(repo, 48*time.Hour).RunOnce(ctx)
	if err != nil || n < 1 {
		t.Fatalf("cleanup: %d (%v)", n, err)
	}
	if n, _ := repo.CountUnread(ctx, bob); n != 1 {
		t.Fatal("cleanup removed an unread notification")
	}
}
