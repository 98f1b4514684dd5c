package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mediaforge/mediaforge-api/internal/middleware"
)

type memRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Notification
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[uuid.UUID]*Notification{}}
}

func (m *memRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.items[n.ID] = &cp
	return nil
}

func (m *memRepo) ListByUser(_ context.Context, userID string, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Notification{}
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (m *memRepo) MarkAsRead(_ context.Context, userID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	if !n.IsRead {
		now := time.Now()
		n.IsRead, n.ReadAt = true, &now
	}
	return nil
}

func (m *memRepo) MarkAllAsRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			now := time.Now()
			n.IsRead, n.ReadAt = true, &now
			c++
		}
	}
	return c, nil
}

func (m *memRepo) Delete(_ context.Context, userID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo) DeleteRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for id, n := range m.items {
		if n.UserID == userID && n.IsRead {
			delete(m.items, id)
			c++
		}
	}
	return c, nil
}

func (m *memRepo) DeleteReadOlderThan(_ context.Context, age time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-age)
	var c int64
	for id, n := range m.items {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(m.items, id)
			c++
		}
	}
	return c, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	unread []int
}

func (p *recordingPublisher) NotifyNew(_ context.Context, userID string, n *Notification, unread int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, userID+":"+n.Content)
	p.unread = append(p.unread, unread)
	return nil
}

func TestCreatePublishesAndRejectsEmpty(t *testing.T) {
	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, pub)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user_a", "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := svc.Create(ctx, "user_a", "hello"); err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.NotifyReferralBonus(ctx, "user_a", 20)

	if len(pub.events) != 2 || pub.events[0] != "user_a:hello" {
		t.Fatalf("unexpected events %v", pub.events)
	}
	if pub.unread[1] != 2 {
		t.Fatalf("expected unread count 2 in second event, got %d", pub.unread[1])
	}
	if !strings.Contains(pub.events[1], "20 bonus credits") {
		t.Fatalf("referral bonus content: %s", pub.events[1])
	}
}

func TestApplyScopesToOwner(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	mine, _ := svc.Create(ctx, "user_a", "mine")
	theirs, _ := svc.Create(ctx, "user_b", "theirs")

	if err := svc.Apply(ctx, "user_a", ActionMarkAsRead, &theirs.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign mark: expected ErrNotFound, got %v", err)
	}
	if err := svc.Apply(ctx, "user_a", ActionDelete, &theirs.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if repo.items[theirs.ID].IsRead {
		t.Fatal("foreign notification was mutated")
	}

	if err := svc.Apply(ctx, "user_a", ActionMarkAsRead, nil); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := svc.Apply(ctx, "user_a", Action("archive"), nil); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}

	if err := svc.Apply(ctx, "user_a", ActionMarkAsRead, &mine.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	first := *repo.items[mine.ID].ReadAt
	_ = svc.Apply(ctx, "user_a", ActionMarkAsRead, &mine.ID)
	if !repo.items[mine.ID].ReadAt.Equal(first) {
		t.Fatal("read_at changed on repeat mark")
	}

	if err := svc.Apply(ctx, "user_a", ActionDeleteRead, nil); err != nil {
		t.Fatalf("delete read: %v", err)
	}
	items, unread, _ := svc.List(ctx, "user_a")
	if len(items) != 0 || unread != 0 {
		t.Fatalf("expected empty mailbox, got %d items, %d unread", len(items), unread)
	}
	if _, ok := repo.items[theirs.ID]; !ok {
		t.Fatal("deleteRead removed another user's notification")
	}
}

func TestCleanupJobRemovesOnlyOldRead(t *testing.T) {
	repo := newMemRepo()
	old := time.Now().Add(-48 * time.Hour)
	readOld := &Notification{ID: uuid.New(), UserID: "u", Content: "a", IsRead: true, CreatedAt: old}
	unreadOld := &Notification{ID: uuid.New(), UserID: "u", Content: "b", CreatedAt: old}
	readNew := &Notification{ID: uuid.New(), UserID: "u", Content: "c", IsRead: true, CreatedAt: time.Now()}
	for _, n := range []*Notification{readOld, unreadOld, readNew} {
		_ = repo.Create(context.Background(), n)
	}

	n, err := NewCleanupJob(repo, 24*time.Hour).RunOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted, got %d (%v)", n, err)
	}
	if _, ok := repo.items[readOld.ID]; ok {
		t.Fatal("old read notification survived")
	}
}

func TestHandlerPatch(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	other, _ := svc.Create(context.Background(), "user_b", "theirs")
	mine, _ := svc.Create(context.Background(), "user_a", "mine")

	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), "user_a", "")))
		})
	}
	router := NewHandler(svc, nil, nil).Routes(auth)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown action", `{"action":"archive"}`, http.StatusBadRequest},
		{"missing id", `{"action":"markAsRead"}`, http.StatusBadRequest},
		{"foreign id", `{"action":"delete","notificationId":"` + other.ID.String() + `"}`, http.StatusNotFound},
		{"mark own", `{"action":"markAsRead","notificationId":"` + mine.ID.String() + `"}`, http.StatusOK},
		{"mark all", `{"action":"markAllAsRead"}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var body ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Notifications) != 1 || body.UnreadCount != 0 || !body.Notifications[0].IsRead {
		t.Fatalf("unexpected list %+v", body)
	}
}
