package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/domain/pricing"
	"github.com/mediaforge/mediaforge-api/internal/pkg/payment"
)

type tableLookup struct{ t *pricing.Table }

func (l tableLookup) GetPackage(id string) (pricing.Package, error) { return l.t.Package(id) }

type memRepo struct {
	mu    sync.Mutex
	byTx  map[string]*Purchase
	order []string
}

func newMemRepo() *memRepo { return &memRepo{byTx: map[string]*Purchase{}} }

// RunInTx serializes callbacks, standing in for the row lock.
func (m *memRepo) RunInTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := map[string]Purchase{}
	for k, v := range m.byTx {
		snapshot[k] = *v
	}
	if err := fn(nil); err != nil {
		for k, v := range snapshot {
			p := v
			m.byTx[k] = &p
		}
		return err
	}
	return nil
}

func (m *memRepo) Create(_ context.Context, p *Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byTx[p.TransactionID]; ok {
		return ErrInternal
	}
	cp := *p
	m.byTx[p.TransactionID] = &cp
	m.order = append(m.order, p.TransactionID)
	return nil
}

// called with m.mu held by RunInTx
func (m *memRepo) GetByTransactionIDForUpdateTx(_ context.Context, _ *sqlx.Tx, transactionID string) (*Purchase, error) {
	p, ok := m.byTx[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) MarkCompletedTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID, _ string) error {
	for _, p := range m.byTx {
		if p.ID == id && p.Status == StatusPending {
			p.Status = StatusCompleted
			return nil
		}
	}
	return ErrInvalidStatus
}

func (m *memRepo) MarkFailed(_ context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byTx[transactionID]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = StatusFailed
	return true, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID string, _ int) ([]Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Purchase{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if p := m.byTx[m.order[i]]; p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeProvider struct {
	sessions int
	event    *payment.WebhookEvent
	err      error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions++
	id := fmt.Sprintf("cs_test_%d", f.sessions)
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.test/" + id + "?pkg=" + req.Metadata["packageId"]}, nil
}

func (f *fakeProvider) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if signature != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	return f.event, nil
}

type fakeGranter struct {
	mu       sync.Mutex
	credited map[string]int
	fail     bool
}

func (g *fakeGranter) AddCreditsTx(_ context.Context, _ *sqlx.Tx, userID string, amount int, reason credit.Reason, _ string, meta credit.Metadata) (*credit.AddResult, error) {
	if g.fail {
		return nil, credit.ErrInternal
	}
	if reason != credit.ReasonPurchase || meta.TransactionID == "" {
		return nil, errors.New("unexpected credit call")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.credited == nil {
		g.credited = map[string]int{}
	}
	g.credited[userID] += amount
	return &credit.AddResult{CreditsAdded: amount, NewBalance: g.credited[userID]}, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
	last  string
}

func (n *countingNotifier) NotifyCreditsAdded(_ context.Context, _ string, _ int, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.last = name
}

type fixture struct {
	svc      *Service
	repo     *memRepo
	provider *fakeProvider
	granter  *fakeGranter
	notifier *countingNotifier
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemRepo(),
		provider: &fakeProvider{},
		granter:  &fakeGranter{},
		notifier: &countingNotifier{},
	}
	table := pricing.NewTable(pricing.DefaultFeaturePricing(), pricing.DefaultPackages())
	f.svc = NewService(f.repo, f.provider, tableLookup{table}, f.granter, f.notifier, Config{
		SuccessURL: "http://app.test/credits?checkout=success",
		CancelURL:  "http://app.test/credits?checkout=cancelled",
	})
	return f
}

func TestCreateCheckoutSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, id := range []string{"free", "nope"} {
		if _, err := f.svc.CreateCheckoutSession(ctx, "user_1", id); !errors.Is(err, ErrInvalidPackage) {
			t.Fatalf("%s: expected ErrInvalidPackage, got %v", id, err)
		}
	}

	out, err := f.svc.CreateCheckoutSession(ctx, "user_1", "pro")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if out.SessionID != "cs_test_1" || !strings.Contains(out.URL, "pkg=pro") {
		t.Fatalf("unexpected session %+v", out)
	}
	p := f.repo.byTx["cs_test_1"]
	if p == nil || p.Status != StatusPending || p.Credits != 200 || p.AmountCents != 2999 || p.UserID != "user_1" {
		t.Fatalf("unexpected pending purchase %+v", p)
	}
}

func TestCreateCheckoutSessionUnconfigured(t *testing.T) {
	table := pricing.NewTable(pricing.DefaultFeaturePricing(), pricing.DefaultPackages())
	svc := NewService(newMemRepo(), nil, tableLookup{table}, &fakeGranter{}, nil, Config{})
	if _, err := svc.CreateCheckoutSession(context.Background(), "user_1", "pro"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, _ := f.svc.CreateCheckoutSession(ctx, "user_1", "starter")

	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.ConfirmPayment(ctx, out.SessionID, "pi_1")
			if err == nil && res.Credited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if credited != 1 {
		t.Fatalf("expected exactly one crediting confirmation, got %d", credited)
	}
	if f.granter.credited["user_1"] != 50 {
		t.Fatalf("expected 50 credits, got %d", f.granter.credited["user_1"])
	}
	if f.notifier.calls != 1 || f.notifier.last != "Starter" {
		t.Fatalf("expected one notification for Starter, got %d %q", f.notifier.calls, f.notifier.last)
	}

	if _, err := f.svc.ConfirmPayment(ctx, "cs_unknown", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirmPaymentRollsBackOnCreditFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, _ := f.svc.CreateCheckoutSession(ctx, "user_1", "pro")

	f.granter.fail = true
	if _, err := f.svc.ConfirmPayment(ctx, out.SessionID, ""); err == nil {
		t.Fatal("expected error")
	}
	if f.repo.byTx[out.SessionID].Status != StatusPending {
		t.Fatal("purchase must stay pending when crediting fails")
	}

	f.granter.fail = false
	res, err := f.svc.ConfirmPayment(ctx, out.SessionID, "")
	if err != nil || !res.Credited {
		t.Fatalf("retry should credit, got %+v (%v)", res, err)
	}
}

func TestHandleWebhookDispatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	paid, _ := f.svc.CreateCheckoutSession(ctx, "user_1", "pro")
	expired, _ := f.svc.CreateCheckoutSession(ctx, "user_1", "starter")

	if err := f.svc.HandleWebhook(ctx, []byte("{}"), "forged"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	f.provider.event = &payment.WebhookEvent{Type: payment.EventCheckoutCompleted, SessionID: paid.SessionID, Paid: false}
	_ = f.svc.HandleWebhook(ctx, nil, "valid")
	if f.granter.credited["user_1"] != 0 {
		t.Fatal("unpaid completion must not credit")
	}

	f.provider.event = &payment.WebhookEvent{Type: payment.EventCheckoutCompleted, SessionID: paid.SessionID, Paid: true}
	for i := 0; i < 2; i++ {
		if err := f.svc.HandleWebhook(ctx, nil, "valid"); err != nil {
			t.Fatalf("webhook: %v", err)
		}
	}
	if f.granter.credited["user_1"] != 200 {
		t.Fatalf("replayed webhook must credit once, got %d", f.granter.credited["user_1"])
	}

	f.provider.event = &payment.WebhookEvent{Type: payment.EventCheckoutExpired, SessionID: expired.SessionID}
	_ = f.svc.HandleWebhook(ctx, nil, "valid")
	if f.repo.byTx[expired.SessionID].Status != StatusFailed {
		t.Fatal("expired session should mark purchase failed")
	}

	f.provider.event = &payment.WebhookEvent{Type: payment.EventCheckoutCompleted, SessionID: "cs_other_env", Paid: true}
	if err := f.svc.HandleWebhook(ctx, nil, "valid"); err != nil {
		t.Fatalf("unknown session should be acknowledged, got %v", err)
	}

	f.provider.event = &payment.WebhookEvent{Type: "invoice.paid"}
	if err := f.svc.HandleWebhook(ctx, nil, "valid"); err != nil {
		t.Fatalf("other events should be ignored, got %v", err)
	}

	list, _ := f.svc.ListPurchases(ctx, "user_1")
	if len(list) != 2 || list[0].TransactionID != expired.SessionID {
		t.Fatalf("unexpected history %+v", list)
	}
}

func TestHandlerWebhook(t *testing.T) {
	f := newFixture()
	router := NewHandler(f.svc).StripeRoutes(passthrough, passthrough)
	f.provider.event = &payment.WebhookEvent{Type: "customer.created"}

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "bad")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "valid")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var body map[string]bool
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || !body["received"] {
		t.Fatalf("expected {received:true}, got %d %s", w.Code, w.Body.String())
	}
}

func passthrough(next http.Handler) http.Handler { return next }
