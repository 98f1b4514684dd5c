package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/domain/pricing"
	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/metrics"
	"github.com/mediaforge/mediaforge-api/internal/pkg/payment"
)

const historyLimit = 50

// CreditGranter credits a user inside an open transaction.
type CreditGranter interface {
	AddCreditsTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason credit.Reason, description string, meta credit.Metadata) (*credit.AddResult, error)
}

// PackageLookup resolves credit packages. *pricing.Service satisfies it.
type PackageLookup interface {
	GetPackage(id string) (pricing.Package, error)
}

// Notifier is told about completed purchases after commit.
type Notifier interface {
	NotifyCreditsAdded(ctx context.Context, userID string, credits int, packageName string)
}

// Config holds redirect targets for the hosted checkout page.
type Config struct {
	SuccessURL string
	CancelURL  string
	// Currency is used for packages that do not carry one
	Currency string
}

// Service is the checkout orchestrator.
type Service struct {
	repo     Repository
	provider payment.Provider
	packages PackageLookup
	credits  CreditGranter
	notifier Notifier
	cfg      Config
}

// NewService creates purchase service. A nil provider leaves checkout unconfigured.
func NewService(repo Repository, provider payment.Provider, packages PackageLookup, credits CreditGranter, notifier Notifier, cfg Config) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		packages: packages,
		credits:  credits,
		notifier: notifier,
		cfg:      cfg,
	}
}

// CheckoutResponse is returned to the client for redirect.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// ConfirmResult reports whether this confirmation credited the user.
type ConfirmResult struct {
	Purchase *Purchase `json:"purchase"`
	Credited bool      `json:"credited"`
}

// CreateCheckoutSession opens a provider session for packageID and records a pending purchase.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, packageID string) (*CheckoutResponse, error) {
	pkg, err := s.packages.GetPackage(packageID)
	if err != nil || !pkg.Purchasable() {
		return nil, ErrInvalidPackage
	}
	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	currency := strings.ToLower(pkg.Currency)
	if currency == "" {
		currency = strings.ToLower(s.cfg.Currency)
	}

	purchaseID := uuid.New()
	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		UserID:      userID,
		ProductName: fmt.Sprintf("%s (%d credits)", pkg.Name, pkg.Credits),
		AmountCents: int64(pkg.PriceCents),
		Currency:    currency,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		Metadata: map[string]string{
			"purchaseId": purchaseID.String(),
			"packageId":  pkg.ID,
			"userId":     userID,
			"credits":    fmt.Sprint(pkg.Credits),
		},
	})
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		errorhandler.LogExternalServiceError(ctx, s.provider.Name(), "checkout.sessions.create", 0, err)
		return nil, fmt.Errorf("%w: create checkout session", ErrInternal)
	}

	now := time.Now().UTC()
	p := &Purchase{
		ID:            purchaseID,
		UserID:        userID,
		PackageID:     pkg.ID,
		AmountCents:   pkg.PriceCents,
		Currency:      currency,
		Credits:       pkg.Credits,
		Status:        StatusPending,
		TransactionID: session.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "Checkout session created", "user_id", userID, "package_id", pkg.ID, "session_id", session.ID)
	return &CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

// ConfirmPayment completes the purchase and credits the buyer exactly once.
// A replay for an already completed purchase returns Credited=false.
func (s *Service) ConfirmPayment(ctx context.Context, transactionID, paymentIntentID string) (*ConfirmResult, error) {
	var result ConfirmResult
	err := s.repo.RunInTx(ctx, func(tx *sqlx.Tx) error {
		p, err := s.repo.GetByTransactionIDForUpdateTx(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		result.Purchase = p

		switch p.Status {
		case StatusCompleted:
			return nil
		case StatusPending:
		default:
			return ErrInvalidStatus
		}

		if err := s.repo.MarkCompletedTx(ctx, tx, p.ID, paymentIntentID); err != nil {
			return err
		}
		if _, err := s.credits.AddCreditsTx(ctx, tx, p.UserID, p.Credits, credit.ReasonPurchase, "Credit package purchase", credit.Metadata{
			PackageID:     p.PackageID,
			PurchaseID:    p.ID.String(),
			TransactionID: p.TransactionID,
		}); err != nil {
			return err
		}

		now := time.Now().UTC()
		p.Status = StatusCompleted
		p.CompletedAt = &now
		if paymentIntentID != "" {
			p.PaymentIntentID = &paymentIntentID
		}
		result.Credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Credited {
		p := result.Purchase
		metrics.PurchasesCompleted.WithLabelValues(p.PackageID).Inc()
		metrics.CreditsMoved.WithLabelValues("credit", string(credit.ReasonPurchase)).Add(float64(p.Credits))
		logger.LogInfo(ctx, "Purchase completed", "user_id", p.UserID, "purchase_id", p.ID.String(), "credits", p.Credits)

		if s.notifier != nil {
			name := ""
			if pkg, err := s.packages.GetPackage(p.PackageID); err == nil {
				name = pkg.Name
			}
			s.notifier.NotifyCreditsAdded(ctx, p.UserID, p.Credits, name)
		}
	}
	return &result, nil
}

// FailPayment moves a pending purchase to failed. Other states are left untouched.
func (s *Service) FailPayment(ctx context.Context, transactionID string) error {
	changed, err := s.repo.MarkFailed(ctx, transactionID)
	if err != nil {
		return err
	}
	if changed {
		logger.LogInfo(ctx, "Purchase failed", "session_id", transactionID)
	}
	return nil
}

// HandleWebhook verifies and dispatches a provider callback.
// Unknown event types are acknowledged without action.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.provider == nil {
		return ErrNotConfigured
	}
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		}
		return err
	}

	ctx = logger.WithFields(ctx, "event_id", event.ID, "event_type", event.Type)
	outcome := "ignored"
	defer func() {
		metrics.WebhookEvents.WithLabelValues(event.Type, outcome).Inc()
	}()

	switch event.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncPaymentOK:
		if !event.Paid {
			// async methods settle later
			outcome = "pending"
			return nil
		}
		res, err := s.ConfirmPayment(ctx, event.SessionID, event.PaymentIntentID)
		if errors.Is(err, ErrNotFound) {
			outcome = "unknown_session"
			logger.LogWarn(ctx, "Webhook for unknown checkout session", "session_id", event.SessionID)
			return nil
		}
		if err != nil {
			outcome = "error"
			return err
		}
		outcome = "completed"
		if !res.Credited {
			outcome = "duplicate"
		}
		return nil

	case payment.EventCheckoutExpired, payment.EventCheckoutAsyncPaymentFailed:
		if err := s.FailPayment(ctx, event.SessionID); err != nil {
			outcome = "error"
			return err
		}
		outcome = "failed"
		return nil
	}
	return nil
}

// ListPurchases returns the user's purchase history, newest first.
func (s *Service) ListPurchases(ctx context.Context, userID string) ([]Purchase, error) {
	return s.repo.ListByUser(ctx, userID, historyLimit)
}
