package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/domain/pricing"
	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/metrics"
)

// Service is the credit ledger.
type Service struct {
	repo   Repository
	prices PriceResolver
}

// NewService creates a new credit service
func NewService(repo Repository, prices PriceResolver) *Service {
	return &Service{repo: repo, prices: prices}
}

// GetBalance returns the user's balance; unseen users get a zero state.
func (s *Service) GetBalance(ctx context.Context, userID string) (*UserCredits, error) {
	return s.repo.GetBalance(ctx, userID)
}

// AddCredits appends a positive entry and raises the balance in one transaction.
func (s *Service) AddCredits(ctx context.Context, userID string, amount int, reason Reason, description string, meta Metadata) (*AddResult, error) {
	if err := validateAdd(amount, reason); err != nil {
		return nil, err
	}

	balance, err := s.repo.Add(ctx, userID, amount, reason, description, meta)
	if err != nil {
		return nil, err
	}

	metrics.CreditsMoved.WithLabelValues("credit", string(reason)).Add(float64(amount))
	logger.LogInfo(ctx, "Credits added", "user_id", userID, "amount", amount, "reason", reason, "balance", balance)
	return &AddResult{CreditsAdded: amount, NewBalance: balance}, nil
}

// AddCreditsTx is AddCredits inside the caller's transaction.
// The caller owns commit and rollback.
func (s *Service) AddCreditsTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason Reason, description string, meta Metadata) (*AddResult, error) {
	if err := validateAdd(amount, reason); err != nil {
		return nil, err
	}

	balance, err := s.repo.AddTx(ctx, tx, userID, amount, reason, description, meta)
	if err != nil {
		return nil, err
	}
	return &AddResult{CreditsAdded: amount, NewBalance: balance}, nil
}

// DeductCredits charges the cost of one feature run. The price is resolved before
// anything is written; an unknown pair or a short balance leaves state untouched.
func (s *Service) DeductCredits(ctx context.Context, userID, feature, provider string, meta Metadata) (*DeductResult, error) {
	cost, err := s.prices.Cost(feature, provider)
	if err != nil {
		return nil, err
	}

	if cost == 0 {
		uc, err := s.repo.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &DeductResult{Success: true, NewBalance: uc.Balance}, nil
	}

	meta.Feature = feature
	meta.Provider = provider
	description := fmt.Sprintf("%s (%s)", feature, provider)

	balance, err := s.repo.Deduct(ctx, userID, cost, description, meta)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			metrics.InsufficientCredits.Inc()
		}
		return nil, err
	}

	metrics.CreditsMoved.WithLabelValues("debit", string(ReasonUsage)).Add(float64(cost))
	logger.LogInfo(ctx, "Credits deducted", "user_id", userID, "feature", feature, "provider", provider, "cost", cost, "balance", balance)
	return &DeductResult{Success: true, NewBalance: balance, Cost: cost}, nil
}

// ClaimFreePackage grants a free package once per user.
func (s *Service) ClaimFreePackage(ctx context.Context, userID string, pkg pricing.Package) (*AddResult, error) {
	if !pkg.IsFree || !pkg.IsActive {
		return nil, pricing.ErrPackageNotFound
	}
	return s.AddCredits(ctx, userID, pkg.Credits, ReasonBonus, pkg.Name, Metadata{PackageID: pkg.ID})
}

// ListEntries returns the user's ledger, newest first.
func (s *Service) ListEntries(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListEntries(ctx, userID, limit, offset)
}

// Audit folds the ledger and compares it with the cached projection.
func (s *Service) Audit(ctx context.Context, userID string) (*AuditReport, error) {
	uc, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.LedgerTotals(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		UserID:         userID,
		Balance:        uc.Balance,
		TotalPurchased: uc.TotalPurchased,
		TotalUsed:      uc.TotalUsed,
		LedgerBalance:  totals.Credited - totals.Debited,
		LedgerCredited: totals.Credited,
		LedgerDebited:  totals.Debited,
		EntryCount:     totals.EntryCount,
	}
	report.Consistent = report.Balance == report.LedgerBalance &&
		report.TotalPurchased == report.LedgerCredited &&
		report.TotalUsed == report.LedgerDebited &&
		report.Balance == report.TotalPurchased-report.TotalUsed

	if !report.Consistent {
		logger.LogWarn(ctx, "Credit projection drift detected", "user_id", userID,
			"balance", report.Balance, "ledger_balance", report.LedgerBalance)
	}
	return report, nil
}

func validateAdd(amount int, reason Reason) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !reason.Valid() || reason == ReasonUsage {
		return ErrInvalidReason
	}
	return nil
}
