package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/metrics"
)

const maxCodeAttempts = 10

// CreditGranter credits a user inside an open transaction.
type CreditGranter interface {
	AddCreditsTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason credit.Reason, description string, meta credit.Metadata) (*credit.AddResult, error)
}

// Notifier is told about granted bonuses after commit.
type Notifier interface {
	NotifyReferralBonus(ctx context.Context, referrerID string, credits int)
}

type Service struct {
	repo     Repository
	credits  CreditGranter
	notifier Notifier
	bonus    int
}

// NewService creates the referral ledger. bonus is credited to the referrer per attachment.
func NewService(repo Repository, credits CreditGranter, notifier Notifier, bonus int) *Service {
	if bonus < 0 {
		bonus = 0
	}
	return &Service{repo: repo, credits: credits, notifier: notifier, bonus: bonus}
}

// GetOrCreateReferralLink returns the user's code, creating it on first call.
func (s *Service) GetOrCreateReferralLink(ctx context.Context, userID string) (string, error) {
	link, err := s.repo.GetLinkByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if link != nil {
		return link.Code, nil
	}

	for i := 0; i < maxCodeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCodeGeneration, err)
		}

		err = s.repo.CreateLink(ctx, userID, code)
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return "", err
		}

		// a concurrent request may have won; the stored row is authoritative
		link, err := s.repo.GetLinkByUser(ctx, userID)
		if err != nil {
			return "", err
		}
		if link == nil {
			return "", fmt.Errorf("%w: link missing after insert", ErrInternal)
		}
		return link.Code, nil
	}
	return "", ErrCodeGeneration
}

// AttachReferralOnSignup attributes newUserID to the owner of code and credits the
// referrer in the same transaction. Unknown codes, self-referral and repeat
// attachments return false without error.
func (s *Service) AttachReferralOnSignup(ctx context.Context, newUserID, code string) (bool, error) {
	code = NormalizeCode(code)
	if code == "" || len(code) > 16 {
		return false, nil
	}

	var referrerID string
	err := s.repo.RunInTx(ctx, func(tx *sqlx.Tx) error {
		link, err := s.repo.GetLinkByCodeTx(ctx, tx, code)
		if err != nil {
			return err
		}
		if link == nil || link.UserID == newUserID {
			return nil
		}

		inserted, err := s.repo.InsertAttachmentTx(ctx, tx, &Attachment{
			ID:             uuid.New(),
			ReferredUserID: newUserID,
			ReferrerUserID: link.UserID,
			Code:           code,
			BonusCredits:   s.bonus,
			AttachedAt:     time.Now().UTC(),
		})
		if err != nil || !inserted {
			return err
		}

		if s.bonus > 0 {
			if _, err := s.credits.AddCreditsTx(ctx, tx, link.UserID, s.bonus, credit.ReasonBonus,
				"Referral bonus", credit.Metadata{ReferredUserID: newUserID, ReferralCode: code}); err != nil {
				return err
			}
		}
		referrerID = link.UserID
		return nil
	})
	if err != nil {
		return false, err
	}
	if referrerID == "" {
		return false, nil
	}

	metrics.ReferralsAttached.Inc()
	if s.bonus > 0 {
		metrics.CreditsMoved.WithLabelValues("credit", string(credit.ReasonBonus)).Add(float64(s.bonus))
	}
	logger.LogInfo(ctx, "Referral attached", "referrer_id", referrerID, "referred_id", newUserID, "bonus", s.bonus)
	if s.notifier != nil && s.bonus > 0 {
		s.notifier.NotifyReferralBonus(ctx, referrerID, s.bonus)
	}
	return true, nil
}

// GetStats returns the referrer's code and aggregates, creating the code on demand.
func (s *Service) GetStats(ctx context.Context, userID string) (*Stats, error) {
	code, err := s.GetOrCreateReferralLink(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, bonus, err := s.repo.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{Code: code, TotalReferred: count, TotalBonusCredits: bonus}, nil
}
