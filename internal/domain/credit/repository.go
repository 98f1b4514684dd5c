package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	GetBalance(ctx context.Context, userID string) (*UserCredits, error)
	Add(ctx context.Context, userID string, amount int, reason Reason, description string, meta Metadata) (int, error)
	AddTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason Reason, description string, meta Metadata) (int, error)
	Deduct(ctx context.Context, userID string, amount int, description string, meta Metadata) (int, error)
	ListEntries(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error)
	LedgerTotals(ctx context.Context, userID string) (*LedgerTotals, error)
}

// CreditRepository provides credit ledger and balance operations.
type CreditRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// GetBalance returns the projection, zero-valued for users without credit events.
func (r *CreditRepository) GetBalance(ctx context.Context, userID string) (*UserCredits, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var uc UserCredits
	err := r.db.GetContext(ctx, &uc, `
		SELECT user_id, balance, total_purchased, total_used, updated_at
		FROM user_credits
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &UserCredits{UserID: userID}, nil
		}
		return nil, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return &uc, nil
}

func (r *CreditRepository) Add(ctx context.Context, userID string, amount int, reason Reason, description string, meta Metadata) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	balance, err := r.AddTx(ctx, tx, userID, amount, reason, description, meta)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return balance, nil
}

// AddTx credits within an external transaction. The caller commits or rolls back.
func (r *CreditRepository) AddTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason Reason, description string, meta Metadata) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var balance int
	err := tx.GetContext(ctx, &balance, `
		INSERT INTO user_credits (user_id, balance, total_purchased, total_used)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = user_credits.balance + EXCLUDED.balance,
		    total_purchased = user_credits.total_purchased + EXCLUDED.total_purchased,
		    updated_at = NOW()
		RETURNING balance
	`, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("%w: upsert user credits", ErrInternal)
	}

	if err := r.insertEntry(ctx, tx, userID, amount, reason, description, meta); err != nil {
		return 0, err
	}
	return balance, nil
}

// Deduct decrements the balance only if it covers amount.
// A short balance returns *InsufficientCreditsError and leaves no trace.
func (r *CreditRepository) Deduct(ctx context.Context, userID string, amount int, description string, meta Metadata) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var balance int
	err = tx.GetContext(ctx, &balance, `
		UPDATE user_credits
		SET balance = balance - $2,
		    total_used = total_used + $2,
		    updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, userID, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var current int
			if err := tx.GetContext(ctx, &current, `
				SELECT COALESCE((SELECT balance FROM user_credits WHERE user_id = $1), 0)
			`, userID); err != nil {
				return 0, fmt.Errorf("%w: read balance", ErrInternal)
			}
			return 0, &InsufficientCreditsError{Required: amount, Balance: current}
		}
		return 0, fmt.Errorf("%w: update user credits", ErrInternal)
	}

	if err := r.insertEntry(ctx, tx, userID, -amount, ReasonUsage, description, meta); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return balance, nil
}

func (r *CreditRepository) ListEntries(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	entries := make([]LedgerEntry, 0)
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, delta, reason, description, metadata, created_at
		FROM credit_ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries", ErrInternal)
	}
	return entries, nil
}

func (r *CreditRepository) LedgerTotals(ctx context.Context, userID string) (*LedgerTotals, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t LedgerTotals
	err := r.db.GetContext(ctx, &t, `
		SELECT
			COALESCE(SUM(delta) FILTER (WHERE delta > 0), 0) AS credited,
			COALESCE(-SUM(delta) FILTER (WHERE delta < 0), 0) AS debited,
			COUNT(*) AS entry_count
		FROM credit_ledger_entries
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger totals", ErrInternal)
	}
	return &t, nil
}

func (r *CreditRepository) insertEntry(ctx context.Context, tx *sqlx.Tx, userID string, delta int, reason Reason, description string, meta Metadata) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	if strings.TrimSpace(description) == "" {
		description = defaultDescription(reason)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_ledger_entries (id, user_id, delta, reason, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, delta, reason, description, meta)
	if err != nil {
		if reason == ReasonBonus && meta.PackageID != "" && database.IsUniqueViolation(err) {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("%w: insert ledger entry", ErrInternal)
	}
	return nil
}

func defaultDescription(reason Reason) string {
	switch reason {
	case ReasonPurchase:
		return "Credit purchase"
	case ReasonUsage:
		return "Credit usage"
	case ReasonBonus:
		return "Bonus credits"
	case ReasonRefund:
		return "Credit refund"
	}
	return "Credit balance adjustment"
}
