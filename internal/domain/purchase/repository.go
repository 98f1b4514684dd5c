package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const purchaseColumns = `id, user_id, package_id, amount_cents, currency, credits, status,
	transaction_id, payment_intent_id, created_at, updated_at, completed_at`

// Repository defines purchase data access
type Repository interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	Create(ctx context.Context, p *Purchase) error
	GetByTransactionIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, transactionID string) (*Purchase, error)
	MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, paymentIntentID string) error
	MarkFailed(ctx context.Context, transactionID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Purchase, error)
}

type PurchaseRepository struct {
	db *sqlx.DB
}

// NewRepository creates purchase repository
func NewRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return database.WithTx(ctx, r.db, fn)
}

func (r *PurchaseRepository) Create(ctx context.Context, p *Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO purchases (id, user_id, package_id, amount_cents, currency, credits, status, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, p.ID, p.UserID, p.PackageID, p.AmountCents, p.Currency, p.Credits, p.Status, p.TransactionID, p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate transaction id", ErrInternal)
		}
		return fmt.Errorf("%w: create purchase", ErrInternal)
	}
	return nil
}

// GetByTransactionIDForUpdateTx locks the purchase row until the transaction ends.
func (r *PurchaseRepository) GetByTransactionIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, transactionID string) (*Purchase, error) {
	var p Purchase
	err := tx.GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE transaction_id = $1 FOR UPDATE`, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get purchase", ErrInternal)
	}
	return &p, nil
}

func (r *PurchaseRepository) MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, paymentIntentID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE purchases
		SET status = 'completed', payment_intent_id = NULLIF($2, ''), completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, paymentIntentID)
	if err != nil {
		return fmt.Errorf("%w: mark completed", ErrInternal)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrInvalidStatus
	}
	return nil
}

// MarkFailed reports whether a pending purchase was moved to failed.
func (r *PurchaseRepository) MarkFailed(ctx context.Context, transactionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE purchases SET status = 'failed', updated_at = NOW()
		WHERE transaction_id = $1 AND status = 'pending'
	`, transactionID)
	if err != nil {
		return false, fmt.Errorf("%w: mark failed", ErrInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return n == 1, nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items := []Purchase{}
	err := r.db.SelectContext(ctx, &items, `SELECT `+purchaseColumns+` FROM purchases WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list purchases", ErrInternal)
	}
	return items, nil
}
