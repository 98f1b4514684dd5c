package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	GetLinkByUser(ctx context.Context, userID string) (*Link, error)
	CreateLink(ctx context.Context, userID, code string) error
	GetLinkByCodeTx(ctx context.Context, tx *sqlx.Tx, code string) (*Link, error)
	InsertAttachmentTx(ctx context.Context, tx *sqlx.Tx, a *Attachment) (bool, error)
	Totals(ctx context.Context, referrerID string) (count, bonus int, err error)
}

type ReferralRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return database.WithTx(ctx, r.db, fn)
}

// GetLinkByUser returns nil, nil when the user has no link yet.
func (r *ReferralRepository) GetLinkByUser(ctx context.Context, userID string) (*Link, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var l Link
	err := r.db.GetContext(ctx, &l, `SELECT user_id, code, created_at FROM referral_links WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get link", ErrInternal)
	}
	return &l, nil
}

// CreateLink is a no-op when the user already has a link.
// A code collision with another user returns errCodeTaken.
func (r *ReferralRepository) CreateLink(ctx context.Context, userID, code string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referral_links (user_id, code)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, code)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errCodeTaken
		}
		return fmt.Errorf("%w: create link", ErrInternal)
	}
	return nil
}

// GetLinkByCodeTx returns nil, nil for unknown codes.
func (r *ReferralRepository) GetLinkByCodeTx(ctx context.Context, tx *sqlx.Tx, code string) (*Link, error) {
	var l Link
	err := tx.GetContext(ctx, &l, `SELECT user_id, code, created_at FROM referral_links WHERE code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get link by code", ErrInternal)
	}
	return &l, nil
}

// InsertAttachmentTx reports false when the referred user is already attached.
func (r *ReferralRepository) InsertAttachmentTx(ctx context.Context, tx *sqlx.Tx, a *Attachment) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO referral_attachments (id, referred_user_id, referrer_user_id, code, bonus_credits, attached_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (referred_user_id) DO NOTHING
	`, a.ID, a.ReferredUserID, a.ReferrerUserID, a.Code, a.BonusCredits, a.AttachedAt)
	if err != nil {
		return false, fmt.Errorf("%w: insert attachment", ErrInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return n == 1, nil
}

func (r *ReferralRepository) Totals(ctx context.Context, referrerID string) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row struct {
		Count int `db:"total_referred"`
		Bonus int `db:"total_bonus"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS total_referred, COALESCE(SUM(bonus_credits), 0) AS total_bonus
		FROM referral_attachments
		WHERE referrer_user_id = $1
	`, referrerID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: totals", ErrInternal)
	}
	return row.Count, row.Bonus, nil
}
