package generation

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

const generationColumns = `id, user_id, feature, provider, prompt, params, credits_charged, status,
	render_id, output_url, thumbnail_url, error, refunded, created_at, updated_at, completed_at`

type Repository interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	Create(ctx context.Context, g *Generation) error
	GetByIDForUser(ctx context.Context, userID string, id uuid.UUID) (*Generation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Generation, error)
	SetRenderID(ctx context.Context, id uuid.UUID, renderID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, outputURL string, thumbnailURL *string) (bool, error)
	MarkFailedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string) (refund int, won bool, err error)
}

type GenerationRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return database.WithTx(ctx, r.db, fn)
}

func (r *GenerationRepository) Create(ctx context.Context, g *Generation) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO generations (id, user_id, feature, provider, prompt, params, credits_charged, status, created_at, updated_at)
		VALUES (:id, :user_id, :feature, :provider, :prompt, :params, :credits_charged, :status, :created_at, :updated_at)
	`, g)
	if err != nil {
		return fmt.Errorf("%w: create generation", ErrInternal)
	}
	return nil
}

func (r *GenerationRepository) GetByIDForUser(ctx context.Context, userID string, id uuid.UUID) (*Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g Generation
	err := r.db.GetContext(ctx, &g, `SELECT `+generationColumns+` FROM generations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get generation", ErrInternal)
	}
	return &g, nil
}

func (r *GenerationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items := []Generation{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+generationColumns+`
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list generations", ErrInternal)
	}
	return items, nil
}

func (r *GenerationRepository) SetRenderID(ctx context.Context, id uuid.UUID, renderID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE generations SET render_id = $2, updated_at = NOW() WHERE id = $1`, id, renderID)
	if err != nil {
		return fmt.Errorf("%w: set render id", ErrInternal)
	}
	return nil
}

// MarkCompleted reports false when the job already left the rendering state.
func (r *GenerationRepository) MarkCompleted(ctx context.Context, id uuid.UUID, outputURL string, thumbnailURL *string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE generations
		SET status = 'completed', output_url = $2, thumbnail_url = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'rendering'
	`, id, outputURL, thumbnailURL)
	if err != nil {
		return false, fmt.Errorf("%w: mark completed", ErrInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: mark completed", ErrInternal)
	}
	return n == 1, nil
}

// MarkFailedTx moves a rendering job to failed and returns the credits to refund.
// Only the caller that wins the transition gets won=true.
func (r *GenerationRepository) MarkFailedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string) (int, bool, error) {
	var charged int
	err := tx.GetContext(ctx, &charged, `
		UPDATE generations
		SET status = 'failed', error = $2, refunded = (credits_charged > 0), completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'rendering'
		RETURNING credits_charged
	`, id, reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: mark failed", ErrInternal)
	}
	return charged, true, nil
}
