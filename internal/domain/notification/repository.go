package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines notification data access. Every user scoped call filters on user_id;
// single-row mutations return ErrNotFound when nothing matched.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID string, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	DeleteRead(ctx context.Context, userID string) (int64, error)
	DeleteReadOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type NotificationRepository struct {
	db *sqlx.DB
}

// NewRepository creates notification repository
func NewRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.UserID, n.Content, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create notification", ErrInternal)
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items := []Notification{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, user_id, content, is_read, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications", ErrInternal)
	}
	return items, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID); err != nil {
		return 0, fmt.Errorf("%w: count unread", ErrInternal)
	}
	return count, nil
}

// MarkAsRead keeps the original read_at when the row is already read.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID string, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = true, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return expectOne(res, err, "mark as read")
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = true, read_at = NOW() WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: mark all as read", ErrInternal)
	}
	return res.RowsAffected()
}

// Delete removes a notification
func (r *NotificationRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	return expectOne(res, err, "delete")
}

func (r *NotificationRepository) DeleteRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1 AND is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete read", ErrInternal)
	}
	return res.RowsAffected()
}

// DeleteReadOlderThan removes read notifications of all users older than age.
func (r *NotificationRepository) DeleteReadOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cutoff := time.Now().Add(-age)
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: cleanup", ErrInternal)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInternal, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s rows affected", ErrInternal, op)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
