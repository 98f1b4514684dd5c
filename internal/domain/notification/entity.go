package notification

import (
	"time"

	"github.com/google/uuid"
)

// Action is a PATCH /notifications operation.
type Action string

const (
	ActionMarkAsRead    Action = "markAsRead"
	ActionMarkAllAsRead Action = "markAllAsRead"
	ActionDelete        Action = "delete"
	ActionDeleteRead    Action = "deleteRead"
)

// needsID reports whether the action targets a single notification.
func (a Action) needsID() bool {
	return a == ActionMarkAsRead || a == ActionDelete
}

// Notification represents a user notification
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	Content   string     `db:"content" json:"content"`
	IsRead    bool       `db:"is_read" json:"isRead"`
	ReadAt    *time.Time `db:"read_at" json:"readAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}
