package notification

import "github.com/google/uuid"

// ListResponse for GET /notifications
type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// PatchRequest for PATCH /notifications
type PatchRequest struct {
	Action         string     `json:"action" validate:"required,notification_action"`
	NotificationID *uuid.UUID `json:"notificationId,omitempty"`
}
