package notification

import "errors"

var (
	ErrNotFound      = errors.New("notification not found")
	ErrInvalidAction = errors.New("invalid notification action")
	ErrMissingID     = errors.New("notificationId is required for this action")
	ErrEmptyContent  = errors.New("notification content is empty")
	ErrInternal      = errors.New("internal error")
)
