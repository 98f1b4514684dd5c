package notification

import (
	"context"
)

const EventNotificationNew = "notification:new"

// RealtimePublisher publishes in-app notification realtime events.
type RealtimePublisher interface {
	NotifyNew(ctx context.Context, userID string, n *Notification, unreadCount int) error
}

type userSender interface {
	SendToUserJSON(userID string, payload any) error
}

// WSPublisher publishes notification:new events over websocket.
type WSPublisher struct {
	sender userSender
}

// NewWSPublisher creates a WS-backed realtime publisher.
func NewWSPublisher(sender userSender) *WSPublisher {
	return &WSPublisher{sender: sender}
}

type wsEvent struct {
	Type string      `json:"type"`
	Data wsEventData `json:"data"`
}

type wsEventData struct {
	Notification *Notification `json:"notification"`
	UnreadCount  int           `json:"unreadCount"`
}

func (p *WSPublisher) NotifyNew(_ context.Context, userID string, n *Notification, unreadCount int) error {
	if p == nil || p.sender == nil {
		return nil
	}
	return p.sender.SendToUserJSON(userID, wsEvent{
		Type: EventNotificationNew,
		Data: wsEventData{Notification: n, UnreadCount: unreadCount},
	})
}
