package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
)

const listLimit = 50

// Service handles notification logic
type Service struct {
	repo      Repository
	publisher RealtimePublisher
}

// NewService creates notification service. publisher may be nil.
func NewService(repo Repository, publisher RealtimePublisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// Create stores a notification and pushes it to the user's open sockets.
func (s *Service) Create(ctx context.Context, userID, content string) (*Notification, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		unread, err := s.repo.CountUnread(ctx, userID)
		if err != nil {
			unread = 0
		}
		if err := s.publisher.NotifyNew(ctx, userID, n, unread); err != nil {
			logger.LogWarn(ctx, "Realtime notification publish failed", "user_id", userID, "error", err.Error())
		}
	}
	return n, nil
}

// List returns the newest notifications and the unread count.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, int, error) {
	items, err := s.repo.ListByUser(ctx, userID, listLimit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkAsRead(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, userID, id)
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	_, err := s.repo.MarkAllAsRead(ctx, userID)
	return err
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *Service) DeleteRead(ctx context.Context, userID string) error {
	_, err := s.repo.DeleteRead(ctx, userID)
	return err
}

// Apply dispatches a mailbox action. id is required for markAsRead and delete.
func (s *Service) Apply(ctx context.Context, userID string, action Action, id *uuid.UUID) error {
	if action.needsID() && id == nil {
		return ErrMissingID
	}
	switch action {
	case ActionMarkAsRead:
		return s.MarkAsRead(ctx, userID, *id)
	case ActionMarkAllAsRead:
		return s.MarkAllAsRead(ctx, userID)
	case ActionDelete:
		return s.Delete(ctx, userID, *id)
	case ActionDeleteRead:
		return s.DeleteRead(ctx, userID)
	}
	return ErrInvalidAction
}

// --- Helper methods for creating specific notifications ---
// Failures are logged and never surface to the caller.

// NotifyCreditsAdded tells the buyer their purchase landed.
func (s *Service) NotifyCreditsAdded(ctx context.Context, userID string, credits int, packageName string) {
	content := fmt.Sprintf("%d credits were added to your balance.", credits)
	if packageName != "" {
		content = fmt.Sprintf("Your %s purchase is complete: %d credits were added to your balance.", packageName, credits)
	}
	s.createQuiet(ctx, userID, content)
}

// NotifyReferralBonus tells the referrer a signup used their code.
func (s *Service) NotifyReferralBonus(ctx context.Context, referrerID string, credits int) {
	s.createQuiet(ctx, referrerID, fmt.Sprintf("Someone signed up with your referral link. You earned %d bonus credits!", credits))
}

// NotifyGenerationFinished reports a terminal render state.
func (s *Service) NotifyGenerationFinished(ctx context.Context, userID, feature string, succeeded bool, refunded int) {
	label := strings.ReplaceAll(feature, "-", " ")
	content := fmt.Sprintf("Your %s is ready.", label)
	if !succeeded {
		content = fmt.Sprintf("Your %s failed.", label)
		if refunded > 0 {
			content = fmt.Sprintf("Your %s failed. %d credits were refunded.", label, refunded)
		}
	}
	s.createQuiet(ctx, userID, content)
}

func (s *Service) createQuiet(ctx context.Context, userID, content string) {
	if _, err := s.Create(ctx, userID, content); err != nil {
		logger.LogError(ctx, err, "Failed to create notification", "user_id", userID)
	}
}
