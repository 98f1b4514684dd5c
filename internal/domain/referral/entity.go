package referral

import (
	"time"

	"github.com/google/uuid"
)

// Link is a user's stable referral code.
type Link struct {
	UserID    string    `db:"user_id" json:"userId"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Attachment binds a referred user to their referrer. One per referred user, ever.
type Attachment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ReferredUserID string    `db:"referred_user_id" json:"referredUserId"`
	ReferrerUserID string    `db:"referrer_user_id" json:"referrerUserId"`
	Code           string    `db:"code" json:"code"`
	BonusCredits   int       `db:"bonus_credits" json:"bonusCredits"`
	AttachedAt     time.Time `db:"attached_at" json:"attachedAt"`
}

// Stats aggregates attachments for one referrer.
type Stats struct {
	Code              string `json:"code"`
	TotalReferred     int    `json:"totalReferred"`
	TotalBonusCredits int    `json:"totalBonusCredits"`
}
