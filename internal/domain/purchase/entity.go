package purchase

import (
	"time"

	"github.com/google/uuid"
)

// Status represents purchase status
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Purchase is one checkout of a credit package. TransactionID is the provider session id.
type Purchase struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"userId"`
	PackageID       string     `db:"package_id" json:"packageId"`
	AmountCents     int        `db:"amount_cents" json:"amountCents"`
	Currency        string     `db:"currency" json:"currency"`
	Credits         int        `db:"credits" json:"credits"`
	Status          Status     `db:"status" json:"status"`
	TransactionID   string     `db:"transaction_id" json:"transactionId"`
	PaymentIntentID *string    `db:"payment_intent_id" json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt     *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// IsCompleted checks if the purchase was credited
func (p *Purchase) IsCompleted() bool {
	return p.Status == StatusCompleted
}
