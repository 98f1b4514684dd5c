package credit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reason classifies a ledger entry.
type Reason string

const (
	ReasonPurchase Reason = "purchase"
	ReasonUsage    Reason = "usage"
	ReasonBonus    Reason = "bonus"
	ReasonRefund   Reason = "refund"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonPurchase, ReasonUsage, ReasonBonus, ReasonRefund:
		return true
	}
	return false
}

// Metadata is the typed key set stored with a ledger entry.
//
//	purchase: PackageID, PurchaseID, TransactionID
//	usage:    Feature, Provider, GenerationID
//	bonus:    ReferredUserID, ReferralCode, or PackageID for free packs
//	refund:   GenerationID, Feature, Provider
type Metadata struct {
	PackageID      string `json:"packageId,omitempty"`
	PurchaseID     string `json:"purchaseId,omitempty"`
	TransactionID  string `json:"transactionId,omitempty"`
	Feature        string `json:"feature,omitempty"`
	Provider       string `json:"provider,omitempty"`
	GenerationID   string `json:"generationId,omitempty"`
	ReferredUserID string `json:"referredUserId,omitempty"`
	ReferralCode   string `json:"referralCode,omitempty"`
}

// Value implements driver.Valuer for JSONB columns.
func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (m *Metadata) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("credit: cannot scan %T into Metadata", src)
	}
	if len(b) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// UserCredits is the cached projection of a user's ledger.
// Balance always equals TotalPurchased - TotalUsed.
type UserCredits struct {
	UserID         string    `db:"user_id" json:"-"`
	Balance        int       `db:"balance" json:"balance"`
	TotalPurchased int       `db:"total_purchased" json:"totalPurchased"`
	TotalUsed      int       `db:"total_used" json:"totalUsed"`
	UpdatedAt      time.Time `db:"updated_at" json:"-"`
}

// LedgerEntry is an immutable credit movement.
type LedgerEntry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	Delta       int       `db:"delta" json:"delta"`
	Reason      Reason    `db:"reason" json:"reason"`
	Description string    `db:"description" json:"description"`
	Metadata    Metadata  `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// AddResult is returned by AddCredits.
type AddResult struct {
	CreditsAdded int `json:"creditsAdded"`
	NewBalance   int `json:"newBalance"`
}

// DeductResult is returned by DeductCredits.
type DeductResult struct {
	Success    bool `json:"success"`
	NewBalance int  `json:"newBalance"`
	Cost       int  `json:"-"`
}

// LedgerTotals is the fold of a user's ledger.
type LedgerTotals struct {
	Credited   int `db:"credited"`
	Debited    int `db:"debited"`
	EntryCount int `db:"entry_count"`
}

// AuditReport compares the cached projection with the ledger fold.
type AuditReport struct {
	UserID         string `json:"userId"`
	Balance        int    `json:"balance"`
	TotalPurchased int    `json:"totalPurchased"`
	TotalUsed      int    `json:"totalUsed"`
	LedgerBalance  int    `json:"ledgerBalance"`
	LedgerCredited int    `json:"ledgerCredited"`
	LedgerDebited  int    `json:"ledgerDebited"`
	EntryCount     int    `json:"entryCount"`
	Consistent     bool   `json:"consistent"`
}
