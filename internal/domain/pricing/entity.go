package pricing

import "time"

// Features billed in credits.
const (
	FeatureVideoGeneration = "video-generation"
	FeatureImageGeneration = "image-generation"
	FeatureMapAnimation    = "map-animation"
)

// FeaturePrice is the credit cost of one run of feature on provider.
type FeaturePrice struct {
	ID        string    `db:"id" json:"id"`
	Feature   string    `db:"feature" json:"feature"`
	Provider  string    `db:"provider" json:"provider"`
	Credits   int       `db:"credits" json:"credits"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Package is a purchasable bundle of credits.
type Package struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Credits    int       `db:"credits" json:"credits"`
	PriceCents int       `db:"price_cents" json:"priceCents"`
	Currency   string    `db:"currency" json:"currency"`
	IsActive   bool      `db:"is_active" json:"isActive"`
	IsFree     bool      `db:"is_free" json:"isFree"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Purchasable reports whether the package can be bought through checkout.
func (p Package) Purchasable() bool {
	return p.IsActive && !p.IsFree && p.PriceCents > 0
}

type priceKey struct {
	feature  string
	provider string
}
