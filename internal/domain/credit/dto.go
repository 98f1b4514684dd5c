package credit

import "github.com/mediaforge/mediaforge-api/internal/domain/pricing"

type AddFreePackRequest struct {
	PackageID string `json:"packageId" validate:"required,slug,max=64"`
}

type DeductRequest struct {
	Feature  string `json:"feature" validate:"required,slug,max=64"`
	Provider string `json:"provider" validate:"required,slug,max=64"`
}

// InsufficientCreditsResponse is the 402 body.
type InsufficientCreditsResponse struct {
	Error    string `json:"error"`
	Required int    `json:"required"`
	Balance  int    `json:"balance"`
}

type PackagesResponse struct {
	Packages []PackageResponse `json:"packages"`
}

type PackageResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	PriceCents int    `json:"priceCents"`
	Currency   string `json:"currency"`
	IsFree     bool   `json:"isFree"`
}

func PackageResponseFromEntity(p pricing.Package) PackageResponse {
	return PackageResponse{
		ID:         p.ID,
		Name:       p.Name,
		Credits:    p.Credits,
		PriceCents: p.PriceCents,
		Currency:   p.Currency,
		IsFree:     p.IsFree,
	}
}

type HistoryResponse struct {
	Entries []LedgerEntry `json:"entries"`
}
