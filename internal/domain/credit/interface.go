package credit

import "github.com/mediaforge/mediaforge-api/internal/domain/pricing"

// PriceResolver resolves the credit cost of a feature run.
// *pricing.Table satisfies it.
type PriceResolver interface {
	Cost(feature, provider string) (int, error)
}

// PackageCatalog exposes the credit packages. *pricing.Service satisfies it.
type PackageCatalog interface {
	ListActivePackages() []pricing.Package
	GetPackage(id string) (pricing.Package, error)
}

