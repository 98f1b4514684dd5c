package pricing

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Service owns the pricing rows and the in-memory table built from them.
type Service struct {
	repo  Repository
	table *Table
}

// NewService creates a pricing service with an empty table. Call Init before serving.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, table: NewTable(nil, nil)}
}

// Table is injected into components that resolve prices.
func (s *Service) Table() *Table {
	return s.table
}

// Init seeds defaults and loads the table.
func (s *Service) Init(ctx context.Context) error {
	if err := s.InitializeDefaultPricing(ctx); err != nil {
		return err
	}
	if err := s.InitializeDefaultPackages(ctx); err != nil {
		return err
	}
	return s.Load(ctx)
}

// InitializeDefaultPricing inserts missing default feature prices.
func (s *Service) InitializeDefaultPricing(ctx context.Context) error {
	n, err := s.repo.SeedFeaturePricing(ctx, DefaultFeaturePricing())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int("inserted", n).Msg("Seeded default feature pricing")
	}
	return nil
}

// InitializeDefaultPackages inserts missing default packages.
func (s *Service) InitializeDefaultPackages(ctx context.Context) error {
	n, err := s.repo.SeedPackages(ctx, DefaultPackages())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int("inserted", n).Msg("Seeded default credit packages")
	}
	return nil
}

// Load replaces the table with the current database rows.
func (s *Service) Load(ctx context.Context) error {
	prices, err := s.repo.ListFeaturePricing(ctx)
	if err != nil {
		return err
	}
	packages, err := s.repo.ListPackages(ctx)
	if err != nil {
		return err
	}
	s.table.Replace(prices, packages)
	log.Info().Int("prices", len(prices)).Int("packages", len(packages)).Msg("Pricing table loaded")
	return nil
}

// Cost resolves the credit cost of feature on provider.
func (s *Service) Cost(feature, provider string) (int, error) {
	return s.table.Cost(feature, provider)
}

// ListActivePackages returns active packages, credits ascending.
func (s *Service) ListActivePackages() []Package {
	return s.table.ActivePackages()
}

// GetPackage returns a package by id, active or not.
func (s *Service) GetPackage(id string) (Package, error) {
	return s.table.Package(id)
}

// ListFeaturePricing returns all feature prices.
func (s *Service) ListFeaturePricing() []FeaturePrice {
	return s.table.Prices()
}

// UpdateFeaturePrice writes a price and then updates the table.
func (s *Service) UpdateFeaturePrice(ctx context.Context, feature, provider string, credits int) (*FeaturePrice, error) {
	feature = strings.TrimSpace(feature)
	provider = strings.TrimSpace(provider)
	if feature == "" || provider == "" || credits < 0 {
		return nil, ErrInvalidPrice
	}

	p, err := s.repo.UpsertFeaturePrice(ctx, feature, provider, credits)
	if err != nil {
		return nil, err
	}
	s.table.setPrice(*p)

	log.Info().Str("feature", feature).Str("provider", provider).Int("credits", credits).Msg("Feature price updated")
	return p, nil
}

// UpsertPackage writes a package and then updates the table.
func (s *Service) UpsertPackage(ctx context.Context, pkg Package) (*Package, error) {
	pkg.ID = strings.TrimSpace(pkg.ID)
	if pkg.ID == "" || pkg.Credits <= 0 || pkg.PriceCents < 0 {
		return nil, ErrInvalidPrice
	}
	if pkg.IsFree {
		pkg.PriceCents = 0
	} else if pkg.PriceCents == 0 {
		return nil, ErrInvalidPrice
	}
	if pkg.Currency == "" {
		pkg.Currency = "usd"
	}

	p, err := s.repo.UpsertPackage(ctx, pkg)
	if err != nil {
		return nil, err
	}
	s.table.setPackage(*p)

	log.Info().Str("package_id", p.ID).Int("credits", p.Credits).Int("price_cents", p.PriceCents).Msg("Credit package updated")
	return p, nil
}
