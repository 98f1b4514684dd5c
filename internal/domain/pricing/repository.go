package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	SeedFeaturePricing(ctx context.Context, prices []FeaturePrice) (int, error)
	SeedPackages(ctx context.Context, packages []Package) (int, error)
	ListFeaturePricing(ctx context.Context) ([]FeaturePrice, error)
	ListPackages(ctx context.Context) ([]Package, error)
	GetPackage(ctx context.Context, id string) (*Package, error)
	UpsertFeaturePrice(ctx context.Context, feature, provider string, credits int) (*FeaturePrice, error)
	UpsertPackage(ctx context.Context, pkg Package) (*Package, error)
}

type PricingRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// SeedFeaturePricing inserts rows whose (feature, provider) is absent and returns how many were inserted.
func (r *PricingRepository) SeedFeaturePricing(ctx context.Context, prices []FeaturePrice) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	inserted := 0
	for _, p := range prices {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO feature_pricing (id, feature, provider, credits)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (feature, provider) DO NOTHING
		`, uuid.New(), p.Feature, p.Provider, p.Credits)
		if err != nil {
			return 0, fmt.Errorf("%w: seed feature pricing: %v", ErrInternal, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return inserted, nil
}

// SeedPackages inserts packages whose id is absent and returns how many were inserted.
func (r *PricingRepository) SeedPackages(ctx context.Context, packages []Package) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	inserted := 0
	for _, p := range packages {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO credit_packages (id, name, credits, price_cents, currency, is_active, is_free)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.Credits, p.PriceCents, p.Currency, p.IsActive, p.IsFree)
		if err != nil {
			return 0, fmt.Errorf("%w: seed packages: %v", ErrInternal, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return inserted, nil
}

func (r *PricingRepository) ListFeaturePricing(ctx context.Context) ([]FeaturePrice, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	prices := make([]FeaturePrice, 0)
	err := r.db.SelectContext(ctx, &prices, `
		SELECT id, feature, provider, credits, created_at, updated_at
		FROM feature_pricing
		ORDER BY feature, provider
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list feature pricing", ErrInternal)
	}
	return prices, nil
}

func (r *PricingRepository) ListPackages(ctx context.Context) ([]Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	packages := make([]Package, 0)
	err := r.db.SelectContext(ctx, &packages, `
		SELECT id, name, credits, price_cents, currency, is_active, is_free, created_at, updated_at
		FROM credit_packages
		ORDER BY credits ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list packages", ErrInternal)
	}
	return packages, nil
}

func (r *PricingRepository) GetPackage(ctx context.Context, id string) (*Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Package
	err := r.db.GetContext(ctx, &p, `
		SELECT id, name, credits, price_cents, currency, is_active, is_free, created_at, updated_at
		FROM credit_packages
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("%w: get package", ErrInternal)
	}
	return &p, nil
}

func (r *PricingRepository) UpsertFeaturePrice(ctx context.Context, feature, provider string, credits int) (*FeaturePrice, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p FeaturePrice
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO feature_pricing (id, feature, provider, credits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (feature, provider) DO UPDATE
		SET credits = EXCLUDED.credits, updated_at = NOW()
		RETURNING id, feature, provider, credits, created_at, updated_at
	`, uuid.New(), feature, provider, credits)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert feature price", ErrInternal)
	}
	return &p, nil
}

func (r *PricingRepository) UpsertPackage(ctx context.Context, pkg Package) (*Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Package
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO credit_packages (id, name, credits, price_cents, currency, is_active, is_free)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    credits = EXCLUDED.credits,
		    price_cents = EXCLUDED.price_cents,
		    currency = EXCLUDED.currency,
		    is_active = EXCLUDED.is_active,
		    is_free = EXCLUDED.is_free,
		    updated_at = NOW()
		RETURNING id, name, credits, price_cents, currency, is_active, is_free, created_at, updated_at
	`, pkg.ID, pkg.Name, pkg.Credits, pkg.PriceCents, pkg.Currency, pkg.IsActive, pkg.IsFree)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert package", ErrInternal)
	}
	return &p, nil
}
