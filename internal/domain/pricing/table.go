package pricing

import (
	"sort"
	"sync"
)

// Table is the in-memory pricing snapshot. Reads are concurrent; writes happen
// only at load time and from admin updates after the database write succeeded.
type Table struct {
	mu       sync.RWMutex
	prices   map[priceKey]FeaturePrice
	packages map[string]Package
}

// NewTable builds a table from the given rows.
func NewTable(prices []FeaturePrice, packages []Package) *Table {
	t := &Table{}
	t.Replace(prices, packages)
	return t
}

// Replace swaps the whole snapshot.
func (t *Table) Replace(prices []FeaturePrice, packages []Package) {
	pm := make(map[priceKey]FeaturePrice, len(prices))
	for _, p := range prices {
		pm[priceKey{p.Feature, p.Provider}] = p
	}
	km := make(map[string]Package, len(packages))
	for _, p := range packages {
		km[p.ID] = p
	}

	t.mu.Lock()
	t.prices = pm
	t.packages = km
	t.mu.Unlock()
}

// Cost returns the credit cost of feature on provider.
func (t *Table) Cost(feature, provider string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.prices[priceKey{feature, provider}]
	if !ok {
		return 0, ErrPricingNotFound
	}
	return p.Credits, nil
}

// Prices returns all feature prices ordered by feature then provider.
func (t *Table) Prices() []FeaturePrice {
	t.mu.RLock()
	out := make([]FeaturePrice, 0, len(t.prices))
	for _, p := range t.prices {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Feature != out[j].Feature {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

// Package returns the package with id.
func (t *Table) Package(id string) (Package, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.packages[id]
	if !ok {
		return Package{}, ErrPackageNotFound
	}
	return p, nil
}

// ActivePackages returns active packages ordered by credit amount ascending.
func (t *Table) ActivePackages() []Package {
	t.mu.RLock()
	out := make([]Package, 0, len(t.packages))
	for _, p := range t.packages {
		if p.IsActive {
			out = append(out, p)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Credits != out[j].Credits {
			return out[i].Credits < out[j].Credits
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// allPackages includes inactive packages, ordered like ActivePackages.
func (t *Table) allPackages() []Package {
	t.mu.RLock()
	out := make([]Package, 0, len(t.packages))
	for _, p := range t.packages {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Credits != out[j].Credits {
			return out[i].Credits < out[j].Credits
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *Table) setPrice(p FeaturePrice) {
	t.mu.Lock()
	t.prices[priceKey{p.Feature, p.Provider}] = p
	t.mu.Unlock()
}

func (t *Table) setPackage(p Package) {
	t.mu.Lock()
	t.packages[p.ID] = p
	t.mu.Unlock()
}
