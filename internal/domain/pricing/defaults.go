package pricing

// DefaultFeaturePricing is seeded on first start.
func DefaultFeaturePricing() []FeaturePrice {
	return []FeaturePrice{
		{Feature: FeatureVideoGeneration, Provider: "veo2", Credits: 15},
		{Feature: FeatureVideoGeneration, Provider: "kling", Credits: 10},
		{Feature: FeatureVideoGeneration, Provider: "runway", Credits: 12},
		{Feature: FeatureImageGeneration, Provider: "flux", Credits: 2},
		{Feature: FeatureImageGeneration, Provider: "dalle", Credits: 3},
		{Feature: FeatureImageGeneration, Provider: "stable-diffusion", Credits: 1},
		{Feature: FeatureMapAnimation, Provider: "remotion", Credits: 5},
		{Feature: FeatureMapAnimation, Provider: "shotstack", Credits: 8},
	}
}

// DefaultPackages is seeded on first start.
func DefaultPackages() []Package {
	return []Package{
		{ID: "free", Name: "Free Pack", Credits: 10, PriceCents: 0, Currency: "usd", IsActive: true, IsFree: true},
		{ID: "starter", Name: "Starter", Credits: 50, PriceCents: 999, Currency: "usd", IsActive: true},
		{ID: "pro", Name: "Pro", Credits: 200, PriceCents: 2999, Currency: "usd", IsActive: true},
		{ID: "business", Name: "Business", Credits: 500, PriceCents: 5999, Currency: "usd", IsActive: true},
	}
}
