package pricing

import "errors"

var (
	ErrPricingNotFound = errors.New("pricing not found for feature and provider")
	ErrPackageNotFound = errors.New("package not found")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInternal        = errors.New("internal error")
)
