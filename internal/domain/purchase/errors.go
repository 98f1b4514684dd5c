package purchase

import (
	"errors"

	"github.com/mediaforge/mediaforge-api/internal/pkg/payment"
)

var (
	ErrInvalidPackage   = errors.New("package is not purchasable")
	ErrNotFound         = errors.New("purchase not found")
	ErrInvalidStatus    = errors.New("purchase is not pending")
	ErrNotConfigured    = payment.ErrNotConfigured
	ErrInvalidSignature = payment.ErrInvalidSignature
	ErrInternal         = errors.New("internal error")
)
