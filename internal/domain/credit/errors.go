package credit

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCredits is returned when user doesn't have enough credits
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	ErrInvalidReason = errors.New("invalid ledger reason")

	// ErrAlreadyClaimed is returned when a free package was already granted to the user
	ErrAlreadyClaimed = errors.New("package already claimed")

	ErrInternal = errors.New("internal error")
)

// InsufficientCreditsError carries the cost and the balance at the time of the attempt.
type InsufficientCreditsError struct {
	Required int
	Balance  int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, balance %d", e.Required, e.Balance)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
