package referral

import "errors"

var (
	ErrCodeGeneration = errors.New("failed to generate a unique referral code")
	ErrInternal       = errors.New("internal error")

	errCodeTaken = errors.New("referral code taken")
)
