package generation

import "errors"

var (
	ErrNotFound    = errors.New("generation not found")
	ErrEmptyPrompt = errors.New("prompt is required")
	ErrInternal    = errors.New("internal error")
)
