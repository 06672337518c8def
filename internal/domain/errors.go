package domain

import "github.com/cockroachdb/errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrAlreadyCanceled   = errors.New("booking already canceled")
	ErrInvalidTransition = errors.New("invalid status transition")
)
