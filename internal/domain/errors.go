package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrValidation        = errors.New("validation failed")
	ErrSourceUnavailable = errors.New("signal source unavailable")
	ErrStorage           = errors.New("storage failure")
	ErrLockHeld          = errors.New("lock already held")

	// Target failures are both not-found class so callers can treat any
	// unresolvable target uniformly while still telling them apart.
	ErrTargetNotFound = fmt.Errorf("target %w", ErrNotFound)
	ErrTargetInvalid  = fmt.Errorf("target invalid: %w", ErrNotFound)
)
