package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrQuotaExceeded        = errors.New("storage quota exceeded")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrDelivery             = errors.New("mail delivery failed")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
