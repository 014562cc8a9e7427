package errors

import (
	"errors"
	"fmt"
)

// Domain error types for the peer transfer application
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrAlreadyProcessed     = errors.New("transaction has already been processed")
	ErrInvalidAmount        = errors.New("amount must be greater than 0")
	ErrInvalidAccountID     = errors.New("invalid account ID")
	ErrSameAccount          = errors.New("sender and recipient accounts cannot be the same")
	ErrInvalidCredentials   = errors.New("invalid userID or password")
	ErrInvalidToken         = errors.New("token invalid or expired")
	ErrMissingToken         = errors.New("not authorized, token missing")
	ErrForbidden            = errors.New("access denied")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// TransactionError wraps a storage failure. It is the only retryable kind.
type TransactionError struct {
	Operation string
	Cause     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error during '%s': %v", e.Operation, e.Cause)
}

func (e *TransactionError) Unwrap() error {
	return e.Cause
}

func NewTransactionError(operation string, cause error) error {
	return &TransactionError{
		Operation: operation,
		Cause:     cause,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrTransactionNotFound)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsValidationError reports malformed input, including the sentinel
// validation errors that carry no field.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return true
	}
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrInvalidAccountID)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAccountAlreadyExists)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrMissingToken)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// Kind is the machine-readable error class returned to API clients.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindAlreadyProcessed  Kind = "already_processed"
	KindAlreadyExists     Kind = "already_exists"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal_error"
)

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return KindValidation
	case IsNotFound(err):
		return KindNotFound
	case IsInsufficientBalance(err):
		return KindInsufficientFunds
	case IsAlreadyProcessed(err):
		return KindAlreadyProcessed
	case IsAlreadyExists(err):
		return KindAlreadyExists
	case IsUnauthorized(err):
		return KindUnauthorized
	case IsForbidden(err):
		return KindForbidden
	default:
		return KindInternal
	}
}
