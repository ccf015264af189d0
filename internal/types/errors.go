package types

import "errors"

// ErrorCategory groups domain errors by how callers should react:
// correct the input, accept the state, stop re-entering, or re-authenticate.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "VALIDATION"
	CategoryState         ErrorCategory = "STATE"
	CategoryConcurrency   ErrorCategory = "CONCURRENCY"
	CategoryAuthorization ErrorCategory = "AUTHORIZATION"
)

// Error is the domain error type shared by the ledger, registry and
// compliance components. Two errors match under errors.Is when their
// codes are equal, so wrapped instances still compare against the
// package sentinels below.
type Error struct {
	Category ErrorCategory
	Code     string
	Message  string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(category ErrorCategory, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

var (
	// Validation errors: bad input, rejected before any mutation.
	ErrInvalidAmount         = newError(CategoryValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidDuration       = newError(CategoryValidation, "INVALID_DURATION", "duration must be positive")
	ErrInvalidMaxLoss        = newError(CategoryValidation, "INVALID_MAX_LOSS", "max loss percent must not exceed 100")
	ErrInvalidCommitmentType = newError(CategoryValidation, "INVALID_COMMITMENT_TYPE", "commitment type must be one of safe, balanced, aggressive")
	ErrBatchTooLarge         = newError(CategoryValidation, "BATCH_TOO_LARGE", "batch size exceeds configured maximum")

	// State errors: the entity exists in a state that forbids the operation.
	ErrCommitmentNotFound = newError(CategoryState, "COMMITMENT_NOT_FOUND", "commitment not found")
	ErrTokenNotFound      = newError(CategoryState, "TOKEN_NOT_FOUND", "token not found")
	ErrNotOwner           = newError(CategoryState, "NOT_OWNER", "caller is not the owner")
	ErrNotExpired         = newError(CategoryState, "NOT_EXPIRED", "commitment not expired")
	ErrAlreadySettled     = newError(CategoryState, "ALREADY_SETTLED", "already settled")
	ErrTerminalState      = newError(CategoryState, "TERMINAL_STATE", "no transition out of a terminal state")

	// Concurrency errors.
	ErrReentrancyDetected = newError(CategoryConcurrency, "REENTRANCY_DETECTED", "reentrant call detected")

	// Authorization errors, surfaced verbatim, never swallowed.
	ErrUnauthorized = newError(CategoryAuthorization, "UNAUTHORIZED", "caller is not authorized as principal")
)

func categoryOf(err error) (ErrorCategory, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Category, true
}

func IsValidationError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryValidation
}

func IsStateError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryState
}

func IsConcurrencyError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryConcurrency
}

func IsAuthorizationError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryAuthorization
}
