package db

import "errors"

// DuplicateKeyError is an error type for duplicate key errors
type DuplicateKeyError struct {
	Key     string
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return e.Message
}

func IsDuplicateKeyError(err error) bool {
	var target *DuplicateKeyError
	return errors.As(err, &target)
}

// NotFoundError is an error type for missing documents
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
