// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrBufferFull        = errors.New("entry buffer is full")
	ErrUnsupportedFormat = errors.New("unsupported ntuple format")
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")
	ErrEmptyLayout       = errors.New("layout has no fields")
	ErrWriterClosed      = errors.New("storage writer is closed")
)

// ValidationError represents an ntuple consistency failure found by the checker.
type ValidationError struct {
	Entry  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: entry=%d field=%s: %s",
		e.Entry, e.Field, e.Reason)
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Location  string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s location=%s: %v",
		e.Operation, e.Location, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// Only errors implementing Retryable can be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	// Transfers are retryable, local file handling is not.
	return e.Operation == "upload" || e.Operation == "download"
}
