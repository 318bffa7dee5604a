// Package common defines shared constants and sentinel errors used across
// the astrobatch server and worker. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors: rejected synchronously, nothing mutated.
	ErrInvalidImageType = errors.New("invalid image type")
	ErrEmptyFileList    = errors.New("empty file list")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum file count")
	ErrMissingField     = errors.New("missing required field")

	// Conflict errors.
	ErrActiveBatchExists = errors.New("an active batch already exists for this target")

	// State-machine errors.
	ErrInvalidStatusTransition = errors.New("invalid batch status transition")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
