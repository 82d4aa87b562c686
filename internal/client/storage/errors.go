package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrSnapshotNotFound indicates that no snapshot has been persisted yet
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrFlagNotFound indicates that protection flag is not set (or expired)
	ErrFlagNotFound = errors.New("protection flag not found")

	// ErrOperationNotFound indicates that operation was not found in the log
	ErrOperationNotFound = errors.New("operation not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
