package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveSyncCursor saves the max remote sequence applied by the last sync
	SaveSyncCursor(ctx context.Context, sequence int64) error

	// GetSyncCursor retrieves the sync cursor
	// Returns 0 if no sync has been performed yet
	GetSyncCursor(ctx context.Context) (int64, error)

	// GetClientID returns the stable client identifier for this device,
	// generating and persisting a new one on first call
	GetClientID(ctx context.Context) (string, error)

	// SaveSequence persists the client's monotonic sequence counter
	SaveSequence(ctx context.Context, sequence int64) error

	// GetSequence retrieves the persisted sequence counter (0 when unset)
	GetSequence(ctx context.Context) (int64, error)
}
