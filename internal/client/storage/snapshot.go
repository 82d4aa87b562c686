package storage

import (
	"context"

	"github.com/iudanet/routesync/internal/models"
)

//go:generate moq -out snapshot_mock.go . SnapshotStorage

// SnapshotStorage defines interface for persisting the materialized snapshot
type SnapshotStorage interface {
	// SaveSnapshot persists the snapshot, replacing the previous one
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error

	// GetSnapshot retrieves the persisted snapshot
	// Returns ErrSnapshotNotFound if no snapshot has been saved yet
	GetSnapshot(ctx context.Context) (*models.Snapshot, error)
}
