package storage

import (
	"context"

	"github.com/iudanet/routesync/pkg/api"
)

// OperationStorage defines interface for the per-user append-only
// operation journal. Сервер хранит операции как непрозрачный JSON:
// payload типизируется только на клиенте.
type OperationStorage interface {
	// AppendOperations appends operations to the user's journal.
	// Операции с уже известным id молча пропускаются (идемпотентность).
	// Returns the number of appended and skipped operations.
	AppendOperations(ctx context.Context, userID string, ops []api.Operation) (accepted, duplicates int, err error)

	// OperationsSince retrieves all operations with sequence greater
	// than since, ordered by sequence then arrival
	OperationsSince(ctx context.Context, userID string, since int64) ([]api.Operation, error)

	// MaxSequence returns the highest sequence in the user's journal,
	// 0 for an empty journal
	MaxSequence(ctx context.Context, userID string) (int64, error)
}
