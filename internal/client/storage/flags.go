package storage

import (
	"context"
	"time"

	"github.com/iudanet/routesync/internal/models"
)

//go:generate moq -out flags_mock.go . FlagStorage

// FlagStorage defines interface for durable protection flags.
// Каждый метод - одна атомарная транзакция: два конкурирующих вызова
// из разных контекстов исполнения никогда не наблюдают и не изменяют
// флаг по частям (никаких отдельных read-check-write шагов).
type FlagStorage interface {
	// PutFlag atomically upserts the flag record
	PutFlag(ctx context.Context, flag models.ProtectionFlag) error

	// PutFlagIfAbsent atomically sets the flag only if no active flag
	// with the same name exists. An expired record counts as absent and
	// is replaced in the same transaction.
	// Returns true if the flag was set by this call.
	PutFlagIfAbsent(ctx context.Context, flag models.ProtectionFlag, now time.Time) (bool, error)

	// GetFlag atomically reads the flag and lazily deletes it in the
	// same transaction when it has expired. An expired record younger
	// than grace (measured from its set timestamp) is kept and returned
	// as-is so callers can honor a minimum protection window.
	// Returns ErrFlagNotFound if the flag is absent or was just deleted.
	GetFlag(ctx context.Context, name models.FlagName, now time.Time, grace time.Duration) (*models.ProtectionFlag, error)

	// DeleteFlag removes the flag record. Deleting an absent flag is not an error.
	DeleteFlag(ctx context.Context, name models.FlagName) error
}
