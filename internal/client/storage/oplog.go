package storage

import (
	"context"

	"github.com/iudanet/routesync/internal/models"
)

//go:generate moq -out oplog_mock.go . OperationLogStorage

// OperationLogStorage defines interface for the local append-only log of
// operations produced by this client. Used by sync (push) and diagnostics.
type OperationLogStorage interface {
	// AppendOperation adds an operation to the local log (idempotent by ID)
	AppendOperation(ctx context.Context, op *models.Operation) error

	// Operations returns all logged operations ordered by sequence, then
	// by insertion order for equal sequences
	Operations(ctx context.Context) ([]*models.Operation, error)

	// ReplaceOperation rewrites a logged operation by ID.
	// Used by sequence repair: the operation keeps its identity, only
	// the sequence number changes.
	// Returns ErrOperationNotFound if no operation with this ID exists.
	ReplaceOperation(ctx context.Context, op *models.Operation) error

	// MaxSequence returns the maximum sequence in the local log (0 when empty)
	MaxSequence(ctx context.Context) (int64, error)
}

// QueueName определяет локальную очередь операций
type QueueName string

const (
	// QueuePending - операции, ожидающие первой отправки
	QueuePending QueueName = "pending"
	// QueueRetry - операции, ожидающие повторной отправки после сбоя
	QueueRetry QueueName = "retry"
	// QueueDeadLetter - операции, исчерпавшие попытки отправки
	QueueDeadLetter QueueName = "dead_letter"
)

//go:generate moq -out queue_mock.go . QueueStorage

// QueueStorage defines interface for the local submission queues
type QueueStorage interface {
	// Enqueue adds an operation to the queue (idempotent by ID)
	Enqueue(ctx context.Context, queue QueueName, op *models.Operation) error

	// List returns queued operations ordered by sequence
	List(ctx context.Context, queue QueueName) ([]*models.Operation, error)

	// Remove deletes an operation from the queue by ID.
	// Removing an absent operation is not an error.
	Remove(ctx context.Context, queue QueueName, id string) error

	// Count returns the number of operations in the queue
	Count(ctx context.Context, queue QueueName) (int, error)

	// Clear removes all operations from the queue, returning how many were dropped
	Clear(ctx context.Context, queue QueueName) (int, error)
}
