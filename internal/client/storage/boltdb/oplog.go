package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/models"
)

// logRecord оборачивает операцию порядковым номером вставки.
// Order сохраняет относительный порядок отправки для операций
// с одинаковым sequence (коллизии) и никогда не меняется при
// перенумерации sequence во время repair.
type logRecord struct {
	Op    models.Operation `json:"op"`
	Order uint64           `json:"order"`
}

// AppendOperation adds an operation to the local log (idempotent by ID)
func (s *Storage) AppendOperation(ctx context.Context, op *models.Operation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOplog)
		if bucket == nil {
			return fmt.Errorf("oplog bucket not found")
		}

		key := []byte(op.ID)

		// Идемпотентность по ID: повторная запись не меняет журнал
		if bucket.Get(key) != nil {
			return nil
		}

		order, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate insertion order: %w", err)
		}

		data, err := json.Marshal(logRecord{Op: *op, Order: order})
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}

		return bucket.Put(key, data)
	})

	if err != nil {
		return fmt.Errorf("append transaction failed: %w", err)
	}

	return nil
}

// Operations returns all logged operations ordered by sequence,
// then by insertion order for equal sequences
func (s *Storage) Operations(ctx context.Context) ([]*models.Operation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []logRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOplog)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var record logRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			records = append(records, record)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Op.Sequence != records[j].Op.Sequence {
			return records[i].Op.Sequence < records[j].Op.Sequence
		}
		return records[i].Order < records[j].Order
	})

	ops := make([]*models.Operation, 0, len(records))
	for i := range records {
		op := records[i].Op
		ops = append(ops, &op)
	}

	return ops, nil
}

// ReplaceOperation rewrites a logged operation by ID, preserving its
// insertion order
func (s *Storage) ReplaceOperation(ctx context.Context, op *models.Operation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOplog)
		if bucket == nil {
			return storage.ErrOperationNotFound
		}

		key := []byte(op.ID)
		data := bucket.Get(key)
		if data == nil {
			return storage.ErrOperationNotFound
		}

		var record logRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}

		record.Op = *op

		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}

		return bucket.Put(key, updated)
	})

	if err != nil {
		return err
	}

	return nil
}

// MaxSequence returns the maximum sequence in the local log (0 when empty)
func (s *Storage) MaxSequence(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var maxSequence int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOplog)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var record logRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			if record.Op.Sequence > maxSequence {
				maxSequence = record.Op.Sequence
			}
			return nil
		})
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get max sequence: %w", err)
	}

	return maxSequence, nil
}
