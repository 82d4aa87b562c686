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

// queueBucket возвращает вложенный bucket очереди, создавая его при необходимости
func queueBucket(tx *bbolt.Tx, queue storage.QueueName, create bool) (*bbolt.Bucket, error) {
	parent := tx.Bucket(bucketQueues)
	if parent == nil {
		return nil, fmt.Errorf("queues bucket not found")
	}

	name := []byte(queue)
	if create {
		bucket, err := parent.CreateBucketIfNotExists(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue bucket %s: %w", queue, err)
		}
		return bucket, nil
	}

	return parent.Bucket(name), nil
}

// Enqueue adds an operation to the queue (idempotent by ID)
func (s *Storage) Enqueue(ctx context.Context, queue storage.QueueName, op *models.Operation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := queueBucket(tx, queue, true)
		if err != nil {
			return err
		}

		key := []byte(op.ID)
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
		return fmt.Errorf("enqueue transaction failed: %w", err)
	}

	return nil
}

// List returns queued operations ordered by sequence
func (s *Storage) List(ctx context.Context, queue storage.QueueName) ([]*models.Operation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []logRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := queueBucket(tx, queue, false)
		if err != nil || bucket == nil {
			return err
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
		return nil, fmt.Errorf("failed to list queue %s: %w", queue, err)
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

// Remove deletes an operation from the queue by ID
func (s *Storage) Remove(ctx context.Context, queue storage.QueueName, id string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := queueBucket(tx, queue, false)
		if err != nil || bucket == nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})

	if err != nil {
		return fmt.Errorf("failed to remove from queue %s: %w", queue, err)
	}

	return nil
}

// Count returns the number of operations in the queue
func (s *Storage) Count(ctx context.Context, queue storage.QueueName) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var count int

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := queueBucket(tx, queue, false)
		if err != nil || bucket == nil {
			return err
		}
		count = bucket.Stats().KeyN
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count queue %s: %w", queue, err)
	}

	return count, nil
}

// Clear removes all operations from the queue, returning how many were dropped
func (s *Storage) Clear(ctx context.Context, queue storage.QueueName) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var dropped int

	err := s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(bucketQueues)
		if parent == nil {
			return fmt.Errorf("queues bucket not found")
		}

		bucket := parent.Bucket([]byte(queue))
		if bucket == nil {
			return nil
		}

		dropped = bucket.Stats().KeyN

		if err := parent.DeleteBucket([]byte(queue)); err != nil {
			return fmt.Errorf("failed to delete queue bucket: %w", err)
		}

		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("clear transaction failed: %w", err)
	}

	return dropped, nil
}
