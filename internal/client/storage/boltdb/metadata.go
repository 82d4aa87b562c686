package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/routesync/internal/client/storage"
)

const (
	keySyncCursor = "sync_cursor"
	keyClientID   = "client_id"
	keySequence   = "sequence"
)

// SaveSyncCursor saves the max remote sequence applied by the last sync
func (s *Storage) SaveSyncCursor(ctx context.Context, sequence int64) error {
	return s.putInt64(keySyncCursor, sequence)
}

// GetSyncCursor retrieves the sync cursor (0 if no sync has been performed yet)
func (s *Storage) GetSyncCursor(ctx context.Context) (int64, error) {
	return s.getInt64(keySyncCursor)
}

// SaveSequence persists the client's monotonic sequence counter
func (s *Storage) SaveSequence(ctx context.Context, sequence int64) error {
	return s.putInt64(keySequence, sequence)
}

// GetSequence retrieves the persisted sequence counter (0 when unset)
func (s *Storage) GetSequence(ctx context.Context) (int64, error) {
	return s.getInt64(keySequence)
}

// GetClientID returns the stable client identifier for this device.
// Генерация и сохранение нового ID происходят в одной Update транзакции:
// два конкурирующих первых вызова получат один и тот же ID.
func (s *Storage) GetClientID(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	var clientID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if data := bucket.Get([]byte(keyClientID)); data != nil {
			clientID = string(data)
			return nil
		}

		clientID = uuid.New().String()
		if err := bucket.Put([]byte(keyClientID), []byte(clientID)); err != nil {
			return fmt.Errorf("failed to save client id: %w", err)
		}

		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to get client id: %w", err)
	}

	return clientID, nil
}

func (s *Storage) putInt64(key string, value int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(value))

		return bucket.Put([]byte(key), buf)
	})

	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	return nil
}

func (s *Storage) getInt64(key string) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var value int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			value = 0
			return nil
		}

		value = int64(binary.BigEndian.Uint64(data))
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return value, nil
}
