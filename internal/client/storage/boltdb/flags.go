package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/models"
)

// PutFlag atomically upserts the flag record
func (s *Storage) PutFlag(ctx context.Context, flag models.ProtectionFlag) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("failed to marshal flag: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFlags)
		if bucket == nil {
			return fmt.Errorf("flags bucket not found")
		}
		return bucket.Put([]byte(flag.Flag), data)
	})

	if err != nil {
		return fmt.Errorf("failed to put flag: %w", err)
	}

	return nil
}

// PutFlagIfAbsent atomically sets the flag only if no active flag with
// the same name exists. Проверка и запись происходят в одной Update
// транзакции: два конкурирующих вызова не могут оба установить флаг.
func (s *Storage) PutFlagIfAbsent(ctx context.Context, flag models.ProtectionFlag, now time.Time) (bool, error) {
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}

	var set bool

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFlags)
		if bucket == nil {
			return fmt.Errorf("flags bucket not found")
		}

		key := []byte(flag.Flag)

		if data := bucket.Get(key); data != nil {
			var existing models.ProtectionFlag
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("failed to unmarshal existing flag: %w", err)
			}

			// Активный флаг блокирует установку; истекший заменяется
			// в этой же транзакции
			if !existing.Expired(now) {
				set = false
				return nil
			}
		}

		data, err := json.Marshal(flag)
		if err != nil {
			return fmt.Errorf("failed to marshal flag: %w", err)
		}

		if err := bucket.Put(key, data); err != nil {
			return fmt.Errorf("failed to put flag: %w", err)
		}

		set = true
		return nil
	})

	if err != nil {
		return false, err
	}

	return set, nil
}

// GetFlag atomically reads the flag, lazily deleting it when expired.
// Ленивое удаление выполняется в той же транзакции что и чтение,
// чтобы два читателя не могли одновременно наблюдать "истек" и
// по отдельности удалять или продлевать чужой флаг.
// grace > 0 откладывает удаление: истекшая запись моложе grace
// (от момента установки) сохраняется и возвращается как есть.
func (s *Storage) GetFlag(ctx context.Context, name models.FlagName, now time.Time, grace time.Duration) (*models.ProtectionFlag, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var flag *models.ProtectionFlag

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFlags)
		if bucket == nil {
			return storage.ErrFlagNotFound
		}

		key := []byte(name)
		data := bucket.Get(key)
		if data == nil {
			return storage.ErrFlagNotFound
		}

		var record models.ProtectionFlag
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal flag: %w", err)
		}

		if record.Expired(now) {
			if grace > 0 && now.Sub(time.UnixMilli(record.Timestamp)) < grace {
				flag = &record
				return nil
			}
			if err := bucket.Delete(key); err != nil {
				return fmt.Errorf("failed to delete expired flag: %w", err)
			}
			return storage.ErrFlagNotFound
		}

		flag = &record
		return nil
	})

	if err != nil {
		return nil, err
	}

	return flag, nil
}

// DeleteFlag removes the flag record. Deleting an absent flag is not an error.
func (s *Storage) DeleteFlag(ctx context.Context, name models.FlagName) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFlags)
		if bucket == nil {
			return fmt.Errorf("flags bucket not found")
		}
		return bucket.Delete([]byte(name))
	})

	if err != nil {
		return fmt.Errorf("failed to delete flag: %w", err)
	}

	return nil
}
