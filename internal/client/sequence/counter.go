package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/iudanet/routesync/internal/client/storage"
)

// Counter представляет монотонный счетчик sequence клиента.
// Каждая локальная операция получает следующий номер; счетчик
// переживает перезапуск через MetadataStorage и никогда не убывает.
type Counter struct {
	store   storage.MetadataStorage
	current int64
	loaded  bool
	mu      sync.Mutex
}

// NewCounter создает счетчик поверх хранилища метаданных.
// Значение загружается лениво при первом обращении.
func NewCounter(store storage.MetadataStorage) *Counter {
	return &Counter{store: store}
}

// Next увеличивает счетчик и возвращает новое значение.
// Новое значение сохраняется до возврата: после сбоя клиент
// не переиспользует выданный sequence.
func (c *Counter) Next(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx); err != nil {
		return 0, err
	}

	next := c.current + 1
	if err := c.store.SaveSequence(ctx, next); err != nil {
		return 0, fmt.Errorf("failed to persist sequence: %w", err)
	}

	c.current = next
	return next, nil
}

// Observe обновляет счетчик по наблюдаемому sequence.
// counter = max(local, observed): после repair или pull счетчик
// не выдаст номер, уже занятый в журнале.
func (c *Counter) Observe(ctx context.Context, observed int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx); err != nil {
		return err
	}

	if observed <= c.current {
		return nil
	}

	if err := c.store.SaveSequence(ctx, observed); err != nil {
		return fmt.Errorf("failed to persist sequence: %w", err)
	}

	c.current = observed
	return nil
}

// Current возвращает текущее значение счетчика без изменения
func (c *Counter) Current(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx); err != nil {
		return 0, err
	}

	return c.current, nil
}

func (c *Counter) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	value, err := c.store.GetSequence(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sequence: %w", err)
	}

	c.current = value
	c.loaded = true
	return nil
}
