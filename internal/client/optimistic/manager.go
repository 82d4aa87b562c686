package optimistic

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/routesync/internal/models"
)

// Ошибки менеджера optimistic updates
var (
	// ErrTooManyPending - превышен лимит одновременных pending updates
	ErrTooManyPending = errors.New("too many pending optimistic updates")
	// ErrUpdateNotFound - update с данным id не отслеживается
	ErrUpdateNotFound = errors.New("optimistic update not found")
)

const (
	defaultMaxPending = 100
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
)

// Callbacks уведомляют вызывающего о терминальных исходах update.
// Колбэки вызываются вне мьютекса менеджера.
type Callbacks struct {
	// OnConfirmed вызывается при подтверждении update сервером
	OnConfirmed func(update *models.OptimisticUpdate)
	// OnFailed вызывается при терминальном сбое; previous - снапшот
	// для отката UI
	OnFailed func(update *models.OptimisticUpdate, previous *models.Snapshot)
	// OnConflict вызывается при расхождении expected/actual состояния
	OnConflict func(update *models.OptimisticUpdate, actual *models.Snapshot)
}

// tracked объединяет update с его таймером.
// order - порядок применения, для детерминированного RollbackAll.
type tracked struct {
	update    *models.OptimisticUpdate
	timer     *time.Timer
	callbacks Callbacks
	order     uint64
}

// Manager отслеживает локальные мутации, примененные до подтверждения
// сервером. Каждый update живет как state machine
// pending -> confirmed | failed | conflicted; переходы выполняются
// под одним мьютексом, колбэки вызываются после освобождения.
type Manager struct {
	updates    map[string]*tracked
	logger     *slog.Logger
	timeout    time.Duration
	maxPending int
	maxRetries int
	nextOrder  uint64
	mu         sync.Mutex
}

// Config задает лимиты менеджера
type Config struct {
	// Timeout - время до автоматического failUpdate (по умолчанию 30s)
	Timeout time.Duration
	// MaxPending - лимит одновременных pending updates (по умолчанию 100)
	MaxPending int
	// MaxRetries - количество повторов до терминального failed (по умолчанию 3)
	MaxRetries int
}

// NewManager создает менеджер optimistic updates
func NewManager(logger *slog.Logger, cfg Config) *Manager {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxPending == 0 {
		cfg.MaxPending = defaultMaxPending
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	return &Manager{
		updates:    make(map[string]*tracked),
		logger:     logger,
		timeout:    cfg.Timeout,
		maxPending: cfg.MaxPending,
		maxRetries: cfg.MaxRetries,
	}
}

// ApplyUpdate регистрирует новую локальную мутацию и возвращает ее id.
// previous и next копируются глубоко: менеджер никогда не разделяет
// память с живым снапшотом. При превышении лимита pending запрос
// отклоняется, а не ставится в очередь.
func (m *Manager) ApplyUpdate(updateType string, previous, next *models.Snapshot, callbacks Callbacks) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.updates) >= m.maxPending {
		return "", fmt.Errorf("%w: limit %d", ErrTooManyPending, m.maxPending)
	}

	id := uuid.New().String()

	update := &models.OptimisticUpdate{
		ID:            id,
		ChangeID:      uuid.New().String(),
		Type:          updateType,
		Timestamp:     time.Now().UTC(),
		Status:        models.UpdatePending,
		PreviousState: previous.Clone(),
		ExpectedState: next.Clone(),
		MaxRetries:    m.maxRetries,
	}

	m.nextOrder++
	entry := &tracked{
		update:    update,
		callbacks: callbacks,
		order:     m.nextOrder,
	}
	entry.timer = time.AfterFunc(m.timeout, func() {
		m.handleTimeout(id)
	})

	m.updates[id] = entry

	m.logger.Debug("optimistic update applied",
		slog.String("update_id", id),
		slog.String("type", updateType),
	)

	return id, nil
}

// ConfirmUpdate подтверждает update. Если передан actual и он
// структурно расходится с expected, update переходит в conflicted
// и вызывается conflict callback вместо подтверждения.
func (m *Manager) ConfirmUpdate(id string, actual *models.Snapshot) error {
	m.mu.Lock()

	entry, ok := m.updates[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUpdateNotFound, id)
	}

	entry.timer.Stop()
	delete(m.updates, id)

	if actual != nil && !entry.update.ExpectedState.Equal(actual) {
		if err := entry.update.Transition(models.UpdateConflicted); err != nil {
			m.mu.Unlock()
			return err
		}
		entry.update.ActualState = actual.Clone()
		m.mu.Unlock()

		m.logger.Warn("optimistic update conflicted",
			slog.String("update_id", id),
			slog.String("type", entry.update.Type),
		)

		if entry.callbacks.OnConflict != nil {
			entry.callbacks.OnConflict(entry.update, entry.update.ActualState)
		}
		return nil
	}

	if err := entry.update.Transition(models.UpdateConfirmed); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.logger.Debug("optimistic update confirmed", slog.String("update_id", id))

	if entry.callbacks.OnConfirmed != nil {
		entry.callbacks.OnConfirmed(entry.update)
	}
	return nil
}

// FailUpdate фиксирует сбой update. Пока попытки не исчерпаны, update
// остается pending с перезапущенным таймером; иначе переходит в failed
// и failure callback получает PreviousState для отката.
func (m *Manager) FailUpdate(id string, cause error) error {
	m.mu.Lock()

	entry, ok := m.updates[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUpdateNotFound, id)
	}

	entry.update.RetryCount++
	if cause != nil {
		entry.update.Err = cause.Error()
	}

	if entry.update.RetryCount < entry.update.MaxRetries {
		// Повтор: остаемся pending, таймер перезапускается
		entry.timer.Stop()
		entry.timer = time.AfterFunc(m.timeout, func() {
			m.handleTimeout(id)
		})
		retryCount := entry.update.RetryCount
		m.mu.Unlock()

		m.logger.Debug("optimistic update retrying",
			slog.String("update_id", id),
			slog.Int("retry_count", retryCount),
		)
		return nil
	}

	entry.timer.Stop()
	delete(m.updates, id)

	if err := entry.update.Transition(models.UpdateFailed); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.logger.Warn("optimistic update failed",
		slog.String("update_id", id),
		slog.String("type", entry.update.Type),
		slog.Int("retry_count", entry.update.RetryCount),
	)

	if entry.callbacks.OnFailed != nil {
		entry.callbacks.OnFailed(entry.update, entry.update.PreviousState)
	}
	return nil
}

// handleTimeout переводит зависший update по пути FailUpdate.
// Отмена таймера всегда означает переход в failed, никогда
// тихое исчезновение.
func (m *Manager) handleTimeout(id string) {
	if err := m.FailUpdate(id, errors.New("optimistic update timed out")); err != nil {
		if !errors.Is(err, ErrUpdateNotFound) {
			m.logger.Error("failed to time out optimistic update",
				slog.String("update_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// PendingCount возвращает число отслеживаемых pending updates
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

// Get возвращает отслеживаемый update по id
func (m *Manager) Get(id string) (*models.OptimisticUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.updates[id]
	if !ok {
		return nil, false
	}
	return entry.update, true
}

// RollbackAll атомарно отменяет таймеры всех pending updates и
// возвращает их PreviousState от самого свежего к самому старому:
// откат раскручивает мутации в порядке, обратном применению.
// В отличие от FailUpdate колбэки OnFailed не вызываются - массовое
// восстановление после сбоя синхронизации выполняет сам вызывающий.
func (m *Manager) RollbackAll() []*models.Snapshot {
	m.mu.Lock()

	entries := make([]*tracked, 0, len(m.updates))
	for _, entry := range m.updates {
		entry.timer.Stop()
		entries = append(entries, entry)
	}
	m.updates = make(map[string]*tracked)
	m.mu.Unlock()

	// Вызывающему отдаем previousState от свежих updates к старым
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].order > entries[j].order
	})

	states := make([]*models.Snapshot, 0, len(entries))
	for _, entry := range entries {
		_ = entry.update.Transition(models.UpdateFailed)
		states = append(states, entry.update.PreviousState)
	}

	if len(states) > 0 {
		m.logger.Warn("rolled back all pending optimistic updates", slog.Int("count", len(states)))
	}

	return states
}
