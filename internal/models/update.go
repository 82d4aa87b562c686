package models

import (
	"fmt"
	"time"
)

// UpdateStatus представляет статус optimistic update.
// Допустимые переходы: pending -> confirmed | failed | conflicted.
// Все статусы кроме pending терминальные.
type UpdateStatus string

const (
	UpdatePending    UpdateStatus = "pending"
	UpdateConfirmed  UpdateStatus = "confirmed"
	UpdateFailed     UpdateStatus = "failed"
	UpdateConflicted UpdateStatus = "conflicted"
)

// Terminal возвращает true для терминального статуса
func (s UpdateStatus) Terminal() bool {
	return s == UpdateConfirmed || s == UpdateFailed || s == UpdateConflicted
}

// OptimisticUpdate представляет локальную мутацию, примененную до
// подтверждения сервером. PreviousState хранится как глубокая копия
// исключительно для rollback и не разделяет память с живым состоянием.
type OptimisticUpdate struct {
	Timestamp     time.Time    `json:"timestamp"`
	PreviousState *Snapshot    `json:"previous_state"`
	ExpectedState *Snapshot    `json:"expected_state"`
	ActualState   *Snapshot    `json:"actual_state,omitempty"`
	ID            string       `json:"id"`
	ChangeID      string       `json:"change_id"`
	Type          string       `json:"type"`
	Status        UpdateStatus `json:"status"`
	Err           string       `json:"error,omitempty"`
	RetryCount    int          `json:"retry_count"`
	MaxRetries    int          `json:"max_retries"`
}

// Transition переводит update в новый статус.
// Возвращает ошибку при попытке перехода из терминального статуса
// или в недопустимый статус.
func (u *OptimisticUpdate) Transition(to UpdateStatus) error {
	if u.Status.Terminal() {
		return fmt.Errorf("update %s already terminal (%s), cannot transition to %s", u.ID, u.Status, to)
	}
	if !to.Terminal() {
		return fmt.Errorf("update %s: invalid transition %s -> %s", u.ID, u.Status, to)
	}
	u.Status = to
	return nil
}
