// Package record реализует фиксацию рабочих событий на устройстве:
// открытие и закрытие рабочей сессии дня, завершения адресов, ручное
// добавление и импорт адресов. Каждое событие строится как операция
// журнала, проходит валидацию и выполняется атомарно через executor.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/routesync/internal/apply"
	"github.com/iudanet/routesync/internal/client/executor"
	"github.com/iudanet/routesync/internal/client/protection"
	"github.com/iudanet/routesync/internal/client/sequence"
	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/models"
	"github.com/iudanet/routesync/internal/validation"
)

// Ошибки сервиса записи
var (
	// ErrGuardBusy - защитный флаг уже активен, операция не начата
	ErrGuardBusy = errors.New("another protected operation is in progress")

	// ErrSessionActive - рабочая сессия дня уже открыта или записана
	ErrSessionActive = errors.New("day session is already active")

	// ErrNoOpenSession - нет открытой рабочей сессии
	ErrNoOpenSession = errors.New("no open day session")

	// ErrNothingToImport - в импорте нет ни одного адреса
	ErrNothingToImport = errors.New("no addresses to import")
)

// ClientIDFunc возвращает идентификатор клиента устройства
type ClientIDFunc func(ctx context.Context) (string, error)

// Service фиксирует рабочие события. Каждая операция получает
// следующий sequence из счетчика клиента, проходит валидацию и
// применяется к снапшоту той же функцией, что материализует
// вытянутые операции: локальное применение и применение на других
// устройствах всегда совпадают.
type Service struct {
	executor   *executor.Executor
	snapshots  storage.SnapshotStorage
	counter    *sequence.Counter
	protection *protection.Coordinator
	clientID   ClientIDFunc
	logger     *slog.Logger
	now        func() time.Time
}

// NewService создает сервис записи рабочих событий
func NewService(
	exec *executor.Executor,
	snapshots storage.SnapshotStorage,
	counter *sequence.Counter,
	coordinator *protection.Coordinator,
	clientID ClientIDFunc,
	logger *slog.Logger,
) *Service {
	return &Service{
		executor:   exec,
		snapshots:  snapshots,
		counter:    counter,
		protection: coordinator,
		clientID:   clientID,
		logger:     logger,
		now:        time.Now,
	}
}

// Current возвращает текущий снапшот устройства, пустой при первом
// обращении
func (s *Service) Current(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := s.snapshots.GetSnapshot(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			return models.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshot, nil
}

// StartDay открывает рабочую сессию текущего дня. Сессия помечается
// бессрочным флагом active_day_session: пока она открыта, merge
// удаленного состояния откладывается.
func (s *Service) StartDay(ctx context.Context) (*models.DaySession, error) {
	snapshot, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	date := now.Format("2006-01-02")
	for _, session := range snapshot.DaySessions {
		if session.Date == date {
			return nil, ErrSessionActive
		}
	}

	acquired, err := s.protection.Set(ctx, models.FlagActiveDaySession)
	if err != nil {
		return nil, fmt.Errorf("failed to set day session flag: %w", err)
	}
	if !acquired {
		return nil, ErrSessionActive
	}

	op, err := s.buildOperation(ctx, models.SessionStartPayload{Date: date, Start: now})
	if err != nil {
		s.clearFlag(ctx, models.FlagActiveDaySession)
		return nil, err
	}

	if _, err := s.execute(ctx, op, "session_start"); err != nil {
		s.clearFlag(ctx, models.FlagActiveDaySession)
		return nil, err
	}

	return &models.DaySession{Date: date, Start: now}, nil
}

// EndDay закрывает открытую рабочую сессию и снимает флаг
// active_day_session
func (s *Service) EndDay(ctx context.Context) (*models.DaySession, error) {
	snapshot, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	var open *models.DaySession
	for i := range snapshot.DaySessions {
		if snapshot.DaySessions[i].End == nil {
			open = &snapshot.DaySessions[i]
			break
		}
	}
	if open == nil {
		return nil, ErrNoOpenSession
	}

	now := s.now()
	duration := now.Sub(open.Start)
	if duration < 0 {
		duration = 0
	}

	op, err := s.buildOperation(ctx, models.SessionEndPayload{
		Date:            open.Date,
		End:             now,
		DurationSeconds: int64(duration.Seconds()),
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.execute(ctx, op, "session_end"); err != nil {
		return nil, err
	}

	s.clearFlag(ctx, models.FlagActiveDaySession)

	end := now
	return &models.DaySession{
		Date:            open.Date,
		Start:           open.Start,
		End:             &end,
		DurationSeconds: int64(duration.Seconds()),
	}, nil
}

// RecordCompletion фиксирует завершение работы по адресу под флагом
// completion_in_progress: конкурирующая запись завершения из другой
// вкладки не начнется, пока эта не закончится.
func (s *Service) RecordCompletion(ctx context.Context, index int, outcome string, amount *float64) (*models.Completion, error) {
	var completion *models.Completion

	ok, err := s.protection.ExecuteGuarded(ctx, models.FlagCompletionInProgress, func(ctx context.Context) error {
		snapshot, err := s.Current(ctx)
		if err != nil {
			return err
		}

		if len(snapshot.Addresses) > 0 && index >= len(snapshot.Addresses) {
			return fmt.Errorf("address index %d out of range (%d addresses)", index, len(snapshot.Addresses))
		}

		c := models.Completion{
			Timestamp:   s.now(),
			Index:       index,
			Outcome:     outcome,
			Amount:      amount,
			ListVersion: snapshot.CurrentListVersion,
		}

		op, err := s.buildOperation(ctx, models.CompletionCreatePayload{Completion: c})
		if err != nil {
			return err
		}

		if _, err := s.execute(ctx, op, "completion_create"); err != nil {
			return err
		}

		completion = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGuardBusy
	}

	return completion, nil
}

// AddAddress добавляет один адрес вручную, не меняя версию списка
func (s *Service) AddAddress(ctx context.Context, address string) (*models.Address, error) {
	snapshot, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	addr := models.Address{
		ID:      uuid.New().String(),
		Address: strings.TrimSpace(address),
	}

	op, err := s.buildOperation(ctx, models.AddressAddPayload{
		Address:     addr,
		ListVersion: snapshot.CurrentListVersion,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.execute(ctx, op, "address_add"); err != nil {
		return nil, err
	}

	return &addr, nil
}

// ImportAddresses заменяет список адресов новым с повышением версии.
// Импорт идет под флагом import_in_progress: merge не затрет
// наполовину записанный список.
func (s *Service) ImportAddresses(ctx context.Context, addresses []string) (int, error) {
	addrs := make([]models.Address, 0, len(addresses))
	for _, raw := range addresses {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		addrs = append(addrs, models.Address{ID: uuid.New().String(), Address: trimmed})
	}
	if len(addrs) == 0 {
		return 0, ErrNothingToImport
	}

	imported := 0
	ok, err := s.protection.ExecuteGuarded(ctx, models.FlagImportInProgress, func(ctx context.Context) error {
		snapshot, err := s.Current(ctx)
		if err != nil {
			return err
		}

		op, err := s.buildOperation(ctx, models.AddressBulkImportPayload{
			Addresses:      addrs,
			NewListVersion: snapshot.CurrentListVersion + 1,
		})
		if err != nil {
			return err
		}

		if _, err := s.execute(ctx, op, "address_bulk_import"); err != nil {
			return err
		}

		imported = len(addrs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrGuardBusy
	}

	return imported, nil
}

// buildOperation строит операцию журнала: uuid, идентификатор клиента,
// следующий sequence, текущий timestamp. Операция валидируется до
// выполнения: невалидная отбрасывается без сетевого вызова. Выданный
// sequence при этом не переиспользуется.
func (s *Service) buildOperation(ctx context.Context, payload models.OperationPayload) (*models.Operation, error) {
	clientID, err := s.clientID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve client id: %w", err)
	}

	seq, err := s.counter.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to assign sequence: %w", err)
	}

	op := &models.Operation{
		ID:        uuid.New().String(),
		Timestamp: s.now(),
		ClientID:  clientID,
		Sequence:  seq,
		Type:      payload.Kind(),
		Payload:   payload,
	}

	if err := validation.ValidateOperation(op, s.now()); err != nil {
		return nil, err
	}

	return op, nil
}

// execute применяет операцию к снапшоту и отправляет ее через executor.
// Мутация - та же функция применения, что используется для вытянутых
// операций.
func (s *Service) execute(ctx context.Context, op *models.Operation, kind string) (*models.Snapshot, error) {
	result, err := s.executor.Execute(ctx, executor.Request{
		Mutate: func(snapshot *models.Snapshot) error {
			return apply.Apply(snapshot, op)
		},
		Operation:  op,
		Optimistic: &executor.OptimisticData{Type: kind},
	})
	if err != nil {
		return nil, err
	}
	return result.Snapshot, nil
}

func (s *Service) clearFlag(ctx context.Context, name models.FlagName) {
	if err := s.protection.Clear(ctx, name); err != nil {
		s.logger.Warn("failed to clear protection flag",
			slog.String("flag", string(name)),
			slog.String("error", err.Error()),
		)
	}
}
