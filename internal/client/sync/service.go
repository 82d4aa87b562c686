package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/routesync/internal/apply"
	httpapi "github.com/iudanet/routesync/internal/client/api"
	"github.com/iudanet/routesync/internal/client/protection"
	"github.com/iudanet/routesync/internal/client/sequence"
	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/merge"
	"github.com/iudanet/routesync/internal/models"
	"github.com/iudanet/routesync/internal/resolve"
	"github.com/iudanet/routesync/pkg/api"
)

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс полной синхронизации клиента
type Service interface {
	// Sync выполняет полную синхронизацию: push локальных операций,
	// затем pull и merge удаленного состояния
	Sync(ctx context.Context, accessToken string) (*SyncResult, error)

	// GetPendingSyncCount возвращает число операций, ожидающих отправки
	GetPendingSyncCount(ctx context.Context) (int, error)
}

// Submitter отправляет одну операцию с повторами
type Submitter interface {
	Submit(ctx context.Context, op *models.Operation) error
}

// blockingFlags - флаги, при которых merge удаленного состояния
// откладывается: локальная критическая секция может быть на полпути
var blockingFlags = []models.FlagName{
	models.FlagImportInProgress,
	models.FlagRestoreInProgress,
	models.FlagCompletionInProgress,
	models.FlagActiveDaySession,
}

// SyncResult содержит итоги одного прохода синхронизации
type SyncResult struct {
	Pushed    int  // отправлено локальных операций
	Pulled    int  // получено удаленных операций
	Merged    int  // применено при материализации удаленного состояния
	Skipped   int  // пропущено (ошибки декодирования/применения)
	Conflicts int  // расхождений, эскалированных на ручной разбор
	Deferred  bool // pull/merge отложен из-за активного защитного флага
}

type service struct {
	apiClient  httpapi.Service
	snapshots  storage.SnapshotStorage
	oplog      storage.OperationLogStorage
	queues     storage.QueueStorage
	metadata   storage.MetadataStorage
	protection *protection.Coordinator
	pipeline   Submitter
	counter    *sequence.Counter
	logger     *slog.Logger
}

// NewService создает сервис синхронизации
func NewService(
	apiClient httpapi.Service,
	snapshots storage.SnapshotStorage,
	oplog storage.OperationLogStorage,
	queues storage.QueueStorage,
	metadata storage.MetadataStorage,
	coordinator *protection.Coordinator,
	pipeline Submitter,
	counter *sequence.Counter,
	logger *slog.Logger,
) Service {
	return &service{
		apiClient:  apiClient,
		snapshots:  snapshots,
		oplog:      oplog,
		queues:     queues,
		metadata:   metadata,
		protection: coordinator,
		pipeline:   pipeline,
		counter:    counter,
		logger:     logger,
	}
}

// Sync выполняет push-then-pull синхронизацию:
// 1. Дренирует локальные очереди (retry, затем pending) через пайплайн.
// 2. Если ни один защитный флаг не активен, вытягивает удаленные
// операции после курсора, материализует удаленное состояние и
// детерминированно сливает его с локальным снапшотом.
// 3. Сохраняет слитый снапшот и продвигает курсор.
func (s *service) Sync(ctx context.Context, accessToken string) (*SyncResult, error) {
	s.logger.Info("starting synchronization")

	result := &SyncResult{}

	if err := s.pushQueues(ctx, accessToken, result); err != nil {
		return result, err
	}

	blocked, err := s.mergeBlocked(ctx)
	if err != nil {
		return result, err
	}
	if blocked {
		result.Deferred = true
		s.logger.Info("pull deferred: protection flag active")
		return result, nil
	}

	if err := s.pullAndMerge(ctx, accessToken, result); err != nil {
		return result, err
	}

	s.logger.Info("synchronization completed",
		slog.Int("pushed", result.Pushed),
		slog.Int("pulled", result.Pulled),
		slog.Int("merged", result.Merged),
		slog.Int("skipped", result.Skipped),
	)

	return result, nil
}

// GetPendingSyncCount возвращает суммарный размер очередей отправки
func (s *service) GetPendingSyncCount(ctx context.Context) (int, error) {
	pending, err := s.queues.Count(ctx, storage.QueuePending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending queue: %w", err)
	}

	retry, err := s.queues.Count(ctx, storage.QueueRetry)
	if err != nil {
		return 0, fmt.Errorf("failed to count retry queue: %w", err)
	}

	return pending + retry, nil
}

// pushQueues дренирует очереди в порядке retry -> pending.
// Порядок per-client сохраняется: при терминальном сбое дренирование
// останавливается, чтобы не отправить более позднюю операцию раньше
// неудачной. Операция из retry после повторного сбоя уходит
// в dead-letter.
func (s *service) pushQueues(ctx context.Context, accessToken string, result *SyncResult) error {
	retryOps, err := s.queues.List(ctx, storage.QueueRetry)
	if err != nil {
		return fmt.Errorf("failed to list retry queue: %w", err)
	}

	for _, op := range retryOps {
		if err := s.pushOne(ctx, accessToken, op); err != nil {
			if moveErr := s.moveOp(ctx, storage.QueueRetry, storage.QueueDeadLetter, op); moveErr != nil {
				return moveErr
			}
			s.logger.Warn("operation moved to dead letter queue",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()),
			)
			return nil
		}

		if err := s.queues.Remove(ctx, storage.QueueRetry, op.ID); err != nil {
			return fmt.Errorf("failed to remove from retry queue: %w", err)
		}
		result.Pushed++
	}

	pendingOps, err := s.queues.List(ctx, storage.QueuePending)
	if err != nil {
		return fmt.Errorf("failed to list pending queue: %w", err)
	}

	for _, op := range pendingOps {
		if err := s.pushOne(ctx, accessToken, op); err != nil {
			if moveErr := s.moveOp(ctx, storage.QueuePending, storage.QueueRetry, op); moveErr != nil {
				return moveErr
			}
			s.logger.Warn("operation deferred to retry queue",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()),
			)
			return nil
		}

		if err := s.queues.Remove(ctx, storage.QueuePending, op.ID); err != nil {
			return fmt.Errorf("failed to remove from pending queue: %w", err)
		}
		result.Pushed++
	}

	return nil
}

func (s *service) pushOne(ctx context.Context, accessToken string, op *models.Operation) error {
	// Одиночная отправка; пайплайн, если задан, добавляет retry/backoff
	submit := func(ctx context.Context, op *models.Operation) error {
		wireOp, err := ToWire(op)
		if err != nil {
			return err
		}
		_, err = s.apiClient.PushOperations(ctx, accessToken, api.PushRequest{Operations: []api.Operation{wireOp}})
		return err
	}
	if s.pipeline != nil {
		submit = s.pipeline.Submit
	}

	if err := submit(ctx, op); err != nil {
		return err
	}

	// Принятая операция фиксируется в локальном журнале
	if err := s.oplog.AppendOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to log pushed operation: %w", err)
	}

	return nil
}

func (s *service) moveOp(ctx context.Context, from, to storage.QueueName, op *models.Operation) error {
	if err := s.queues.Enqueue(ctx, to, op); err != nil {
		return fmt.Errorf("failed to enqueue to %s: %w", to, err)
	}
	if err := s.queues.Remove(ctx, from, op.ID); err != nil {
		return fmt.Errorf("failed to remove from %s: %w", from, err)
	}
	return nil
}

func (s *service) mergeBlocked(ctx context.Context) (bool, error) {
	for _, flag := range blockingFlags {
		active, err := s.protection.IsActive(ctx, flag, 0)
		if err != nil {
			return false, fmt.Errorf("failed to check flag %s: %w", flag, err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) pullAndMerge(ctx context.Context, accessToken string, result *SyncResult) error {
	cursor, err := s.metadata.GetSyncCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync cursor: %w", err)
	}

	resp, err := s.apiClient.PullOperations(ctx, accessToken, cursor)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	result.Pulled = len(resp.Operations)

	// Счетчик клиента поглощает максимум сервера: свежее устройство,
	// начавшее нумерацию с единицы, иначе выдавало бы номера позади
	// курсоров других устройств, и его операции никогда не попали бы
	// в их pull
	if s.counter != nil && resp.MaxSequence > 0 {
		if err := s.counter.Observe(ctx, resp.MaxSequence); err != nil {
			return fmt.Errorf("failed to observe cloud sequence: %w", err)
		}
	}

	local, err := s.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	// Материализуем удаленное состояние: применяем вытянутые операции
	// к копии локального снапшота
	remote := local.Clone()
	for _, wireOp := range resp.Operations {
		op, err := FromWire(wireOp)
		if err != nil {
			s.logger.Warn("failed to decode pulled operation",
				slog.String("operation_id", wireOp.ID),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}

		if err := apply.Apply(remote, op); err != nil {
			s.logger.Warn("failed to apply pulled operation",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}

		result.Merged++

		// Чужие операции тоже попадают в локальный журнал:
		// диагностика сравнивает полную картину
		if err := s.oplog.AppendOperation(ctx, op); err != nil {
			return fmt.Errorf("failed to log pulled operation: %w", err)
		}
	}

	// Merge выполняется под собственным флагом: конкурирующий полный
	// refresh в другой вкладке не затрет результат
	ok, err := s.protection.ExecuteGuarded(ctx, models.FlagMergeInProgress, func(ctx context.Context) error {
		merged := merge.Merge(local, remote)
		result.Conflicts = s.resolveDivergence(local, remote, merged)

		if err := s.snapshots.SaveSnapshot(ctx, merged); err != nil {
			return fmt.Errorf("failed to save merged snapshot: %w", err)
		}

		if resp.MaxSequence > cursor {
			if err := s.metadata.SaveSyncCursor(ctx, resp.MaxSequence); err != nil {
				return fmt.Errorf("failed to advance sync cursor: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}
	if !ok {
		result.Deferred = true
		s.logger.Info("merge deferred: another merge in progress")
	}

	return nil
}

// resolveDivergence прогоняет разошедшиеся сущности через
// автоматический резолвер. Merge выбирает детерминированно по своим
// правилам; резолвер с достаточной уверенностью может вернуть в
// результат локальную версию, а неубедительное расхождение эскалирует
// на ручной разбор, не трогая выбор merge. Возвращает число
// эскалированных конфликтов.
func (s *service) resolveDivergence(local, remote, merged *models.Snapshot) int {
	manual := 0

	localArrangements := make(map[string]models.Arrangement, len(local.Arrangements))
	for _, a := range local.Arrangements {
		localArrangements[a.ID] = a
	}

	for _, incoming := range remote.Arrangements {
		existing, ok := localArrangements[incoming.ID]
		if !ok || arrangementsEqual(existing, incoming) {
			continue
		}

		res := resolve.Resolve(arrangementEntity(existing), arrangementEntity(incoming))
		switch res.Strategy {
		case resolve.PreferExisting:
			setArrangement(merged, existing)
		case resolve.PreferIncoming:
			setArrangement(merged, incoming)
		case resolve.Manual:
			manual++
			s.reportConflict(models.EntityArrangement, incoming.ID, res.Reason)
		}
	}

	localCompletions := make(map[string]models.Completion, len(local.Completions))
	for _, c := range local.Completions {
		localCompletions[c.Key()] = c
	}

	for _, incoming := range remote.Completions {
		existing, ok := localCompletions[incoming.Key()]
		if !ok || completionsEqual(existing, incoming) {
			continue
		}

		res := resolve.Resolve(completionEntity(existing), completionEntity(incoming))
		switch res.Strategy {
		case resolve.PreferExisting:
			setCompletion(merged, existing)
		case resolve.PreferIncoming:
			setCompletion(merged, incoming)
		case resolve.Manual:
			manual++
			s.reportConflict(models.EntityCompletion, incoming.Key(), res.Reason)
		}
	}

	return manual
}

// reportConflict фиксирует конфликт версий. Запись эфемерна: конфликт
// живет в логе до разбора, следующий sync с тем же расхождением
// зафиксирует его снова.
func (s *service) reportConflict(entityType models.EntityType, entityID, reason string) {
	conflict := models.VersionConflict{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  time.Now(),
	}

	s.logger.Warn("version conflict requires manual review",
		slog.String("conflict_id", conflict.ID),
		slog.String("entity_type", string(conflict.EntityType)),
		slog.String("entity_id", conflict.EntityID),
		slog.String("reason", reason),
	)
}

func arrangementsEqual(a, b models.Arrangement) bool {
	return a.Status == b.Status &&
		a.Amount == b.Amount &&
		a.AddressIndex == b.AddressIndex &&
		a.ScheduledDate.Equal(b.ScheduledDate) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func completionsEqual(a, b models.Completion) bool {
	if a.ArrangementID != b.ArrangementID || a.ListVersion != b.ListVersion {
		return false
	}
	if (a.Amount == nil) != (b.Amount == nil) {
		return false
	}
	return a.Amount == nil || *a.Amount == *b.Amount
}

func arrangementEntity(a models.Arrangement) resolve.Entity {
	return resolve.Entity{
		"timestamp": a.UpdatedAt,
		"createdAt": a.CreatedAt,
		"status":    a.Status,
		"amount":    a.Amount,
	}
}

func completionEntity(c models.Completion) resolve.Entity {
	amount := 0.0
	if c.Amount != nil {
		amount = *c.Amount
	}
	return resolve.Entity{
		"timestamp":     c.Timestamp,
		"outcome":       c.Outcome,
		"amount":        amount,
		"arrangementId": c.ArrangementID,
	}
}

func setArrangement(s *models.Snapshot, arr models.Arrangement) {
	for i := range s.Arrangements {
		if s.Arrangements[i].ID == arr.ID {
			s.Arrangements[i] = arr
			return
		}
	}
	s.Arrangements = append(s.Arrangements, arr)
}

func setCompletion(s *models.Snapshot, c models.Completion) {
	key := c.Key()
	for i := range s.Completions {
		if s.Completions[i].Key() == key {
			s.Completions[i] = c
			return
		}
	}
	s.Completions = append(s.Completions, c)
}

func (s *service) loadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := s.snapshots.GetSnapshot(ctx)
	if err != nil {
		if err == storage.ErrSnapshotNotFound {
			return models.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshot, nil
}

// ToWire сериализует операцию в сетевое представление
func ToWire(op *models.Operation) (api.Operation, error) {
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return api.Operation{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return api.Operation{
		ID:        op.ID,
		Timestamp: op.Timestamp.UTC().Format(time.RFC3339Nano),
		ClientID:  op.ClientID,
		Sequence:  op.Sequence,
		Type:      string(op.Type),
		Payload:   payload,
	}, nil
}

// FromWire восстанавливает операцию из сетевого представления
func FromWire(wireOp api.Operation) (*models.Operation, error) {
	ts, err := time.Parse(time.RFC3339Nano, wireOp.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	payload, err := models.DecodePayload(models.OperationType(wireOp.Type), wireOp.Payload)
	if err != nil {
		return nil, err
	}

	return &models.Operation{
		ID:        wireOp.ID,
		Timestamp: ts,
		ClientID:  wireOp.ClientID,
		Sequence:  wireOp.Sequence,
		Type:      models.OperationType(wireOp.Type),
		Payload:   payload,
	}, nil
}
