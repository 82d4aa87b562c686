package diag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/routesync/internal/client/sequence"
	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/models"
)

// RemoteSequencer отдает максимальный sequence журнала пользователя
// на сервере
type RemoteSequencer interface {
	MaxRemoteSequence(ctx context.Context) (int64, error)
}

// RemoteSequencerFunc адаптирует функцию к RemoteSequencer
type RemoteSequencerFunc func(ctx context.Context) (int64, error)

func (f RemoteSequencerFunc) MaxRemoteSequence(ctx context.Context) (int64, error) {
	return f(ctx)
}

// Submitter повторно отправляет перенумерованные операции
type Submitter interface {
	Submit(ctx context.Context, op *models.Operation) error
}

// Collision описывает один конфликтующий слот sequence:
// две и более операции ОДНОГО клиента с одинаковым номером.
// Одинаковые номера у разных клиентов коллизией не являются:
// нумерация ведется per-client.
type Collision struct {
	ClientID     string   `json:"client_id"`
	OperationIDs []string `json:"operation_ids"`
	Sequence     int64    `json:"sequence"`
}

// Diagnostics представляет снимок состояния синхронизации
type Diagnostics struct {
	UserID             string      `json:"user_id"`
	ClientID           string      `json:"client_id"`
	Recommendation     string      `json:"recommendation"`
	SequenceCollisions []Collision `json:"sequence_collisions"`
	LocalMaxSequence   int64       `json:"local_max_sequence"`
	CloudMaxSequence   int64       `json:"cloud_max_sequence"`
	Gap                int64       `json:"gap"`
	UnsyncedCount      int         `json:"unsynced_count"`
	RetryQueueCount    int         `json:"retry_queue_count"`
	DeadLetterCount    int         `json:"dead_letter_count"`
}

// RepairResult представляет итог перенумерации коллизий
type RepairResult struct {
	Errors     []string `json:"errors"`
	Reassigned int      `json:"reassigned"`
}

// Service диагностирует и чинит структурные повреждения журнала:
// коллизии sequence обнаруживаются сравнением локального журнала
// с удаленным и устраняются перенумерацией, никогда удалением.
type Service struct {
	oplog    storage.OperationLogStorage
	queues   storage.QueueStorage
	remote   RemoteSequencer
	pipeline Submitter
	counter  *sequence.Counter
	logger   *slog.Logger
}

// NewService создает сервис диагностики. Счетчик опционален: с ним
// repair поглощает выданные при перенумерации номера, чтобы следующая
// локальная операция не заняла уже использованный.
func NewService(
	oplog storage.OperationLogStorage,
	queues storage.QueueStorage,
	remote RemoteSequencer,
	pipeline Submitter,
	counter *sequence.Counter,
	logger *slog.Logger,
) *Service {
	return &Service{
		oplog:    oplog,
		queues:   queues,
		remote:   remote,
		pipeline: pipeline,
		counter:  counter,
		logger:   logger,
	}
}

// Diagnose собирает снимок состояния синхронизации пользователя и
// устройства: максимальные sequence локально и в облаке, разрыв между
// ними, размеры очередей и список коллизий sequence.
func (s *Service) Diagnose(ctx context.Context, userID, clientID string) (*Diagnostics, error) {
	localMax, err := s.oplog.MaxSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get local max sequence: %w", err)
	}

	cloudMax, err := s.remote.MaxRemoteSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cloud max sequence: %w", err)
	}

	ops, err := s.oplog.Operations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local operations: %w", err)
	}

	var unsynced int
	for _, op := range ops {
		if op.Sequence > cloudMax {
			unsynced++
		}
	}

	retryCount, err := s.queues.Count(ctx, storage.QueueRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to count retry queue: %w", err)
	}

	deadCount, err := s.queues.Count(ctx, storage.QueueDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("failed to count dead letter queue: %w", err)
	}

	collisions := findCollisions(ops)

	d := &Diagnostics{
		UserID:             userID,
		ClientID:           clientID,
		LocalMaxSequence:   localMax,
		CloudMaxSequence:   cloudMax,
		Gap:                cloudMax - localMax,
		UnsyncedCount:      unsynced,
		RetryQueueCount:    retryCount,
		DeadLetterCount:    deadCount,
		SequenceCollisions: collisions,
	}
	d.Recommendation = recommend(d)

	return d, nil
}

// RepairSequenceCollisions перенумеровывает операции ЭТОГО клиента,
// кроме первой в каждом конфликтующем слоте, выдавая свежие номера
// после текущего максимума. Вытянутые операции других клиентов журнал
// не трогает: их нумерацию чинят их собственные устройства.
// Относительный порядок отправки сохраняется; операции никогда не
// удаляются, только перенумеровываются. Повторный запуск на уже
// починенном журнале ничего не меняет.
func (s *Service) RepairSequenceCollisions(ctx context.Context, clientID string) (*RepairResult, error) {
	ops, err := s.oplog.Operations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local operations: %w", err)
	}

	result := &RepairResult{Errors: []string{}}

	localMax, err := s.oplog.MaxSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get local max sequence: %w", err)
	}

	cloudMax, err := s.remote.MaxRemoteSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cloud max sequence: %w", err)
	}

	// Свежие номера назначаются после максимума обеих сторон,
	// чтобы не породить новую коллизию с еще не вытянутыми операциями
	nextSequence := localMax
	if cloudMax > nextSequence {
		nextSequence = cloudMax
	}

	// Operations() отсортирован по (sequence, порядок вставки):
	// первая операция слота остается, остальные перенумеровываются
	// в порядке отправки. Слоты считаются в пределах clientID.
	seen := make(map[int64]bool)

	for _, op := range ops {
		if op.ClientID != clientID {
			continue
		}
		if !seen[op.Sequence] {
			seen[op.Sequence] = true
			continue
		}

		nextSequence++

		renumbered := *op
		renumbered.Sequence = nextSequence

		if err := s.oplog.ReplaceOperation(ctx, &renumbered); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("replace %s: %v", op.ID, err))
			continue
		}

		if err := s.pipeline.Submit(ctx, &renumbered); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("resubmit %s: %v", op.ID, err))
			continue
		}

		result.Reassigned++

		s.logger.Info("sequence collision repaired",
			slog.String("operation_id", op.ID),
			slog.Int64("old_sequence", op.Sequence),
			slog.Int64("new_sequence", nextSequence),
		)
	}

	// Счетчик поглощает выданные номера вместе с максимумом облака
	if s.counter != nil {
		if err := s.counter.Observe(ctx, nextSequence); err != nil {
			return result, fmt.Errorf("failed to absorb repaired sequences: %w", err)
		}
	}

	return result, nil
}

// ClearFailed необратимо удаляет все операции из dead-letter очереди.
// Возвращает число удаленных операций.
func (s *Service) ClearFailed(ctx context.Context) (int, error) {
	dropped, err := s.queues.Clear(ctx, storage.QueueDeadLetter)
	if err != nil {
		return 0, fmt.Errorf("failed to clear dead letter queue: %w", err)
	}

	if dropped > 0 {
		s.logger.Warn("dead letter queue cleared", slog.Int("dropped", dropped))
	}

	return dropped, nil
}

// collisionKey адресует слот нумерации одного клиента
type collisionKey struct {
	clientID string
	sequence int64
}

// findCollisions возвращает слоты (client, sequence), занятые более
// чем одной операцией. ops должны быть отсортированы по sequence.
func findCollisions(ops []*models.Operation) []Collision {
	byKey := make(map[collisionKey][]string)
	for _, op := range ops {
		key := collisionKey{clientID: op.ClientID, sequence: op.Sequence}
		byKey[key] = append(byKey[key], op.ID)
	}

	collisions := []Collision{}
	for _, op := range ops {
		key := collisionKey{clientID: op.ClientID, sequence: op.Sequence}
		ids := byKey[key]
		if len(ids) < 2 {
			continue
		}
		collisions = append(collisions, Collision{ClientID: op.ClientID, Sequence: op.Sequence, OperationIDs: ids})
		delete(byKey, key)
	}

	return collisions
}

func recommend(d *Diagnostics) string {
	switch {
	case len(d.SequenceCollisions) > 0:
		return "sequence collisions detected: run repair"
	case d.DeadLetterCount > 0:
		return "dead letter queue is not empty: inspect failed operations"
	case d.UnsyncedCount > 0 || d.RetryQueueCount > 0:
		return "unsynced operations present: run sync"
	case d.Gap > 0:
		return "cloud is ahead of local log: run sync to pull remote operations"
	default:
		return "sync state is healthy"
	}
}
