package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/routesync/internal/client/optimistic"
	"github.com/iudanet/routesync/internal/client/pipeline"
	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/models"
)

// Submitter определяет отправку операции на сервер.
// Реализуется pipeline.Pipeline.
type Submitter interface {
	Submit(ctx context.Context, op *models.Operation) error
}

// OptimisticData запрашивает регистрацию optimistic update для операции
type OptimisticData struct {
	// Type - человекочитаемый тип мутации для трекинга
	Type string
	// Callbacks передаются менеджеру optimistic updates
	Callbacks optimistic.Callbacks
}

// Request описывает одну атомарную пару "мутация + отправка"
type Request struct {
	// Mutate применяет локальную мутацию к рабочей копии снапшота
	Mutate func(snapshot *models.Snapshot) error
	// Operation - операция журнала, соответствующая мутации
	Operation *models.Operation
	// Optimistic запрашивает optimistic-трекинг (опционально)
	Optimistic *OptimisticData
	// DisableRollback отключает восстановление прежнего снапшота
	// при сбое отправки. По умолчанию rollback включен.
	DisableRollback bool
}

// Result несет итог успешного выполнения
type Result struct {
	// Snapshot - состояние после мутации
	Snapshot *models.Snapshot
	// UpdateID - id зарегистрированного optimistic update (пустой без
	// optimistic данных)
	UpdateID string
	// Deferred - операция не дошла до сервера и поставлена в очередь
	// pending до следующей синхронизации. Мутация сохранена.
	Deferred bool
}

// BatchOptions управляет пакетным выполнением
type BatchOptions struct {
	// RollbackBatch восстанавливает снапшот, каким он был до первого
	// шага, если любой шаг пакета завершился сбоем. Операции уже
	// отправленных шагов не инвертируются, операции отложенных шагов
	// остаются в очереди pending.
	RollbackBatch bool
}

// BatchResult несет итог пакетного выполнения
type BatchResult struct {
	// Results - результаты успешно выполненных шагов
	Results []Result
	// Completed - число успешно выполненных шагов
	Completed int
	// RolledBack - пакет завершился сбоем и снапшот восстановлен
	// к состоянию до первого шага
	RolledBack bool
}

// Executor связывает локальную мутацию снапшота с отправкой операции:
// либо обе стороны успешны, либо операция откладывается в очередь
// pending (сервер недоступен), либо мутация откатывается. Состояние
// никогда не остается в виде "мутация применена, операция не
// отправлена, не отложена и не откачена".
type Executor struct {
	snapshots storage.SnapshotStorage
	oplog     storage.OperationLogStorage
	queues    storage.QueueStorage
	pipeline  Submitter
	updates   *optimistic.Manager
	logger    *slog.Logger
}

// NewExecutor создает executor. Менеджер optimistic updates опционален:
// без него запросы с Optimistic данными выполняются без трекинга.
// Без queues offline-отложка недоступна: терминальный сбой отправки
// откатывает мутацию.
func NewExecutor(
	snapshots storage.SnapshotStorage,
	oplog storage.OperationLogStorage,
	queues storage.QueueStorage,
	pipeline Submitter,
	updates *optimistic.Manager,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		snapshots: snapshots,
		oplog:     oplog,
		queues:    queues,
		pipeline:  pipeline,
		updates:   updates,
		logger:    logger,
	}
}

// Execute выполняет одну атомарную пару "мутация + отправка".
// Последовательность: загрузить снапшот, захватить копию для rollback,
// применить мутацию, сохранить, зарегистрировать optimistic update,
// отправить операцию; при сбое отправки восстановить захваченную
// копию в точности и вернуть ошибку.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Mutate == nil {
		return nil, errors.New("request has no mutation")
	}
	if req.Operation == nil {
		return nil, errors.New("request has no operation")
	}

	current, err := e.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	// Прежний снапшот захватывается глубокой копией до мутации
	prior := current.Clone()

	working := current.Clone()
	if err := req.Mutate(working); err != nil {
		return nil, fmt.Errorf("mutation failed: %w", err)
	}

	if err := e.snapshots.SaveSnapshot(ctx, working); err != nil {
		return nil, fmt.Errorf("failed to persist mutated snapshot: %w", err)
	}

	var updateID string
	if req.Optimistic != nil && e.updates != nil {
		updateID, err = e.updates.ApplyUpdate(req.Optimistic.Type, prior, working, req.Optimistic.Callbacks)
		if err != nil {
			// Лимит pending не должен терять мутацию: выполняем без трекинга
			e.logger.Warn("optimistic tracking unavailable",
				slog.String("operation_id", req.Operation.ID),
				slog.String("error", err.Error()),
			)
			updateID = ""
		}
	}

	if err := e.pipeline.Submit(ctx, req.Operation); err != nil {
		// Терминальный временный сбой (сервер недоступен после всех
		// повторов) не теряет мутацию: операция уходит в очередь
		// pending и будет отправлена следующей синхронизацией
		var transient *pipeline.TransientSyncError
		if errors.As(err, &transient) && e.queues != nil {
			qErr := e.queues.Enqueue(ctx, storage.QueuePending, req.Operation)
			if qErr == nil {
				e.appendToLog(ctx, req.Operation)
				e.confirmUpdate(updateID)

				e.logger.Info("operation deferred until next sync",
					slog.String("operation_id", req.Operation.ID),
					slog.String("type", string(req.Operation.Type)),
				)

				return &Result{Snapshot: working, UpdateID: updateID, Deferred: true}, nil
			}

			// Отложить не удалось: дальше обычный путь отката
			e.logger.Error("failed to enqueue deferred operation",
				slog.String("operation_id", req.Operation.ID),
				slog.String("error", qErr.Error()),
			)
		}

		if updateID != "" {
			if failErr := e.updates.FailUpdate(updateID, err); failErr != nil {
				e.logger.Error("failed to fail optimistic update",
					slog.String("update_id", updateID),
					slog.String("error", failErr.Error()),
				)
			}
		}

		if !req.DisableRollback {
			if rbErr := e.snapshots.SaveSnapshot(ctx, prior); rbErr != nil {
				return nil, fmt.Errorf("submit failed and rollback failed: %w (rollback: %v)", err, rbErr)
			}
			e.logger.Warn("mutation rolled back after submit failure",
				slog.String("operation_id", req.Operation.ID),
				slog.String("type", string(req.Operation.Type)),
			)
		}

		return nil, fmt.Errorf("submit failed: %w", err)
	}

	e.appendToLog(ctx, req.Operation)
	e.confirmUpdate(updateID)

	return &Result{Snapshot: working, UpdateID: updateID}, nil
}

// appendToLog фиксирует выполненную операцию в локальном журнале.
// Сбой журнала не отменяет выполнение: операция уже на сервере или
// в очереди, журнал догонит ее при следующем pull.
func (e *Executor) appendToLog(ctx context.Context, op *models.Operation) {
	if e.oplog == nil {
		return
	}
	if err := e.oplog.AppendOperation(ctx, op); err != nil {
		e.logger.Error("failed to append operation to local log",
			slog.String("operation_id", op.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Executor) confirmUpdate(updateID string) {
	if updateID == "" {
		return
	}
	if err := e.updates.ConfirmUpdate(updateID, nil); err != nil {
		e.logger.Error("failed to confirm optimistic update",
			slog.String("update_id", updateID),
			slog.String("error", err.Error()),
		)
	}
}

// ExecuteBatch выполняет запросы последовательно, останавливаясь на
// первом сбое. По умолчанию уже успешные шаги не откатываются: при
// сбое посреди пакета логируется диагностируемое предупреждение, а
// частичный результат возвращается вызывающему. RollbackBatch меняет
// это: снапшот восстанавливается к состоянию до первого шага. Уже
// отправленные операции в обоих режимах не инвертируются.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []Request, opts BatchOptions) (*BatchResult, error) {
	batch := &BatchResult{Results: make([]Result, 0, len(reqs))}

	var preBatch *models.Snapshot
	if opts.RollbackBatch {
		current, err := e.loadSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		preBatch = current.Clone()
	}

	for i, req := range reqs {
		result, err := e.Execute(ctx, req)
		if err != nil {
			if opts.RollbackBatch && i > 0 {
				if rbErr := e.snapshots.SaveSnapshot(ctx, preBatch); rbErr != nil {
					return batch, fmt.Errorf("batch step %d failed and batch rollback failed: %w (rollback: %v)", i, err, rbErr)
				}
				batch.RolledBack = true
				e.logger.Warn("batch rolled back to pre-batch snapshot",
					slog.Int("completed", i),
					slog.Int("total", len(reqs)),
					slog.String("failed_operation_id", req.Operation.ID),
				)
			} else if i > 0 {
				e.logger.Warn("batch failed mid-way, earlier steps not reverted",
					slog.Int("completed", i),
					slog.Int("total", len(reqs)),
					slog.String("failed_operation_id", req.Operation.ID),
				)
			}
			return batch, fmt.Errorf("batch step %d failed: %w", i, err)
		}

		batch.Results = append(batch.Results, *result)
		batch.Completed++
	}

	return batch, nil
}

// loadSnapshot возвращает текущий снапшот, начиная с пустого
// при первом обращении
func (e *Executor) loadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := e.snapshots.GetSnapshot(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			return models.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshot, nil
}
