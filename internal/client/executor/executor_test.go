package executor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/routesync/internal/client/optimistic"
	"github.com/iudanet/routesync/internal/client/pipeline"
	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/client/storage/boltdb"
	"github.com/iudanet/routesync/internal/models"
)

type stubSubmitter struct {
	err   error
	calls int
}

func (s *stubSubmitter) Submit(ctx context.Context, op *models.Operation) error {
	s.calls++
	return s.err
}

func newTestExecutor(t *testing.T, submitter Submitter) (*Executor, *boltdb.Storage, *optimistic.Manager) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	updates := optimistic.NewManager(slog.Default(), optimistic.Config{MaxRetries: 1})

	return NewExecutor(store, store, store, submitter, updates, slog.Default()), store, updates
}

func addAddressRequest() Request {
	return Request{
		Mutate: func(s *models.Snapshot) error {
			s.Addresses = append(s.Addresses, models.Address{ID: uuid.New().String(), Address: "ул. Ленина, 1"})
			return nil
		},
		Operation: &models.Operation{
			ID:        uuid.New().String(),
			ClientID:  "client-1",
			Type:      models.OpAddressAdd,
			Timestamp: time.Now().UTC(),
			Sequence:  1,
			Payload:   models.AddressAddPayload{},
		},
	}
}

func TestExecute_SuccessPersistsMutation(t *testing.T) {
	submitter := &stubSubmitter{}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	result, err := exec.Execute(ctx, addAddressRequest())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Snapshot.Addresses, 1)
	assert.Equal(t, 1, submitter.calls)

	persisted, err := store.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted.Addresses, 1)
}

func TestExecute_SubmitFailureRollsBack(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("network down")}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	// Начальное состояние с одним адресом
	initial := models.NewSnapshot()
	initial.Addresses = []models.Address{{ID: "a1", Address: "ул. Ленина, 1"}}
	require.NoError(t, store.SaveSnapshot(ctx, initial))

	_, err := exec.Execute(ctx, addAddressRequest())
	require.Error(t, err)

	// Снапшот восстановлен в точности
	persisted, err := store.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Equal(initial))
}

func TestExecute_RollbackDisabled(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("network down")}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	req := addAddressRequest()
	req.DisableRollback = true

	_, err := exec.Execute(ctx, req)
	require.Error(t, err)

	// Мутация осталась применена
	persisted, err := store.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted.Addresses, 1)
}

func TestExecute_MutationErrorDoesNotSubmit(t *testing.T) {
	submitter := &stubSubmitter{}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	req := addAddressRequest()
	req.Mutate = func(s *models.Snapshot) error {
		return errors.New("invalid address")
	}

	_, err := exec.Execute(ctx, req)
	require.Error(t, err)
	assert.Equal(t, 0, submitter.calls)

	// Снапшот не сохранялся
	_, err = store.GetSnapshot(ctx)
	assert.Error(t, err)
}

func TestExecute_OptimisticConfirmOnSuccess(t *testing.T) {
	submitter := &stubSubmitter{}
	exec, _, updates := newTestExecutor(t, submitter)
	ctx := context.Background()

	var confirmed bool
	req := addAddressRequest()
	req.Optimistic = &OptimisticData{
		Type: "address_add",
		Callbacks: optimistic.Callbacks{
			OnConfirmed: func(u *models.OptimisticUpdate) { confirmed = true },
		},
	}

	result, err := exec.Execute(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.UpdateID)
	assert.True(t, confirmed)
	assert.Equal(t, 0, updates.PendingCount())
}

func TestExecute_OptimisticFailOnSubmitError(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("network down")}
	exec, _, updates := newTestExecutor(t, submitter)
	ctx := context.Background()

	var failed bool
	req := addAddressRequest()
	req.Optimistic = &OptimisticData{
		Type: "address_add",
		Callbacks: optimistic.Callbacks{
			OnFailed: func(u *models.OptimisticUpdate, prev *models.Snapshot) { failed = true },
		},
	}

	_, err := exec.Execute(ctx, req)
	require.Error(t, err)
	assert.True(t, failed)
	assert.Equal(t, 0, updates.PendingCount())
}

func TestExecuteBatch_StopsAtFirstFailure(t *testing.T) {
	submitter := &stubSubmitter{}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	failing := addAddressRequest()
	failing.Mutate = func(s *models.Snapshot) error {
		return errors.New("invalid address")
	}

	batch, err := exec.ExecuteBatch(ctx, []Request{
		addAddressRequest(),
		addAddressRequest(),
		failing,
		addAddressRequest(),
	}, BatchOptions{})
	require.Error(t, err)
	assert.Equal(t, 2, batch.Completed)
	assert.Len(t, batch.Results, 2)

	// Выполненные шаги не откатываются
	persisted, err := store.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted.Addresses, 2)
}

func TestExecuteBatch_AllSucceed(t *testing.T) {
	submitter := &stubSubmitter{}
	exec, _, _ := newTestExecutor(t, submitter)

	batch, err := exec.ExecuteBatch(context.Background(), []Request{
		addAddressRequest(),
		addAddressRequest(),
	}, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Completed)
	assert.Equal(t, 2, submitter.calls)
}

func TestExecuteBatch_RollbackBatchRestoresSnapshot(t *testing.T) {
	submitter := &stubSubmitter{}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	initial := models.NewSnapshot()
	initial.Addresses = []models.Address{{ID: "a1", Address: "ул. Ленина, 1"}}
	require.NoError(t, store.SaveSnapshot(ctx, initial))

	failing := addAddressRequest()
	failing.Mutate = func(s *models.Snapshot) error {
		return errors.New("invalid address")
	}

	batch, err := exec.ExecuteBatch(ctx, []Request{
		addAddressRequest(),
		addAddressRequest(),
		failing,
	}, BatchOptions{RollbackBatch: true})
	require.Error(t, err)
	assert.Equal(t, 2, batch.Completed)
	assert.True(t, batch.RolledBack)

	// Снапшот восстановлен к состоянию до первого шага
	persisted, err := store.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Equal(initial))
}

func TestExecute_SuccessAppendsToLocalLog(t *testing.T) {
	submitter := &stubSubmitter{}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	req := addAddressRequest()
	_, err := exec.Execute(ctx, req)
	require.NoError(t, err)

	// Выполненная операция видна локальному журналу (и диагностике)
	ops, err := store.Operations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, req.Operation.ID, ops[0].ID)
}

func TestExecute_TransientFailureDefersToPendingQueue(t *testing.T) {
	submitter := &stubSubmitter{err: &pipeline.TransientSyncError{
		Err:      errors.New("connection refused"),
		OpType:   models.OpAddressAdd,
		Attempts: 4,
	}}
	exec, store, updates := newTestExecutor(t, submitter)
	ctx := context.Background()

	var confirmed bool
	req := addAddressRequest()
	req.Optimistic = &OptimisticData{
		Type: "address_add",
		Callbacks: optimistic.Callbacks{
			OnConfirmed: func(u *models.OptimisticUpdate) { confirmed = true },
		},
	}

	result, err := exec.Execute(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.True(t, confirmed)
	assert.Equal(t, 0, updates.PendingCount())

	// Мутация сохранена, а не откачена
	persisted, err := store.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted.Addresses, 1)

	// Операция ждет следующей синхронизации в очереди pending
	pending, err := store.List(ctx, storage.QueuePending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.Operation.ID, pending[0].ID)

	// И уже видна локальному журналу
	ops, err := store.Operations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
}

func TestExecute_PermanentRejectionStillRollsBack(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("operation rejected: invalid payload")}
	exec, store, _ := newTestExecutor(t, submitter)
	ctx := context.Background()

	initial := models.NewSnapshot()
	initial.Addresses = []models.Address{{ID: "a1", Address: "ул. Ленина, 1"}}
	require.NoError(t, store.SaveSnapshot(ctx, initial))

	_, err := exec.Execute(ctx, addAddressRequest())
	require.Error(t, err)

	// Не-временный сбой не попадает в очередь pending
	count, err := store.Count(ctx, storage.QueuePending)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	persisted, err := store.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Equal(initial))
}
