package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/routesync/internal/models"
	"github.com/iudanet/routesync/pkg/api"
)

func makeWireOp(id string, seq int64) api.Operation {
	return api.Operation{
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ClientID:  "client-1",
		Sequence:  seq,
		Type:      "completion_create",
		Payload:   json.RawMessage(`{"completion":{"timestamp":"2026-08-30T10:00:00Z","index":0,"outcome":"done","list_version":1}}`),
	}
}

func seedUser(t *testing.T, store *Storage) *models.User {
	t.Helper()
	user := makeUser(fmt.Sprintf("worker_%d", time.Now().UnixNano()))
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestAppendOperations_Empty(t *testing.T) {
	store := newTestStorage(t)
	user := seedUser(t, store)

	accepted, duplicates, err := store.AppendOperations(context.Background(), user.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, accepted)
	assert.Zero(t, duplicates)
}

func TestAppendOperations_Idempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := seedUser(t, store)

	ops := []api.Operation{makeWireOp("op-1", 1), makeWireOp("op-2", 2)}

	accepted, duplicates, err := store.AppendOperations(ctx, user.ID, ops)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Zero(t, duplicates)

	// повторный push того же batch плюс одна новая операция
	ops = append(ops, makeWireOp("op-3", 3))
	accepted, duplicates, err = store.AppendOperations(ctx, user.ID, ops)
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 2, duplicates)
}

func TestOperationsSince(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := seedUser(t, store)

	_, _, err := store.AppendOperations(ctx, user.ID, []api.Operation{
		makeWireOp("op-3", 3),
		makeWireOp("op-1", 1),
		makeWireOp("op-2", 2),
	})
	require.NoError(t, err)

	ops, err := store.OperationsSince(ctx, user.ID, 1)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "op-2", ops[0].ID)
	assert.Equal(t, "op-3", ops[1].ID)

	// payload возвращается байт-в-байт
	assert.JSONEq(t, string(makeWireOp("x", 0).Payload), string(ops[0].Payload))
}

func TestOperationsSince_IsolatedPerUser(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	alice := seedUser(t, store)
	bob := seedUser(t, store)

	_, _, err := store.AppendOperations(ctx, alice.ID, []api.Operation{makeWireOp("op-1", 1)})
	require.NoError(t, err)

	ops, err := store.OperationsSince(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestMaxSequence(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := seedUser(t, store)

	max, err := store.MaxSequence(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, max)

	_, _, err = store.AppendOperations(ctx, user.ID, []api.Operation{
		makeWireOp("op-1", 5),
		makeWireOp("op-2", 2),
	})
	require.NoError(t, err)

	max, err = store.MaxSequence(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), max)
}

func TestSameSequenceDifferentClients(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := seedUser(t, store)

	first := makeWireOp("op-a", 1)
	second := makeWireOp("op-b", 1)
	second.ClientID = "client-2"

	accepted, _, err := store.AppendOperations(ctx, user.ID, []api.Operation{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	ops, err := store.OperationsSince(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	// порядок прибытия сохраняется внутри слота sequence
	assert.Equal(t, "op-a", ops[0].ID)
	assert.Equal(t, "op-b", ops[1].ID)
}
