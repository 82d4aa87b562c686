package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/routesync/internal/models"
	"github.com/iudanet/routesync/internal/server/storage/sqlite"
	"github.com/iudanet/routesync/pkg/api"
)

func newOperationsHandler(t *testing.T) (*OperationsHandler, string) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "worker_1",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateUser(context.Background(), user))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOperationsHandler(logger, store), user.ID
}

func wireOp(id string, seq int64) api.Operation {
	return api.Operation{
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ClientID:  "client-1",
		Sequence:  seq,
		Type:      "completion_create",
		Payload:   json.RawMessage(`{"completion":{"timestamp":"2026-08-30T10:00:00Z","index":0,"outcome":"done","list_version":1}}`),
	}
}

func doOperations(t *testing.T, h *OperationsHandler, userID, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
	}
	rec := httptest.NewRecorder()
	h.HandleOperations(rec, req)
	return rec
}

func TestHandleOperations_Unauthorized(t *testing.T) {
	h, _ := newOperationsHandler(t)

	rec := doOperations(t, h, "", http.MethodGet, "/api/v1/operations", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleOperations_MethodNotAllowed(t *testing.T) {
	h, userID := newOperationsHandler(t)

	rec := doOperations(t, h, userID, http.MethodDelete, "/api/v1/operations", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPush_AcceptsOperations(t *testing.T) {
	h, userID := newOperationsHandler(t)

	rec := doOperations(t, h, userID, http.MethodPost, "/api/v1/operations", api.PushRequest{
		Operations: []api.Operation{wireOp("op-1", 1), wireOp("op-2", 2)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.PushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Accepted)
	assert.Zero(t, resp.Duplicates)
}

func TestPush_Idempotent(t *testing.T) {
	h, userID := newOperationsHandler(t)

	push := api.PushRequest{Operations: []api.Operation{wireOp("op-1", 1)}}

	rec := doOperations(t, h, userID, http.MethodPost, "/api/v1/operations", push)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doOperations(t, h, userID, http.MethodPost, "/api/v1/operations", push)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.PushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Accepted)
	assert.Equal(t, 1, resp.Duplicates)
}

func TestPush_InvalidOperation(t *testing.T) {
	h, userID := newOperationsHandler(t)

	op := wireOp("op-1", 0) // sequence must be positive
	rec := doOperations(t, h, userID, http.MethodPost, "/api/v1/operations", api.PushRequest{
		Operations: []api.Operation{op},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPull_SinceFilter(t *testing.T) {
	h, userID := newOperationsHandler(t)

	rec := doOperations(t, h, userID, http.MethodPost, "/api/v1/operations", api.PushRequest{
		Operations: []api.Operation{wireOp("op-1", 1), wireOp("op-2", 2), wireOp("op-3", 3)},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doOperations(t, h, userID, http.MethodGet, "/api/v1/operations?since=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Operations, 2)
	assert.Equal(t, "op-2", resp.Operations[0].ID)
	assert.Equal(t, "op-3", resp.Operations[1].ID)
	assert.Equal(t, int64(3), resp.MaxSequence)
}

func TestPull_EmptyJournal(t *testing.T) {
	h, userID := newOperationsHandler(t)

	rec := doOperations(t, h, userID, http.MethodGet, "/api/v1/operations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Operations)
	assert.Zero(t, resp.MaxSequence)
}

func TestPull_InvalidSince(t *testing.T) {
	h, userID := newOperationsHandler(t)

	rec := doOperations(t, h, userID, http.MethodGet, "/api/v1/operations?since=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
