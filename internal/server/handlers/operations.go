package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/routesync/internal/server/storage"
	"github.com/iudanet/routesync/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для хранения username в контексте
	UsernameKey contextKey = "username"
)

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUsername извлекает username из контекста запроса
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// OperationsHandler обслуживает журнал операций пользователя
type OperationsHandler struct {
	logger  *slog.Logger
	storage storage.OperationStorage
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(logger *slog.Logger, storage storage.OperationStorage) *OperationsHandler {
	return &OperationsHandler{
		logger:  logger,
		storage: storage,
	}
}

// HandleOperations обрабатывает GET и POST запросы журнала
func (h *OperationsHandler) HandleOperations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// user_id установлен AuthMiddleware
	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user id not found in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handlePull(w, r, userID)
	case http.MethodPost:
		h.handlePush(w, r, userID)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handlePull обрабатывает GET /api/v1/operations?since=N
// Возвращает все операции с sequence больше since
func (h *OperationsHandler) handlePull(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	var since int64
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		var err error
		since, err = strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			h.logger.Warn("invalid since parameter", "since", sinceStr, "error", err)
			http.Error(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
	}

	ops, err := h.storage.OperationsSince(ctx, userID, since)
	if err != nil {
		h.logger.Error("failed to get operations", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	maxSequence, err := h.storage.MaxSequence(ctx, userID)
	if err != nil {
		h.logger.Error("failed to get max sequence", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := api.PullResponse{
		Operations:  ops,
		MaxSequence: maxSequence,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}

	h.logger.Info("pull completed",
		"user_id", userID,
		"since", since,
		"operations_count", len(ops))
}

// handlePush обрабатывает POST /api/v1/operations
// Дописывает операции в журнал пользователя идемпотентно по id
func (h *OperationsHandler) handlePush(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode push request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	for i, op := range req.Operations {
		if err := validateOperation(op); err != nil {
			h.logger.Warn("invalid operation in push", "index", i, "error", err)
			http.Error(w, fmt.Sprintf("Operation %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	accepted, duplicates, err := h.storage.AppendOperations(ctx, userID, req.Operations)
	if err != nil {
		h.logger.Error("failed to append operations", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := api.PushResponse{
		Accepted:   accepted,
		Duplicates: duplicates,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}

	h.logger.Info("push completed",
		"user_id", userID,
		"accepted", accepted,
		"duplicates", duplicates)
}

// validateOperation проверяет обязательные поля операции перед записью
func validateOperation(op api.Operation) error {
	if op.ID == "" {
		return fmt.Errorf("id is required")
	}
	if op.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if op.Type == "" {
		return fmt.Errorf("type is required")
	}
	if op.Sequence <= 0 {
		return fmt.Errorf("sequence must be positive")
	}
	if len(op.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	return nil
}
