package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/routesync/pkg/api"
)

// AppendOperations appends operations to the user's journal.
// Дубликаты по (user_id, id) пропускаются, не прерывая весь batch:
// клиент может повторить push после частично доставленного запроса.
func (s *Storage) AppendOperations(ctx context.Context, userID string, ops []api.Operation) (int, int, error) {
	if len(ops) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO operations (user_id, id, client_id, sequence, type, timestamp, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	accepted := 0
	duplicates := 0
	now := time.Now()

	for _, op := range ops {
		_, err := tx.ExecContext(ctx, query,
			userID,
			op.ID,
			op.ClientID,
			op.Sequence,
			op.Type,
			op.Timestamp,
			string(op.Payload),
			now,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				duplicates++
				continue
			}
			return 0, 0, fmt.Errorf("failed to insert operation %s: %w", op.ID, err)
		}
		accepted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return accepted, duplicates, nil
}

// OperationsSince retrieves all operations with sequence greater than since
func (s *Storage) OperationsSince(ctx context.Context, userID string, since int64) ([]api.Operation, error) {
	query := `
		SELECT id, client_id, sequence, type, timestamp, payload
		FROM operations
		WHERE user_id = ? AND sequence > ?
		ORDER BY sequence, rowid
	`

	rows, err := s.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	ops := []api.Operation{}
	for rows.Next() {
		var op api.Operation
		var payload string
		if err := rows.Scan(&op.ID, &op.ClientID, &op.Sequence, &op.Type, &op.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Payload = []byte(payload)
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}

	return ops, nil
}

// MaxSequence returns the highest sequence in the user's journal
func (s *Storage) MaxSequence(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(MAX(sequence), 0) FROM operations WHERE user_id = ?`

	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max sequence: %w", err)
	}

	return max.Int64, nil
}
