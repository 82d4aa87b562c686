package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/routesync/internal/models"
)

func validOperation() *models.Operation {
	return &models.Operation{
		ID:        "op-1",
		Timestamp: time.Now().UTC(),
		ClientID:  "client-a",
		Sequence:  0,
		Type:      models.OpCompletionCreate,
		Payload: models.CompletionCreatePayload{
			Completion: models.Completion{
				Timestamp: time.Now().UTC(),
				Index:     0,
				Outcome:   "DA",
			},
		},
	}
}

func TestValidateOperation_Valid(t *testing.T) {
	op := validOperation()
	assert.NoError(t, ValidateOperation(op, time.Now()))
}

func TestValidateOperation_Envelope(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(op *models.Operation)
		field  string
	}{
		{
			name:   "empty id",
			mutate: func(op *models.Operation) { op.ID = "" },
			field:  "id",
		},
		{
			name:   "empty client id",
			mutate: func(op *models.Operation) { op.ClientID = "" },
			field:  "client_id",
		},
		{
			name:   "zero timestamp",
			mutate: func(op *models.Operation) { op.Timestamp = time.Time{} },
			field:  "timestamp",
		},
		{
			name:   "timestamp too far in the future",
			mutate: func(op *models.Operation) { op.Timestamp = now.Add(10 * time.Minute) },
			field:  "timestamp",
		},
		{
			name:   "timestamp too far in the past",
			mutate: func(op *models.Operation) { op.Timestamp = now.Add(-31 * 24 * time.Hour) },
			field:  "timestamp",
		},
		{
			name:   "negative sequence",
			mutate: func(op *models.Operation) { op.Sequence = -1 },
			field:  "sequence",
		},
		{
			name:   "nil payload",
			mutate: func(op *models.Operation) { op.Payload = nil },
			field:  "payload",
		},
		{
			name: "payload kind mismatch",
			mutate: func(op *models.Operation) {
				op.Type = models.OpAddressAdd
			},
			field: "payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := validOperation()
			tt.mutate(op)

			err := ValidateOperation(op, now)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateOperation_ClockSkewBoundary(t *testing.T) {
	now := time.Now()

	op := validOperation()
	op.Timestamp = now.Add(4 * time.Minute)
	assert.NoError(t, ValidateOperation(op, now), "4 minutes in the future is inside the skew window")

	op.Timestamp = now.Add(-29 * 24 * time.Hour)
	assert.NoError(t, ValidateOperation(op, now), "29 days in the past is inside the replay window")
}

func TestValidateOperation_Payloads(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		payload models.OperationPayload
		opType  models.OperationType
		wantErr bool
	}{
		{
			name:   "completion create negative index",
			opType: models.OpCompletionCreate,
			payload: models.CompletionCreatePayload{
				Completion: models.Completion{Timestamp: now, Index: -1, Outcome: "DA"},
			},
			wantErr: true,
		},
		{
			name:    "bulk import without addresses array",
			opType:  models.OpAddressBulkImport,
			payload: models.AddressBulkImportPayload{NewListVersion: 2},
			wantErr: true,
		},
		{
			name:    "bulk import with empty array is valid",
			opType:  models.OpAddressBulkImport,
			payload: models.AddressBulkImportPayload{Addresses: []models.Address{}, NewListVersion: 2},
			wantErr: false,
		},
		{
			name:    "bulk import zero list version",
			opType:  models.OpAddressBulkImport,
			payload: models.AddressBulkImportPayload{Addresses: []models.Address{}, NewListVersion: 0},
			wantErr: true,
		},
		{
			name:    "address add blank address",
			opType:  models.OpAddressAdd,
			payload: models.AddressAddPayload{Address: models.Address{}, ListVersion: 1},
			wantErr: true,
		},
		{
			name:    "arrangement delete without id",
			opType:  models.OpArrangementDelete,
			payload: models.ArrangementDeletePayload{},
			wantErr: true,
		},
		{
			name:    "session start bad date",
			opType:  models.OpSessionStart,
			payload: models.SessionStartPayload{Date: "14-03-2026", Start: now},
			wantErr: true,
		},
		{
			name:    "session end valid",
			opType:  models.OpSessionEnd,
			payload: models.SessionEndPayload{Date: "2026-03-14", End: now, DurationSeconds: 3600},
			wantErr: false,
		},
		{
			name:    "active index null is valid",
			opType:  models.OpActiveIndexSet,
			payload: models.ActiveIndexSetPayload{Index: nil},
			wantErr: false,
		},
		{
			name:    "settings update empty",
			opType:  models.OpSettingsUpdate,
			payload: models.SettingsUpdatePayload{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := validOperation()
			op.Type = tt.opType
			op.Payload = tt.payload

			err := ValidateOperation(op, now)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
