package apply

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/routesync/internal/models"
)

func opWithPayload(payload models.OperationPayload) *models.Operation {
	return &models.Operation{
		ID:        "op-1",
		ClientID:  "client-1",
		Type:      payload.Kind(),
		Timestamp: time.Now().UTC(),
		Sequence:  1,
		Payload:   payload,
	}
}

func TestApply_CompletionCreateIdempotent(t *testing.T) {
	s := models.NewSnapshot()

	completion := models.Completion{
		Timestamp: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Index:     0,
		Outcome:   "paid",
	}
	op := opWithPayload(models.CompletionCreatePayload{Completion: completion})

	require.NoError(t, Apply(s, op))
	require.NoError(t, Apply(s, op))

	assert.Len(t, s.Completions, 1)
}

func TestApply_CompletionUpdate(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	s := models.NewSnapshot()
	s.Completions = []models.Completion{{Timestamp: ts, Index: 0, Outcome: "paid"}}

	op := opWithPayload(models.CompletionUpdatePayload{
		Timestamp: ts,
		Index:     0,
		Outcome:   "paid",
		Changes: map[string]any{
			"amount":         float64(1500),
			"arrangement_id": "arr-1",
		},
	})

	require.NoError(t, Apply(s, op))

	require.NotNil(t, s.Completions[0].Amount)
	assert.Equal(t, float64(1500), *s.Completions[0].Amount)
	assert.Equal(t, "arr-1", s.Completions[0].ArrangementID)
}

func TestApply_CompletionDelete(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	s := models.NewSnapshot()
	s.Completions = []models.Completion{
		{Timestamp: ts, Index: 0, Outcome: "paid"},
		{Timestamp: ts, Index: 1, Outcome: "not_home"},
	}

	op := opWithPayload(models.CompletionDeletePayload{Timestamp: ts, Index: 0, Outcome: "paid"})

	require.NoError(t, Apply(s, op))

	require.Len(t, s.Completions, 1)
	assert.Equal(t, 1, s.Completions[0].Index)
}

func TestApply_AddressAdd(t *testing.T) {
	s := models.NewSnapshot()

	op := opWithPayload(models.AddressAddPayload{
		Address:     models.Address{ID: "a1", Address: "ул. Ленина, 1"},
		ListVersion: 2,
	})

	require.NoError(t, Apply(s, op))
	assert.Len(t, s.Addresses, 1)
	assert.Equal(t, int64(2), s.CurrentListVersion)

	// Повторное добавление того же адреса (без учета регистра) не дублирует
	dup := opWithPayload(models.AddressAddPayload{
		Address:     models.Address{ID: "a2", Address: "УЛ. ЛЕНИНА, 1 "},
		ListVersion: 3,
	})
	require.NoError(t, Apply(s, dup))
	assert.Len(t, s.Addresses, 1)
}

func TestApply_BulkImportVersionGuard(t *testing.T) {
	s := models.NewSnapshot()
	s.Addresses = []models.Address{{ID: "a1", Address: "ул. Ленина, 1"}}
	s.CurrentListVersion = 5

	// Импорт со старой версией игнорируется
	stale := opWithPayload(models.AddressBulkImportPayload{
		Addresses:      []models.Address{{ID: "b1", Address: "ул. Мира, 1"}},
		NewListVersion: 3,
	})
	require.NoError(t, Apply(s, stale))
	assert.Equal(t, "ул. Ленина, 1", s.Addresses[0].Address)
	assert.Equal(t, int64(5), s.CurrentListVersion)

	// Импорт с новой версией заменяет список целиком
	fresh := opWithPayload(models.AddressBulkImportPayload{
		Addresses:      []models.Address{{ID: "b1", Address: "ул. Мира, 1"}, {ID: "b2", Address: "ул. Мира, 2"}},
		NewListVersion: 6,
	})
	require.NoError(t, Apply(s, fresh))
	assert.Len(t, s.Addresses, 2)
	assert.Equal(t, int64(6), s.CurrentListVersion)
}

func TestApply_ArrangementLifecycle(t *testing.T) {
	s := models.NewSnapshot()

	created := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	create := opWithPayload(models.ArrangementCreatePayload{
		Arrangement: models.Arrangement{ID: "arr-1", Status: "scheduled", Amount: 1000, CreatedAt: created, UpdatedAt: created},
	})
	require.NoError(t, Apply(s, create))
	require.Len(t, s.Arrangements, 1)

	update := opWithPayload(models.ArrangementUpdatePayload{
		ID:        "arr-1",
		UpdatedAt: created.Add(time.Hour),
		Changes:   map[string]any{"status": "completed", "amount": float64(1200)},
	})
	require.NoError(t, Apply(s, update))
	assert.Equal(t, "completed", s.Arrangements[0].Status)
	assert.Equal(t, float64(1200), s.Arrangements[0].Amount)
	assert.Equal(t, created.Add(time.Hour), s.Arrangements[0].UpdatedAt)

	del := opWithPayload(models.ArrangementDeletePayload{ID: "arr-1"})
	require.NoError(t, Apply(s, del))
	assert.Empty(t, s.Arrangements)
}

func TestApply_DaySessionLifecycle(t *testing.T) {
	s := models.NewSnapshot()

	start := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	require.NoError(t, Apply(s, opWithPayload(models.SessionStartPayload{Date: "2026-08-30", Start: start})))
	require.Len(t, s.DaySessions, 1)
	assert.Nil(t, s.DaySessions[0].End)

	end := start.Add(8 * time.Hour)
	require.NoError(t, Apply(s, opWithPayload(models.SessionEndPayload{
		Date:            "2026-08-30",
		End:             end,
		DurationSeconds: 8 * 3600,
	})))
	require.NotNil(t, s.DaySessions[0].End)
	assert.Equal(t, end, *s.DaySessions[0].End)
	assert.Equal(t, int64(8*3600), s.DaySessions[0].DurationSeconds)
}

func TestApply_SessionEndWithoutStart(t *testing.T) {
	s := models.NewSnapshot()

	end := time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC)
	require.NoError(t, Apply(s, opWithPayload(models.SessionEndPayload{Date: "2026-08-30", End: end})))

	require.Len(t, s.DaySessions, 1)
	require.NotNil(t, s.DaySessions[0].End)
}

func TestApply_ActiveIndexAndSettings(t *testing.T) {
	s := models.NewSnapshot()

	idx := 4
	require.NoError(t, Apply(s, opWithPayload(models.ActiveIndexSetPayload{Index: &idx})))
	require.NotNil(t, s.ActiveIndex)
	assert.Equal(t, 4, *s.ActiveIndex)

	require.NoError(t, Apply(s, opWithPayload(models.ActiveIndexSetPayload{Index: nil})))
	assert.Nil(t, s.ActiveIndex)

	require.NoError(t, Apply(s, opWithPayload(models.SettingsUpdatePayload{
		Settings: map[string]any{
			"default_outcome":       "not_home",
			"sync_interval_seconds": float64(120),
			"auto_sync":             true,
		},
	})))
	assert.Equal(t, "not_home", s.Settings.DefaultOutcome)
	assert.Equal(t, 120, s.Settings.SyncIntervalSeconds)
	assert.True(t, s.Settings.AutoSync)
}

func TestApply_NilPayload(t *testing.T) {
	err := Apply(models.NewSnapshot(), &models.Operation{ID: "op-1"})
	assert.Error(t, err)
}
