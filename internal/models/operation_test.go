package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_JSONRoundtrip_PayloadDispatch(t *testing.T) {
	amount := 150.0
	op := Operation{
		ID:        "op-1",
		Timestamp: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		ClientID:  "client-a",
		Sequence:  7,
		Type:      OpCompletionCreate,
		Payload: CompletionCreatePayload{
			Completion: Completion{
				Timestamp:   time.Date(2026, 3, 14, 10, 29, 0, 0, time.UTC),
				Index:       3,
				Outcome:     "DA",
				Amount:      &amount,
				ListVersion: 2,
			},
		},
	}

	data, err := json.Marshal(op)
	require.NoError(t, err)

	var decoded Operation
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, op.ID, decoded.ID)
	assert.Equal(t, op.ClientID, decoded.ClientID)
	assert.Equal(t, op.Sequence, decoded.Sequence)
	assert.Equal(t, OpCompletionCreate, decoded.Type)

	payload, ok := decoded.Payload.(CompletionCreatePayload)
	require.True(t, ok, "payload should decode to the type-specific struct")
	assert.Equal(t, 3, payload.Completion.Index)
	assert.Equal(t, "DA", payload.Completion.Outcome)
	require.NotNil(t, payload.Completion.Amount)
	assert.Equal(t, amount, *payload.Completion.Amount)
}

func TestOperation_Unmarshal_UnknownType(t *testing.T) {
	raw := `{"id":"op-x","timestamp":"2026-03-14T10:30:00Z","client_id":"c1","sequence":0,"type":"TOTALLY_UNKNOWN","payload":{}}`

	var op Operation
	err := json.Unmarshal([]byte(raw), &op)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOperationType)
}

func TestDecodePayload_EmptyPayload(t *testing.T) {
	payload, err := DecodePayload(OpActiveIndexSet, nil)
	require.NoError(t, err)

	p, ok := payload.(ActiveIndexSetPayload)
	require.True(t, ok)
	assert.Nil(t, p.Index)
}

func TestSnapshot_Clone_Independence(t *testing.T) {
	lat := 55.75
	idx := 2
	end := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	original := &Snapshot{
		Addresses:          []Address{{ID: "a1", Address: "ul. Lenina 1", Lat: &lat}},
		Completions:        []Completion{{Timestamp: time.Now().UTC(), Index: 0, Outcome: "DA"}},
		Arrangements:       []Arrangement{{ID: "arr-1", Amount: 100}},
		DaySessions:        []DaySession{{Date: "2026-03-14", Start: time.Now().UTC(), End: &end}},
		ActiveIndex:        &idx,
		CurrentListVersion: 3,
	}

	clone := original.Clone()
	require.True(t, original.Equal(clone))

	// Мутация копии не должна затрагивать оригинал
	clone.Addresses[0].Address = "changed"
	*clone.Addresses[0].Lat = 0
	*clone.ActiveIndex = 9
	*clone.DaySessions[0].End = end.Add(time.Hour)
	clone.CurrentListVersion = 99

	assert.Equal(t, "ul. Lenina 1", original.Addresses[0].Address)
	assert.Equal(t, 55.75, *original.Addresses[0].Lat)
	assert.Equal(t, 2, *original.ActiveIndex)
	assert.True(t, original.DaySessions[0].End.Equal(end))
	assert.Equal(t, int64(3), original.CurrentListVersion)
}

func TestSnapshot_Equal(t *testing.T) {
	s1 := NewSnapshot()
	s2 := NewSnapshot()
	assert.True(t, s1.Equal(s2))

	s2.CurrentListVersion = 2
	assert.False(t, s1.Equal(s2))
}

func TestOptimisticUpdate_Transitions(t *testing.T) {
	u := &OptimisticUpdate{ID: "u1", Status: UpdatePending}

	require.NoError(t, u.Transition(UpdateConfirmed))
	assert.Equal(t, UpdateConfirmed, u.Status)

	// Терминальный статус менять нельзя
	err := u.Transition(UpdateFailed)
	require.Error(t, err)
	assert.Equal(t, UpdateConfirmed, u.Status)
}

func TestFlagTimeout(t *testing.T) {
	tests := []struct {
		name    string
		flag    FlagName
		want    time.Duration
		wantErr bool
	}{
		{name: "import", flag: FlagImportInProgress, want: 6 * time.Second},
		{name: "restore", flag: FlagRestoreInProgress, want: 60 * time.Second},
		{name: "unbounded session", flag: FlagActiveDaySession, want: 0},
		{name: "unknown", flag: FlagName("bogus"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FlagTimeout(tt.flag)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFlag)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProtectionFlag_Expiry(t *testing.T) {
	now := time.Now()

	bounded := ProtectionFlag{
		Flag:      FlagImportInProgress,
		Timestamp: now.UnixMilli(),
		ExpiresAt: now.Add(6 * time.Second).UnixMilli(),
	}
	assert.False(t, bounded.Expired(now))
	assert.True(t, bounded.Expired(now.Add(7*time.Second)))
	assert.Equal(t, time.Duration(0), bounded.Remaining(now.Add(time.Minute)))

	unbounded := ProtectionFlag{
		Flag:      FlagActiveDaySession,
		Timestamp: now.UnixMilli(),
		ExpiresAt: 0,
	}
	assert.False(t, unbounded.Expired(now.Add(365*24*time.Hour)))
	assert.Equal(t, time.Duration(-1), unbounded.Remaining(now))
}
