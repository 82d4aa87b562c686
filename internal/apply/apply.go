package apply

import (
	"fmt"
	"strings"

	"github.com/iudanet/routesync/internal/models"
)

// Apply применяет одну операцию журнала к снапшоту на месте.
// Вызывающий владеет снапшотом (обычно это рабочая копия через Clone).
// Применение идемпотентно там, где это возможно: повторное создание
// существующей сущности не дублирует ее.
func Apply(s *models.Snapshot, op *models.Operation) error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if op == nil || op.Payload == nil {
		return fmt.Errorf("operation has no payload")
	}

	switch p := op.Payload.(type) {
	case models.CompletionCreatePayload:
		applyCompletionCreate(s, p)
	case models.CompletionUpdatePayload:
		applyCompletionUpdate(s, p)
	case models.CompletionDeletePayload:
		applyCompletionDelete(s, p)
	case models.AddressAddPayload:
		applyAddressAdd(s, p)
	case models.AddressBulkImportPayload:
		applyAddressBulkImport(s, p)
	case models.ArrangementCreatePayload:
		applyArrangementCreate(s, p)
	case models.ArrangementUpdatePayload:
		applyArrangementUpdate(s, p)
	case models.ArrangementDeletePayload:
		applyArrangementDelete(s, p)
	case models.SessionStartPayload:
		applySessionStart(s, p)
	case models.SessionEndPayload:
		applySessionEnd(s, p)
	case models.ActiveIndexSetPayload:
		s.ActiveIndex = p.Index
	case models.SettingsUpdatePayload:
		applySettingsUpdate(s, p)
	default:
		return fmt.Errorf("%w: %T", models.ErrUnknownOperationType, op.Payload)
	}

	return nil
}

func applyCompletionCreate(s *models.Snapshot, p models.CompletionCreatePayload) {
	key := p.Completion.Key()
	for _, c := range s.Completions {
		if c.Key() == key {
			return
		}
	}
	s.Completions = append(s.Completions, p.Completion)
}

func applyCompletionUpdate(s *models.Snapshot, p models.CompletionUpdatePayload) {
	key := models.Completion{Timestamp: p.Timestamp, Index: p.Index, Outcome: p.Outcome}.Key()

	for i := range s.Completions {
		if s.Completions[i].Key() != key {
			continue
		}

		if amount, ok := numericChange(p.Changes, "amount"); ok {
			s.Completions[i].Amount = &amount
		}
		if arrangementID, ok := p.Changes["arrangement_id"].(string); ok {
			s.Completions[i].ArrangementID = arrangementID
		}
		if listVersion, ok := numericChange(p.Changes, "list_version"); ok {
			s.Completions[i].ListVersion = int64(listVersion)
		}
		return
	}
}

func applyCompletionDelete(s *models.Snapshot, p models.CompletionDeletePayload) {
	key := models.Completion{Timestamp: p.Timestamp, Index: p.Index, Outcome: p.Outcome}.Key()

	kept := s.Completions[:0]
	for _, c := range s.Completions {
		if c.Key() != key {
			kept = append(kept, c)
		}
	}
	s.Completions = kept
}

func applyAddressAdd(s *models.Snapshot, p models.AddressAddPayload) {
	target := strings.ToLower(strings.TrimSpace(p.Address.Address))
	for _, a := range s.Addresses {
		if strings.ToLower(strings.TrimSpace(a.Address)) == target {
			return
		}
	}

	s.Addresses = append(s.Addresses, p.Address)
	if p.ListVersion > s.CurrentListVersion {
		s.CurrentListVersion = p.ListVersion
	}
}

func applyAddressBulkImport(s *models.Snapshot, p models.AddressBulkImportPayload) {
	// Импорт со старой версией не затирает более новый список
	if p.NewListVersion <= s.CurrentListVersion {
		return
	}

	s.Addresses = append([]models.Address{}, p.Addresses...)
	s.CurrentListVersion = p.NewListVersion
}

func applyArrangementCreate(s *models.Snapshot, p models.ArrangementCreatePayload) {
	for _, a := range s.Arrangements {
		if a.ID == p.Arrangement.ID {
			return
		}
	}
	s.Arrangements = append(s.Arrangements, p.Arrangement)
}

func applyArrangementUpdate(s *models.Snapshot, p models.ArrangementUpdatePayload) {
	for i := range s.Arrangements {
		if s.Arrangements[i].ID != p.ID {
			continue
		}

		if amount, ok := numericChange(p.Changes, "amount"); ok {
			s.Arrangements[i].Amount = amount
		}
		if status, ok := p.Changes["status"].(string); ok {
			s.Arrangements[i].Status = status
		}
		if p.UpdatedAt.After(s.Arrangements[i].UpdatedAt) {
			s.Arrangements[i].UpdatedAt = p.UpdatedAt
		}
		return
	}
}

func applyArrangementDelete(s *models.Snapshot, p models.ArrangementDeletePayload) {
	kept := s.Arrangements[:0]
	for _, a := range s.Arrangements {
		if a.ID != p.ID {
			kept = append(kept, a)
		}
	}
	s.Arrangements = kept
}

func applySessionStart(s *models.Snapshot, p models.SessionStartPayload) {
	for _, session := range s.DaySessions {
		if session.Date == p.Date {
			return
		}
	}
	s.DaySessions = append(s.DaySessions, models.DaySession{Date: p.Date, Start: p.Start})
}

func applySessionEnd(s *models.Snapshot, p models.SessionEndPayload) {
	for i := range s.DaySessions {
		if s.DaySessions[i].Date != p.Date {
			continue
		}

		end := p.End
		s.DaySessions[i].End = &end
		s.DaySessions[i].DurationSeconds = p.DurationSeconds
		return
	}

	// Закрытие без открытия: регистрируем закрытую сессию целиком
	end := p.End
	s.DaySessions = append(s.DaySessions, models.DaySession{
		Date:            p.Date,
		Start:           p.End,
		End:             &end,
		DurationSeconds: p.DurationSeconds,
	})
}

func applySettingsUpdate(s *models.Snapshot, p models.SettingsUpdatePayload) {
	if outcome, ok := p.Settings["default_outcome"].(string); ok {
		s.Settings.DefaultOutcome = outcome
	}
	if interval, ok := numericChange(p.Settings, "sync_interval_seconds"); ok {
		s.Settings.SyncIntervalSeconds = int(interval)
	}
	if autoSync, ok := p.Settings["auto_sync"].(bool); ok {
		s.Settings.AutoSync = autoSync
	}
}

// numericChange достает числовое поле из changes map.
// После JSON unmarshal числа приходят как float64.
func numericChange(changes map[string]any, key string) (float64, bool) {
	switch v := changes[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
