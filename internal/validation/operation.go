package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/iudanet/routesync/internal/models"
)

// Границы допустимого timestamp операции относительно момента валидации
const (
	// MaxClockSkew - защита от рассинхронизации часов:
	// операция не может быть из будущего более чем на 5 минут
	MaxClockSkew = 5 * time.Minute

	// MaxReplayAge - защита от replay:
	// операция не может быть старше 30 дней
	MaxReplayAge = 30 * 24 * time.Hour
)

// datePattern определяет формат даты рабочей сессии (YYYY-MM-DD)
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidationError описывает отклоненную операцию.
// Операция с такой ошибкой никогда не повторяется: она отбрасывается
// на границе submission до любого сетевого вызова.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid operation: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidateOperation проверяет структуру конверта операции и ее
// типизированный payload. Функция чистая: не изменяет состояние
// и не обращается к сети.
func ValidateOperation(op *models.Operation, now time.Time) error {
	if op == nil {
		return invalid("operation", "must not be nil")
	}

	if op.ID == "" {
		return invalid("id", "must not be empty")
	}
	if op.ClientID == "" {
		return invalid("client_id", "must not be empty")
	}
	if op.Type == "" {
		return invalid("type", "must not be empty")
	}

	if op.Timestamp.IsZero() {
		return invalid("timestamp", "must be a valid timestamp")
	}
	if op.Timestamp.After(now.Add(MaxClockSkew)) {
		return invalid("timestamp", "too far in the future (clock skew guard)")
	}
	if op.Timestamp.Before(now.Add(-MaxReplayAge)) {
		return invalid("timestamp", "too far in the past (replay guard)")
	}

	if op.Sequence < 0 {
		return invalid("sequence", "must be a non-negative integer")
	}

	if op.Payload == nil {
		return invalid("payload", "must not be nil")
	}
	if op.Payload.Kind() != op.Type {
		return invalid("payload", fmt.Sprintf("payload kind %s does not match operation type %s", op.Payload.Kind(), op.Type))
	}

	return validatePayload(op.Payload)
}

// validatePayload выполняет типоспецифичную проверку payload.
// Switch исчерпывающий по закрытому множеству типов операций.
func validatePayload(payload models.OperationPayload) error {
	switch p := payload.(type) {
	case models.CompletionCreatePayload:
		if p.Completion.Timestamp.IsZero() {
			return invalid("payload.completion.timestamp", "must be a valid timestamp")
		}
		if p.Completion.Index < 0 {
			return invalid("payload.completion.index", "must be a non-negative integer")
		}
		return nil

	case models.CompletionUpdatePayload:
		if p.Timestamp.IsZero() {
			return invalid("payload.timestamp", "must be a valid timestamp")
		}
		if p.Index < 0 {
			return invalid("payload.index", "must be a non-negative integer")
		}
		if p.Outcome == "" {
			return invalid("payload.outcome", "must not be empty")
		}
		if len(p.Changes) == 0 {
			return invalid("payload.changes", "must not be empty")
		}
		return nil

	case models.CompletionDeletePayload:
		if p.Timestamp.IsZero() {
			return invalid("payload.timestamp", "must be a valid timestamp")
		}
		if p.Index < 0 {
			return invalid("payload.index", "must be a non-negative integer")
		}
		if p.Outcome == "" {
			return invalid("payload.outcome", "must not be empty")
		}
		return nil

	case models.AddressAddPayload:
		if p.Address.Address == "" {
			return invalid("payload.address.address", "must not be empty")
		}
		if p.ListVersion < 1 {
			return invalid("payload.list_version", "must be a positive integer")
		}
		return nil

	case models.AddressBulkImportPayload:
		if p.Addresses == nil {
			return invalid("payload.addresses", "must be an array")
		}
		if p.NewListVersion < 1 {
			return invalid("payload.new_list_version", "must be a positive integer")
		}
		return nil

	case models.ArrangementCreatePayload:
		if p.Arrangement.ID == "" {
			return invalid("payload.arrangement.id", "must not be empty")
		}
		return nil

	case models.ArrangementUpdatePayload:
		if p.ID == "" {
			return invalid("payload.id", "must not be empty")
		}
		if len(p.Changes) == 0 {
			return invalid("payload.changes", "must not be empty")
		}
		return nil

	case models.ArrangementDeletePayload:
		if p.ID == "" {
			return invalid("payload.id", "must not be empty")
		}
		return nil

	case models.SessionStartPayload:
		if !datePattern.MatchString(p.Date) {
			return invalid("payload.date", "must be in YYYY-MM-DD format")
		}
		if p.Start.IsZero() {
			return invalid("payload.start", "must be a valid timestamp")
		}
		return nil

	case models.SessionEndPayload:
		if !datePattern.MatchString(p.Date) {
			return invalid("payload.date", "must be in YYYY-MM-DD format")
		}
		if p.End.IsZero() {
			return invalid("payload.end", "must be a valid timestamp")
		}
		if p.DurationSeconds < 0 {
			return invalid("payload.duration_seconds", "must be a non-negative integer")
		}
		return nil

	case models.ActiveIndexSetPayload:
		if p.Index != nil && *p.Index < 0 {
			return invalid("payload.index", "must be a non-negative integer or null")
		}
		return nil

	case models.SettingsUpdatePayload:
		if len(p.Settings) == 0 {
			return invalid("payload.settings", "must not be empty")
		}
		return nil

	default:
		return invalid("type", fmt.Sprintf("unknown operation type %s", payload.Kind()))
	}
}
