package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationType определяет вид операции в журнале.
// Множество типов закрыто: неизвестные типы отклоняются валидатором.
type OperationType string

// Известные типы операций
const (
	OpCompletionCreate  OperationType = "COMPLETION_CREATE"
	OpCompletionUpdate  OperationType = "COMPLETION_UPDATE"
	OpCompletionDelete  OperationType = "COMPLETION_DELETE"
	OpAddressAdd        OperationType = "ADDRESS_ADD"
	OpAddressBulkImport OperationType = "ADDRESS_BULK_IMPORT"
	OpArrangementCreate OperationType = "ARRANGEMENT_CREATE"
	OpArrangementUpdate OperationType = "ARRANGEMENT_UPDATE"
	OpArrangementDelete OperationType = "ARRANGEMENT_DELETE"
	OpSessionStart      OperationType = "SESSION_START"
	OpSessionEnd        OperationType = "SESSION_END"
	OpActiveIndexSet    OperationType = "ACTIVE_INDEX_SET"
	OpSettingsUpdate    OperationType = "SETTINGS_UPDATE"
)

// OperationPayload представляет типизированный payload операции.
// Каждый тип операции несет собственную структуру payload (tagged union).
type OperationPayload interface {
	// Kind возвращает тип операции, которому принадлежит payload
	Kind() OperationType
}

// Operation представляет неизменяемую запись журнала операций.
// Sequence монотонно назначается каждым клиентом для своего потока операций.
// После принятия в журнал операция никогда не изменяется.
type Operation struct {
	Timestamp time.Time        `json:"timestamp"`
	ID        string           `json:"id"`
	ClientID  string           `json:"client_id"`
	Type      OperationType    `json:"type"`
	Payload   OperationPayload `json:"payload"`
	Sequence  int64            `json:"sequence"`
}

// CompletionCreatePayload несет новую запись о завершении адреса
type CompletionCreatePayload struct {
	Completion Completion `json:"completion"`
}

func (CompletionCreatePayload) Kind() OperationType { return OpCompletionCreate }

// CompletionUpdatePayload несет изменения существующего завершения,
// адресуемого по ключу (timestamp, index, outcome)
type CompletionUpdatePayload struct {
	Timestamp time.Time      `json:"timestamp"`
	Changes   map[string]any `json:"changes"`
	Outcome   string         `json:"outcome"`
	Index     int            `json:"index"`
}

func (CompletionUpdatePayload) Kind() OperationType { return OpCompletionUpdate }

// CompletionDeletePayload адресует завершение для удаления
type CompletionDeletePayload struct {
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	Index     int       `json:"index"`
}

func (CompletionDeletePayload) Kind() OperationType { return OpCompletionDelete }

// AddressAddPayload несет один вручную добавленный адрес
type AddressAddPayload struct {
	Address     Address `json:"address"`
	ListVersion int64   `json:"list_version"`
}

func (AddressAddPayload) Kind() OperationType { return OpAddressAdd }

// AddressBulkImportPayload несет полную замену списка адресов
type AddressBulkImportPayload struct {
	Addresses      []Address `json:"addresses"`
	NewListVersion int64     `json:"new_list_version"`
}

func (AddressBulkImportPayload) Kind() OperationType { return OpAddressBulkImport }

// ArrangementCreatePayload несет новую договоренность
type ArrangementCreatePayload struct {
	Arrangement Arrangement `json:"arrangement"`
}

func (ArrangementCreatePayload) Kind() OperationType { return OpArrangementCreate }

// ArrangementUpdatePayload несет изменения существующей договоренности
type ArrangementUpdatePayload struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Changes   map[string]any `json:"changes"`
	ID        string         `json:"id"`
}

func (ArrangementUpdatePayload) Kind() OperationType { return OpArrangementUpdate }

// ArrangementDeletePayload адресует договоренность для удаления
type ArrangementDeletePayload struct {
	ID string `json:"id"`
}

func (ArrangementDeletePayload) Kind() OperationType { return OpArrangementDelete }

// SessionStartPayload открывает рабочую сессию дня
type SessionStartPayload struct {
	Start time.Time `json:"start"`
	Date  string    `json:"date"` // YYYY-MM-DD
}

func (SessionStartPayload) Kind() OperationType { return OpSessionStart }

// SessionEndPayload закрывает рабочую сессию дня
type SessionEndPayload struct {
	End             time.Time `json:"end"`
	Date            string    `json:"date"`
	DurationSeconds int64     `json:"duration_seconds"`
}

func (SessionEndPayload) Kind() OperationType { return OpSessionEnd }

// ActiveIndexSetPayload устанавливает активный индекс адреса (nil = сброс)
type ActiveIndexSetPayload struct {
	Index *int `json:"index"`
}

func (ActiveIndexSetPayload) Kind() OperationType { return OpActiveIndexSet }

// SettingsUpdatePayload несет частичное обновление настроек
type SettingsUpdatePayload struct {
	Settings map[string]any `json:"settings"`
}

func (SettingsUpdatePayload) Kind() OperationType { return OpSettingsUpdate }

// operationEnvelope используется для (де)сериализации Operation:
// payload передается как сырой JSON и типизируется по полю type
type operationEnvelope struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	ClientID  string          `json:"client_id"`
	Type      OperationType   `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Sequence  int64           `json:"sequence"`
}

// MarshalJSON сериализует операцию в конверт с ISO-8601 timestamp
func (o Operation) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(o.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return json.Marshal(operationEnvelope{
		ID:        o.ID,
		Timestamp: o.Timestamp.UTC().Format(time.RFC3339Nano),
		ClientID:  o.ClientID,
		Type:      o.Type,
		Payload:   payload,
		Sequence:  o.Sequence,
	})
}

// UnmarshalJSON восстанавливает операцию из конверта,
// диспетчеризуя payload по типу операции
func (o *Operation) UnmarshalJSON(data []byte) error {
	var env operationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to unmarshal operation envelope: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to parse operation timestamp: %w", err)
	}

	payload, err := DecodePayload(env.Type, env.Payload)
	if err != nil {
		return err
	}

	o.ID = env.ID
	o.Timestamp = ts
	o.ClientID = env.ClientID
	o.Type = env.Type
	o.Payload = payload
	o.Sequence = env.Sequence

	return nil
}

// DecodePayload типизирует сырой payload по типу операции.
// Возвращает ErrUnknownOperationType для типов вне закрытого множества.
func DecodePayload(t OperationType, raw json.RawMessage) (OperationPayload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var (
		payload OperationPayload
		err     error
	)

	switch t {
	case OpCompletionCreate:
		p := CompletionCreatePayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpCompletionUpdate:
		p := CompletionUpdatePayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpCompletionDelete:
		p := CompletionDeletePayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpAddressAdd:
		p := AddressAddPayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpAddressBulkImport:
		p := AddressBulkImportPayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpArrangementCreate:
		p := ArrangementCreatePayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpArrangementUpdate:
		p := ArrangementUpdatePayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpArrangementDelete:
		p := ArrangementDeletePayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpSessionStart:
		p := SessionStartPayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpSessionEnd:
		p := SessionEndPayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpActiveIndexSet:
		p := ActiveIndexSetPayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	case OpSettingsUpdate:
		p := SettingsUpdatePayload{}
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperationType, t)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", t, err)
	}

	return payload, nil
}
