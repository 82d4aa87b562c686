package api

import "encoding/json"

// Operation представляет одну операцию журнала для передачи по сети.
// Payload передается как сырой JSON и типизируется на принимающей стороне.
type Operation struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"` // ISO-8601 (RFC 3339)
	ClientID  string          `json:"client_id"`
	Sequence  int64           `json:"sequence"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// PushRequest представляет запрос на добавление операций в журнал пользователя
type PushRequest struct {
	Operations []Operation `json:"operations"`
}

// PushResponse представляет ответ сервера на push
type PushResponse struct {
	Accepted   int `json:"accepted"`   // количество добавленных операций
	Duplicates int `json:"duplicates"` // количество операций, отброшенных по id (идемпотентность)
}

// PullResponse представляет ответ сервера на выборку операций
type PullResponse struct {
	Operations  []Operation `json:"operations"`
	MaxSequence int64       `json:"max_sequence"` // максимальный sequence в журнале пользователя
}

// ErrorResponse представляет ответ сервера с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
