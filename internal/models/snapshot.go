package models

import (
	"fmt"
	"time"
)

// Address представляет один адрес маршрутного листа
type Address struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	ID      string   `json:"id"`
	Address string   `json:"address"`
}

// Completion представляет завершение работы по адресу.
// Уникальный ключ завершения: (Timestamp, Index, Outcome).
type Completion struct {
	Timestamp     time.Time `json:"timestamp"`
	Amount        *float64  `json:"amount,omitempty"`
	Outcome       string    `json:"outcome"`
	ArrangementID string    `json:"arrangement_id,omitempty"`
	Index         int       `json:"index"`
	ListVersion   int64     `json:"list_version"`
}

// Key возвращает уникальный ключ завершения (timestamp, index, outcome)
func (c Completion) Key() string {
	return fmt.Sprintf("%s|%d|%s", c.Timestamp.UTC().Format(time.RFC3339Nano), c.Index, c.Outcome)
}

// Arrangement представляет договоренность по адресу, ключ - уникальный ID
type Arrangement struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ScheduledDate time.Time `json:"scheduled_date"`
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Amount        float64   `json:"amount"`
	AddressIndex  int       `json:"address_index"`
}

// DaySession представляет рабочую сессию одного дня, ключ - Date.
// Открытая сессия имеет End == nil.
type DaySession struct {
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
	Date            string     `json:"date"` // YYYY-MM-DD
	DurationSeconds int64      `json:"duration_seconds"`
}

// Settings представляет пользовательские настройки приложения
type Settings struct {
	DefaultOutcome      string `json:"default_outcome"`
	SyncIntervalSeconds int    `json:"sync_interval_seconds"`
	AutoSync            bool   `json:"auto_sync"`
}

// Snapshot представляет материализованное состояние приложения,
// полученное применением операций журнала.
// Инварианты: CurrentListVersion только растет; ключи Completions
// уникальны после merge; не более одной DaySession на дату.
// Merge всегда порождает новый snapshot, никогда не изменяет на месте.
type Snapshot struct {
	ActiveIndex        *int          `json:"active_index,omitempty"`
	Settings           Settings      `json:"settings"`
	Addresses          []Address     `json:"addresses"`
	Completions        []Completion  `json:"completions"`
	Arrangements       []Arrangement `json:"arrangements"`
	DaySessions        []DaySession  `json:"day_sessions"`
	CurrentListVersion int64         `json:"current_list_version"`
}

// NewSnapshot создает пустой snapshot с версией списка 1
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Addresses:          []Address{},
		Completions:        []Completion{},
		Arrangements:       []Arrangement{},
		DaySessions:        []DaySession{},
		CurrentListVersion: 1,
	}
}

// Clone создает глубокую, независимую копию snapshot.
// Используется для rollback в optimistic updates: копия не должна
// разделять память с живым состоянием.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	clone := &Snapshot{
		Settings:           s.Settings,
		CurrentListVersion: s.CurrentListVersion,
	}

	if s.ActiveIndex != nil {
		idx := *s.ActiveIndex
		clone.ActiveIndex = &idx
	}

	clone.Addresses = make([]Address, len(s.Addresses))
	for i, a := range s.Addresses {
		clone.Addresses[i] = a.clone()
	}

	clone.Completions = make([]Completion, len(s.Completions))
	for i, c := range s.Completions {
		clone.Completions[i] = c.clone()
	}

	clone.Arrangements = make([]Arrangement, len(s.Arrangements))
	copy(clone.Arrangements, s.Arrangements)

	clone.DaySessions = make([]DaySession, len(s.DaySessions))
	for i, d := range s.DaySessions {
		clone.DaySessions[i] = d.clone()
	}

	return clone
}

func (a Address) clone() Address {
	c := a
	if a.Lat != nil {
		lat := *a.Lat
		c.Lat = &lat
	}
	if a.Lng != nil {
		lng := *a.Lng
		c.Lng = &lng
	}
	return c
}

func (c Completion) clone() Completion {
	out := c
	if c.Amount != nil {
		amount := *c.Amount
		out.Amount = &amount
	}
	return out
}

func (d DaySession) clone() DaySession {
	out := d
	if d.End != nil {
		end := *d.End
		out.End = &end
	}
	return out
}

// Equal выполняет структурное сравнение двух snapshot по полям,
// значимым для обнаружения конфликтов: addresses, completions,
// arrangements, activeIndex, currentListVersion.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}

	if s.CurrentListVersion != other.CurrentListVersion {
		return false
	}

	if (s.ActiveIndex == nil) != (other.ActiveIndex == nil) {
		return false
	}
	if s.ActiveIndex != nil && *s.ActiveIndex != *other.ActiveIndex {
		return false
	}

	if len(s.Addresses) != len(other.Addresses) ||
		len(s.Completions) != len(other.Completions) ||
		len(s.Arrangements) != len(other.Arrangements) {
		return false
	}

	for i := range s.Addresses {
		if s.Addresses[i].Address != other.Addresses[i].Address {
			return false
		}
	}

	// Completions сравниваются по множеству ключей независимо от порядка
	keys := make(map[string]bool, len(s.Completions))
	for _, c := range s.Completions {
		keys[c.Key()] = true
	}
	for _, c := range other.Completions {
		if !keys[c.Key()] {
			return false
		}
	}

	byID := make(map[string]Arrangement, len(s.Arrangements))
	for _, a := range s.Arrangements {
		byID[a.ID] = a
	}
	for _, a := range other.Arrangements {
		existing, ok := byID[a.ID]
		if !ok || !existing.UpdatedAt.Equal(a.UpdatedAt) {
			return false
		}
	}

	return true
}
