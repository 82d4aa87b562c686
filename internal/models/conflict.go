package models

import "time"

// EntityType определяет тип сущности, участвующей в конфликте версий
type EntityType string

const (
	EntityCompletion  EntityType = "completion"
	EntityArrangement EntityType = "arrangement"
)

// VersionConflict представляет зафиксированное расхождение версий
// одной сущности между локальным и удаленным состоянием.
// Запись эфемерна: живет до разрешения или отклонения.
type VersionConflict struct {
	Timestamp  time.Time  `json:"timestamp"`
	ID         string     `json:"id"`
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
}
