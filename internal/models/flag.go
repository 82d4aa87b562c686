package models

import "time"

// FlagName определяет имя защитного флага.
// Множество флагов закрыто: у каждого флага фиксированный timeout.
type FlagName string

// Известные защитные флаги
const (
	FlagImportInProgress     FlagName = "import_in_progress"
	FlagRestoreInProgress    FlagName = "restore_in_progress"
	FlagCompletionInProgress FlagName = "completion_in_progress"
	FlagMergeInProgress      FlagName = "merge_in_progress"
	FlagActiveDaySession     FlagName = "active_day_session"
)

// FlagTimeout возвращает фиксированный timeout флага.
// Нулевая длительность означает бессрочный флаг: он снимается
// только явным Clear, никогда по истечению времени.
func FlagTimeout(flag FlagName) (time.Duration, error) {
	switch flag {
	case FlagImportInProgress:
		return 6 * time.Second, nil
	case FlagRestoreInProgress:
		return 60 * time.Second, nil
	case FlagCompletionInProgress:
		return 10 * time.Second, nil
	case FlagMergeInProgress:
		return 30 * time.Second, nil
	case FlagActiveDaySession:
		return 0, nil // бессрочный
	default:
		return 0, ErrUnknownFlag
	}
}

// ProtectionFlag представляет durable запись защитного флага.
// ExpiresAt == 0 означает бессрочный флаг.
type ProtectionFlag struct {
	Flag      FlagName `json:"flag"`
	Timestamp int64    `json:"timestamp"`  // epoch-ms установки
	ExpiresAt int64    `json:"expires_at"` // epoch-ms истечения, 0 = never
}

// Expired возвращает true, если флаг истек к моменту now.
// Бессрочные флаги не истекают.
func (f ProtectionFlag) Expired(now time.Time) bool {
	if f.ExpiresAt == 0 {
		return false
	}
	return now.UnixMilli() >= f.ExpiresAt
}

// Remaining возвращает оставшееся время жизни флага.
// Для бессрочного флага возвращает -1.
func (f ProtectionFlag) Remaining(now time.Time) time.Duration {
	if f.ExpiresAt == 0 {
		return -1
	}
	remaining := time.Duration(f.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if remaining < 0 {
		return 0
	}
	return remaining
}
