// Package resolve реализует автоматическое разрешение конфликтов между
// двумя версиями одной сущности. Двухступенчатая эвристика: сначала
// сравнение timestamp, затем оценка содержательности. Когда обе
// эвристики неубедительны, решение передается человеку - движок никогда
// не угадывает между двумя сопоставимо наполненными сущностями.
package resolve

import (
	"fmt"
	"time"

	"github.com/iudanet/routesync/internal/models"
)

// Strategy определяет способ разрешения конфликта
type Strategy string

const (
	PreferIncoming Strategy = "prefer_incoming"
	PreferExisting Strategy = "prefer_existing"
	Manual         Strategy = "manual"
)

// Confidence определяет уверенность эвристики в принятом решении
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Пороги timestamp-эвристики
const (
	// highConfidenceDelta - разница больше этого порога дает high confidence
	highConfidenceDelta = 60 * time.Second

	// mediumConfidenceDelta - разница больше этого порога дает medium confidence
	mediumConfidenceDelta = 10 * time.Second
)

// Entity представляет обобщенный вид сущности для разрешения конфликта
type Entity map[string]any

// Resolution описывает принятое решение
type Resolution struct {
	Strategy   Strategy   `json:"strategy"`
	Reason     string     `json:"reason"`
	Confidence Confidence `json:"confidence"`
}

// Resolve решает, какую из двух версий сущности оставить.
// Ступень 1: timestamp-эвристика - чем больше разрыв во времени,
// тем увереннее выбирается более новая версия.
// Ступень 2: оценка содержательности - пустая версия проигрывает
// наполненной.
// Если обе ступени неубедительны, возвращается Manual/Low.
func Resolve(existing, incoming Entity) Resolution {
	if res, ok := resolveByTimestamp(existing, incoming); ok {
		return res
	}

	if res, ok := resolveByContent(existing, incoming); ok {
		return res
	}

	return Resolution{
		Strategy:   Manual,
		Reason:     "both versions carry comparable information; escalating for human review",
		Confidence: ConfidenceLow,
	}
}

// resolveByTimestamp сравнивает лучшие доступные timestamp двух сущностей.
// Разница > 60s дает high confidence, 10-60s - medium, < 10s неубедительна.
func resolveByTimestamp(existing, incoming Entity) (Resolution, bool) {
	existingTS, okExisting := bestTimestamp(existing)
	incomingTS, okIncoming := bestTimestamp(incoming)
	if !okExisting || !okIncoming {
		return Resolution{}, false
	}

	delta := existingTS.Sub(incomingTS)
	if delta < 0 {
		delta = -delta
	}

	var confidence Confidence
	switch {
	case delta > highConfidenceDelta:
		confidence = ConfidenceHigh
	case delta >= mediumConfidenceDelta:
		confidence = ConfidenceMedium
	default:
		return Resolution{}, false
	}

	strategy := PreferExisting
	newer := "existing"
	if incomingTS.After(existingTS) {
		strategy = PreferIncoming
		newer = "incoming"
	}

	return Resolution{
		Strategy:   strategy,
		Reason:     fmt.Sprintf("%s version is newer by %s", newer, delta.Round(time.Second)),
		Confidence: confidence,
	}, true
}

// resolveByContent оценивает содержательность обеих сущностей.
// Оценка: непустые строки +1, ненулевые числа +1, непустые массивы +2.
// Если одна сторона набирает ноль, а другая нет - выбирается непустая.
func resolveByContent(existing, incoming Entity) (Resolution, bool) {
	existingScore := contentScore(existing)
	incomingScore := contentScore(incoming)

	switch {
	case existingScore == 0 && incomingScore > 0:
		return Resolution{
			Strategy:   PreferIncoming,
			Reason:     "existing version carries no content, incoming does",
			Confidence: ConfidenceHigh,
		}, true
	case incomingScore == 0 && existingScore > 0:
		return Resolution{
			Strategy:   PreferExisting,
			Reason:     "incoming version carries no content, existing does",
			Confidence: ConfidenceHigh,
		}, true
	default:
		return Resolution{}, false
	}
}

// bestTimestamp возвращает лучший доступный timestamp сущности:
// поле "timestamp", иначе "createdAt"
func bestTimestamp(e Entity) (time.Time, bool) {
	for _, field := range []string{"timestamp", "createdAt"} {
		raw, ok := e[field]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case time.Time:
			if !v.IsZero() {
				return v, true
			}
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return ts, true
			}
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// contentScore считает содержательность сущности.
// Поля timestamp/createdAt не учитываются: они есть у обеих сторон
// и не отличают пустую запись от наполненной.
func contentScore(e Entity) int {
	score := 0
	for field, raw := range e {
		if field == "timestamp" || field == "createdAt" {
			continue
		}
		switch v := raw.(type) {
		case string:
			if v != "" {
				score++
			}
		case float64:
			if v != 0 {
				score++
			}
		case int:
			if v != 0 {
				score++
			}
		case int64:
			if v != 0 {
				score++
			}
		case []any:
			if len(v) > 0 {
				score += 2
			}
		case []string:
			if len(v) > 0 {
				score += 2
			}
		}
	}
	return score
}

// CompletionEntity строит обобщенный вид завершения для Resolve
func CompletionEntity(c models.Completion) Entity {
	e := Entity{
		"timestamp": c.Timestamp,
		"outcome":   c.Outcome,
		"index":     c.Index,
	}
	if c.Amount != nil {
		e["amount"] = *c.Amount
	}
	if c.ArrangementID != "" {
		e["arrangementId"] = c.ArrangementID
	}
	return e
}

// ArrangementEntity строит обобщенный вид договоренности для Resolve
func ArrangementEntity(a models.Arrangement) Entity {
	return Entity{
		"createdAt": a.CreatedAt,
		"timestamp": a.UpdatedAt,
		"status":    a.Status,
		"amount":    a.Amount,
		"index":     a.AddressIndex,
	}
}
