// Package merge реализует детерминированное слияние двух независимо
// развивавшихся snapshot в один. Все функции чистые: результат зависит
// только от двух входов, внешние часы не используются. Слияние
// идемпотентно (Merge(s, s) == s с точностью до порядка ключей) и
// коммутативно для объединяемых множеств (completions, arrangements).
package merge

import (
	"sort"
	"strings"

	"github.com/iudanet/routesync/internal/models"
)

// Merge объединяет текущий и входящий snapshot в новый snapshot.
// Входные snapshot не изменяются.
func Merge(current, incoming *models.Snapshot) *models.Snapshot {
	if current == nil && incoming == nil {
		return models.NewSnapshot()
	}
	if current == nil {
		return incoming.Clone()
	}
	if incoming == nil {
		return current.Clone()
	}

	result := &models.Snapshot{}

	result.Completions = mergeCompletions(current.Completions, incoming.Completions)
	result.Addresses, result.CurrentListVersion = mergeAddresses(
		current.Addresses, current.CurrentListVersion,
		incoming.Addresses, incoming.CurrentListVersion,
	)
	result.Arrangements = mergeArrangements(current.Arrangements, incoming.Arrangements)
	result.DaySessions = mergeDaySessions(current.DaySessions, incoming.DaySessions)
	result.ActiveIndex = mergeActiveIndex(current.ActiveIndex, incoming.ActiveIndex)
	result.Settings = mergeSettings(current.Settings, incoming.Settings)

	return result.Clone()
}

// mergeCompletions объединяет завершения по ключу (timestamp, index, outcome).
// При совпадении ключа побеждает сторона с более поздним timestamp;
// при равных timestamp побеждает incoming. Поля победителя имеют
// приоритет, недостающие поля дополняются из проигравшей стороны
// (shallow merge). Результат отсортирован по timestamp по убыванию.
func mergeCompletions(current, incoming []models.Completion) []models.Completion {
	byKey := make(map[string]models.Completion, len(current)+len(incoming))

	for _, c := range current {
		byKey[c.Key()] = c
	}

	for _, inc := range incoming {
		key := inc.Key()
		cur, exists := byKey[key]
		if !exists {
			byKey[key] = inc
			continue
		}

		if inc.Timestamp.Before(cur.Timestamp) {
			byKey[key] = fillMissingFields(cur, inc)
		} else {
			byKey[key] = fillMissingFields(inc, cur)
		}
	}

	result := make([]models.Completion, 0, len(byKey))
	for _, c := range byKey {
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		if result[i].Index != result[j].Index {
			return result[i].Index < result[j].Index
		}
		return result[i].Outcome < result[j].Outcome
	})

	return result
}

// fillMissingFields дополняет пустые поля победителя значениями
// проигравшей стороны. Ключевые поля (Timestamp, Index, Outcome)
// у обеих сторон совпадают по построению.
func fillMissingFields(winner, loser models.Completion) models.Completion {
	if winner.Amount == nil {
		winner.Amount = loser.Amount
	}
	if winner.ArrangementID == "" {
		winner.ArrangementID = loser.ArrangementID
	}
	if winner.ListVersion == 0 {
		winner.ListVersion = loser.ListVersion
	}
	return winner
}

// mergeAddresses выбирает список адресов и результирующую версию.
// Версия результата всегда max двух версий (CurrentListVersion только растет).
// Правила выбора списка:
//  1. Большая версия выигрывает целиком, кроме случая когда у нее
//     пустой/бессодержательный список, а у меньшей версии есть реальные
//     данные - тогда данные сохраняются (защита от version-bump бага,
//     стирающего список).
//  2. При равных версиях, если длины отличаются ровно на 1 и короткий
//     список целиком содержится в длинном (без учета регистра и пробелов),
//     длинный считается результатом ручного добавления одного адреса.
//  3. Иначе предпочитается список, который не короче.
func mergeAddresses(current []models.Address, currentVersion int64, incoming []models.Address, incomingVersion int64) ([]models.Address, int64) {
	version := currentVersion
	if incomingVersion > version {
		version = incomingVersion
	}

	if currentVersion != incomingVersion {
		higher, lower := current, incoming
		if incomingVersion > currentVersion {
			higher, lower = incoming, current
		}

		if !meaningful(higher) && meaningful(lower) {
			return lower, version
		}
		return higher, version
	}

	// Версии равны
	if diff := len(current) - len(incoming); diff == 1 || diff == -1 {
		shorter, longer := current, incoming
		if len(current) > len(incoming) {
			shorter, longer = incoming, current
		}
		if isSuperset(longer, shorter) {
			return longer, version
		}
	}

	if len(incoming) > len(current) {
		return incoming, version
	}
	return current, version
}

// meaningful возвращает true, если список содержит хотя бы один
// адрес с непустым текстом
func meaningful(addresses []models.Address) bool {
	for _, a := range addresses {
		if strings.TrimSpace(a.Address) != "" {
			return true
		}
	}
	return false
}

// isSuperset проверяет, что каждый адрес из subset присутствует в
// superset (сравнение без учета регистра, с обрезкой пробелов)
func isSuperset(superset, subset []models.Address) bool {
	index := make(map[string]bool, len(superset))
	for _, a := range superset {
		index[normalizeAddress(a.Address)] = true
	}

	for _, a := range subset {
		if !index[normalizeAddress(a.Address)] {
			return false
		}
	}
	return true
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mergeArrangements объединяет договоренности по ID.
// При коллизии побеждает запись с более поздним UpdatedAt;
// при равных UpdatedAt сохраняется текущая.
// Порядок: текущие записи в исходном порядке, новые добавляются в конец.
func mergeArrangements(current, incoming []models.Arrangement) []models.Arrangement {
	result := make([]models.Arrangement, len(current))
	copy(result, current)

	position := make(map[string]int, len(current))
	for i, a := range current {
		position[a.ID] = i
	}

	for _, inc := range incoming {
		i, exists := position[inc.ID]
		if !exists {
			position[inc.ID] = len(result)
			result = append(result, inc)
			continue
		}
		if inc.UpdatedAt.After(result[i].UpdatedAt) {
			result[i] = inc
		}
	}

	return result
}

// mergeDaySessions объединяет сессии по дате.
// При коллизии закрытая сессия (есть End) побеждает открытую;
// между двумя закрытыми побеждает более поздний End;
// между двумя открытыми - более ранний Start (дольше идущая сессия).
func mergeDaySessions(current, incoming []models.DaySession) []models.DaySession {
	result := make([]models.DaySession, len(current))
	copy(result, current)

	position := make(map[string]int, len(current))
	for i, d := range current {
		position[d.Date] = i
	}

	for _, inc := range incoming {
		i, exists := position[inc.Date]
		if !exists {
			position[inc.Date] = len(result)
			result = append(result, inc)
			continue
		}

		cur := result[i]
		if sessionWins(inc, cur) {
			result[i] = inc
		}
	}

	return result
}

// sessionWins возвращает true, если candidate должен заменить existing
func sessionWins(candidate, existing models.DaySession) bool {
	switch {
	case candidate.End != nil && existing.End == nil:
		return true
	case candidate.End == nil && existing.End != nil:
		return false
	case candidate.End != nil && existing.End != nil:
		return candidate.End.After(*existing.End)
	default:
		// Обе открыты: побеждает раньше начавшаяся
		return candidate.Start.Before(existing.Start)
	}
}

// mergeActiveIndex: значение incoming выигрывает если задано,
// иначе current, иначе nil
func mergeActiveIndex(current, incoming *int) *int {
	if incoming != nil {
		return incoming
	}
	return current
}

// mergeSettings: настройки incoming выигрывают если заданы
// (не нулевое значение), иначе сохраняются текущие
func mergeSettings(current, incoming models.Settings) models.Settings {
	if incoming == (models.Settings{}) {
		return current
	}
	return incoming
}
