// Package ranking реализует детерминированное построение дневного рейтинга
// игроков по сырым записям сессий.
package ranking

import (
	"sort"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
	"github.com/mmeshcher/clickarena-settlement/internal/validation"
)

// Build агрегирует записи сессий одного дня в упорядоченный рейтинг.
// Записи одного игрока (без учёта регистра адреса) суммируются.
//
// Порядок: очки по убыванию, затем бонусные попадания по убыванию, затем
// штрафные попадания по возрастанию. Остаточная ничья разрешается по
// адресу по возрастанию, чтобы результат не зависел от порядка обхода map.
func Build(records []model.SessionRecord) []model.RankingEntry {
	byPlayer := make(map[string]*model.RankingEntry)
	for _, rec := range records {
		player := validation.NormalizeAddress(rec.Player)
		entry, ok := byPlayer[player]
		if !ok {
			entry = &model.RankingEntry{Player: player}
			byPlayer[player] = entry
		}
		entry.Score += rec.Points
		entry.BonusHits += rec.BonusHits
		entry.PenaltyHits += rec.PenaltyHits
	}

	entries := make([]model.RankingEntry, 0, len(byPlayer))
	for _, entry := range byPlayer {
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})

	return entries
}

// Less сообщает, должен ли игрок a стоять в рейтинге выше игрока b.
func Less(a, b model.RankingEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.BonusHits != b.BonusHits {
		return a.BonusHits > b.BonusHits
	}
	if a.PenaltyHits != b.PenaltyHits {
		return a.PenaltyHits < b.PenaltyHits
	}
	return a.Player < b.Player
}

// Winners возвращает адреса призёров — первые элементы рейтинга, но не
// более трёх. Пустой день даёт пустой список, незаполненные места не
// подменяются нулевыми адресами.
func Winners(entries []model.RankingEntry) []string {
	n := len(entries)
	if n > model.WinnerSlots {
		n = model.WinnerSlots
	}
	winners := make([]string, 0, n)
	for _, entry := range entries[:n] {
		winners = append(winners, entry.Player)
	}
	return winners
}
