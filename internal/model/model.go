// Package model содержит доменные сущности сервиса расчётов.
package model

import "time"

// SessionRecord описывает одну игровую сессию игрока. Запись неизменяема
// после добавления; адрес игрока хранится в нижнем регистре.
type SessionRecord struct {
	Player      string
	Points      int64
	BonusHits   int64
	PenaltyHits int64
	Timestamp   time.Time
}

// RankingEntry описывает агрегат всех сессий игрока за один игровой день.
// Вычисляется по запросу и не сохраняется: источником истины по
// победителям является призовой контракт.
type RankingEntry struct {
	Player      string `json:"player"`
	Score       int64  `json:"score"`
	BonusHits   int64  `json:"bonus_hits"`
	PenaltyHits int64  `json:"penalty_hits"`
}

// WinnerSlots — число призовых мест за один день.
const WinnerSlots = 3

// ContractVersion идентифицирует конкретное развёртывание кредитного
// контракта. Версии упорядочены по времени развёртывания в конфигурации.
type ContractVersion string

// MigrationEvent описывает однократный перенос баланса игрока со старого
// развёртывания кредитного контракта на новое.
type MigrationEvent struct {
	Player        string          `json:"player"`
	Amount        int64           `json:"amount"`
	SourceVersion ContractVersion `json:"source_version"`
	TargetVersion ContractVersion `json:"target_version"`
}

// TxReceipt описывает квитанцию транзакции, отправленной в контракт через релеер.
type TxReceipt struct {
	TxHash    string `json:"tx_hash"`
	Confirmed bool   `json:"confirmed"`
}

// VersionBalance содержит баланс игрока на одной версии кредитного контракта.
type VersionBalance struct {
	Version ContractVersion `json:"version"`
	Balance int64           `json:"balance"`
}
