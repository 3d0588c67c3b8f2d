// Package service реализует бизнес-логику сервиса расчётов.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/clickarena-settlement/internal/cache"
	"github.com/mmeshcher/clickarena-settlement/internal/dayid"
	"github.com/mmeshcher/clickarena-settlement/internal/migration"
	"github.com/mmeshcher/clickarena-settlement/internal/model"
	"github.com/mmeshcher/clickarena-settlement/internal/ranking"
	"github.com/mmeshcher/clickarena-settlement/internal/settlement"
	"github.com/mmeshcher/clickarena-settlement/internal/validation"
)

// ErrInvalidAddress возвращается для некорректного адреса игрока.
var ErrInvalidAddress = errors.New("invalid player address")

// Repository описывает контракт доступа к хранилищу сессий.
type Repository interface {
	Close() error
	AddSession(ctx context.Context, rec model.SessionRecord) error
	ListSessionsByDay(ctx context.Context, dayID int64) ([]model.SessionRecord, error)
	DaysWithSessions(ctx context.Context, fromDay, toDay int64) ([]int64, error)
}

// Settler описывает операции расчёта, доступные через сервис.
type Settler interface {
	Run(ctx context.Context, depth int64) []settlement.DayResult
	PendingDays(ctx context.Context, depth int64) ([]int64, map[int64]error)
}

// Claimer описывает операцию получения приза.
type Claimer interface {
	RequestClaim(ctx context.Context, dayID int64, rank int, caller string) error
}

// Reconciler описывает операции переноса кредитных балансов.
type Reconciler interface {
	ReconcilePlayer(ctx context.Context, player string) ([]migration.VersionResult, error)
	Balances(ctx context.Context, player string) ([]model.VersionBalance, error)
}

// Service содержит бизнес-логику сервиса расчётов.
type Service struct {
	repo       Repository
	settler    Settler
	claimer    Claimer
	reconciler Reconciler
	rankings   *cache.RankingCache
}

// NewService создаёт сервис. cacheTTL — граница устаревания кеша рейтингов.
func NewService(repo Repository, settler Settler, claimer Claimer, reconciler Reconciler, cacheTTL time.Duration) *Service {
	s := &Service{
		repo:       repo,
		settler:    settler,
		claimer:    claimer,
		reconciler: reconciler,
	}

	s.rankings = cache.NewRankingCache(func(ctx context.Context, dayID int64) ([]model.RankingEntry, error) {
		records, err := repo.ListSessionsByDay(ctx, dayID)
		if err != nil {
			return nil, err
		}
		return ranking.Build(records), nil
	}, cacheTTL)

	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// AddSession валидирует и сохраняет запись игровой сессии.
// Метка времени разбирается ровно здесь — единственная точка входа
// внешних меток времени в систему.
func (s *Service) AddSession(ctx context.Context, player string, points, bonusHits, penaltyHits int64, rawTimestamp string) error {
	player = validation.NormalizeAddress(player)
	if !validation.IsValidAddress(player) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, player)
	}

	ts, err := validation.ParseTimestamp(rawTimestamp)
	if err != nil {
		return err
	}

	rec := model.SessionRecord{
		Player:      player,
		Points:      points,
		BonusHits:   bonusHits,
		PenaltyHits: penaltyHits,
		Timestamp:   ts,
	}

	if err := s.repo.AddSession(ctx, rec); err != nil {
		return err
	}

	s.rankings.Invalidate(dayid.FromTime(ts))
	return nil
}

// GetRanking возвращает рейтинг дня через сквозной кеш.
func (s *Service) GetRanking(ctx context.Context, dayID int64) ([]model.RankingEntry, error) {
	return s.rankings.Get(ctx, dayID)
}

// RunSettlement выполняет один проход расчёта с указанной глубиной
// сканирования. Безопасен для повторных вызовов.
func (s *Service) RunSettlement(ctx context.Context, depth int64) []settlement.DayResult {
	return s.settler.Run(ctx, depth)
}

// PendingDays возвращает нерассчитанные дни и ошибки сканирования по дням.
func (s *Service) PendingDays(ctx context.Context, depth int64) ([]int64, map[int64]error) {
	return s.settler.PendingDays(ctx, depth)
}

// RequestClaim проверяет и отправляет клейм приза от имени caller.
func (s *Service) RequestClaim(ctx context.Context, dayID int64, rank int, caller string) error {
	return s.claimer.RequestClaim(ctx, dayID, rank, validation.NormalizeAddress(caller))
}

// ReconcileBalances переносит кредитные балансы игрока на актуальную
// версию контракта.
func (s *Service) ReconcileBalances(ctx context.Context, player string) ([]migration.VersionResult, error) {
	player = validation.NormalizeAddress(player)
	if !validation.IsValidAddress(player) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, player)
	}
	return s.reconciler.ReconcilePlayer(ctx, player)
}

// GetBalances возвращает балансы игрока на всех версиях кредитного контракта.
func (s *Service) GetBalances(ctx context.Context, player string) ([]model.VersionBalance, error) {
	return s.reconciler.Balances(ctx, validation.NormalizeAddress(player))
}
