// Package claim реализует проверку окна получения приза и отправку
// транзакции клейма от имени победителя.
package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/clickarena-settlement/internal/dayid"
	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

// Именованные исходы клейма. Вызывающему важно отличать навсегда
// истёкшее окно от уже полученного приза и от чужого места.
var (
	ErrInvalidRank    = errors.New("rank must be between 1 and 3")
	ErrNoWinner       = errors.New("no winner recorded for this slot")
	ErrNotWinner      = errors.New("caller is not the recorded winner")
	ErrAlreadyClaimed = errors.New("prize already claimed")
	ErrWindowExpired  = errors.New("claim window expired")

	// ErrAbsurdDeadline сигнализирует об аномалии арифметики окна.
	// Такая ошибка не исправляется автоматически и требует оператора.
	ErrAbsurdDeadline = errors.New("claim deadline computation anomaly")
)

// PrizeLedger описывает операции призового контракта, используемые клеймом.
type PrizeLedger interface {
	GetWinner(ctx context.Context, dayID int64, rank int) (string, error)
	IsClaimed(ctx context.Context, dayID int64, rank int) (bool, error)
	Claim(ctx context.Context, dayID int64, rank int, player string) (model.TxReceipt, error)
	WaitConfirmation(ctx context.Context, receipt model.TxReceipt) error
}

// Enforcer проверяет условия клейма перед отправкой транзакции.
type Enforcer struct {
	prize  PrizeLedger
	period time.Duration
	now    func() time.Time
}

// NewEnforcer создаёт проверку окна клейма с указанной длительностью окна.
func NewEnforcer(prize PrizeLedger, period time.Duration) *Enforcer {
	return &Enforcer{
		prize:  prize,
		period: period,
		now:    time.Now,
	}
}

// Deadline возвращает момент закрытия окна клейма для дня.
// Начало дня считается только через dayid.StartTime: миллисекундная
// арифметика идентификаторов дней не должна смешиваться с арифметикой
// моментов времени.
func (e *Enforcer) Deadline(dayID int64) (time.Time, error) {
	if e.period <= 0 {
		return time.Time{}, fmt.Errorf("%w: period %v", ErrAbsurdDeadline, e.period)
	}

	start := dayid.StartTime(dayID)
	deadline := start.Add(e.period)
	if !deadline.After(start) {
		return time.Time{}, fmt.Errorf("%w: deadline %v before day start %v", ErrAbsurdDeadline, deadline, start)
	}

	return deadline, nil
}

// Check проверяет, что caller может забрать приз за место rank дня dayID.
// Возвращает nil либо один из именованных исходов пакета.
func (e *Enforcer) Check(ctx context.Context, dayID int64, rank int, caller string) error {
	if rank < 1 || rank > model.WinnerSlots {
		return ErrInvalidRank
	}

	deadline, err := e.Deadline(dayID)
	if err != nil {
		return err
	}

	winner, err := e.prize.GetWinner(ctx, dayID, rank)
	if err != nil {
		return fmt.Errorf("read winner slot: %w", err)
	}
	if winner == "" {
		return ErrNoWinner
	}
	if winner != caller {
		return ErrNotWinner
	}

	claimed, err := e.prize.IsClaimed(ctx, dayID, rank)
	if err != nil {
		return fmt.Errorf("read claim flag: %w", err)
	}
	if claimed {
		return ErrAlreadyClaimed
	}

	if e.now().After(deadline) {
		return ErrWindowExpired
	}

	return nil
}

// RequestClaim проверяет условия и отправляет транзакцию клейма.
func (e *Enforcer) RequestClaim(ctx context.Context, dayID int64, rank int, caller string) error {
	if err := e.Check(ctx, dayID, rank, caller); err != nil {
		return err
	}

	receipt, err := e.prize.Claim(ctx, dayID, rank, caller)
	if err != nil {
		return fmt.Errorf("submit claim: %w", err)
	}

	if err := e.prize.WaitConfirmation(ctx, receipt); err != nil {
		return fmt.Errorf("confirm claim: %w", err)
	}

	return nil
}
