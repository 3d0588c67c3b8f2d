// Package settlement реализует ежедневный расчёт: поиск нерассчитанных
// дней и однократную регистрацию призёров в призовом контракте.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/clickarena-settlement/internal/dayid"
	"github.com/mmeshcher/clickarena-settlement/internal/model"
	"github.com/mmeshcher/clickarena-settlement/internal/ranking"
	"github.com/mmeshcher/clickarena-settlement/internal/validation"
)

// Ошибки валидации списка призёров. Обе означают дефект агрегации выше по
// потоку, а не временный сбой: день пропускается и не ретраится.
var (
	ErrDuplicateWinners = errors.New("duplicate winner addresses")
	ErrTooManyWinners   = errors.New("more than three winners computed")
	ErrMalformedWinner  = errors.New("malformed winner address")
)

// SessionStore описывает контракт чтения сессий, используемый расчётом.
type SessionStore interface {
	ListSessionsByDay(ctx context.Context, dayID int64) ([]model.SessionRecord, error)
	DaysWithSessions(ctx context.Context, fromDay, toDay int64) ([]int64, error)
}

// PrizeLedger описывает операции призового контракта, используемые расчётом.
type PrizeLedger interface {
	GetWinner(ctx context.Context, dayID int64, rank int) (string, error)
	RegisterWinners(ctx context.Context, dayID int64, winners [model.WinnerSlots]string) (model.TxReceipt, error)
	WaitConfirmation(ctx context.Context, receipt model.TxReceipt) error
}

// Status описывает итог обработки одного дня.
type Status string

const (
	// StatusRegistered — призёры зарегистрированы этим запуском.
	StatusRegistered Status = "REGISTERED"
	// StatusAlreadyRegistered — день был рассчитан ранее, запись не отправлялась.
	StatusAlreadyRegistered Status = "ALREADY_REGISTERED"
	// StatusEmptyDay — за день не было ни одной сессии.
	StatusEmptyDay Status = "EMPTY_DAY"
	// StatusFailed — день не обработан; подробности в DayResult.Err.
	StatusFailed Status = "FAILED"
)

// DayResult содержит итог обработки одного дня в рамках запуска расчёта.
type DayResult struct {
	DayID  int64
	Status Status
	Err    error
}

// Orchestrator выполняет регистрацию призёров, по одному дню за раз.
// Перед любой отправкой состояние контракта перечитывается: внешняя
// запись — единственный арбитр того, что день уже рассчитан.
type Orchestrator struct {
	store  SessionStore
	prize  PrizeLedger
	logger *zap.Logger

	interval time.Duration
	depth    int64
	now      func() time.Time
}

// NewOrchestrator создаёт оркестратор расчёта.
// interval — период фонового запуска, depth — глубина сканирования в днях.
func NewOrchestrator(store SessionStore, prize PrizeLedger, logger *zap.Logger, interval time.Duration, depth int64) *Orchestrator {
	return &Orchestrator{
		store:    store,
		prize:    prize,
		logger:   logger,
		interval: interval,
		depth:    depth,
		now:      time.Now,
	}
}

// SettleDay обрабатывает один день: шлюз идемпотентности, построение
// рейтинга, валидация, отправка и ожидание подтверждения.
func (o *Orchestrator) SettleDay(ctx context.Context, dayID int64) (Status, error) {
	// Шлюз идемпотентности: непустое первое место означает, что день уже
	// рассчитан — повторный запуск обязан быть безопасным no-op.
	winner, err := o.prize.GetWinner(ctx, dayID, 1)
	if err != nil {
		return StatusFailed, fmt.Errorf("read rank 1 slot: %w", err)
	}
	if winner != "" {
		return StatusAlreadyRegistered, nil
	}

	records, err := o.store.ListSessionsByDay(ctx, dayID)
	if err != nil {
		return StatusFailed, fmt.Errorf("list sessions: %w", err)
	}

	entries := ranking.Build(records)
	if len(entries) == 0 {
		return StatusEmptyDay, nil
	}

	winners := ranking.Winners(entries)
	if err := validateWinners(winners); err != nil {
		return StatusFailed, err
	}

	// Незаполненные места передаются пустыми строками, чтобы ранги
	// сохраняли позиционный смысл.
	var padded [model.WinnerSlots]string
	copy(padded[:], winners)

	receipt, err := o.prize.RegisterWinners(ctx, dayID, padded)
	if err != nil {
		return StatusFailed, fmt.Errorf("register winners: %w", err)
	}

	// По таймауту подтверждения не переотправляем вслепую: транзакция
	// могла попасть в блок, следующий запуск пройдёт через шлюз выше.
	if err := o.prize.WaitConfirmation(ctx, receipt); err != nil {
		return StatusFailed, fmt.Errorf("confirm registration: %w", err)
	}

	return StatusRegistered, nil
}

func validateWinners(winners []string) error {
	if len(winners) > model.WinnerSlots {
		return fmt.Errorf("%w: %d", ErrTooManyWinners, len(winners))
	}

	seen := make(map[string]struct{}, len(winners))
	for _, w := range winners {
		if !validation.IsValidAddress(w) {
			return fmt.Errorf("%w: %q", ErrMalformedWinner, w)
		}
		if _, ok := seen[w]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateWinners, w)
		}
		seen[w] = struct{}{}
	}

	return nil
}

// PendingDays возвращает дни диапазона, у которых есть сессии, но нет
// записи о победителе первого места. Сбой чтения по одному дню не
// прерывает сканирование остальных.
func (o *Orchestrator) PendingDays(ctx context.Context, depth int64) ([]int64, map[int64]error) {
	if depth <= 0 {
		depth = o.depth
	}

	toDay := dayid.Yesterday(o.now())
	fromDay := toDay - depth + 1

	days, err := o.store.DaysWithSessions(ctx, fromDay, toDay)
	if err != nil {
		return nil, map[int64]error{toDay: fmt.Errorf("list days with sessions: %w", err)}
	}

	var pending []int64
	failures := make(map[int64]error)

	for _, day := range days {
		winner, err := o.prize.GetWinner(ctx, day, 1)
		if err != nil {
			failures[day] = fmt.Errorf("read rank 1 slot: %w", err)
			continue
		}
		if winner == "" {
			pending = append(pending, day)
		}
	}

	return pending, failures
}

// Run выполняет один проход расчёта: сканирует нерассчитанные дни и
// обрабатывает их последовательно. Ошибка одного дня не блокирует
// остальные.
func (o *Orchestrator) Run(ctx context.Context, depth int64) []DayResult {
	if depth <= 0 {
		depth = o.depth
	}

	pending, failures := o.PendingDays(ctx, depth)

	results := make([]DayResult, 0, len(pending)+len(failures))
	for day, err := range failures {
		results = append(results, DayResult{DayID: day, Status: StatusFailed, Err: err})
	}

	for _, day := range pending {
		status, err := o.SettleDay(ctx, day)
		results = append(results, DayResult{DayID: day, Status: status, Err: err})

		if err != nil {
			o.logger.Error("settle day failed",
				zap.Int64("dayID", day),
				zap.Error(err),
			)
			continue
		}

		o.logger.Info("settle day done",
			zap.Int64("dayID", day),
			zap.String("status", string(status)),
		)
	}

	return results
}

// Start запускает фоновый цикл расчёта. Единственный активный запуск
// обеспечивает дисциплину «один писатель на день»; защита самого
// контракта от повторной записи остаётся лишь подстраховкой.
func (o *Orchestrator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.Run(ctx, o.depth)
			}
		}
	}()
}
