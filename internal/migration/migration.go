// Package migration реализует перенос кредитных балансов игроков между
// версиями кредитного контракта и сверку после переноса.
package migration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

// Аномалии согласованности. Не исправляются автоматически: «тихая починка»
// финансового состояния реестра запрещена, требуется оператор.
var (
	ErrDuplicateMigration = errors.New("duplicate migration event")
	ErrBalanceMismatch    = errors.New("balance mismatch after migration")
	ErrTooFewVersions     = errors.New("at least two contract versions required")
)

// CreditLedger описывает операции одной версии кредитного контракта.
type CreditLedger interface {
	Version() model.ContractVersion
	GetBalance(ctx context.Context, player string) (int64, error)
	Migrate(ctx context.Context, player string, amount int64, source model.ContractVersion) (model.TxReceipt, error)
	ListMigrationEvents(ctx context.Context, player string) ([]model.MigrationEvent, error)
	WaitConfirmation(ctx context.Context, receipt model.TxReceipt) error
}

// Outcome описывает итог обработки одной исходной версии контракта.
type Outcome string

const (
	// OutcomeMigrated — баланс перенесён этим запуском и сверка сошлась.
	OutcomeMigrated Outcome = "MIGRATED"
	// OutcomeNoBalance — на исходной версии нечего переносить.
	OutcomeNoBalance Outcome = "NO_BALANCE"
	// OutcomeAlreadyMigrated — перенос был выполнен ранее, повтор не отправлялся.
	OutcomeAlreadyMigrated Outcome = "ALREADY_MIGRATED"
)

// VersionResult содержит итог обработки одной исходной версии.
type VersionResult struct {
	Source  model.ContractVersion
	Outcome Outcome
	Amount  int64
}

// Reconciler переносит балансы игрока со всех исторических версий
// кредитного контракта на актуальную.
type Reconciler struct {
	// Версии упорядочены по времени развёртывания; последняя — целевая.
	versions []CreditLedger
	logger   *zap.Logger
}

// NewReconciler создаёт реконсилер над упорядоченным списком версий.
func NewReconciler(versions []CreditLedger, logger *zap.Logger) (*Reconciler, error) {
	if len(versions) < 2 {
		return nil, ErrTooFewVersions
	}
	return &Reconciler{versions: versions, logger: logger}, nil
}

// Target возвращает актуальную (целевую) версию контракта.
func (r *Reconciler) Target() CreditLedger {
	return r.versions[len(r.versions)-1]
}

// ReconcilePlayer переносит балансы игрока со всех исходных версий на
// целевую. Любая аномалия согласованности прекращает обработку игрока:
// дальнейшие переносы блокируются до ручного разбора.
func (r *Reconciler) ReconcilePlayer(ctx context.Context, player string) ([]VersionResult, error) {
	target := r.Target()

	events, err := target.ListMigrationEvents(ctx, player)
	if err != nil {
		return nil, fmt.Errorf("list migration events: %w", err)
	}

	eventCount := make(map[model.ContractVersion]int)
	for _, ev := range events {
		if ev.TargetVersion == target.Version() {
			eventCount[ev.SourceVersion]++
		}
	}

	var results []VersionResult
	for _, source := range r.versions[:len(r.versions)-1] {
		res, err := r.reconcileVersion(ctx, player, source, target, eventCount[source.Version()])
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	return results, nil
}

func (r *Reconciler) reconcileVersion(ctx context.Context, player string, source, target CreditLedger, priorEvents int) (VersionResult, error) {
	version := source.Version()

	// Контракт-источник сам не гарантирует однократность переноса,
	// поэтому проверка журнала — ключевая обязанность реконсилера.
	if priorEvents > 1 {
		return VersionResult{}, fmt.Errorf("%w: player %s, source %s (%d events)",
			ErrDuplicateMigration, player, version, priorEvents)
	}
	if priorEvents == 1 {
		return VersionResult{Source: version, Outcome: OutcomeAlreadyMigrated}, nil
	}

	balance, err := source.GetBalance(ctx, player)
	if err != nil {
		return VersionResult{}, fmt.Errorf("source %s balance: %w", version, err)
	}
	if balance == 0 {
		return VersionResult{Source: version, Outcome: OutcomeNoBalance}, nil
	}

	before, err := target.GetBalance(ctx, player)
	if err != nil {
		return VersionResult{}, fmt.Errorf("target balance before: %w", err)
	}

	receipt, err := target.Migrate(ctx, player, balance, version)
	if err != nil {
		return VersionResult{}, fmt.Errorf("migrate from %s: %w", version, err)
	}

	if err := target.WaitConfirmation(ctx, receipt); err != nil {
		return VersionResult{}, fmt.Errorf("confirm migration from %s: %w", version, err)
	}

	after, err := target.GetBalance(ctx, player)
	if err != nil {
		return VersionResult{}, fmt.Errorf("target balance after: %w", err)
	}

	// Сверка сохранения суммы: расхождение фиксируется, а не принимается.
	if after != before+balance {
		return VersionResult{}, fmt.Errorf("%w: player %s, source %s: %d != %d + %d",
			ErrBalanceMismatch, player, version, after, before, balance)
	}

	r.logger.Info("balance migrated",
		zap.String("player", player),
		zap.String("source", string(version)),
		zap.Int64("amount", balance),
	)

	return VersionResult{Source: version, Outcome: OutcomeMigrated, Amount: balance}, nil
}

// Balances возвращает балансы игрока на всех версиях контракта в порядке
// развёртывания.
func (r *Reconciler) Balances(ctx context.Context, player string) ([]model.VersionBalance, error) {
	res := make([]model.VersionBalance, 0, len(r.versions))
	for _, v := range r.versions {
		balance, err := v.GetBalance(ctx, player)
		if err != nil {
			return nil, fmt.Errorf("balance on %s: %w", v.Version(), err)
		}
		res = append(res, model.VersionBalance{Version: v.Version(), Balance: balance})
	}
	return res, nil
}
