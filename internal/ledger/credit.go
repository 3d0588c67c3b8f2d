package ledger

import (
	"context"
	"fmt"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

// CreditClient инкапсулирует обращения к одной версии кредитного контракта.
type CreditClient struct {
	client
	version model.ContractVersion
}

// NewCreditClient создаёт клиент кредитного контракта указанной версии.
func NewCreditClient(version model.ContractVersion, baseURL string) *CreditClient {
	return &CreditClient{client: newClient(baseURL), version: version}
}

// Version возвращает версию контракта, которую обслуживает клиент.
func (c *CreditClient) Version() model.ContractVersion {
	return c.version
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type migrateRequest struct {
	Player        string                `json:"player"`
	Amount        int64                 `json:"amount"`
	SourceVersion model.ContractVersion `json:"source_version"`
}

// GetBalance возвращает баланс игрока на этой версии контракта.
func (c *CreditClient) GetBalance(ctx context.Context, player string) (int64, error) {
	var resp balanceResponse
	found, err := c.getJSON(ctx, "/api/balance/"+player, &resp)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if !found {
		return 0, nil
	}
	return resp.Balance, nil
}

// Migrate отправляет транзакцию зачисления перенесённого баланса.
// Вызывается только на целевой (актуальной) версии контракта.
func (c *CreditClient) Migrate(ctx context.Context, player string, amount int64, source model.ContractVersion) (model.TxReceipt, error) {
	var receipt model.TxReceipt
	err := c.postJSON(ctx, "/api/migrate", migrateRequest{
		Player:        player,
		Amount:        amount,
		SourceVersion: source,
	}, &receipt)
	if err != nil {
		return model.TxReceipt{}, fmt.Errorf("migrate: %w", err)
	}
	return receipt, nil
}

// ListMigrationEvents возвращает журнал переносов баланса игрока,
// зафиксированных на этой версии контракта.
func (c *CreditClient) ListMigrationEvents(ctx context.Context, player string) ([]model.MigrationEvent, error) {
	var events []model.MigrationEvent
	found, err := c.getJSON(ctx, "/api/migrations/"+player, &events)
	if err != nil {
		return nil, fmt.Errorf("list migration events: %w", err)
	}
	if !found {
		return nil, nil
	}
	return events, nil
}
