package ledger

import (
	"context"
	"fmt"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

// PrizeClient инкапсулирует обращения к призовому контракту.
type PrizeClient struct {
	client
}

// NewPrizeClient создаёт клиент призового контракта по адресу релеера.
func NewPrizeClient(baseURL string) *PrizeClient {
	return &PrizeClient{client: newClient(baseURL)}
}

type winnerResponse struct {
	Player string `json:"player"`
}

type claimedResponse struct {
	Claimed bool `json:"claimed"`
}

type registerRequest struct {
	DayID   int64    `json:"day_id"`
	Winners []string `json:"winners"`
}

type claimRequest struct {
	DayID  int64  `json:"day_id"`
	Rank   int    `json:"rank"`
	Player string `json:"player"`
}

// GetWinner возвращает адрес победителя для места rank указанного дня.
// Пустая строка означает, что место ещё не заполнено.
func (c *PrizeClient) GetWinner(ctx context.Context, dayID int64, rank int) (string, error) {
	var resp winnerResponse
	found, err := c.getJSON(ctx, fmt.Sprintf("/api/winners/%d/%d", dayID, rank), &resp)
	if err != nil {
		return "", fmt.Errorf("get winner: %w", err)
	}
	if !found {
		return "", nil
	}
	return resp.Player, nil
}

// IsClaimed сообщает, был ли приз указанного места уже востребован.
func (c *PrizeClient) IsClaimed(ctx context.Context, dayID int64, rank int) (bool, error) {
	var resp claimedResponse
	found, err := c.getJSON(ctx, fmt.Sprintf("/api/claims/%d/%d", dayID, rank), &resp)
	if err != nil {
		return false, fmt.Errorf("get claim: %w", err)
	}
	if !found {
		return false, nil
	}
	return resp.Claimed, nil
}

// RegisterWinners отправляет единственную транзакцию регистрации всех
// призёров дня. Список всегда содержит ровно три позиции: незаполненные
// места передаются пустыми строками, чтобы ранги сохраняли позиционный смысл.
func (c *PrizeClient) RegisterWinners(ctx context.Context, dayID int64, winners [model.WinnerSlots]string) (model.TxReceipt, error) {
	var receipt model.TxReceipt
	err := c.postJSON(ctx, "/api/winners", registerRequest{DayID: dayID, Winners: winners[:]}, &receipt)
	if err != nil {
		return model.TxReceipt{}, fmt.Errorf("register winners: %w", err)
	}
	return receipt, nil
}

// Claim отправляет транзакцию получения приза за место rank.
func (c *PrizeClient) Claim(ctx context.Context, dayID int64, rank int, player string) (model.TxReceipt, error) {
	var receipt model.TxReceipt
	err := c.postJSON(ctx, "/api/claims", claimRequest{DayID: dayID, Rank: rank, Player: player}, &receipt)
	if err != nil {
		return model.TxReceipt{}, fmt.Errorf("claim: %w", err)
	}
	return receipt, nil
}
