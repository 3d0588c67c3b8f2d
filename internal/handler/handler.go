// Package handler содержит HTTP-обработчики API сервиса расчётов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/clickarena-settlement/internal/claim"
	"github.com/mmeshcher/clickarena-settlement/internal/middleware"
	"github.com/mmeshcher/clickarena-settlement/internal/migration"
	"github.com/mmeshcher/clickarena-settlement/internal/model"
	"github.com/mmeshcher/clickarena-settlement/internal/service"
	"github.com/mmeshcher/clickarena-settlement/internal/settlement"
	"github.com/mmeshcher/clickarena-settlement/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	AddSession(ctx context.Context, player string, points, bonusHits, penaltyHits int64, rawTimestamp string) error
	GetRanking(ctx context.Context, dayID int64) ([]model.RankingEntry, error)
	RunSettlement(ctx context.Context, depth int64) []settlement.DayResult
	PendingDays(ctx context.Context, depth int64) ([]int64, map[int64]error)
	RequestClaim(ctx context.Context, dayID int64, rank int, caller string) error
	ReconcileBalances(ctx context.Context, player string) ([]migration.VersionResult, error)
	GetBalances(ctx context.Context, player string) ([]model.VersionBalance, error)
}

// Handler реализует HTTP-обработчики API сервиса расчётов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type loginRequest struct {
	Address string `json:"address"`
}

// Login устанавливает cookie авторизации для указанного адреса игрока.
// Проверка владения адресом (подпись кошелька) выполняется внешним
// шлюзом до этого сервиса.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	address := validation.NormalizeAddress(req.Address)
	if !validation.IsValidAddress(address) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	h.authMiddleware.SetAuthCookie(w, address)
	w.WriteHeader(http.StatusOK)
}

type sessionRequest struct {
	Points      int64  `json:"points"`
	BonusHits   int64  `json:"bonus_hits"`
	PenaltyHits int64  `json:"penalty_hits"`
	Timestamp   string `json:"timestamp"`
}

// UploadSession принимает запись игровой сессии текущего игрока.
func (h *Handler) UploadSession(w http.ResponseWriter, r *http.Request) {
	player, ok := middleware.GetPlayerFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.AddSession(r.Context(), player, req.Points, req.BonusHits, req.PenaltyHits, req.Timestamp)
	if err != nil {
		if errors.Is(err, validation.ErrBadTimestamp) || errors.Is(err, service.ErrInvalidAddress) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("upload session error", zap.Error(err), zap.String("player", player))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetLeaderboard возвращает рейтинг указанного дня.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	dayID, err := strconv.ParseInt(chi.URLParam(r, "dayID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetRanking(r.Context(), dayID)
	if err != nil {
		h.logger.Error("get leaderboard error", zap.Error(err), zap.Int64("dayID", dayID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type claimHTTPRequest struct {
	DayID int64 `json:"day_id"`
	Rank  int   `json:"rank"`
}

// RequestClaim отправляет клейм приза от имени текущего игрока.
// Исходы проверки окна различимы для клиента: истёкшее окно — не то же
// самое, что уже полученный приз или чужое место.
func (h *Handler) RequestClaim(w http.ResponseWriter, r *http.Request) {
	player, ok := middleware.GetPlayerFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req claimHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.RequestClaim(r.Context(), req.DayID, req.Rank, player)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, claim.ErrInvalidRank):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, claim.ErrNoWinner):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, claim.ErrNotWinner):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, claim.ErrAlreadyClaimed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, claim.ErrWindowExpired):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		h.logger.Error("claim error", zap.Error(err),
			zap.Int64("dayID", req.DayID), zap.Int("rank", req.Rank), zap.String("player", player))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// GetBalances возвращает балансы текущего игрока на всех версиях
// кредитного контракта.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	player, ok := middleware.GetPlayerFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balances, err := h.service.GetBalances(r.Context(), player)
	if err != nil {
		h.logger.Error("get balances error", zap.Error(err), zap.String("player", player))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(balances); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type reconcileResponse struct {
	Source  string `json:"source_version"`
	Outcome string `json:"outcome"`
	Amount  int64  `json:"amount,omitempty"`
}

// ReconcileBalances переносит кредитные балансы текущего игрока на
// актуальную версию контракта.
func (h *Handler) ReconcileBalances(w http.ResponseWriter, r *http.Request) {
	player, ok := middleware.GetPlayerFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	results, err := h.service.ReconcileBalances(r.Context(), player)
	if err != nil {
		if errors.Is(err, migration.ErrDuplicateMigration) || errors.Is(err, migration.ErrBalanceMismatch) {
			// Аномалия согласованности: переносы игрока заблокированы
			// до ручного разбора.
			h.logger.Error("migration anomaly", zap.Error(err), zap.String("player", player))
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("reconcile error", zap.Error(err), zap.String("player", player))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]reconcileResponse, 0, len(results))
	for _, res := range results {
		resp = append(resp, reconcileResponse{
			Source:  string(res.Source),
			Outcome: string(res.Outcome),
			Amount:  res.Amount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type settlementRunRequest struct {
	Depth int64 `json:"depth"`
}

type dayResultResponse struct {
	DayID  int64  `json:"day_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RunSettlement запускает один проход расчёта. Вызов идемпотентен:
// уже рассчитанные дни проходят через шлюз идемпотентности без записи.
func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	var req settlementRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	results := h.service.RunSettlement(r.Context(), req.Depth)

	resp := make([]dayResultResponse, 0, len(results))
	for _, res := range results {
		out := dayResultResponse{DayID: res.DayID, Status: string(res.Status)}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		resp = append(resp, out)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// GetPendingDays возвращает дни, ожидающие расчёта.
func (h *Handler) GetPendingDays(w http.ResponseWriter, r *http.Request) {
	var depth int64
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		depth = parsed
	}

	pending, failures := h.service.PendingDays(r.Context(), depth)
	for day, err := range failures {
		h.logger.Warn("pending scan failure", zap.Int64("dayID", day), zap.Error(err))
	}

	if len(pending) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pending); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}
