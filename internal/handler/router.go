package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/clickarena-settlement/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса расчётов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/login", h.Login)

		r.Get("/leaderboard/{dayID}", h.GetLeaderboard)

		r.Post("/settlement/run", h.RunSettlement)
		r.Get("/settlement/pending", h.GetPendingDays)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/sessions", h.UploadSession)
			r.Post("/claim", h.RequestClaim)

			r.Get("/balance", h.GetBalances)
			r.Post("/balance/reconcile", h.ReconcileBalances)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
