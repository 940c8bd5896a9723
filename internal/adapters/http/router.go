package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, map[string]any{"status": "ok"}) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, map[string]any{"status": "ready"}) })
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/escrow", handler.escrowAction)
		r.Get("/escrow", handler.escrowGet)
		r.Post("/payment", handler.paymentPost)
		r.Get("/payment", handler.paymentGet)
		r.Get("/licenses", handler.licensesGet)
		r.Post("/licenses", handler.licensesPost)
		r.Post("/purchase", handler.purchase)
		r.Get("/transactions", handler.transactions)
	})
	return r
}
