package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the API, the websocket stream and the metrics endpoint.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.Ping)
		r.Get("/state", h.GetState)
		r.Post("/search", h.Search)
		r.Post("/vote", h.Vote)
		r.Post("/refresh", h.Refresh)

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/", h.ListTokens)
			r.Get("/{contract}", h.GetToken)
			r.Delete("/{contract}", h.DeleteToken)
		})
		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", h.ListReceipts)
			r.Get("/{signature}", h.GetReceipt)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Post("/connect", h.ConnectWallet)
			r.Post("/disconnect", h.DisconnectWallet)
		})
	})

	r.Get("/ws", h.ServeWS)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
