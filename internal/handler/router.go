package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/safar/go-bookstore/internal/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Identify)

	r.Get("/health", h.Health)
	r.Get("/health/db", h.HealthDB)

	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.ListBooks)
		r.With(middleware.RequireAdmin).Get("/low-stock", h.ListLowStock)
		r.With(middleware.RequireAdmin).Post("/", h.CreateBook)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetBook)
			r.With(middleware.RequireAdmin).Get("/inventory", h.ListInventoryLogs)
			r.With(middleware.RequireAdmin).Get("/reconciliation", h.ReconcileStock)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		if h.idempotency != nil {
			h.idempotency.ScopeBy(callerScope)
			r.With(h.idempotency.Middleware(h.logger)).Post("/", h.PlaceOrder)
		} else {
			r.Post("/", h.PlaceOrder)
		}
		r.With(middleware.RequireUser).Get("/mine", h.ListMyOrders)
		r.With(middleware.RequireAdmin).Get("/", h.ListOrders)
		r.With(middleware.RequireUser).Get("/{id}", h.GetOrder)
		r.With(middleware.RequireAdmin).Patch("/{id}/status", h.SetOrderStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)

		r.Post("/procurements", h.CreateProcurement)
		r.Get("/procurements", h.ListProcurements)
		r.Get("/procurements/{id}", h.GetProcurement)
		r.Patch("/procurements/{id}/status", h.SetProcurementStatus)

		r.Post("/suppliers", h.CreateSupplier)
		r.Get("/suppliers", h.ListSuppliers)

		r.Get("/requests", h.ListMissingRequests)
		r.Patch("/requests/{id}/status", h.SetMissingRequestStatus)

		r.Post("/users", h.CreateUser)
		r.Get("/users", h.ListUsers)
		r.Patch("/users/{id}/balance", h.AdjustBalance)
		r.Patch("/users/{id}/credit", h.SetCreditLevel)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Post("/requests", h.CreateMissingRequest)

		r.Get("/favorites", h.ListFavorites)
		r.Post("/favorites", h.AddFavorite)
		r.Delete("/favorites/{bookId}", h.RemoveFavorite)

		r.Patch("/users/me/balance", h.TopUpBalance)
		r.Get("/users/{id}", h.GetUser)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}

func callerScope(r *http.Request) string {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		return strconv.FormatInt(id.UserID, 10)
	}
	return "guest"
}
