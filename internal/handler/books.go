package handler

import (
	"net/http"
	"strconv"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
)

type createBookRequest struct {
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	ISBN     string          `json:"isbn"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
}

func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	book, err := h.service.CreateBook(r.Context(), store.CreateBookRequest{
		Title:    req.Title,
		Author:   req.Author,
		ISBN:     req.ISBN,
		Price:    req.Price,
		Stock:    req.Stock,
		Category: req.Category,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, book)
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, book)
}

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	filter := store.BookFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}

	result, err := h.service.ListBooks(r.Context(), filter, page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	var threshold *int
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := strconv.Atoi(raw)
		if err != nil || t < 0 {
			h.respondServiceError(w, r, database.NewValidationError("threshold", "must be a non-negative integer"))
			return
		}
		threshold = &t
	}

	books, err := h.service.ListLowStock(r.Context(), threshold)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, books)
}

func (h *Handler) ListInventoryLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	logs, err := h.service.ListInventoryLogs(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) ReconcileStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	rec, err := h.service.ReconcileStock(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
