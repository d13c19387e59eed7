package handler

import (
	"net/http"
	"time"

	"github.com/safar/go-bookstore/internal/receiving"
	"github.com/safar/go-bookstore/internal/store"
)

type createSupplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type createProcurementRequest struct {
	SupplierID   int64      `json:"supplier_id"`
	BookID       int64      `json:"book_id"`
	Quantity     int        `json:"quantity"`
	Status       string     `json:"status"`
	ExpectedDate *time.Time `json:"expected_date"`
	Note         *string    `json:"note"`
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req createSupplierRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	supplier, err := h.service.CreateSupplier(r.Context(), store.CreateSupplierRequest{
		Name:    req.Name,
		Contact: req.Contact,
		Phone:   req.Phone,
		Email:   req.Email,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, supplier)
}

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, suppliers)
}

func (h *Handler) CreateProcurement(w http.ResponseWriter, r *http.Request) {
	var req createProcurementRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	p, err := h.service.CreateProcurement(r.Context(), receiving.CreateRequest{
		SupplierID:   req.SupplierID,
		BookID:       req.BookID,
		Quantity:     req.Quantity,
		Status:       req.Status,
		ExpectedDate: req.ExpectedDate,
		Note:         req.Note,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetProcurement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	p, err := h.service.GetProcurement(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) ListProcurements(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListProcurements(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) SetProcurementStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	p, err := h.service.SetProcurementStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}
