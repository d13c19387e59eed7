package handler

import (
	"net/http"
	"strconv"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/middleware"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/settlement"
	"github.com/shopspring/decimal"
)

type cartItemRequest struct {
	ID    int64           `json:"id"`
	Price decimal.Decimal `json:"price"`
}

type placeOrderRequest struct {
	Items         []cartItemRequest `json:"items"`
	Contact       models.Contact    `json:"contact"`
	PaymentMethod string            `json:"payment_method"`
	ShippingFee   decimal.Decimal   `json:"shipping_fee"`
}

type placeOrderResponse struct {
	*models.Order
	Balance *decimal.Decimal `json:"balance,omitempty"`
}

// PlaceOrder settles a cart. Anonymous callers check out as guests; an
// identified caller is the payer for balance payments.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	items := make([]settlement.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, settlement.CartItem{BookID: it.ID, PriceHint: it.Price})
	}

	sreq := settlement.Request{
		Items:         items,
		Contact:       req.Contact,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		ShippingFee:   req.ShippingFee,
	}
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		payer := id.UserID
		sreq.PayerUserID = &payer
	}

	res, err := h.service.PlaceOrder(r.Context(), sreq)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, placeOrderResponse{Order: res.Order, Balance: res.Balance})
}

// GetOrder hides other users' orders behind 404 unless the caller is an admin.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	caller, _ := middleware.IdentityFromContext(r.Context())
	if !caller.IsAdmin() && (order.UserID == nil || *order.UserID != caller.UserID) {
		h.respondServiceError(w, r, database.ErrOrderNotFound)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := h.service.ListUserOrders(r.Context(), caller.UserID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := h.service.ListOrders(r.Context(), page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.service.SetOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
