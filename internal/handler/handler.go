// Package handler exposes the bookstore service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/idempotency"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/receiving"
	"github.com/safar/go-bookstore/internal/settlement"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
)

// Service is the business API the handlers depend on.
type Service interface {
	Ping(ctx context.Context) error

	CreateBook(ctx context.Context, req store.CreateBookRequest) (*models.Book, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	ListBooks(ctx context.Context, filter store.BookFilter, page, pageSize int) (*store.OffsetPage, error)
	ListLowStock(ctx context.Context, threshold *int) ([]models.Book, error)
	ListInventoryLogs(ctx context.Context, bookID int64) ([]models.InventoryLog, error)
	ReconcileStock(ctx context.Context, bookID int64) (*models.StockReconciliation, error)

	PlaceOrder(ctx context.Context, req settlement.Request) (*settlement.Result, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error)
	ListOrders(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	SetOrderStatus(ctx context.Context, id int64, next string) (*models.Order, error)

	CreateSupplier(ctx context.Context, req store.CreateSupplierRequest) (*models.Supplier, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	CreateProcurement(ctx context.Context, req receiving.CreateRequest) (*models.Procurement, error)
	SetProcurementStatus(ctx context.Context, id int64, next string) (*models.Procurement, error)
	GetProcurement(ctx context.Context, id int64) (*models.Procurement, error)
	ListProcurements(ctx context.Context, status string) ([]models.Procurement, error)

	CreateMissingRequest(ctx context.Context, req store.CreateMissingRequestRequest) (*models.MissingRequest, error)
	ListMissingRequests(ctx context.Context) ([]models.MissingRequest, error)
	SetMissingRequestStatus(ctx context.Context, id int64, next string) (*models.MissingRequest, error)

	AddFavorite(ctx context.Context, userID, bookID int64) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, bookID int64) error
	ListFavorites(ctx context.Context, userID int64) ([]models.Favorite, error)

	CreateUser(ctx context.Context, req store.CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error)
	AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (*models.User, error)
	SetCreditLevel(ctx context.Context, userID int64, level string) (*models.User, error)
}

type Handler struct {
	service     Service
	logger      *zap.Logger
	idempotency *idempotency.Store
}

// NewHandler builds the HTTP handlers. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewHandler(s Service, logger *zap.Logger, idem *idempotency.Store) *Handler {
	return &Handler{
		service:     s,
		logger:      logger,
		idempotency: idem,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the error taxonomy onto HTTP status codes.
// Unexpected errors are logged and hidden from the client.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrValidation),
		errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrInsufficientBalance):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return database.NewValidationError("", "invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, database.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HealthDB(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
