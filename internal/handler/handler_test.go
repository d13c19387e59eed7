package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/idempotency"
	"github.com/safar/go-bookstore/internal/middleware"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/receiving"
	"github.com/safar/go-bookstore/internal/settlement"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
)

type stubService struct {
	pingErr error

	placeReq    settlement.Request
	placeCalls  int
	placeResult *settlement.Result
	placeErr    error

	order    *models.Order
	orderErr error

	procurement    *models.Procurement
	procurementErr error

	topUpUserID int64
	topUpAmount decimal.Decimal
	user        *models.User
	userErr     error

	removeFavoriteErr error
}

func (s *stubService) Ping(ctx context.Context) error { return s.pingErr }

func (s *stubService) CreateBook(ctx context.Context, req store.CreateBookRequest) (*models.Book, error) {
	return &models.Book{ID: 1, Title: req.Title, Stock: req.Stock, Price: req.Price}, nil
}

func (s *stubService) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return nil, database.ErrBookNotFound
}

func (s *stubService) ListBooks(ctx context.Context, filter store.BookFilter, page, pageSize int) (*store.OffsetPage, error) {
	return store.NewOffsetPage([]models.Book{}, 0, page, pageSize), nil
}

func (s *stubService) ListLowStock(ctx context.Context, threshold *int) ([]models.Book, error) {
	return []models.Book{}, nil
}

func (s *stubService) ListInventoryLogs(ctx context.Context, bookID int64) ([]models.InventoryLog, error) {
	return []models.InventoryLog{}, nil
}

func (s *stubService) ReconcileStock(ctx context.Context, bookID int64) (*models.StockReconciliation, error) {
	return &models.StockReconciliation{BookID: bookID, Balanced: true}, nil
}

func (s *stubService) PlaceOrder(ctx context.Context, req settlement.Request) (*settlement.Result, error) {
	s.placeCalls++
	s.placeReq = req
	return s.placeResult, s.placeErr
}

func (s *stubService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) ListUserOrders(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	return &store.CursorPage{Items: []models.Order{}}, nil
}

func (s *stubService) ListOrders(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return store.NewOffsetPage([]models.Order{}, 0, page, pageSize), nil
}

func (s *stubService) SetOrderStatus(ctx context.Context, id int64, next string) (*models.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) CreateSupplier(ctx context.Context, req store.CreateSupplierRequest) (*models.Supplier, error) {
	return &models.Supplier{ID: 1, Name: req.Name}, nil
}

func (s *stubService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return []models.Supplier{}, nil
}

func (s *stubService) CreateProcurement(ctx context.Context, req receiving.CreateRequest) (*models.Procurement, error) {
	return s.procurement, s.procurementErr
}

func (s *stubService) SetProcurementStatus(ctx context.Context, id int64, next string) (*models.Procurement, error) {
	return s.procurement, s.procurementErr
}

func (s *stubService) GetProcurement(ctx context.Context, id int64) (*models.Procurement, error) {
	return s.procurement, s.procurementErr
}

func (s *stubService) ListProcurements(ctx context.Context, status string) ([]models.Procurement, error) {
	return []models.Procurement{}, nil
}

func (s *stubService) CreateMissingRequest(ctx context.Context, req store.CreateMissingRequestRequest) (*models.MissingRequest, error) {
	return &models.MissingRequest{ID: 1, Title: req.Title, UserID: req.UserID}, nil
}

func (s *stubService) ListMissingRequests(ctx context.Context) ([]models.MissingRequest, error) {
	return []models.MissingRequest{}, nil
}

func (s *stubService) SetMissingRequestStatus(ctx context.Context, id int64, next string) (*models.MissingRequest, error) {
	return &models.MissingRequest{ID: id, Status: models.MissingRequestStatus(next)}, nil
}

func (s *stubService) AddFavorite(ctx context.Context, userID, bookID int64) (*models.Favorite, error) {
	return &models.Favorite{UserID: userID, BookID: bookID}, nil
}

func (s *stubService) RemoveFavorite(ctx context.Context, userID, bookID int64) error {
	return s.removeFavoriteErr
}

func (s *stubService) ListFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	return []models.Favorite{}, nil
}

func (s *stubService) CreateUser(ctx context.Context, req store.CreateUserRequest) (*models.User, error) {
	return s.user, s.userErr
}

func (s *stubService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.user, s.userErr
}

func (s *stubService) ListUsers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return store.NewOffsetPage([]models.User{}, 0, page, pageSize), nil
}

func (s *stubService) TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error) {
	s.topUpUserID = userID
	s.topUpAmount = amount
	return s.user, s.userErr
}

func (s *stubService) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (*models.User, error) {
	return s.user, s.userErr
}

func (s *stubService) SetCreditLevel(ctx context.Context, userID int64, level string) (*models.User, error) {
	return s.user, s.userErr
}

func newTestRouter(t *testing.T, svc Service, idem *idempotency.Store) http.Handler {
	t.Helper()
	return NewHandler(svc, zap.NewNop(), idem).SetupRouter()
}

func doRequest(h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func asUser(id int64) map[string]string {
	return map[string]string{middleware.HeaderUserID: fmt.Sprint(id)}
}

func asAdmin() map[string]string {
	return map[string]string{middleware.HeaderUserID: "1", middleware.HeaderUserRole: models.RoleAdmin}
}

func sampleOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": 1, "price": "10.00"},
			{"id": 1, "price": "10.00"},
			{"id": 2, "price": "5.00"},
		},
		"contact": map[string]string{
			"name": "Li", "phone": "123", "region": "East", "address": "1 Road",
		},
		"shipping_fee": "2.00",
	}
}

func sampleResult() *settlement.Result {
	userID := int64(7)
	balance := decimal.RequireFromString("73.00")
	return &settlement.Result{
		Order: &models.Order{
			ID:            10,
			OrderNumber:   "ORD-1",
			UserID:        &userID,
			Status:        models.OrderStatusPending,
			Subtotal:      decimal.RequireFromString("25.00"),
			ShippingFee:   decimal.RequireFromString("2.00"),
			Total:         decimal.RequireFromString("27.00"),
			PaymentMethod: models.PaymentMethodBalance,
		},
		Balance: &balance,
	}
}

func TestPlaceOrder_GuestHasNoPayer(t *testing.T) {
	svc := &stubService{placeResult: sampleResult()}
	h := newTestRouter(t, svc, nil)

	rec := doRequest(h, http.MethodPost, "/orders", sampleOrderBody(), nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if svc.placeReq.PayerUserID != nil {
		t.Errorf("payer = %v, want nil for guest", *svc.placeReq.PayerUserID)
	}
	if len(svc.placeReq.Items) != 3 {
		t.Errorf("items = %d, want 3 raw cart entries", len(svc.placeReq.Items))
	}
	if !svc.placeReq.ShippingFee.Equal(decimal.RequireFromString("2")) {
		t.Errorf("shipping fee = %s, want 2", svc.placeReq.ShippingFee)
	}
}

func TestPlaceOrder_IdentifiedCallerPays(t *testing.T) {
	svc := &stubService{placeResult: sampleResult()}
	h := newTestRouter(t, svc, nil)

	rec := doRequest(h, http.MethodPost, "/orders", sampleOrderBody(), asUser(7))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if svc.placeReq.PayerUserID == nil || *svc.placeReq.PayerUserID != 7 {
		t.Fatalf("payer = %v, want 7", svc.placeReq.PayerUserID)
	}

	var body struct {
		Total   string `json:"total"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != "27" || body.Balance != "73" {
		t.Errorf("total = %q balance = %q, want 27 and 73", body.Total, body.Balance)
	}
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", database.NewValidationError("contact.name", "is required"), http.StatusBadRequest},
		{"insufficient stock", &database.InsufficientStockError{BookID: 1, Title: "Go", Requested: 3, Available: 1}, http.StatusBadRequest},
		{"insufficient balance", &database.InsufficientBalanceError{UserID: 7, Balance: decimal.NewFromInt(1), Required: decimal.NewFromInt(27)}, http.StatusBadRequest},
		{"missing book", database.ErrSomeBooksNotFound, http.StatusNotFound},
		{"conflict", fmt.Errorf("retries exhausted: %w", database.ErrConflict), http.StatusConflict},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{placeErr: tt.err}
			h := newTestRouter(t, svc, nil)

			rec := doRequest(h, http.MethodPost, "/orders", sampleOrderBody(), asUser(7))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestPlaceOrder_InvalidBody(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if svc.placeCalls != 0 {
		t.Errorf("service called %d times, want 0", svc.placeCalls)
	}
}

func TestPlaceOrder_IdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := &stubService{placeResult: sampleResult()}
	h := newTestRouter(t, svc, idempotency.NewStore(client, time.Hour))

	headers := asUser(7)
	headers[idempotency.HeaderKey] = "checkout-1"

	first := doRequest(h, http.MethodPost, "/orders", sampleOrderBody(), headers)
	second := doRequest(h, http.MethodPost, "/orders", sampleOrderBody(), headers)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d, want 201 twice", first.Code, second.Code)
	}
	if svc.placeCalls != 1 {
		t.Errorf("PlaceOrder called %d times, want 1", svc.placeCalls)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
}

func TestGetOrder_Ownership(t *testing.T) {
	owner := int64(7)
	svc := &stubService{order: &models.Order{ID: 10, UserID: &owner}}
	h := newTestRouter(t, svc, nil)

	if rec := doRequest(h, http.MethodGet, "/orders/10", nil, asUser(7)); rec.Code != http.StatusOK {
		t.Errorf("owner status = %d, want 200", rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/orders/10", nil, asUser(8)); rec.Code != http.StatusNotFound {
		t.Errorf("other user status = %d, want 404", rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/orders/10", nil, asAdmin()); rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/orders/10", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestAdminRoutesGuarded(t *testing.T) {
	svc := &stubService{procurement: &models.Procurement{ID: 3, Status: models.ProcurementStatusReceived}}
	h := newTestRouter(t, svc, nil)

	body := map[string]string{"status": "received"}

	if rec := doRequest(h, http.MethodPatch, "/procurements/3/status", body, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	if rec := doRequest(h, http.MethodPatch, "/procurements/3/status", body, asUser(7)); rec.Code != http.StatusForbidden {
		t.Errorf("customer status = %d, want 403", rec.Code)
	}
	if rec := doRequest(h, http.MethodPatch, "/procurements/3/status", body, asAdmin()); rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/books/low-stock", nil, asUser(7)); rec.Code != http.StatusForbidden {
		t.Errorf("low-stock customer status = %d, want 403", rec.Code)
	}
}

func TestTopUpUsesCallerIdentity(t *testing.T) {
	svc := &stubService{user: &models.User{ID: 7}}
	h := newTestRouter(t, svc, nil)

	rec := doRequest(h, http.MethodPatch, "/users/me/balance", map[string]string{"amount": "50.00"}, asUser(7))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.topUpUserID != 7 || !svc.topUpAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("top-up = user %d amount %s, want user 7 amount 50", svc.topUpUserID, svc.topUpAmount)
	}
}

func TestGetUser_OtherUserHidden(t *testing.T) {
	svc := &stubService{user: &models.User{ID: 9}}
	h := newTestRouter(t, svc, nil)

	if rec := doRequest(h, http.MethodGet, "/users/9", nil, asUser(7)); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRemoveFavorite(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(t, svc, nil)

	if rec := doRequest(h, http.MethodDelete, "/favorites/4", nil, asUser(7)); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}

	svc.removeFavoriteErr = database.ErrFavoriteNotFound
	if rec := doRequest(h, http.MethodDelete, "/favorites/4", nil, asUser(7)); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(t, svc, nil)

	if rec := doRequest(h, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	svc.pingErr = errors.New("down")
	if rec := doRequest(h, http.MethodGet, "/health/db", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("db health status = %d, want 503", rec.Code)
	}
}

func TestRequestLogCarriesCaller(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewHandler(&stubService{}, zap.New(core), nil).SetupRouter()

	doRequest(h, http.MethodGet, "/health", nil, asUser(42))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("request log entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != int64(42) {
		t.Errorf("user_id = %v, want 42", got)
	}
}
