// Package service wires the settlement and receiving engines and the store
// into the operations exposed over HTTP, logging outcomes along the way.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/receiving"
	"github.com/safar/go-bookstore/internal/settlement"
	"github.com/safar/go-bookstore/internal/status"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Options struct {
	TxMaxRetries      int
	LowStockThreshold int
}

type Service struct {
	db                *sql.DB
	logger            *zap.Logger
	settlement        *settlement.Engine
	receiving         *receiving.Engine
	lowStockThreshold int
}

func New(db *sql.DB, logger *zap.Logger, opts Options) *Service {
	return &Service{
		db:                db,
		logger:            logger,
		settlement:        settlement.NewEngine(db, opts.TxMaxRetries),
		receiving:         receiving.NewEngine(db, opts.TxMaxRetries),
		lowStockThreshold: opts.LowStockThreshold,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Books

func (s *Service) CreateBook(ctx context.Context, req store.CreateBookRequest) (*models.Book, error) {
	book, err := store.CreateBook(ctx, s.db, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("book created", zap.Int64("book_id", book.ID), zap.Int("stock", book.Stock))
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return store.GetBook(ctx, s.db, id)
}

func (s *Service) ListBooks(ctx context.Context, filter store.BookFilter, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListBooks(ctx, s.db, filter, page, pageSize)
}

// ListLowStock uses the configured threshold when threshold is nil.
func (s *Service) ListLowStock(ctx context.Context, threshold *int) ([]models.Book, error) {
	t := s.lowStockThreshold
	if threshold != nil {
		t = *threshold
	}
	return store.ListLowStock(ctx, s.db, t)
}

func (s *Service) ListInventoryLogs(ctx context.Context, bookID int64) ([]models.InventoryLog, error) {
	if _, err := store.GetBook(ctx, s.db, bookID); err != nil {
		return nil, err
	}
	return store.ListInventoryLogs(ctx, s.db, bookID)
}

func (s *Service) ReconcileStock(ctx context.Context, bookID int64) (*models.StockReconciliation, error) {
	rec, err := store.ReconcileStock(ctx, s.db, bookID)
	if err != nil {
		return nil, err
	}
	if !rec.Balanced {
		s.logger.Warn("inventory log does not reconcile",
			zap.Int64("book_id", bookID),
			zap.Int("expected_stock", rec.ExpectedStock),
			zap.Int("actual_stock", rec.ActualStock))
	}
	return rec, nil
}

// Orders

func (s *Service) PlaceOrder(ctx context.Context, req settlement.Request) (*settlement.Result, error) {
	res, err := s.settlement.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int64("order_id", res.Order.ID),
		zap.String("order_number", res.Order.OrderNumber),
		zap.String("total", res.Order.Total.StringFixed(2)),
		zap.String("payment_method", string(res.Order.PaymentMethod)),
		zap.Int("lines", len(res.Order.Items)),
	}
	if res.Balance != nil {
		fields = append(fields, zap.String("balance_after", res.Balance.StringFixed(2)))
	}
	s.logger.Info("order settled", fields...)

	return res, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return store.GetOrder(ctx, s.db, id)
}

func (s *Service) ListUserOrders(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListOrdersCursor(ctx, s.db, userID, cursor, limit)
}

func (s *Service) ListOrders(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListOrders(ctx, s.db, page, pageSize)
}

// SetOrderStatus accepts any legal status at any time; cancelling does not
// return stock.
func (s *Service) SetOrderStatus(ctx context.Context, id int64, next string) (*models.Order, error) {
	st, err := status.ParseOrderStatus(next)
	if err != nil {
		return nil, err
	}

	order, err := store.UpdateOrderStatus(ctx, s.db, id, st)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed", zap.Int64("order_id", id), zap.String("status", string(st)))
	return order, nil
}

// Procurement

func (s *Service) CreateSupplier(ctx context.Context, req store.CreateSupplierRequest) (*models.Supplier, error) {
	return store.CreateSupplier(ctx, s.db, req)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return store.ListSuppliers(ctx, s.db)
}

func (s *Service) CreateProcurement(ctx context.Context, req receiving.CreateRequest) (*models.Procurement, error) {
	p, err := s.receiving.CreateProcurement(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("procurement created",
		zap.Int64("procurement_id", p.ID),
		zap.Int64("book_id", p.BookID),
		zap.Int("quantity", p.Quantity),
		zap.String("status", string(p.Status)))
	return p, nil
}

func (s *Service) SetProcurementStatus(ctx context.Context, id int64, next string) (*models.Procurement, error) {
	p, err := s.receiving.SetProcurementStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}
	s.logger.Info("procurement status changed",
		zap.Int64("procurement_id", id),
		zap.String("status", string(p.Status)))
	return p, nil
}

func (s *Service) GetProcurement(ctx context.Context, id int64) (*models.Procurement, error) {
	return store.GetProcurement(ctx, s.db, id)
}

// ListProcurements filters by status when one is given.
func (s *Service) ListProcurements(ctx context.Context, statusFilter string) ([]models.Procurement, error) {
	if statusFilter == "" {
		return store.ListProcurements(ctx, s.db, nil)
	}
	st, err := status.ParseProcurementStatus(statusFilter)
	if err != nil {
		return nil, err
	}
	return store.ListProcurements(ctx, s.db, &st)
}

// Missing book requests

// CreateMissingRequest reads the requester and inserts the request in one
// transaction, so the contact snapshot belongs to the user the row points at.
func (s *Service) CreateMissingRequest(ctx context.Context, req store.CreateMissingRequestRequest) (*models.MissingRequest, error) {
	var created *models.MissingRequest
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		created, err = store.CreateMissingRequest(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("missing book requested", zap.Int64("request_id", created.ID), zap.String("title", created.Title))
	return created, nil
}

func (s *Service) ListMissingRequests(ctx context.Context) ([]models.MissingRequest, error) {
	return store.ListMissingRequests(ctx, s.db)
}

func (s *Service) SetMissingRequestStatus(ctx context.Context, id int64, next string) (*models.MissingRequest, error) {
	st, err := status.ParseMissingRequestStatus(next)
	if err != nil {
		return nil, err
	}
	return store.UpdateMissingRequestStatus(ctx, s.db, id, st)
}

// Favorites

func (s *Service) AddFavorite(ctx context.Context, userID, bookID int64) (*models.Favorite, error) {
	if bookID <= 0 {
		return nil, database.NewValidationError("book_id", "is required")
	}
	return store.AddFavorite(ctx, s.db, userID, bookID)
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, bookID int64) error {
	return store.RemoveFavorite(ctx, s.db, userID, bookID)
}

func (s *Service) ListFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	return store.ListFavorites(ctx, s.db, userID)
}

// Users and balances

func (s *Service) CreateUser(ctx context.Context, req store.CreateUserRequest) (*models.User, error) {
	return store.CreateUser(ctx, s.db, req)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return store.GetUser(ctx, s.db, id)
}

func (s *Service) ListUsers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListUsers(ctx, s.db, page, pageSize)
}

func (s *Service) TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error) {
	if !amount.IsPositive() {
		return nil, database.NewValidationError("amount", "must be greater than 0")
	}
	if err := database.ValidateMoney("amount", amount); err != nil {
		return nil, err
	}

	user, err := store.AdjustBalance(ctx, s.db, userID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance topped up",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", user.Balance.StringFixed(2)))
	return user, nil
}

// AdjustBalance applies an admin delta; it fails rather than leave the
// balance negative.
func (s *Service) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (*models.User, error) {
	if delta.IsZero() {
		return nil, database.NewValidationError("delta", "must not be zero")
	}
	if err := database.ValidateMoney("delta", delta); err != nil {
		return nil, err
	}

	user, err := store.AdjustBalance(ctx, s.db, userID, delta)
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance adjusted",
		zap.Int64("user_id", userID),
		zap.String("delta", delta.StringFixed(2)),
		zap.String("balance", user.Balance.StringFixed(2)))
	return user, nil
}

func (s *Service) SetCreditLevel(ctx context.Context, userID int64, level string) (*models.User, error) {
	return store.SetCreditLevel(ctx, s.db, userID, level)
}
