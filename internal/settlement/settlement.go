// Package settlement turns a cart into a persisted order. Stock, balance,
// order rows and inventory log entries change together in one transaction
// or not at all.
package settlement

import (
	"context"
	"database/sql"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
)

type Request struct {
	Items         []CartItem
	Contact       models.Contact
	PaymentMethod models.PaymentMethod
	ShippingFee   decimal.Decimal
	// PayerUserID is nil for guest checkout.
	PayerUserID *int64
}

type Result struct {
	Order *models.Order
	// Balance is the payer's balance after the debit; nil unless the order
	// was paid from account balance.
	Balance *decimal.Decimal
}

func (r *Request) normalize() error {
	if len(r.Items) == 0 {
		return database.NewValidationError("items", "is required")
	}
	for _, item := range r.Items {
		if item.BookID <= 0 {
			return database.NewValidationError("items", "every item needs a book id")
		}
	}
	if err := validateContact(r.Contact); err != nil {
		return err
	}
	if r.ShippingFee.IsNegative() {
		return database.NewValidationError("shipping_fee", "must not be negative")
	}
	if err := database.ValidateMoney("shipping_fee", r.ShippingFee); err != nil {
		return err
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = models.PaymentMethodBalance
	}
	return nil
}

func (r *Request) chargesBalance() bool {
	return r.PaymentMethod.IsBalance() && r.PayerUserID != nil
}

type Engine struct {
	db     *sql.DB
	txOpts database.TxOptions
}

func NewEngine(db *sql.DB, maxRetries int) *Engine {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = maxRetries

	return &Engine{db: db, txOpts: opts}
}

// PlaceOrder validates the cart against a snapshot read, then repeats every
// check on locked rows inside the transaction before writing, so the
// snapshot can never let an oversell or overdraft through.
func (e *Engine) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	lines := AggregateCart(req.Items)
	ids := bookIDs(lines)

	snapshot, err := store.GetBooksByIDs(ctx, e.db, ids)
	if err != nil {
		return nil, err
	}
	_, subtotal, err := priceLines(lines, snapshot)
	if err != nil {
		return nil, err
	}

	if req.chargesBalance() {
		payer, err := store.GetUser(ctx, e.db, *req.PayerUserID)
		if err != nil {
			return nil, err
		}
		if err := checkBalance(payer, subtotal.Add(req.ShippingFee)); err != nil {
			return nil, err
		}
	}

	var result *Result
	err = database.WithRetry(ctx, e.db, e.txOpts, func(tx *sql.Tx) error {
		var err error
		result, err = e.settle(ctx, tx, req, lines)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) settle(ctx context.Context, tx *sql.Tx, req Request, lines []Line) (*Result, error) {
	books, err := store.LockBooks(ctx, tx, bookIDs(lines))
	if err != nil {
		return nil, err
	}
	items, subtotal, err := priceLines(lines, books)
	if err != nil {
		return nil, err
	}
	total := subtotal.Add(req.ShippingFee)

	if req.chargesBalance() {
		payer, err := store.LockUser(ctx, tx, *req.PayerUserID)
		if err != nil {
			return nil, err
		}
		if err := checkBalance(payer, total); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		UserID:        req.PayerUserID,
		Status:        models.OrderStatusPending,
		Subtotal:      subtotal,
		ShippingFee:   req.ShippingFee,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Contact:       req.Contact,
	}
	if err := store.InsertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := store.InsertOrderItems(ctx, tx, order.ID, items); err != nil {
		return nil, err
	}
	order.Items = items

	result := &Result{Order: order}

	if req.chargesBalance() {
		balance, err := store.DebitBalance(ctx, tx, *req.PayerUserID, total)
		if err != nil {
			return nil, err
		}
		result.Balance = &balance
	}

	for _, item := range items {
		if _, err := store.DecrementStock(ctx, tx, item.BookID, item.Quantity); err != nil {
			return nil, err
		}
		err := store.AppendInventoryLog(ctx, tx, &models.InventoryLog{
			BookID: item.BookID,
			Change: -item.Quantity,
			Reason: models.InventoryReasonSale,
			RefID:  order.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func checkBalance(payer *models.User, total decimal.Decimal) error {
	if payer.Balance.LessThan(total) {
		return &database.InsufficientBalanceError{
			UserID:   payer.ID,
			Balance:  payer.Balance,
			Required: total,
		}
	}
	return nil
}
