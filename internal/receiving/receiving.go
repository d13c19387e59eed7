// Package receiving applies procurement status changes. Moving a procurement
// into "received" adds its quantity to the book's stock and logs a purchase,
// once per transition.
package receiving

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/status"
	"github.com/safar/go-bookstore/internal/store"
)

type CreateRequest struct {
	SupplierID   int64
	BookID       int64
	Quantity     int
	Status       string
	ExpectedDate *time.Time
	Note         *string
}

func (r CreateRequest) Validate() error {
	switch {
	case r.SupplierID <= 0:
		return database.NewValidationError("supplier_id", "is required")
	case r.BookID <= 0:
		return database.NewValidationError("book_id", "is required")
	case r.Quantity <= 0:
		return database.NewValidationError("quantity", "must be positive")
	}
	return nil
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

// CreateProcurement stores a new procurement. An empty or unknown status
// becomes "open"; a procurement created as "received" is received at once.
func (e *Engine) CreateProcurement(ctx context.Context, req CreateRequest) (*models.Procurement, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := &models.Procurement{
		SupplierID:   req.SupplierID,
		BookID:       req.BookID,
		Quantity:     req.Quantity,
		Status:       status.InitialProcurementStatus(req.Status),
		ExpectedDate: req.ExpectedDate,
		Note:         req.Note,
	}

	err := database.WithRetry(ctx, e.db, e.txOpts, func(tx *sql.Tx) error {
		if _, err := store.GetSupplier(ctx, tx, req.SupplierID); err != nil {
			return err
		}
		if _, err := store.LockBook(ctx, tx, req.BookID); err != nil {
			return err
		}

		created := *p
		if err := store.InsertProcurement(ctx, tx, &created); err != nil {
			return err
		}
		if created.Status == models.ProcurementStatusReceived {
			if err := receive(ctx, tx, &created); err != nil {
				return err
			}
		}

		*p = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// SetProcurementStatus moves a procurement to next. Asking for "received"
// when it is already received returns the record untouched.
func (e *Engine) SetProcurementStatus(ctx context.Context, id int64, next string) (*models.Procurement, error) {
	nextStatus, err := status.ParseProcurementStatus(next)
	if err != nil {
		return nil, err
	}

	var result *models.Procurement
	err = database.WithRetry(ctx, e.db, e.txOpts, func(tx *sql.Tx) error {
		existing, err := store.LockProcurement(ctx, tx, id)
		if err != nil {
			return err
		}

		plan := status.PlanProcurementTransition(existing.Status, nextStatus)
		if plan.Noop {
			result = existing
			return nil
		}

		saved, err := store.UpdateProcurementStatus(ctx, tx, id, nextStatus)
		if err != nil {
			return err
		}

		if plan.Receive {
			if err := receive(ctx, tx, saved); err != nil {
				return err
			}
		}

		result = saved
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func receive(ctx context.Context, tx *sql.Tx, p *models.Procurement) error {
	if _, err := store.IncrementStock(ctx, tx, p.BookID, p.Quantity); err != nil {
		return err
	}

	return store.AppendInventoryLog(ctx, tx, &models.InventoryLog{
		BookID: p.BookID,
		Change: p.Quantity,
		Reason: models.InventoryReasonPurchase,
		RefID:  p.ID,
	})
}
