package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-bookstore/internal/models"
)

// AppendInventoryLog writes one stock movement. It must run in the same
// transaction as the stock update it describes.
func AppendInventoryLog(ctx context.Context, tx *sql.Tx, entry *models.InventoryLog) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO inventory_logs (book_id, change, reason, ref_id, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, created_at`,
		entry.BookID, entry.Change, entry.Reason, entry.RefID).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append inventory log: %w", err)
	}
	return nil
}

func ListInventoryLogs(ctx context.Context, db DBTX, bookID int64) ([]models.InventoryLog, error) {
	return queryInventoryLogs(ctx, db,
		`SELECT id, book_id, change, reason, ref_id, created_at
		 FROM inventory_logs
		 WHERE book_id = $1
		 ORDER BY id`, bookID)
}

func ListInventoryLogsByRef(ctx context.Context, db DBTX, reason models.InventoryReason, refID int64) ([]models.InventoryLog, error) {
	return queryInventoryLogs(ctx, db,
		`SELECT id, book_id, change, reason, ref_id, created_at
		 FROM inventory_logs
		 WHERE reason = $1 AND ref_id = $2
		 ORDER BY id`, reason, refID)
}

func queryInventoryLogs(ctx context.Context, db DBTX, query string, args ...any) ([]models.InventoryLog, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	defer rows.Close()

	logs := []models.InventoryLog{}
	for rows.Next() {
		var entry models.InventoryLog
		if err := rows.Scan(&entry.ID, &entry.BookID, &entry.Change, &entry.Reason, &entry.RefID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory log: %w", err)
		}
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return logs, nil
}

// ReconcileStock checks initial_stock + purchases - sales against the
// book's current stock.
func ReconcileStock(ctx context.Context, db DBTX, bookID int64) (*models.StockReconciliation, error) {
	book, err := GetBook(ctx, db, bookID)
	if err != nil {
		return nil, err
	}

	rec := &models.StockReconciliation{
		BookID:       book.ID,
		InitialStock: book.InitialStock,
		ActualStock:  book.Stock,
	}

	err = db.QueryRowContext(ctx,
		`SELECT
		     COALESCE(SUM(change) FILTER (WHERE reason = 'purchase'), 0),
		     COALESCE(-SUM(change) FILTER (WHERE reason = 'sale'), 0)
		 FROM inventory_logs
		 WHERE book_id = $1`, bookID).Scan(&rec.Purchased, &rec.Sold)
	if err != nil {
		return nil, fmt.Errorf("sum inventory logs: %w", err)
	}
	rec.ExpectedStock = rec.InitialStock + rec.Purchased - rec.Sold
	rec.Balanced = rec.ExpectedStock == rec.ActualStock

	return rec, nil
}
