package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

const procurementColumns = `id, supplier_id, book_id, quantity, status, expected_date, note, created_at, updated_at`

func scanProcurement(row rowScanner, p *models.Procurement) error {
	return row.Scan(
		&p.ID,
		&p.SupplierID,
		&p.BookID,
		&p.Quantity,
		&p.Status,
		&p.ExpectedDate,
		&p.Note,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func InsertProcurement(ctx context.Context, tx *sql.Tx, p *models.Procurement) error {
	query := `
		INSERT INTO procurements (supplier_id, book_id, quantity, status, expected_date, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + procurementColumns

	err := scanProcurement(tx.QueryRowContext(ctx, query,
		p.SupplierID, p.BookID, p.Quantity, p.Status, p.ExpectedDate, p.Note), p)
	if err != nil {
		return fmt.Errorf("create procurement: %w", err)
	}

	return nil
}

func GetProcurement(ctx context.Context, db DBTX, id int64) (*models.Procurement, error) {
	return getProcurement(ctx, db, `SELECT `+procurementColumns+` FROM procurements WHERE id = $1`, id)
}

// LockProcurement serialises status changes on one procurement so that two
// concurrent "received" requests cannot both see the previous status.
func LockProcurement(ctx context.Context, tx *sql.Tx, id int64) (*models.Procurement, error) {
	return getProcurement(ctx, tx, `SELECT `+procurementColumns+` FROM procurements WHERE id = $1 FOR UPDATE`, id)
}

func getProcurement(ctx context.Context, db DBTX, query string, id int64) (*models.Procurement, error) {
	p := &models.Procurement{}
	if err := scanProcurement(db.QueryRowContext(ctx, query, id), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProcurementNotFound
		}
		return nil, fmt.Errorf("get procurement: %w", err)
	}
	return p, nil
}

func UpdateProcurementStatus(ctx context.Context, tx *sql.Tx, id int64, status models.ProcurementStatus) (*models.Procurement, error) {
	query := `
		UPDATE procurements
		SET status = $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + procurementColumns

	p := &models.Procurement{}
	if err := scanProcurement(tx.QueryRowContext(ctx, query, status, id), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProcurementNotFound
		}
		return nil, fmt.Errorf("update procurement status: %w", err)
	}
	return p, nil
}

// ListProcurements returns all procurements, newest first, optionally
// restricted to one status.
func ListProcurements(ctx context.Context, db DBTX, status *models.ProcurementStatus) ([]models.Procurement, error) {
	query := `SELECT ` + procurementColumns + ` FROM procurements`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list procurements: %w", err)
	}
	defer rows.Close()

	procurements := []models.Procurement{}
	for rows.Next() {
		var p models.Procurement
		if err := scanProcurement(rows, &p); err != nil {
			return nil, fmt.Errorf("scan procurement: %w", err)
		}
		procurements = append(procurements, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return procurements, nil
}
