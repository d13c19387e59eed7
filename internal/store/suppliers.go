package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

type CreateSupplierRequest struct {
	Name    string
	Contact string
	Phone   string
	Email   string
}

func CreateSupplier(ctx context.Context, db DBTX, req CreateSupplierRequest) (*models.Supplier, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, database.NewValidationError("name", "is required")
	}

	supplier := &models.Supplier{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO suppliers (name, contact, phone, email, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, name, contact, phone, email, created_at`,
		req.Name, req.Contact, req.Phone, req.Email).Scan(
		&supplier.ID,
		&supplier.Name,
		&supplier.Contact,
		&supplier.Phone,
		&supplier.Email,
		&supplier.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}

	return supplier, nil
}

func GetSupplier(ctx context.Context, db DBTX, id int64) (*models.Supplier, error) {
	supplier := &models.Supplier{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, contact, phone, email, created_at FROM suppliers WHERE id = $1`, id).Scan(
		&supplier.ID,
		&supplier.Name,
		&supplier.Contact,
		&supplier.Phone,
		&supplier.Email,
		&supplier.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSupplierNotFound
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}

	return supplier, nil
}

func ListSuppliers(ctx context.Context, db DBTX) ([]models.Supplier, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, contact, phone, email, created_at FROM suppliers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := []models.Supplier{}
	for rows.Next() {
		var s models.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Contact, &s.Phone, &s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return suppliers, nil
}
