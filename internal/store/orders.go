package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

const orderColumns = `id, order_number, user_id, status, subtotal, shipping_fee, total, payment_method,
	contact_name, contact_phone, region, address, created_at, updated_at, version`

func generateOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString())
}

func scanOrder(row rowScanner, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.Status,
		&order.Subtotal,
		&order.ShippingFee,
		&order.Total,
		&order.PaymentMethod,
		&order.Contact.Name,
		&order.Contact.Phone,
		&order.Contact.Region,
		&order.Contact.Address,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

// InsertOrder persists the order header and fills in the generated id,
// order number and timestamps. Items are inserted separately.
func InsertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	if order.OrderNumber == "" {
		order.OrderNumber = generateOrderNumber()
	}

	query := `
		INSERT INTO orders (order_number, user_id, status, subtotal, shipping_fee, total, payment_method,
		                    contact_name, contact_phone, region, address, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), 1)
		RETURNING id, created_at, updated_at, version`

	err := tx.QueryRowContext(ctx, query,
		order.OrderNumber,
		order.UserID,
		order.Status,
		order.Subtotal,
		order.ShippingFee,
		order.Total,
		order.PaymentMethod,
		order.Contact.Name,
		order.Contact.Phone,
		order.Contact.Region,
		order.Contact.Address,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt, &order.Version)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

func InsertOrderItems(ctx context.Context, tx *sql.Tx, orderID int64, items []models.OrderItem) error {
	for i := range items {
		item := &items[i]
		item.OrderID = orderID

		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, book_id, quantity, price, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING id, created_at`,
			orderID, item.BookID, item.Quantity, item.Price).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	return nil
}

func GetOrder(ctx context.Context, db DBTX, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := getOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func getOrderItems(ctx context.Context, db DBTX, orderID int64) ([]models.OrderItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, book_id, quantity, price, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.BookID,
			&item.Quantity,
			&item.Price,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// UpdateOrderStatus only touches the status column; everything else on an
// order is fixed at settlement time.
func UpdateOrderStatus(ctx context.Context, db DBTX, id int64, status models.OrderStatus) (*models.Order, error) {
	order := &models.Order{}

	query := `
		UPDATE orders
		SET status = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + orderColumns

	if err := scanOrder(db.QueryRowContext(ctx, query, status, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	items, err := getOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func ListOrdersCursor(ctx context.Context, db DBTX, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, database.NewValidationError("cursor", "is malformed")
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func ListOrders(ctx context.Context, db DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(orders, total, page, pageSize), nil
}
