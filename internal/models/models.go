package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID          int64           `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Phone       string          `json:"phone,omitempty"`
	CreditLevel string          `json:"credit_level"`
	Balance     decimal.Decimal `json:"balance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Book.Stock is only ever moved by order settlement and procurement receiving.
type Book struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Author       string          `json:"author"`
	ISBN         string          `json:"isbn"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	InitialStock int             `json:"initial_stock"`
	Category     string          `json:"category"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"version"`
}

type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Region  string `json:"region"`
	Address string `json:"address"`
}

type Order struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        *int64          `json:"user_id,omitempty"`
	Status        OrderStatus     `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Contact       Contact         `json:"contact"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
	Items         []OrderItem     `json:"items,omitempty"`
}

// OrderItem.Price is the book price captured when the order was placed.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	BookID    int64           `json:"book_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type InventoryReason string

const (
	InventoryReasonSale     InventoryReason = "sale"
	InventoryReasonPurchase InventoryReason = "purchase"
)

// InventoryLog is an append-only stock movement. RefID points at the order
// or procurement that caused it without a foreign key.
type InventoryLog struct {
	ID        int64           `json:"id"`
	BookID    int64           `json:"book_id"`
	Change    int             `json:"change"`
	Reason    InventoryReason `json:"reason"`
	RefID     int64           `json:"ref_id"`
	CreatedAt time.Time       `json:"created_at"`
}

type StockReconciliation struct {
	BookID        int64 `json:"book_id"`
	InitialStock  int   `json:"initial_stock"`
	Purchased     int   `json:"purchased"`
	Sold          int   `json:"sold"`
	ExpectedStock int   `json:"expected_stock"`
	ActualStock   int   `json:"actual_stock"`
	Balanced      bool  `json:"balanced"`
}

type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Procurement struct {
	ID           int64             `json:"id"`
	SupplierID   int64             `json:"supplier_id"`
	BookID       int64             `json:"book_id"`
	Quantity     int               `json:"quantity"`
	Status       ProcurementStatus `json:"status"`
	ExpectedDate *time.Time        `json:"expected_date,omitempty"`
	Note         *string           `json:"note,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type MissingRequest struct {
	ID           int64                `json:"id"`
	Title        string               `json:"title"`
	Author       string               `json:"author,omitempty"`
	Note         string               `json:"note,omitempty"`
	Status       MissingRequestStatus `json:"status"`
	UserID       *int64               `json:"user_id,omitempty"`
	ContactName  string               `json:"contact_name,omitempty"`
	ContactEmail string               `json:"contact_email,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type Favorite struct {
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	Book      *Book     `json:"book,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
