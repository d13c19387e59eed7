package settlement

import (
	"fmt"
	"strings"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/shopspring/decimal"
)

// CartItem is one unit of a book in the cart. Repeating a book adds another unit.
type CartItem struct {
	BookID int64
	// PriceHint is the price the client displayed. It is carried along for
	// reference only; totals are always computed from the stored book price.
	PriceHint decimal.Decimal
}

// Line is the per-book aggregate of a cart.
type Line struct {
	BookID    int64
	Quantity  int
	PriceHint decimal.Decimal
}

// AggregateCart folds repeated books into one line each, in order of first
// appearance. The hint of the last occurrence of a book wins.
func AggregateCart(items []CartItem) []Line {
	index := make(map[int64]int, len(items))
	lines := make([]Line, 0, len(items))

	for _, item := range items {
		i, ok := index[item.BookID]
		if !ok {
			index[item.BookID] = len(lines)
			lines = append(lines, Line{BookID: item.BookID})
			i = len(lines) - 1
		}
		lines[i].Quantity++
		lines[i].PriceHint = item.PriceHint
	}

	return lines
}

func validateContact(c models.Contact) error {
	fields := []struct {
		name, value string
	}{
		{"contact.name", c.Name},
		{"contact.phone", c.Phone},
		{"contact.region", c.Region},
		{"contact.address", c.Address},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return database.NewValidationError(f.name, "is required")
		}
	}
	return nil
}

// priceLines resolves every line against the authoritative book rows and
// checks stock for all of them before anything is written. The first
// shortfall aborts the whole cart.
func priceLines(lines []Line, books []models.Book) ([]models.OrderItem, decimal.Decimal, error) {
	if len(books) < len(lines) {
		return nil, decimal.Zero, database.ErrSomeBooksNotFound
	}

	byID := make(map[int64]models.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero

	for _, l := range lines {
		book, ok := byID[l.BookID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("book %d: %w", l.BookID, database.ErrSomeBooksNotFound)
		}
		if l.Quantity > book.Stock {
			return nil, decimal.Zero, &database.InsufficientStockError{
				BookID:    book.ID,
				Title:     book.Title,
				Requested: l.Quantity,
				Available: book.Stock,
			}
		}

		item := models.OrderItem{
			BookID:   book.ID,
			Quantity: l.Quantity,
			Price:    book.Price,
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}

	return items, subtotal, nil
}

func bookIDs(lines []Line) []int64 {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.BookID
	}
	return ids
}
