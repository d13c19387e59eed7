package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/shopspring/decimal"
)

const bookColumns = `id, title, author, isbn, price, stock, initial_stock, category, created_at, updated_at, version`

type CreateBookRequest struct {
	Title    string
	Author   string
	ISBN     string
	Price    decimal.Decimal
	Stock    int
	Category string
}

func (r CreateBookRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return database.NewValidationError("title", "is required")
	case strings.TrimSpace(r.Author) == "":
		return database.NewValidationError("author", "is required")
	case strings.TrimSpace(r.ISBN) == "":
		return database.NewValidationError("isbn", "is required")
	case strings.TrimSpace(r.Category) == "":
		return database.NewValidationError("category", "is required")
	case r.Price.IsNegative():
		return database.NewValidationError("price", "must not be negative")
	case r.Stock < 0:
		return database.NewValidationError("stock", "must not be negative")
	}
	return database.ValidateMoney("price", r.Price)
}

type BookFilter struct {
	Query    string
	Category string
}

func scanBook(row rowScanner, book *models.Book) error {
	return row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.Price,
		&book.Stock,
		&book.InitialStock,
		&book.Category,
		&book.CreatedAt,
		&book.UpdatedAt,
		&book.Version,
	)
}

// CreateBook records the opening stock as initial_stock so the inventory
// log can later be reconciled against it.
func CreateBook(ctx context.Context, db DBTX, req CreateBookRequest) (*models.Book, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	book := &models.Book{}

	query := `
		INSERT INTO books (title, author, isbn, price, stock, initial_stock, category, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $5, $6, NOW(), NOW(), 1)
		RETURNING ` + bookColumns

	err := scanBook(db.QueryRowContext(ctx, query,
		req.Title, req.Author, req.ISBN, req.Price, req.Stock, req.Category), book)
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	return book, nil
}

func GetBook(ctx context.Context, db DBTX, id int64) (*models.Book, error) {
	book := &models.Book{}

	err := scanBook(db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, id), book)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return book, nil
}

// GetBooksByIDs returns the books that exist among ids, ordered by id.
// Missing ids are silently absent from the result.
func GetBooksByIDs(ctx context.Context, db DBTX, ids []int64) ([]models.Book, error) {
	return queryBooks(ctx, db,
		`SELECT `+bookColumns+` FROM books WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids))
}

// LockBooks is GetBooksByIDs under FOR UPDATE. Rows are locked in id order so
// concurrent settlements touching overlapping books cannot deadlock.
func LockBooks(ctx context.Context, tx *sql.Tx, ids []int64) ([]models.Book, error) {
	books, err := queryBooks(ctx, tx,
		`SELECT `+bookColumns+` FROM books WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock books: %w", err)
	}
	return books, nil
}

func LockBook(ctx context.Context, tx *sql.Tx, id int64) (*models.Book, error) {
	book := &models.Book{}

	err := scanBook(tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id), book)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBookNotFound
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}

	return book, nil
}

// DecrementStock never lets stock go below zero: the row is only updated if
// it still holds at least quantity units.
func DecrementStock(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) (int, error) {
	var stock int
	err := tx.QueryRowContext(ctx,
		`UPDATE books
		 SET stock = stock - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1
		 RETURNING stock`,
		quantity, bookID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrInsufficientStock
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	return stock, nil
}

func IncrementStock(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) (int, error) {
	var stock int
	err := tx.QueryRowContext(ctx,
		`UPDATE books
		 SET stock = stock + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		 RETURNING stock`,
		quantity, bookID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrBookNotFound
		}
		return 0, fmt.Errorf("increment stock: %w", err)
	}

	return stock, nil
}

func ListBooks(ctx context.Context, db DBTX, filter BookFilter, page, pageSize int) (*OffsetPage, error) {
	var (
		conds []string
		args  []any
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d OR isbn ILIKE $%d)", n, n, n))
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		args = append(args, "%"+c+"%")
		conds = append(conds, fmt.Sprintf("category ILIKE $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT %s FROM books%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		bookColumns, where, len(args)+1, len(args)+2)

	books, err := queryBooks(ctx, db, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, err
	}

	return NewOffsetPage(books, total, page, pageSize), nil
}

func ListLowStock(ctx context.Context, db DBTX, threshold int) ([]models.Book, error) {
	return queryBooks(ctx, db,
		`SELECT `+bookColumns+` FROM books WHERE stock <= $1 ORDER BY stock ASC, id ASC`,
		threshold)
}

func queryBooks(ctx context.Context, db DBTX, query string, args ...any) ([]models.Book, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		var book models.Book
		if err := scanBook(rows, &book); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return books, nil
}
