package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/safar/go-bookstore/internal/testutil"
	"github.com/shopspring/decimal"
)

func createBook(t *testing.T, db *sql.DB, isbn string, stock int) *models.Book {
	t.Helper()

	book, err := store.CreateBook(context.Background(), db, store.CreateBookRequest{
		Title:    "Title " + isbn,
		Author:   "Author",
		ISBN:     isbn,
		Price:    decimal.RequireFromString("9.90"),
		Stock:    stock,
		Category: "Fiction",
	})
	if err != nil {
		t.Fatalf("Create book: %v", err)
	}
	return book
}

func createUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()

	user, err := store.CreateUser(context.Background(), db, store.CreateUserRequest{Email: email, Name: "Reader"})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

func TestDecrementStockIsConditional(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	book := createBook(t, db, "S-1", 3)

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		remaining, err := store.DecrementStock(ctx, tx, book.ID, 2)
		if err != nil {
			return err
		}
		if remaining != 1 {
			t.Errorf("Expected remaining 1, got %d", remaining)
		}

		_, err = store.DecrementStock(ctx, tx, book.ID, 2)
		if !errors.Is(err, database.ErrInsufficientStock) {
			t.Errorf("Expected insufficient stock, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	after, err := store.GetBook(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Get book: %v", err)
	}
	if after.Stock != 1 {
		t.Errorf("Expected stock 1, got %d", after.Stock)
	}
	if after.InitialStock != 3 {
		t.Errorf("Expected initial stock 3, got %d", after.InitialStock)
	}
}

func TestAdjustBalanceNeverNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "balance@example.com")

	funded, err := store.AdjustBalance(ctx, db, user.ID, decimal.RequireFromString("30.00"))
	if err != nil {
		t.Fatalf("Top up: %v", err)
	}
	if !funded.Balance.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Expected balance 30, got %s", funded.Balance)
	}

	_, err = store.AdjustBalance(ctx, db, user.ID, decimal.RequireFromString("-30.01"))
	if !errors.Is(err, database.ErrInsufficientBalance) {
		t.Errorf("Expected insufficient balance, got %v", err)
	}

	_, err = store.AdjustBalance(ctx, db, user.ID+1000, decimal.NewFromInt(1))
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	after, err := store.GetUser(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if !after.Balance.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Expected balance to stay 30, got %s", after.Balance)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	createUser(t, db, "dup@example.com")

	_, err := store.CreateUser(context.Background(), db, store.CreateUserRequest{Email: "dup@example.com", Name: "Again"})
	if !errors.Is(err, database.ErrConflict) {
		t.Errorf("Expected conflict, got %v", err)
	}
}

func TestFavoritesAreIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "fav@example.com")
	book := createBook(t, db, "F-1", 1)

	first, err := store.AddFavorite(ctx, db, user.ID, book.ID)
	if err != nil {
		t.Fatalf("Add favorite: %v", err)
	}
	second, err := store.AddFavorite(ctx, db, user.ID, book.ID)
	if err != nil {
		t.Fatalf("Add favorite again: %v", err)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("Expected the original favorite back, got %v and %v", first.CreatedAt, second.CreatedAt)
	}

	favorites, err := store.ListFavorites(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("List favorites: %v", err)
	}
	if len(favorites) != 1 || favorites[0].Book == nil || favorites[0].Book.ID != book.ID {
		t.Errorf("Expected one favorite with book details, got %+v", favorites)
	}

	if err := store.RemoveFavorite(ctx, db, user.ID, book.ID); err != nil {
		t.Fatalf("Remove favorite: %v", err)
	}
	if err := store.RemoveFavorite(ctx, db, user.ID, book.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected not found on second remove, got %v", err)
	}

	if _, err := store.AddFavorite(ctx, db, user.ID, book.ID+1000); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected book not found, got %v", err)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "cursor@example.com")
	userID := user.ID

	for i := 0; i < 15; i++ {
		err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			return store.InsertOrder(ctx, tx, &models.Order{
				UserID:        &userID,
				Status:        models.OrderStatusPending,
				Subtotal:      decimal.NewFromInt(10),
				ShippingFee:   decimal.Zero,
				Total:         decimal.NewFromInt(10),
				PaymentMethod: models.PaymentMethodBalance,
				Contact:       models.Contact{Name: "Reader", Phone: "1", Region: "North", Address: "2 Hill"},
			})
		})
		if err != nil {
			t.Fatalf("Insert order %d: %v", i, err)
		}
	}

	page1, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	if !page1.HasMore || page1.NextCursor == "" {
		t.Error("Page 1 should have more results and a cursor")
	}

	page2, err := store.ListOrdersCursor(ctx, db, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}

	items, ok := page2.Items.([]models.Order)
	if !ok || len(items) != 5 {
		t.Errorf("Expected 5 orders on page 2, got %v", page2.Items)
	}

	if _, err := store.ListOrdersCursor(ctx, db, user.ID, "not-a-cursor", 10); !errors.Is(err, database.ErrValidation) {
		t.Errorf("Expected validation error for malformed cursor, got %v", err)
	}
}

func TestReconcileStockDetectsDrift(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	book := createBook(t, db, "L-1", 10)

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := store.IncrementStock(ctx, tx, book.ID, 5); err != nil {
			return err
		}
		return store.AppendInventoryLog(ctx, tx, &models.InventoryLog{
			BookID: book.ID, Change: 5, Reason: models.InventoryReasonPurchase, RefID: 1,
		})
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	rec, err := store.ReconcileStock(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !rec.Balanced || rec.ExpectedStock != 15 || rec.Purchased != 5 {
		t.Errorf("Expected balanced ledger at 15, got %+v", rec)
	}

	if _, err := db.ExecContext(ctx, `UPDATE books SET stock = stock - 1 WHERE id = $1`, book.ID); err != nil {
		t.Fatalf("Drift stock: %v", err)
	}

	rec, err = store.ReconcileStock(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.Balanced {
		t.Errorf("Expected drift to be detected, got %+v", rec)
	}
}

func TestListLowStock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	low := createBook(t, db, "LS-1", 2)
	createBook(t, db, "LS-2", 20)

	books, err := store.ListLowStock(ctx, db, 5)
	if err != nil {
		t.Fatalf("List low stock: %v", err)
	}
	if len(books) != 1 || books[0].ID != low.ID {
		t.Errorf("Expected only book %d, got %+v", low.ID, books)
	}
}
