package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

// AddFavorite is idempotent: adding the same book twice returns the
// original favorite.
func AddFavorite(ctx context.Context, db DBTX, userID, bookID int64) (*models.Favorite, error) {
	book, err := GetBook(ctx, db, bookID)
	if err != nil {
		return nil, err
	}

	fav := &models.Favorite{UserID: userID, BookID: bookID, Book: book}

	// DO UPDATE with a no-op assignment so RETURNING yields the existing row.
	err = db.QueryRowContext(ctx,
		`INSERT INTO favorites (user_id, book_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, book_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING created_at`,
		userID, bookID).Scan(&fav.CreatedAt)
	if err != nil {
		if database.IsConstraintViolation(err, pgerrcode.ForeignKeyViolation) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("add favorite: %w", err)
	}

	return fav, nil
}

func RemoveFavorite(ctx context.Context, db DBTX, userID, bookID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND book_id = $2`, userID, bookID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrFavoriteNotFound
	}

	return nil
}

func ListFavorites(ctx context.Context, db DBTX, userID int64) ([]models.Favorite, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT f.created_at, b.id, b.title, b.author, b.isbn, b.price, b.stock, b.initial_stock,
		        b.category, b.created_at, b.updated_at, b.version
		 FROM favorites f
		 JOIN books b ON b.id = f.book_id
		 WHERE f.user_id = $1
		 ORDER BY f.created_at DESC, b.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []models.Favorite{}
	for rows.Next() {
		var (
			fav  models.Favorite
			book models.Book
		)
		err := rows.Scan(
			&fav.CreatedAt,
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
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		fav.UserID = userID
		fav.BookID = book.ID
		fav.Book = &book
		favorites = append(favorites, fav)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return favorites, nil
}
