package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/shopspring/decimal"
)

const userColumns = `id, email, name, role, phone, credit_level, balance, created_at, updated_at, version`

var ErrEmailTaken = fmt.Errorf("email already registered: %w", database.ErrConflict)

type CreateUserRequest struct {
	Email string
	Name  string
	Role  string
	Phone string
}

func (r CreateUserRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Email) == "":
		return database.NewValidationError("email", "is required")
	case strings.TrimSpace(r.Name) == "":
		return database.NewValidationError("name", "is required")
	case r.Role != "" && r.Role != models.RoleCustomer && r.Role != models.RoleAdmin:
		return database.NewValidationError("role", "must be customer or admin")
	}
	return nil
}

func scanUser(row rowScanner, user *models.User) error {
	return row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Phone,
		&user.CreditLevel,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
}

func CreateUser(ctx context.Context, db DBTX, req CreateUserRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}

	user := &models.User{}

	query := `
		INSERT INTO users (email, name, role, phone, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	err := scanUser(db.QueryRowContext(ctx, query, req.Email, req.Name, role, req.Phone), user)
	if err != nil {
		if database.IsConstraintViolation(err, pgerrcode.UniqueViolation) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db DBTX, id int64) (*models.User, error) {
	return getUser(ctx, db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// LockUser reads the user under FOR UPDATE so a balance check and the
// following debit see the same row.
func LockUser(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error) {
	return getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func getUser(ctx context.Context, db DBTX, query string, id int64) (*models.User, error) {
	user := &models.User{}

	if err := scanUser(db.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// AdjustBalance applies delta in a single conditional statement. A delta
// that would leave the balance negative changes nothing and returns
// ErrInsufficientBalance.
func AdjustBalance(ctx context.Context, db DBTX, userID int64, delta decimal.Decimal) (*models.User, error) {
	user := &models.User{}

	query := `
		UPDATE users
		SET balance = balance + $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
		  AND balance + $1 >= 0
		RETURNING ` + userColumns

	err := scanUser(db.QueryRowContext(ctx, query, delta, userID), user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adjust balance: %w", err)
	}

	if _, err := GetUser(ctx, db, userID); err != nil {
		return nil, err
	}
	return nil, database.ErrInsufficientBalance
}

func DebitBalance(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	user, err := AdjustBalance(ctx, tx, userID, amount.Neg())
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

func SetCreditLevel(ctx context.Context, db DBTX, userID int64, level string) (*models.User, error) {
	if strings.TrimSpace(level) == "" {
		return nil, database.NewValidationError("credit_level", "is required")
	}

	user := &models.User{}

	query := `
		UPDATE users
		SET credit_level = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + userColumns

	if err := scanUser(db.QueryRowContext(ctx, query, level, userID), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("set credit level: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, db DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(users, total, page, pageSize), nil
}
