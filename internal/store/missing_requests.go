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

const missingRequestColumns = `id, title, author, note, status, user_id, contact_name, contact_email, created_at, updated_at`

type CreateMissingRequestRequest struct {
	Title  string
	Author string
	Note   string
	UserID *int64
}

func scanMissingRequest(row rowScanner, r *models.MissingRequest) error {
	return row.Scan(
		&r.ID,
		&r.Title,
		&r.Author,
		&r.Note,
		&r.Status,
		&r.UserID,
		&r.ContactName,
		&r.ContactEmail,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
}

// CreateMissingRequest snapshots the requesting user's name and email so the
// request stays readable if the profile later changes.
func CreateMissingRequest(ctx context.Context, db DBTX, req CreateMissingRequestRequest) (*models.MissingRequest, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, database.NewValidationError("title", "is required")
	}

	var contactName, contactEmail string
	if req.UserID != nil {
		user, err := GetUser(ctx, db, *req.UserID)
		if err != nil {
			return nil, err
		}
		contactName, contactEmail = user.Name, user.Email
	}

	query := `
		INSERT INTO missing_requests (title, author, note, status, user_id, contact_name, contact_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + missingRequestColumns

	r := &models.MissingRequest{}
	err := scanMissingRequest(db.QueryRowContext(ctx, query,
		req.Title, req.Author, req.Note, models.MissingRequestStatusOpen, req.UserID, contactName, contactEmail), r)
	if err != nil {
		return nil, fmt.Errorf("create missing request: %w", err)
	}

	return r, nil
}

func UpdateMissingRequestStatus(ctx context.Context, db DBTX, id int64, status models.MissingRequestStatus) (*models.MissingRequest, error) {
	query := `
		UPDATE missing_requests
		SET status = $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + missingRequestColumns

	r := &models.MissingRequest{}
	if err := scanMissingRequest(db.QueryRowContext(ctx, query, status, id), r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrMissingRequestNotFound
		}
		return nil, fmt.Errorf("update missing request status: %w", err)
	}

	return r, nil
}

func ListMissingRequests(ctx context.Context, db DBTX) ([]models.MissingRequest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+missingRequestColumns+` FROM missing_requests ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list missing requests: %w", err)
	}
	defer rows.Close()

	requests := []models.MissingRequest{}
	for rows.Next() {
		var r models.MissingRequest
		if err := scanMissingRequest(rows, &r); err != nil {
			return nil, fmt.Errorf("scan missing request: %w", err)
		}
		requests = append(requests, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return requests, nil
}
