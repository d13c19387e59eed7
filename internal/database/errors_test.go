package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      ErrorClass
		retryable bool
	}{
		{"nil", nil, ErrorClassPermanent, false},
		{"serialization", &pq.Error{Code: pgerrcode.SerializationFailure}, ErrorClassSerialization, true},
		{"deadlock", &pq.Error{Code: pgerrcode.DeadlockDetected}, ErrorClassDeadlock, true},
		{"lock not available", &pq.Error{Code: pgerrcode.LockNotAvailable}, ErrorClassTransient, true},
		{"wrapped deadlock", fmt.Errorf("lock book: %w", &pq.Error{Code: pgerrcode.DeadlockDetected}), ErrorClassDeadlock, true},
		{"unique violation", &pq.Error{Code: pgerrcode.UniqueViolation}, ErrorClassPermanent, false},
		{"check violation", &pq.Error{Code: pgerrcode.CheckViolation}, ErrorClassPermanent, false},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent, false},
		{"domain error", ErrInsufficientStock, ErrorClassPermanent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	stockErr := fmt.Errorf("place order: %w", &InsufficientStockError{BookID: 7, Title: "Dune", Requested: 3, Available: 1})
	if !errors.Is(stockErr, ErrInsufficientStock) {
		t.Errorf("InsufficientStockError should match ErrInsufficientStock")
	}
	var typed *InsufficientStockError
	if !errors.As(stockErr, &typed) || typed.Title != "Dune" {
		t.Errorf("expected to unwrap InsufficientStockError naming the book, got %v", stockErr)
	}

	if !errors.Is(NewValidationError("contact.name", "is required"), ErrValidation) {
		t.Errorf("ValidationError should match ErrValidation")
	}

	for _, err := range []error{ErrUserNotFound, ErrBookNotFound, ErrSomeBooksNotFound, ErrProcurementNotFound} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%v should match ErrNotFound", err)
		}
	}
}

func TestIsConstraintViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: pgerrcode.ForeignKeyViolation})
	if !IsConstraintViolation(err, pgerrcode.ForeignKeyViolation) {
		t.Errorf("expected foreign key violation to be detected")
	}
	if IsConstraintViolation(err, pgerrcode.UniqueViolation) {
		t.Errorf("did not expect unique violation")
	}
}

func TestValidateMoney(t *testing.T) {
	tests := []struct {
		amount  string
		wantErr bool
	}{
		{"0", false},
		{"12", false},
		{"12.5", false},
		{"12.50", false},
		{"-3.25", false},
		{"0.005", true},
		{"25.005", true},
		{"-0.001", true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateMoney("amount", decimal.RequireFromString(tt.amount))
			if tt.wantErr != errors.Is(err, ErrValidation) {
				t.Errorf("ValidateMoney(%s) = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}
