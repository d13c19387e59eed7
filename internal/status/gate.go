// Package status validates the status vocabularies of orders, procurements
// and missing-book requests.
//
// The gate checks set membership only. Order statuses may be set to any legal
// value at any time; the one special case is a procurement that is already
// received being asked to become received again, which is a no-op.
package status

import (
	"fmt"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

var orderStatuses = map[models.OrderStatus]struct{}{
	models.OrderStatusPending:    {},
	models.OrderStatusProcessing: {},
	models.OrderStatusShipped:    {},
	models.OrderStatusCompleted:  {},
	models.OrderStatusCancelled:  {},
}

var procurementStatuses = map[models.ProcurementStatus]struct{}{
	models.ProcurementStatusOpen:      {},
	models.ProcurementStatusOrdered:   {},
	models.ProcurementStatusReceived:  {},
	models.ProcurementStatusCancelled: {},
}

var missingRequestStatuses = map[models.MissingRequestStatus]struct{}{
	models.MissingRequestStatusOpen:      {},
	models.MissingRequestStatusReviewing: {},
	models.MissingRequestStatusOrdered:   {},
	models.MissingRequestStatusStocked:   {},
	models.MissingRequestStatusRejected:  {},
}

func ParseOrderStatus(s string) (models.OrderStatus, error) {
	st := models.OrderStatus(s)
	if _, ok := orderStatuses[st]; !ok {
		return "", database.NewValidationError("status", fmt.Sprintf("invalid order status %q", s))
	}
	return st, nil
}

func ParseProcurementStatus(s string) (models.ProcurementStatus, error) {
	st := models.ProcurementStatus(s)
	if _, ok := procurementStatuses[st]; !ok {
		return "", database.NewValidationError("status", fmt.Sprintf("invalid procurement status %q", s))
	}
	return st, nil
}

// InitialProcurementStatus falls back to open for an empty or unknown value.
func InitialProcurementStatus(s string) models.ProcurementStatus {
	st, err := ParseProcurementStatus(s)
	if err != nil {
		return models.ProcurementStatusOpen
	}
	return st
}

func ParseMissingRequestStatus(s string) (models.MissingRequestStatus, error) {
	st := models.MissingRequestStatus(s)
	if _, ok := missingRequestStatuses[st]; !ok {
		return "", database.NewValidationError("status", fmt.Sprintf("invalid request status %q", s))
	}
	return st, nil
}

// ProcurementTransition describes what moving from prev to next must do.
type ProcurementTransition struct {
	// Noop is set when the record must be returned unchanged.
	Noop bool
	// Receive is set when stock must be incremented and a purchase logged.
	Receive bool
}

func PlanProcurementTransition(prev, next models.ProcurementStatus) ProcurementTransition {
	if prev == models.ProcurementStatusReceived && next == models.ProcurementStatusReceived {
		return ProcurementTransition{Noop: true}
	}
	return ProcurementTransition{
		Receive: next == models.ProcurementStatusReceived,
	}
}
