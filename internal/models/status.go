package models

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type ProcurementStatus string

const (
	ProcurementStatusOpen      ProcurementStatus = "open"
	ProcurementStatusOrdered   ProcurementStatus = "ordered"
	ProcurementStatusReceived  ProcurementStatus = "received"
	ProcurementStatusCancelled ProcurementStatus = "cancelled"
)

type MissingRequestStatus string

const (
	MissingRequestStatusOpen      MissingRequestStatus = "open"
	MissingRequestStatusReviewing MissingRequestStatus = "reviewing"
	MissingRequestStatusOrdered   MissingRequestStatus = "ordered"
	MissingRequestStatusStocked   MissingRequestStatus = "stocked"
	MissingRequestStatusRejected  MissingRequestStatus = "rejected"
)

// PaymentMethod is a free label. Only PaymentMethodBalance is settled
// internally; every other label is accepted without charging anything.
type PaymentMethod string

const PaymentMethodBalance PaymentMethod = "balance"

func (m PaymentMethod) IsBalance() bool {
	return m == PaymentMethodBalance
}
