package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Event is one of the processor notifications the reconciler acts on. The set is
// closed: only types in this package implement it.
type Event interface {
	Meta() EventMeta
	isEvent()
}

type EventMeta struct {
	Provider   string
	ID         string
	Type       string
	OccurredAt time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// CheckoutSubscriptionCompleted is a finished subscription checkout.
type CheckoutSubscriptionCompleted struct {
	EventMeta
	UserID         snowflake.ID
	PlanID         string
	CustomerID     string
	SubscriptionID string
}

// CheckoutBookingCompleted is a finished checkout paying for a booking.
type CheckoutBookingCompleted struct {
	EventMeta
	BookingID        snowflake.ID
	PaymentReference string
}

// CheckoutCreditsCompleted is a finished one-off credit pack purchase.
type CheckoutCreditsCompleted struct {
	EventMeta
	UserID           snowflake.ID
	Credits          int64
	PaymentReference string
}

// SubscriptionChanged carries a subscription update or deletion.
type SubscriptionChanged struct {
	EventMeta
	SubscriptionID   string
	CustomerID       string
	Status           string
	PriceID          string
	CurrentPeriodEnd *time.Time
	Deleted          bool
}

// InvoicePaid is a successful recurring invoice payment.
type InvoicePaid struct {
	EventMeta
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	AmountPaid     int64
}

// PaymentFailed is informational only.
type PaymentFailed struct {
	EventMeta
	CustomerID string
	Reference  string
	Reason     string
}

func (CheckoutSubscriptionCompleted) isEvent() {}
func (CheckoutBookingCompleted) isEvent()      {}
func (CheckoutCreditsCompleted) isEvent()      {}
func (SubscriptionChanged) isEvent()           {}
func (InvoicePaid) isEvent()                   {}
func (PaymentFailed) isEvent()                 {}
