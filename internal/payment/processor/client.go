// Package processor talks to the card processor's REST API for the few calls the
// platform makes on its own initiative.
package processor

import (
	"context"
	"errors"
	"time"
)

const DefaultCurrency = "usd"

var (
	ErrNotConfigured  = errors.New("processor_not_configured")
	ErrChargeDeclined = errors.New("charge_declined")
	ErrNotFound       = errors.New("processor_resource_not_found")
	ErrUpstream       = errors.New("processor_unavailable")
)

type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	PriceID          string
	CurrentPeriodEnd *time.Time
}

type ChargeRequest struct {
	CustomerID      string
	PaymentMethodID string
	AmountMinor     int64
	Currency        string
	Description     string
	IdempotencyKey  string
	Metadata        map[string]string
}

type Charge struct {
	ID          string
	Status      string
	AmountMinor int64
}

type Client interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	// ChargeOffSession charges a stored payment method without the customer present.
	// Repeating a request with the same IdempotencyKey never charges twice.
	ChargeOffSession(ctx context.Context, req ChargeRequest) (*Charge, error)
}
