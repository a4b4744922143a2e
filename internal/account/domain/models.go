package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

type SubscriptionStatus string

const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Account is a platform user. Credits is written only by the ledger and the
// subscription fields only by payment reconciliation.
type Account struct {
	ID                      snowflake.ID       `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Email                   string             `json:"email" gorm:"type:text;not null;uniqueIndex"`
	Name                    string             `json:"name" gorm:"type:text"`
	Credits                 int64              `json:"credits" gorm:"not null;default:0"`
	SubscriptionTier        Tier               `json:"subscription_tier" gorm:"type:text;not null;default:free"`
	SubscriptionStatus      SubscriptionStatus `json:"subscription_status" gorm:"type:text;not null;default:inactive"`
	BillingPeriodEnd        *time.Time         `json:"billing_period_end,omitempty"`
	ProcessorCustomerID     *string            `json:"-" gorm:"type:text;index"`
	ProcessorSubscriptionID *string            `json:"-" gorm:"type:text;index"`
	DefaultPaymentMethodID  *string            `json:"-" gorm:"type:text"`
	CreatedAt               time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt               time.Time          `json:"updated_at" gorm:"not null"`
}

func (Account) TableName() string { return "users" }

// SubscriptionUpdate carries the authoritative subscription state from the processor.
type SubscriptionUpdate struct {
	Tier           *Tier
	Status         SubscriptionStatus
	PeriodEnd      *time.Time
	CustomerID     *string
	SubscriptionID *string
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByProcessorCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*Account, error)
	FindByProcessorSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*Account, error)
	UpdateSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, update SubscriptionUpdate, now time.Time) error
}

var (
	ErrNotFound      = errors.New("account_not_found")
	ErrInvalidStatus = errors.New("invalid_subscription_status")
)

// ParseSubscriptionStatus maps processor statuses onto the four local states.
func ParseSubscriptionStatus(raw string) SubscriptionStatus {
	switch raw {
	case "active", "trialing":
		return SubscriptionActive
	case "canceled":
		return SubscriptionCanceled
	case "past_due", "unpaid":
		return SubscriptionPastDue
	default:
		return SubscriptionInactive
	}
}
