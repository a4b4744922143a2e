package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Type string

const (
	TypeBookingRequested Type = "booking_requested"
	TypeBookingConfirmed Type = "booking_confirmed"
	TypeBookingCancelled Type = "booking_cancelled"
	TypeReviewRequest    Type = "review_request"
	TypeBookingNoShow    Type = "booking_no_show"
	TypeBookingPaid      Type = "booking_paid"
	TypeCreditsGranted   Type = "credits_granted"
	TypePaymentFailed    Type = "payment_failed"
)

// Notification is an in-app inbox entry.
type Notification struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;index"`
	Type      Type         `json:"type" gorm:"type:text;not null"`
	Title     string       `json:"title" gorm:"type:text;not null"`
	Message   string       `json:"message" gorm:"type:text;not null"`
	RelatedID *string      `json:"related_id,omitempty" gorm:"type:text"`
	ReadAt    *time.Time   `json:"read_at,omitempty"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Notification) TableName() string { return "notifications" }

type Message struct {
	UserID    snowflake.ID
	Type      Type
	Title     string
	Message   string
	RelatedID *string
}

// Notifier delivers a message to a user. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *Notification) error
}

// Publisher forwards stored notifications to an external bus.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}
