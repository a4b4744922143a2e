package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/appointly/internal/actor"
	"github.com/smallbiznis/appointly/pkg/db/pagination"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// ActiveStatuses occupy the tech's calendar.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

func (s Status) Valid() bool {
	return s.Active() || s.Terminal()
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Booking struct {
	ID                 snowflake.ID     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ClientID           *snowflake.ID    `json:"client_id,omitempty" gorm:"index"`
	GuestEmail         *string          `json:"guest_email,omitempty" gorm:"type:text"`
	GuestPhone         *string          `json:"guest_phone,omitempty" gorm:"type:text"`
	GuestName          *string          `json:"guest_name,omitempty" gorm:"type:text"`
	TechProfileID      snowflake.ID     `json:"tech_profile_id" gorm:"not null;index:idx_bookings_tech_window,priority:1"`
	ServiceID          snowflake.ID     `json:"service_id" gorm:"not null"`
	DesignID           *snowflake.ID    `json:"design_id,omitempty"`
	Notes              *string          `json:"notes,omitempty" gorm:"type:text"`
	AppointmentStart   time.Time        `json:"appointment_start" gorm:"not null;index:idx_bookings_tech_window,priority:2"`
	DurationMinutes    int              `json:"duration_minutes" gorm:"not null"`
	AppointmentEnd     time.Time        `json:"appointment_end" gorm:"not null"`
	ServicePrice       decimal.Decimal  `json:"service_price" gorm:"type:numeric(12,2);not null"`
	ServiceFee         decimal.Decimal  `json:"service_fee" gorm:"type:numeric(12,2);not null"`
	TotalPrice         decimal.Decimal  `json:"total_price" gorm:"type:numeric(12,2);not null"`
	PaymentStatus      PaymentStatus    `json:"payment_status" gorm:"type:text;not null"`
	PaymentReference   *string          `json:"payment_reference,omitempty" gorm:"type:text"`
	PaidAt             *time.Time       `json:"paid_at,omitempty"`
	Status             Status           `json:"status" gorm:"type:text;not null;index"`
	NoShowFeeCharged   bool             `json:"no_show_fee_charged" gorm:"not null"`
	// NULL is spelled out so sqlite reads the column back as nullable on re-migration.
	NoShowFeeAmount    *decimal.Decimal `json:"no_show_fee_amount,omitempty" gorm:"type:numeric(12,2) NULL"`
	CancellationReason *string          `json:"cancellation_reason,omitempty" gorm:"type:text"`
	CreatedAt          time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time        `json:"updated_at" gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

func (b Booking) Interval() Interval {
	return Interval{Start: b.AppointmentStart, End: b.AppointmentEnd}
}

func (b Booking) IsGuest() bool { return b.ClientID == nil }

// TechProfile is the bookable side of a tech user's account.
type TechProfile struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID           snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex"`
	DisplayName      string       `json:"display_name" gorm:"type:text;not null"`
	NoShowFeeEnabled bool         `json:"no_show_fee_enabled" gorm:"not null"`
	NoShowFeePercent int          `json:"no_show_fee_percent" gorm:"not null"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (TechProfile) TableName() string { return "tech_profiles" }

// Offering is one priced entry on a tech's service menu.
type Offering struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	TechProfileID   snowflake.ID    `json:"tech_profile_id" gorm:"not null;index"`
	Name            string          `json:"name" gorm:"type:text;not null"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	DurationMinutes int             `json:"duration_minutes" gorm:"not null"`
	Active          bool            `json:"active" gorm:"not null"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"not null"`
}

func (Offering) TableName() string { return "services" }

// Interval is half-open: Start is inside, End is not.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewInterval(start time.Time, durationMinutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

type Reservation struct {
	TechProfileID snowflake.ID `json:"tech_profile_id"`
	Start         time.Time    `json:"start"`
	End           time.Time    `json:"end"`
}

type GuestDetails struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type CreateBookingRequest struct {
	Actor            actor.Actor
	TechProfileID    snowflake.ID
	ServiceID        snowflake.ID
	DesignID         *snowflake.ID
	AppointmentStart time.Time
	Notes            *string
	Guest            *GuestDetails
}

type TransitionRequest struct {
	Actor     actor.Actor
	BookingID snowflake.ID
	Reason    *string
}

// TransitionResult is the committed booking. FeeChargeError is set when a no-show
// fee was due but could not be collected; the status change stands regardless.
type TransitionResult struct {
	Booking        Booking `json:"booking"`
	FeeChargeError error   `json:"-"`
}

type ListForTechRequest struct {
	pagination.Pagination
	Actor         actor.Actor
	TechProfileID snowflake.ID
	Statuses      []Status
	From          *time.Time
	To            *time.Time
}

type ListFilter struct {
	TechProfileID snowflake.ID
	Statuses      []Status
	From          *time.Time
	To            *time.Time
	AfterStart    *time.Time
	AfterID       snowflake.ID
	Limit         int
}

type ListResponse struct {
	pagination.PageInfo
	Bookings []Booking `json:"bookings"`
}

type Repository interface {
	FindTechProfile(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TechProfile, error)
	LockTechProfile(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*TechProfile, error)
	FindService(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Offering, error)
	FindActiveInWindow(ctx context.Context, db *gorm.DB, techProfileID snowflake.ID, window Interval) ([]Booking, error)
	Insert(ctx context.Context, tx *gorm.DB, booking *Booking) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Booking, error)
	// UpdateStatus moves a booking out of from; false means another writer got there first.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, from, to Status, reason *string, now time.Time) (bool, error)
	RecordNoShowFee(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, now time.Time) (bool, error)
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string, paidAt time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Booking, error)
}

type Service interface {
	Create(ctx context.Context, req CreateBookingRequest) (*Booking, error)
	TryReserve(ctx context.Context, techProfileID snowflake.ID, start time.Time, durationMinutes int) (Reservation, error)

	Confirm(ctx context.Context, req TransitionRequest) (TransitionResult, error)
	Decline(ctx context.Context, req TransitionRequest) (TransitionResult, error)
	Cancel(ctx context.Context, req TransitionRequest) (TransitionResult, error)
	Complete(ctx context.Context, req TransitionRequest) (TransitionResult, error)
	MarkNoShow(ctx context.Context, req TransitionRequest) (TransitionResult, error)
	Transition(ctx context.Context, action Action, req TransitionRequest) (TransitionResult, error)

	// MarkPaid records a successful checkout. updated is false when the booking was already paid.
	MarkPaid(ctx context.Context, id snowflake.ID, reference string, paidAt time.Time) (booking *Booking, updated bool, err error)

	Get(ctx context.Context, a actor.Actor, id snowflake.ID) (*Booking, error)
	ListForTech(ctx context.Context, req ListForTechRequest) (ListResponse, error)
}
