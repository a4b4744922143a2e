package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound             = errors.New("booking_not_found")
	ErrTechNotFound         = errors.New("tech_not_found")
	ErrServiceNotFound      = errors.New("service_not_found")
	ErrServiceInactive      = errors.New("service_inactive")
	ErrInvalidStart         = errors.New("invalid_appointment_start")
	ErrInvalidDuration      = errors.New("invalid_duration")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrGuestDetailsRequired = errors.New("guest_details_required")
	ErrInvalidAction        = errors.New("invalid_action")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("booking_conflict")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrNoPaymentMethod      = errors.New("no_payment_method")
	ErrFeeChargeFailed      = errors.New("no_show_fee_charge_failed")
)

// ConflictError reports the active bookings that overlap a requested slot.
type ConflictError struct {
	BookingIDs []snowflake.ID
}

func (e *ConflictError) Count() int { return len(e.BookingIDs) }

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d overlapping booking(s)", ErrConflict, len(e.BookingIDs))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// TransitionError explains why an action was refused for a booking.
type TransitionError struct {
	Action Action
	From   Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidTransition, e.Action, e.Reason)
	}
	return fmt.Sprintf("%s: cannot %s a %s booking: %s", ErrInvalidTransition, e.Action, e.From, e.Reason)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
