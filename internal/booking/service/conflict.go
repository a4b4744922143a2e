package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"gorm.io/gorm"
)

// Overlaps reports whether two half-open intervals share any instant.
// Back-to-back intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b bookingdomain.Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// FindConflicts returns the active bookings in existing that overlap candidate.
func FindConflicts(candidate bookingdomain.Interval, existing []bookingdomain.Booking) []bookingdomain.Booking {
	var out []bookingdomain.Booking
	for _, b := range existing {
		if !b.Status.Active() {
			continue
		}
		if Overlaps(candidate, b.Interval()) {
			out = append(out, b)
		}
	}
	return out
}

// checkConflicts loads the tech's active bookings around candidate and fails with
// a ConflictError when any of them overlap.
func (s *Service) checkConflicts(ctx context.Context, db *gorm.DB, techProfileID snowflake.ID, candidate bookingdomain.Interval) error {
	existing, err := s.repo.FindActiveInWindow(ctx, db, techProfileID, candidate)
	if err != nil {
		return err
	}
	conflicts := FindConflicts(candidate, existing)
	if len(conflicts) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(conflicts))
	for _, b := range conflicts {
		ids = append(ids, b.ID)
	}
	return &bookingdomain.ConflictError{BookingIDs: ids}
}

// validateStart accepts only whole-minute starts and returns them in UTC.
func validateStart(t time.Time) (time.Time, error) {
	if t.IsZero() || !t.Truncate(time.Minute).Equal(t) {
		return time.Time{}, bookingdomain.ErrInvalidStart
	}
	return t.UTC(), nil
}

// TryReserve checks a slot without holding it. The answer can be stale by the
// time Create runs; Create repeats the check under the tech's lock.
func (s *Service) TryReserve(ctx context.Context, techProfileID snowflake.ID, start time.Time, durationMinutes int) (bookingdomain.Reservation, error) {
	if durationMinutes <= 0 {
		return bookingdomain.Reservation{}, bookingdomain.ErrInvalidDuration
	}
	start, err := validateStart(start)
	if err != nil {
		return bookingdomain.Reservation{}, err
	}
	tech, err := s.repo.FindTechProfile(ctx, s.db, techProfileID)
	if err != nil {
		return bookingdomain.Reservation{}, err
	}
	if tech == nil {
		return bookingdomain.Reservation{}, bookingdomain.ErrTechNotFound
	}

	candidate := bookingdomain.NewInterval(start, durationMinutes)
	if err := s.checkConflicts(ctx, s.db, techProfileID, candidate); err != nil {
		if isConflict(err) {
			s.obsMetrics.RecordBookingConflict(ctx)
		}
		return bookingdomain.Reservation{}, err
	}
	return bookingdomain.Reservation{
		TechProfileID: techProfileID,
		Start:         candidate.Start,
		End:           candidate.End,
	}, nil
}
