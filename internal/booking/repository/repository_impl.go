package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/appointly/internal/booking/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindTechProfile(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TechProfile, error) {
	var item domain.TechProfile
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, display_name, no_show_fee_enabled, no_show_fee_percent, created_at, updated_at
		FROM tech_profiles WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// LockTechProfile takes a row lock on the tech profile. Dialects without row locks
// (SQLite) drop the locking clause and rely on the caller's keyed lock.
func (r *repo) LockTechProfile(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.TechProfile, error) {
	var item domain.TechProfile
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindService(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Offering, error) {
	var item domain.Offering
	err := db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindActiveInWindow(ctx context.Context, db *gorm.DB, techProfileID snowflake.ID, window domain.Interval) ([]domain.Booking, error) {
	var items []domain.Booking
	err := db.WithContext(ctx).
		Where("tech_profile_id = ?", techProfileID).
		Where("status IN ?", domain.ActiveStatuses).
		Where("appointment_start < ? AND appointment_end > ?", window.End, window.Start).
		Order("appointment_start asc").
		Find(&items).Error
	return items, err
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, b *domain.Booking) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO bookings (
			id, client_id, guest_email, guest_phone, guest_name, tech_profile_id, service_id,
			design_id, notes, appointment_start, duration_minutes, appointment_end,
			service_price, service_fee, total_price, payment_status, payment_reference, paid_at,
			status, no_show_fee_charged, no_show_fee_amount, cancellation_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.ClientID,
		b.GuestEmail,
		b.GuestPhone,
		b.GuestName,
		b.TechProfileID,
		b.ServiceID,
		b.DesignID,
		b.Notes,
		b.AppointmentStart,
		b.DurationMinutes,
		b.AppointmentEnd,
		b.ServicePrice,
		b.ServiceFee,
		b.TotalPrice,
		b.PaymentStatus,
		b.PaymentReference,
		b.PaidAt,
		b.Status,
		b.NoShowFeeCharged,
		b.NoShowFeeAmount,
		b.CancellationReason,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var item domain.Booking
	err := db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var item domain.Booking
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, from, to domain.Status, reason *string, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE bookings
		SET status = ?, cancellation_reason = COALESCE(?, cancellation_reason), updated_at = ?
		WHERE id = ? AND status = ?`,
		to, reason, now, id, from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) RecordNoShowFee(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE bookings
		SET no_show_fee_charged = ?, no_show_fee_amount = ?, updated_at = ?
		WHERE id = ? AND status = ? AND no_show_fee_charged = ?`,
		true, amount, now, id, domain.StatusNoShow, false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string, paidAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE bookings
		SET payment_status = ?, payment_reference = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND payment_status = ?`,
		domain.PaymentStatusPaid, reference, paidAt, paidAt, id, domain.PaymentStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List pages by (appointment_start, id) ascending, fetching one row past Limit.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Booking, error) {
	stmt := db.WithContext(ctx).Model(&domain.Booking{}).
		Where("tech_profile_id = ?", filter.TechProfileID)

	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		stmt = stmt.Where("appointment_end > ?", filter.From.UTC())
	}
	if filter.To != nil {
		stmt = stmt.Where("appointment_start < ?", filter.To.UTC())
	}
	if filter.AfterStart != nil {
		stmt = stmt.Where("(appointment_start > ?) OR (appointment_start = ? AND id > ?)",
			filter.AfterStart.UTC(),
			filter.AfterStart.UTC(),
			filter.AfterID,
		)
	}

	var items []domain.Booking
	err := stmt.Order("appointment_start asc, id asc").Limit(filter.Limit + 1).Find(&items).Error
	return items, err
}
