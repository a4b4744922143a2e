package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const accountColumns = `id, email, name, credits, subscription_tier, subscription_status,
	billing_period_end, processor_customer_id, processor_subscription_id,
	default_payment_method_id, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	return r.findOne(ctx, db, `SELECT `+accountColumns+` FROM users WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindByProcessorCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.Account, error) {
	return r.findOne(ctx, db, `SELECT `+accountColumns+` FROM users WHERE processor_customer_id = ? LIMIT 1`, customerID)
}

func (r *repo) FindByProcessorSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.Account, error) {
	return r.findOne(ctx, db, `SELECT `+accountColumns+` FROM users WHERE processor_subscription_id = ? LIMIT 1`, subscriptionID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Account, error) {
	var item domain.Account
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.SubscriptionUpdate, now time.Time) error {
	values := map[string]any{
		"subscription_status": update.Status,
		"updated_at":          now,
	}
	if update.Tier != nil {
		values["subscription_tier"] = *update.Tier
	}
	if update.PeriodEnd != nil {
		values["billing_period_end"] = *update.PeriodEnd
	}
	if update.CustomerID != nil {
		values["processor_customer_id"] = *update.CustomerID
	}
	if update.SubscriptionID != nil {
		values["processor_subscription_id"] = *update.SubscriptionID
	}

	res := db.WithContext(ctx).Table("users").Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
