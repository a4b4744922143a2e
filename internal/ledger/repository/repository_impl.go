package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type balanceRow struct {
	Credits int64
}

func (r *repo) LockBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, bool, error) {
	var row balanceRow
	err := tx.WithContext(ctx).
		Table("users").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("credits").
		Where("id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.Credits, true, nil
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, bool, error) {
	var row balanceRow
	err := db.WithContext(ctx).
		Table("users").
		Select("credits").
		Where("id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.Credits, true, nil
}

func (r *repo) CompareAndSetBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID, expected, next int64, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE users SET credits = ?, updated_at = ? WHERE id = ? AND credits = ?`,
		next, now, userID, expected,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) LastSequence(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error) {
	var seq int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sequence), 0) FROM credit_transactions WHERE user_id = ?`,
		userID,
	).Scan(&seq).Error
	return seq, err
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, item *domain.CreditTransaction) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (
			id, user_id, sequence, amount, type, description, related_id,
			idempotency_key, balance_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.UserID,
		item.Sequence,
		item.Amount,
		item.Type,
		item.Description,
		item.RelatedID,
		item.IdempotencyKey,
		item.BalanceAfter,
		item.CreatedAt,
	).Error
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, userID snowflake.ID, key string) (*domain.CreditTransaction, error) {
	var item domain.CreditTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, sequence, amount, type, description, related_id,
			idempotency_key, balance_after, created_at
		FROM credit_transactions
		WHERE user_id = ? AND idempotency_key = ?
		LIMIT 1`,
		userID, key,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// List returns newest first, one row past limit. beforeSequence of 0 starts at the head.
func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, beforeSequence int64, limit int) ([]domain.CreditTransaction, error) {
	stmt := db.WithContext(ctx).Model(&domain.CreditTransaction{}).Where("user_id = ?", userID)
	if beforeSequence > 0 {
		stmt = stmt.Where("sequence < ?", beforeSequence)
	}
	var items []domain.CreditTransaction
	err := stmt.Order("sequence desc").Limit(limit + 1).Find(&items).Error
	return items, err
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.CreditTransaction, error) {
	var items []domain.CreditTransaction
	err := db.WithContext(ctx).
		Model(&domain.CreditTransaction{}).
		Where("user_id = ?", userID).
		Order("sequence asc").
		Find(&items).Error
	return items, err
}
