package repository

import (
	"context"

	"github.com/smallbiznis/appointly/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, user_id, type, title, message, related_id, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.UserID,
		item.Type,
		item.Title,
		item.Message,
		item.RelatedID,
		item.ReadAt,
		item.CreatedAt,
	).Error
}
