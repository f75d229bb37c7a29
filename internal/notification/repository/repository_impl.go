package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/chillserv/fieldops/internal/notification/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, recipient_email, message, category, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		notification.ID,
		notification.RecipientEmail,
		notification.Message,
		notification.Category,
		notification.IsRead,
		notification.CreatedAt,
	).Error
}

func (r *repo) ListByRecipient(ctx context.Context, db *gorm.DB, recipientEmail string) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient_email = ?", strings.TrimSpace(recipientEmail)).
		Order("created_at desc, id desc").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID, recipientEmail string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND recipient_email = ?`,
		id,
		strings.TrimSpace(recipientEmail),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
