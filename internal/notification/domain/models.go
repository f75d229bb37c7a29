package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification_not_found")
)

const CategoryBooking = "booking"

// Notification is a persisted customer-facing message.
type Notification struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	RecipientEmail string       `gorm:"not null;index" json:"recipient_email"`
	Message        string       `gorm:"not null" json:"message"`
	Category       string       `gorm:"not null;default:booking" json:"category"`
	IsRead         bool         `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, notification *Notification) error
	ListByRecipient(ctx context.Context, db *gorm.DB, recipientEmail string) ([]*Notification, error)
	// MarkRead flips the read flag; false when no row matched.
	MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID, recipientEmail string) (bool, error)
}

// Service reacts to booking transitions with persisted notifications
// and best-effort pushes. StatusChanged never returns an error: every
// step is independently failable and only logged, because the booking
// mutation has already committed by the time it runs.
type Service interface {
	StatusChanged(ctx context.Context, recipientEmail string, bookingID snowflake.ID, status string)
	List(ctx context.Context, recipientEmail string) ([]*Notification, error)
	MarkRead(ctx context.Context, id snowflake.ID, recipientEmail string) error
}
