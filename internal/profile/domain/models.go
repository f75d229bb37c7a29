package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrProfileNotFound    = errors.New("profile_not_found")
	ErrInvalidDeviceToken = errors.New("invalid_device_token")
)

// Profile is a registered user: customer, technician, or admin.
// Technicians carry a reputation score and an optional push device token.
type Profile struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	Email       string       `gorm:"not null;uniqueIndex" json:"email"`
	Role        string       `gorm:"not null;default:customer" json:"role"`
	Score       int          `gorm:"not null;default:100" json:"score"`
	DeviceToken *string      `json:"device_token,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Profile, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Profile, error)
	// ApplyScorePenalty decrements the profile score by penalty in a single
	// conditional write. Returns false when the profile does not exist.
	ApplyScorePenalty(ctx context.Context, db *gorm.DB, id snowflake.ID, penalty int) (bool, error)
	// SetDeviceToken stores the push token. Returns false when the profile
	// does not exist.
	SetDeviceToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string) (bool, error)
	// ListTechnicianTokens returns every registered technician push token.
	ListTechnicianTokens(ctx context.Context, db *gorm.DB) ([]string, error)
}

type Service interface {
	RegisterDeviceToken(ctx context.Context, profileID snowflake.ID, token string) error
}
