package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/chillserv/fieldops/internal/identity"
	"github.com/chillserv/fieldops/internal/profile/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO profiles (id, name, email, role, score, device_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.Name,
		profile.Email,
		profile.Role,
		profile.Score,
		profile.DeviceToken,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, role, score, device_token, created_at, updated_at
		 FROM profiles WHERE id = ?`,
		id,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, role, score, device_token, created_at, updated_at
		 FROM profiles WHERE email = ?`,
		strings.TrimSpace(email),
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) ApplyScorePenalty(ctx context.Context, db *gorm.DB, id snowflake.ID, penalty int) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE profiles SET score = score - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		penalty,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetDeviceToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE profiles SET device_token = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		strings.TrimSpace(token),
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListTechnicianTokens(ctx context.Context, db *gorm.DB) ([]string, error) {
	var tokens []string
	err := db.WithContext(ctx).Raw(
		`SELECT device_token FROM profiles
		 WHERE role = ? AND device_token IS NOT NULL AND device_token != ''`,
		identity.RoleTechnician,
	).Scan(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
