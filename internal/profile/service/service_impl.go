package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chillserv/fieldops/internal/profile/domain"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:   p.DB,
		log:  p.Log.Named("profile"),
		repo: p.Repo,
	}
}

func (s *service) RegisterDeviceToken(ctx context.Context, profileID snowflake.ID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrInvalidDeviceToken
	}

	ok, err := s.repo.SetDeviceToken(ctx, s.db, profileID, token)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrProfileNotFound
	}

	s.log.Info("device token registered", zap.String("profile_id", profileID.String()))
	return nil
}
