package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chillserv/fieldops/internal/clock"
	"github.com/chillserv/fieldops/internal/eventbus"
	"github.com/chillserv/fieldops/internal/notification/domain"
	"github.com/chillserv/fieldops/internal/observability/metrics"
	profiledomain "github.com/chillserv/fieldops/internal/profile/domain"
	"github.com/chillserv/fieldops/internal/providers/push"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Node     *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Profiles profiledomain.Repository
	Hub      *eventbus.Hub
	Push     push.Sender
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	node     *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	profiles profiledomain.Repository
	hub      *eventbus.Hub
	push     push.Sender
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("notification"),
		node:     p.Node,
		clock:    p.Clock,
		repo:     p.Repo,
		profiles: p.Profiles,
		hub:      p.Hub,
		push:     p.Push,
	}
}

// StatusChanged runs the four side-effect steps in order. Each step is
// allowed to fail without stopping the ones after it: by the time this
// runs the booking transition has committed, so the only correct
// handling is to log and move on.
func (s *service) StatusChanged(ctx context.Context, recipientEmail string, bookingID snowflake.ID, status string) {
	recipientEmail = strings.TrimSpace(recipientEmail)
	if recipientEmail == "" {
		return
	}
	message := composeStatusMessage(bookingID, status)

	record := &domain.Notification{
		ID:             s.node.Generate(),
		RecipientEmail: recipientEmail,
		Message:        message,
		Category:       domain.CategoryBooking,
		IsRead:         false,
		CreatedAt:      s.clock.Now(),
	}
	err := s.repo.Insert(ctx, s.db, record)
	if err != nil {
		s.log.Warn("notification record insert failed",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
	}
	metrics.Dispatch().NotificationResult(metrics.NotificationChannelRecord, err)

	s.hub.Publish(eventbus.Event{
		Topic: eventbus.TopicNotification,
		Payload: eventbus.NotificationEvent{
			RecipientEmail: recipientEmail,
			Message:        message,
		},
	})

	s.sendPush(ctx, recipientEmail, message)
}

func (s *service) sendPush(ctx context.Context, recipientEmail, message string) {
	profile, err := s.profiles.FindByEmail(ctx, s.db, recipientEmail)
	if err != nil {
		s.log.Warn("device token lookup failed",
			zap.String("recipient", recipientEmail),
			zap.Error(err),
		)
		metrics.Dispatch().NotificationResult(metrics.NotificationChannelPush, err)
		return
	}
	if profile == nil || profile.DeviceToken == nil || *profile.DeviceToken == "" {
		return
	}

	err = s.push.Send(ctx, *profile.DeviceToken, "Booking update", message)
	if err != nil {
		s.log.Warn("push send failed",
			zap.String("recipient", recipientEmail),
			zap.Error(err),
		)
	}
	metrics.Dispatch().NotificationResult(metrics.NotificationChannelPush, err)
}

func (s *service) List(ctx context.Context, recipientEmail string) ([]*domain.Notification, error) {
	return s.repo.ListByRecipient(ctx, s.db, recipientEmail)
}

func (s *service) MarkRead(ctx context.Context, id snowflake.ID, recipientEmail string) error {
	updated, err := s.repo.MarkRead(ctx, s.db, id, recipientEmail)
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func composeStatusMessage(bookingID snowflake.ID, status string) string {
	var phrase string
	switch status {
	case "Accepted":
		phrase = "has been accepted by a technician"
	case "InProgress":
		phrase = "is now in progress"
	case "Completed":
		phrase = "has been completed"
	case "Cancelled":
		phrase = "has been cancelled"
	case "Pending":
		phrase = "is back in the queue awaiting a technician"
	default:
		phrase = "was updated"
	}
	return fmt.Sprintf("Your booking #%d %s.", bookingID, phrase)
}
