package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chillserv/fieldops/internal/clock"
	"github.com/chillserv/fieldops/internal/eventbus"
	"github.com/chillserv/fieldops/internal/notification/domain"
	notificationrepository "github.com/chillserv/fieldops/internal/notification/repository"
	profiledomain "github.com/chillserv/fieldops/internal/profile/domain"
	profilerepository "github.com/chillserv/fieldops/internal/profile/repository"
)

type fakePush struct {
	mu    sync.Mutex
	fail  bool
	sends []string
}

func (p *fakePush) Send(ctx context.Context, deviceToken, title, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("provider unavailable")
	}
	p.sends = append(p.sends, deviceToken)
	return nil
}

func (p *fakePush) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sends...)
}

func newTestService(t *testing.T, push *fakePush) (domain.Service, *gorm.DB, *eventbus.Hub) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Notification{}, &profiledomain.Profile{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	hub := eventbus.NewHub()
	hub.Start()
	t.Cleanup(hub.Close)

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Node:     node,
		Clock:    clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
		Repo:     notificationrepository.Provide(),
		Profiles: profilerepository.Provide(),
		Hub:      hub,
		Push:     push,
	})
	return svc, db, hub
}

func seedProfile(t *testing.T, db *gorm.DB, email string, deviceToken *string) {
	t.Helper()
	node, _ := snowflake.NewNode(3)
	require.NoError(t, db.Create(&profiledomain.Profile{
		ID:          node.Generate(),
		Name:        "Dewi",
		Email:       email,
		Role:        "customer",
		Score:       100,
		DeviceToken: deviceToken,
	}).Error)
}

func TestStatusChangedPersistsPublishesAndPushes(t *testing.T) {
	push := &fakePush{}
	svc, db, hub := newTestService(t, push)
	token := "device-abc"
	seedProfile(t, db, "dewi@example.com", &token)

	sub := hub.Subscribe()
	defer sub.Close()

	node, _ := snowflake.NewNode(4)
	bookingID := node.Generate()
	svc.StatusChanged(context.Background(), "dewi@example.com", bookingID, "Accepted")

	list, err := svc.List(context.Background(), "dewi@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "accepted by a technician")
	assert.Contains(t, list[0].Message, fmt.Sprintf("#%d", bookingID))
	assert.False(t, list[0].IsRead)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, eventbus.TopicNotification, ev.Topic)
		payload, ok := ev.Payload.(eventbus.NotificationEvent)
		require.True(t, ok)
		assert.Equal(t, "dewi@example.com", payload.RecipientEmail)
	case <-time.After(time.Second):
		t.Fatal("notification event never published")
	}

	assert.Equal(t, []string{"device-abc"}, push.sent())
}

func TestStatusChangedSkipsPushWithoutToken(t *testing.T) {
	push := &fakePush{}
	svc, db, _ := newTestService(t, push)
	seedProfile(t, db, "dewi@example.com", nil)

	node, _ := snowflake.NewNode(4)
	svc.StatusChanged(context.Background(), "dewi@example.com", node.Generate(), "Completed")

	list, err := svc.List(context.Background(), "dewi@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, push.sent())
}

func TestStatusChangedPushFailureIsIsolated(t *testing.T) {
	push := &fakePush{fail: true}
	svc, db, hub := newTestService(t, push)
	token := "device-abc"
	seedProfile(t, db, "dewi@example.com", &token)

	sub := hub.Subscribe()
	defer sub.Close()

	node, _ := snowflake.NewNode(4)
	svc.StatusChanged(context.Background(), "dewi@example.com", node.Generate(), "Cancelled")

	// The persisted record and the live event survive the push failure.
	list, err := svc.List(context.Background(), "dewi@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "cancelled")

	select {
	case ev := <-sub.Events():
		assert.Equal(t, eventbus.TopicNotification, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("notification event never published")
	}
}

func TestStatusChangedUnknownRecipientStillRecords(t *testing.T) {
	push := &fakePush{}
	svc, _, _ := newTestService(t, push)

	node, _ := snowflake.NewNode(4)
	svc.StatusChanged(context.Background(), "ghost@example.com", node.Generate(), "InProgress")

	list, err := svc.List(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, push.sent())
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	push := &fakePush{}
	svc, _, _ := newTestService(t, push)

	node, _ := snowflake.NewNode(4)
	bookingID := node.Generate()
	svc.StatusChanged(context.Background(), "dewi@example.com", bookingID, "Accepted")

	list, err := svc.List(context.Background(), "dewi@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	// Another recipient cannot mark someone else's notification read.
	err = svc.MarkRead(context.Background(), id, "other@example.com")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	require.NoError(t, svc.MarkRead(context.Background(), id, "dewi@example.com"))

	list, err = svc.List(context.Background(), "dewi@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)

	err = svc.MarkRead(context.Background(), node.Generate(), "dewi@example.com")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestComposeStatusMessage(t *testing.T) {
	id := snowflake.ID(42)
	assert.Equal(t, "Your booking #42 has been accepted by a technician.", composeStatusMessage(id, "Accepted"))
	assert.Equal(t, "Your booking #42 is back in the queue awaiting a technician.", composeStatusMessage(id, "Pending"))
	assert.Equal(t, "Your booking #42 was updated.", composeStatusMessage(id, "Archived"))
}
