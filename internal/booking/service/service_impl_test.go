package service

import (
	"context"
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

	"github.com/chillserv/fieldops/internal/booking/domain"
	bookingrepository "github.com/chillserv/fieldops/internal/booking/repository"
	"github.com/chillserv/fieldops/internal/clock"
	"github.com/chillserv/fieldops/internal/config"
	"github.com/chillserv/fieldops/internal/eventbus"
	"github.com/chillserv/fieldops/internal/identity"
	notificationdomain "github.com/chillserv/fieldops/internal/notification/domain"
	profiledomain "github.com/chillserv/fieldops/internal/profile/domain"
	profilerepository "github.com/chillserv/fieldops/internal/profile/repository"
	"github.com/chillserv/fieldops/internal/providers/pdf"
)

// -- Fakes --

type pushRecorder struct {
	mu    sync.Mutex
	sends []string
}

func (p *pushRecorder) Send(ctx context.Context, deviceToken, title, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, deviceToken)
	return nil
}

func (p *pushRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}

type notifierRecorder struct {
	statusChanged chan string
}

func newNotifierRecorder() *notifierRecorder {
	return &notifierRecorder{statusChanged: make(chan string, 16)}
}

func (n *notifierRecorder) StatusChanged(ctx context.Context, recipientEmail string, bookingID snowflake.ID, status string) {
	n.statusChanged <- fmt.Sprintf("%s:%s", recipientEmail, status)
}

func (n *notifierRecorder) List(ctx context.Context, recipientEmail string) ([]*notificationdomain.Notification, error) {
	return nil, nil
}

func (n *notifierRecorder) MarkRead(ctx context.Context, id snowflake.ID, recipientEmail string) error {
	return nil
}

type completionRecorder struct {
	receipts chan pdf.ReceiptData
}

func newCompletionRecorder() *completionRecorder {
	return &completionRecorder{receipts: make(chan pdf.ReceiptData, 4)}
}

func (c *completionRecorder) SendCompletionReceipt(ctx context.Context, data pdf.ReceiptData) {
	c.receipts <- data
}

// -- Harness --

type harness struct {
	svc        domain.Service
	db         *gorm.DB
	hub        *eventbus.Hub
	push       *pushRecorder
	notifier   *notifierRecorder
	completion *completionRecorder
	node       *snowflake.Node
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Booking{}, &profiledomain.Profile{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	hub := eventbus.NewHub()
	hub.Start()
	t.Cleanup(hub.Close)

	push := &pushRecorder{}
	notifier := newNotifierRecorder()
	completion := newCompletionRecorder()

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Node:       node,
		Clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)),
		Dispatch:   config.NewStaticDispatchConfigHolder(config.DefaultDispatchConfig()),
		Repo:       bookingrepository.Provide(),
		Profiles:   profilerepository.Provide(),
		Hub:        hub,
		Notifier:   notifier,
		Push:       push,
		Completion: completion,
	})

	return &harness{
		svc:        svc,
		db:         db,
		hub:        hub,
		push:       push,
		notifier:   notifier,
		completion: completion,
		node:       node,
	}
}

func customerCtx(email string) context.Context {
	return identity.WithActor(context.Background(), identity.Actor{
		ID:    1001,
		Name:  "Dewi",
		Email: email,
		Role:  identity.RoleCustomer,
	})
}

func technicianCtx(id int64, name string) context.Context {
	return identity.WithActor(context.Background(), identity.Actor{
		ID:    id,
		Name:  name,
		Email: fmt.Sprintf("tech%d@fieldops.test", id),
		Role:  identity.RoleTechnician,
	})
}

func (h *harness) seedTechnician(t *testing.T, id int64, score int) {
	t.Helper()
	profile := &profiledomain.Profile{
		ID:    snowflake.ID(id),
		Name:  fmt.Sprintf("tech-%d", id),
		Email: fmt.Sprintf("tech%d@fieldops.test", id),
		Role:  identity.RoleTechnician,
		Score: score,
	}
	require.NoError(t, h.db.Create(profile).Error)
}

func (h *harness) createBooking(t *testing.T, ctx context.Context, service, date string, slot *string) *domain.Booking {
	t.Helper()
	booking, err := h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: service,
		Date:    date,
		Time:    slot,
		Address: "Jl. Sudirman 12",
		Name:    "Dewi",
		Phone:   "0812000111",
		Price:   150,
	})
	require.NoError(t, err)
	return booking
}

func slot(label string) *string { return &label }

// -- Tests --

func TestCreateRejectsOverlappingSlot(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")

	h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-10", slot("10:00"))

	// A short job spans 10:00-11:30, so 11:00 collides and 11:30 is free.
	_, err := h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceCleaning,
		Date:    "2025-06-10",
		Time:    slot("11:00"),
	})
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceCleaning,
		Date:    "2025-06-10",
		Time:    slot("11:30"),
	})
	assert.NoError(t, err)
}

func TestCreateRepairBlocksLongWindow(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")

	h.createBooking(t, ctx, domain.ServiceRepair, "2025-06-11", slot("10:00"))

	// Repair occupies three hours, so 12:30 still collides.
	_, err := h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceCleaning,
		Date:    "2025-06-11",
		Time:    slot("12:30"),
	})
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceCleaning,
		Date:    "2025-06-11",
		Time:    slot("13:00"),
	})
	assert.NoError(t, err)
}

func TestCreateCancelledBookingFreesSlot(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")

	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-12", slot("10:00"))
	_, err := h.svc.UpdateStatus(ctx, booking.ID, domain.StatusCancelled)
	require.NoError(t, err)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceCleaning,
		Date:    "2025-06-12",
		Time:    slot("10:00"),
	})
	assert.NoError(t, err)
}

func TestCreateRepairWithoutSlot(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")

	booking, err := h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceRepair,
		Date:    "2025-06-13",
		Price:   500,
	})
	require.NoError(t, err)
	assert.Nil(t, booking.BookingTime)
	assert.Nil(t, booking.StartMinute)
	// Repair work is always created unquoted.
	assert.Zero(t, booking.Price)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceCleaning,
		Date:    "2025-06-13",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTime)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")

	_, err := h.svc.Create(ctx, domain.CreateBookingRequest{Service: "Plumbing", Date: "2025-06-10"})
	assert.ErrorIs(t, err, domain.ErrInvalidServiceKind)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{Service: domain.ServiceCleaning, Date: "June 10"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{Service: domain.ServiceCleaning, Date: "2025-06-10", Time: slot("10:07")})
	assert.ErrorIs(t, err, domain.ErrInvalidTime)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{Service: domain.ServiceCleaning, Date: "2025-06-10", Time: slot("07:00")})
	assert.ErrorIs(t, err, domain.ErrInvalidTime)

	_, err = h.svc.Create(context.Background(), domain.CreateBookingRequest{Service: domain.ServiceCleaning, Date: "2025-06-10", Time: slot("10:00")})
	assert.ErrorIs(t, err, domain.ErrMissingActor)
}

func TestClaimExactlyOneWinner(t *testing.T) {
	h := newHarness(t)
	booking := h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-14", slot("10:00"))

	const claimers = 8
	var wg sync.WaitGroup
	errs := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(techID int64) {
			defer wg.Done()
			_, err := h.svc.Claim(technicianCtx(techID, fmt.Sprintf("tech-%d", techID)), booking.ID, "")
			errs <- err
		}(int64(2000 + i))
	}
	wg.Wait()
	close(errs)

	won, lost := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, domain.ErrAlreadyClaimed):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, claimers-1, lost)

	claimed, err := h.svc.GetByID(technicianCtx(2000, "tech-2000"), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, claimed.Status)
	require.NotNil(t, claimed.TechnicianID)
	require.NotNil(t, claimed.TechnicianName)
}

func TestClaimRequiresTechnician(t *testing.T) {
	h := newHarness(t)
	booking := h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-15", slot("10:00"))

	_, err := h.svc.Claim(customerCtx("dewi@example.com"), booking.ID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.Claim(technicianCtx(2100, "Budi"), h.node.Generate(), "")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestReleasePenaltyAppliedExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.seedTechnician(t, 2200, 100)

	booking := h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-16", slot("10:00"))
	techCtx := technicianCtx(2200, "Budi")

	_, err := h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)

	released, err := h.svc.Release(techCtx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, released.Status)
	assert.Nil(t, released.TechnicianID)
	assert.Nil(t, released.TechnicianName)

	var profile profiledomain.Profile
	require.NoError(t, h.db.First(&profile, "id = ?", 2200).Error)
	assert.Equal(t, 90, profile.Score)

	// Retrying the release must not charge a second penalty.
	_, err = h.svc.Release(techCtx, booking.ID)
	assert.ErrorIs(t, err, domain.ErrNotReleasable)
	require.NoError(t, h.db.First(&profile, "id = ?", 2200).Error)
	assert.Equal(t, 90, profile.Score)
}

func TestReleaseByOtherTechnicianForbidden(t *testing.T) {
	h := newHarness(t)
	h.seedTechnician(t, 2300, 100)
	h.seedTechnician(t, 2301, 100)

	booking := h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-17", slot("10:00"))
	_, err := h.svc.Claim(technicianCtx(2300, "Budi"), booking.ID, "Budi")
	require.NoError(t, err)

	_, err = h.svc.Release(technicianCtx(2301, "Sari"), booking.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	var profile profiledomain.Profile
	require.NoError(t, h.db.First(&profile, "id = ?", 2301).Error)
	assert.Equal(t, 100, profile.Score)
}

func TestReleaseAfterStartIsConflict(t *testing.T) {
	h := newHarness(t)
	h.seedTechnician(t, 2350, 100)

	booking := h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-18", slot("10:00"))
	techCtx := technicianCtx(2350, "Budi")

	_, err := h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusInProgress)
	require.NoError(t, err)

	// The job has started, so even its own technician cannot walk away.
	_, err = h.svc.Release(techCtx, booking.ID)
	assert.ErrorIs(t, err, domain.ErrNotReleasable)

	var profile profiledomain.Profile
	require.NoError(t, h.db.First(&profile, "id = ?", 2350).Error)
	assert.Equal(t, 100, profile.Score)
}

func TestUpdateStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	techCtx := technicianCtx(2400, "Budi")

	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-18", slot("10:00"))

	// Pending cannot jump straight to InProgress.
	_, err := h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusInProgress)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)

	updated, err := h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)

	// Completed only follows InProgress; repeating the transition fails.
	_, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusInProgress)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	updated, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)

	_, err = h.svc.UpdateStatus(ctx, booking.ID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatusRejectsReservedTargets(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-19", slot("10:00"))

	// Accepted and Pending only flow through claim and release.
	_, err := h.svc.UpdateStatus(ctx, booking.ID, domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.svc.UpdateStatus(ctx, booking.ID, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.svc.UpdateStatus(ctx, booking.ID, "Archived")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestCancelClearsTechnicianAssignment(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	techCtx := technicianCtx(2500, "Budi")

	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-20", slot("10:00"))
	_, err := h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)

	cancelled, err := h.svc.UpdateStatus(ctx, booking.ID, domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.TechnicianID)
	assert.Nil(t, cancelled.TechnicianName)
}

func TestUpdateStatusAuthorization(t *testing.T) {
	h := newHarness(t)
	booking := h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-21", slot("10:00"))

	// A stranger cannot cancel someone else's booking.
	_, err := h.svc.UpdateStatus(customerCtx("other@example.com"), booking.ID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	admin := identity.WithActor(context.Background(), identity.Actor{ID: 1, Name: "ops", Email: "ops@fieldops.test", Role: identity.RoleAdmin})
	_, err = h.svc.UpdateStatus(admin, booking.ID, domain.StatusCancelled)
	assert.NoError(t, err)
}

func TestCompletionSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	techCtx := technicianCtx(2600, "Budi")

	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-22", slot("10:00"))
	_, err := h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusInProgress)
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusCompleted)
	require.NoError(t, err)

	select {
	case receipt := <-h.completion.receipts:
		assert.Equal(t, booking.ID.String(), receipt.BookingID)
		assert.Equal(t, "dewi@example.com", receipt.CustomerEmail)
		assert.Equal(t, "Budi", receipt.TechnicianName)
	case <-time.After(2 * time.Second):
		t.Fatal("completion receipt never sent")
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-h.notifier.statusChanged:
			seen[msg] = true
		case <-time.After(2 * time.Second):
			t.Fatal("status notification never sent")
		}
	}
	assert.True(t, seen["dewi@example.com:InProgress"])
	assert.True(t, seen["dewi@example.com:Completed"])
}

func TestSubmitReviewFirstWriteWins(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	techCtx := technicianCtx(2700, "Budi")

	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-23", slot("10:00"))

	_, err := h.svc.SubmitReview(ctx, booking.ID, 5, "great")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusInProgress)
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusCompleted)
	require.NoError(t, err)

	_, err = h.svc.SubmitReview(customerCtx("other@example.com"), booking.ID, 5, "great")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.SubmitReview(ctx, booking.ID, 0, "great")
	assert.ErrorIs(t, err, domain.ErrInvalidRating)

	reviewed, err := h.svc.SubmitReview(ctx, booking.ID, 5, "great work")
	require.NoError(t, err)
	require.NotNil(t, reviewed.Rating)
	assert.Equal(t, 5, *reviewed.Rating)

	_, err = h.svc.SubmitReview(ctx, booking.ID, 1, "changed my mind")
	assert.ErrorIs(t, err, domain.ErrAlreadyReviewed)

	kept, err := h.svc.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	require.NotNil(t, kept.Review)
	assert.Equal(t, "great work", *kept.Review)
}

func TestAmendDetails(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	techCtx := technicianCtx(2800, "Budi")

	booking, err := h.svc.Create(ctx, domain.CreateBookingRequest{
		Service: domain.ServiceRepair,
		Date:    "2025-06-24",
	})
	require.NoError(t, err)

	price := 350.0
	// Pending bookings are not amendable yet.
	_, err = h.svc.AmendDetails(techCtx, booking.ID, domain.AmendDetailsRequest{Price: &price})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)

	_, err = h.svc.AmendDetails(techCtx, booking.ID, domain.AmendDetailsRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyPatch)

	newTime := "13:00"
	amended, err := h.svc.AmendDetails(techCtx, booking.ID, domain.AmendDetailsRequest{
		Price: &price,
		Time:  &newTime,
		Items: &[]domain.BookingItem{{Name: "Compressor", Price: 300}, {Name: "Labor", Price: 50}},
	})
	require.NoError(t, err)
	assert.Equal(t, price, amended.Price)
	require.NotNil(t, amended.BookingTime)
	assert.Equal(t, "13:00", *amended.BookingTime)
	require.NotNil(t, amended.StartMinute)
	assert.Equal(t, 13*60, *amended.StartMinute)

	// Only the assigned technician or an admin may amend.
	_, err = h.svc.AmendDetails(technicianCtx(2801, "Sari"), booking.ID, domain.AmendDetailsRequest{Price: &price})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAmendRejectsOccupiedSlot(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	techCtx := technicianCtx(2850, "Budi")

	// Cleaning at 10:00 occupies 10:00-11:30.
	h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-29", slot("10:00"))

	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-29", slot("13:00"))
	_, err := h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)

	// Rescheduling onto the occupied window loses the same way creation would.
	newTime := "10:30"
	_, err = h.svc.AmendDetails(techCtx, booking.ID, domain.AmendDetailsRequest{Time: &newTime})
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	freeTime := "11:30"
	amended, err := h.svc.AmendDetails(techCtx, booking.ID, domain.AmendDetailsRequest{Time: &freeTime})
	require.NoError(t, err)
	require.NotNil(t, amended.StartMinute)
	assert.Equal(t, 11*60+30, *amended.StartMinute)
}

func TestAmendDateMoveKeepsSlotGuard(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	techCtx := technicianCtx(2860, "Budi")

	h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-30", slot("10:00"))

	booking := h.createBooking(t, ctx, domain.ServiceCleaning, "2025-07-01", slot("10:00"))
	_, err := h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)

	// Moving the day while keeping the time collides with the other booking.
	takenDate := "2025-06-30"
	_, err = h.svc.AmendDetails(techCtx, booking.ID, domain.AmendDetailsRequest{Date: &takenDate})
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	freeDate := "2025-07-02"
	amended, err := h.svc.AmendDetails(techCtx, booking.ID, domain.AmendDetailsRequest{Date: &freeDate})
	require.NoError(t, err)
	assert.Equal(t, freeDate, amended.BookingDate)
}

func TestEventOrderingClaimBeforeUpdate(t *testing.T) {
	h := newHarness(t)
	sub := h.hub.Subscribe()
	defer sub.Close()

	booking := h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-25", slot("10:00"))
	techCtx := technicianCtx(2900, "Budi")

	_, err := h.svc.Claim(techCtx, booking.ID, "Budi")
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(techCtx, booking.ID, domain.StatusInProgress)
	require.NoError(t, err)

	var topics []eventbus.Topic
	deadline := time.After(2 * time.Second)
	for len(topics) < 3 {
		select {
		case ev := <-sub.Events():
			topics = append(topics, ev.Topic)
		case <-deadline:
			t.Fatalf("timed out, got %v", topics)
		}
	}
	assert.Equal(t, []eventbus.Topic{eventbus.TopicNewJob, eventbus.TopicJobTaken, eventbus.TopicJobUpdate}, topics)
}

func TestListScopesCustomersToOwnBookings(t *testing.T) {
	h := newHarness(t)
	h.createBooking(t, customerCtx("dewi@example.com"), domain.ServiceCleaning, "2025-06-26", slot("10:00"))
	h.createBooking(t, customerCtx("other@example.com"), domain.ServiceCleaning, "2025-06-26", slot("13:00"))

	mine, err := h.svc.List(customerCtx("dewi@example.com"), domain.ListBookingsRequest{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "dewi@example.com", mine[0].CustomerEmail)

	pool, err := h.svc.List(technicianCtx(3000, "Budi"), domain.ListBookingsRequest{Status: domain.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pool, 2)

	// Once claimed by someone else, the job leaves every other
	// technician's pool but stays in the claimer's.
	_, err = h.svc.Claim(technicianCtx(3001, "Sari"), pool[0].ID, "Sari")
	require.NoError(t, err)

	othersPool, err := h.svc.List(technicianCtx(3000, "Budi"), domain.ListBookingsRequest{})
	require.NoError(t, err)
	assert.Len(t, othersPool, 1)

	claimersPool, err := h.svc.List(technicianCtx(3001, "Sari"), domain.ListBookingsRequest{})
	require.NoError(t, err)
	assert.Len(t, claimersPool, 2)
}

func TestBlockedSlots(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-27", slot("10:00"))

	blocked, err := h.svc.BlockedSlots(ctx, "2025-06-27")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, blocked)

	_, err = h.svc.BlockedSlots(ctx, "someday")
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestMonthlyLoad(t *testing.T) {
	h := newHarness(t)
	ctx := customerCtx("dewi@example.com")
	h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-27", slot("10:00"))
	h.createBooking(t, ctx, domain.ServiceCleaning, "2025-06-27", slot("13:00"))
	h.createBooking(t, ctx, domain.ServiceRepair, "2025-06-28", slot("10:00"))
	h.createBooking(t, ctx, domain.ServiceRepair, "2025-06-28", slot("13:00"))

	loads, err := h.svc.MonthlyLoad(ctx, 2025, 6)
	require.NoError(t, err)
	require.Len(t, loads, 30)

	byDate := map[string]string{}
	for _, d := range loads {
		byDate[d.Date] = d.Level
	}
	assert.Equal(t, "low", byDate["2025-06-27"])
	assert.Equal(t, "none", byDate["2025-06-28"])
	assert.Equal(t, "high", byDate["2025-06-01"])

	_, err = h.svc.MonthlyLoad(ctx, 2025, 13)
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}
