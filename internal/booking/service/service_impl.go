package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/chillserv/fieldops/internal/availability"
	"github.com/chillserv/fieldops/internal/booking/domain"
	"github.com/chillserv/fieldops/internal/clock"
	"github.com/chillserv/fieldops/internal/config"
	"github.com/chillserv/fieldops/internal/eventbus"
	"github.com/chillserv/fieldops/internal/identity"
	"github.com/chillserv/fieldops/internal/observability/metrics"
	notificationdomain "github.com/chillserv/fieldops/internal/notification/domain"
	profiledomain "github.com/chillserv/fieldops/internal/profile/domain"
	"github.com/chillserv/fieldops/internal/providers"
	"github.com/chillserv/fieldops/internal/providers/pdf"
	"github.com/chillserv/fieldops/internal/providers/push"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Node       *snowflake.Node
	Clock      clock.Clock
	Dispatch   *config.DispatchConfigHolder
	Repo       domain.Repository
	Profiles   profiledomain.Repository
	Hub        *eventbus.Hub
	Notifier   notificationdomain.Service
	Push       push.Sender
	Completion providers.CompletionNotifier
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	node       *snowflake.Node
	clock      clock.Clock
	dispatch   *config.DispatchConfigHolder
	repo       domain.Repository
	profiles   profiledomain.Repository
	hub        *eventbus.Hub
	notifier   notificationdomain.Service
	push       push.Sender
	completion providers.CompletionNotifier
}

func New(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("booking"),
		node:       p.Node,
		clock:      p.Clock,
		dispatch:   p.Dispatch,
		repo:       p.Repo,
		profiles:   p.Profiles,
		hub:        p.Hub,
		notifier:   p.Notifier,
		push:       p.Push,
		completion: p.Completion,
	}
}

func (s *service) rules() availability.Rules {
	return availability.FromConfig(s.dispatch.Get())
}

func (s *service) Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.Booking, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	if strings.TrimSpace(actor.Email) == "" {
		return nil, domain.ErrInvalidEmail
	}

	serviceKind := strings.TrimSpace(req.Service)
	if !domain.ValidServiceKind(serviceKind) {
		return nil, domain.ErrInvalidServiceKind
	}
	date := strings.TrimSpace(req.Date)
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, domain.ErrInvalidDate
	}

	rules := s.rules()
	var bookingTime *string
	var startMinute *int
	if req.Time != nil && strings.TrimSpace(*req.Time) != "" {
		minute, err := availability.ParseSlot(*req.Time)
		if err != nil {
			return nil, domain.ErrInvalidTime
		}
		if !s.onGrid(rules, minute) {
			return nil, domain.ErrInvalidTime
		}
		label := availability.MinuteLabel(minute)
		bookingTime = &label
		startMinute = &minute
	} else if serviceKind != domain.ServiceRepair {
		// Only repair requests may wait for a quote without a slot.
		return nil, domain.ErrInvalidTime
	}

	price := req.Price
	if serviceKind == domain.ServiceRepair {
		// Repair work is unquoted until the assigned technician prices it.
		price = 0
	}
	if price < 0 || req.Tonnage < 0 {
		return nil, domain.ErrInvalidRequest
	}
	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	items, err := marshalItems(req.Items)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	booking := &domain.Booking{
		ID:            s.node.Generate(),
		Service:       serviceKind,
		Tonnage:       req.Tonnage,
		Description:   strings.TrimSpace(req.Description),
		Items:         items,
		Quantity:      quantity,
		Price:         price,
		BookingDate:   date,
		BookingTime:   bookingTime,
		StartMinute:   startMinute,
		Address:       strings.TrimSpace(req.Address),
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		CustomerName:  strings.TrimSpace(req.Name),
		CustomerPhone: strings.TrimSpace(req.Phone),
		ContactMethod: strings.TrimSpace(req.ContactMethod),
		CustomerEmail: strings.ToLower(strings.TrimSpace(actor.Email)),
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var guard *domain.SlotGuard
	if startMinute != nil {
		guard = &domain.SlotGuard{
			Date:             date,
			StartMinute:      *startMinute,
			DurationMinutes:  rules.DurationMinutes(serviceKind, req.Tonnage),
			LongServiceKind:  domain.ServiceRepair,
			TonnageThreshold: rules.TonnageThreshold,
			LongMinutes:      rules.LongJobMinutes,
			ShortMinutes:     rules.ShortJobMinutes,
		}
	}

	inserted, err := s.repo.Insert(ctx, s.db, booking, guard)
	if err != nil {
		return nil, err
	}
	if !inserted {
		metrics.Dispatch().SlotRejected()
		return nil, domain.ErrSlotUnavailable
	}

	metrics.Dispatch().BookingCreated(serviceKind)
	s.hub.Publish(eventbus.Event{Topic: eventbus.TopicNewJob, Payload: booking})
	go s.pushNewJobToTechnicians(context.WithoutCancel(ctx), booking)

	return booking, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Booking, error) {
	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

func (s *service) List(ctx context.Context, req domain.ListBookingsRequest) ([]*domain.Booking, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	// Customers only ever see their own bookings; technicians see the
	// claimable pool plus their own assignments; admins see everything.
	switch {
	case actor.IsCustomer():
		req.CustomerEmail = strings.ToLower(strings.TrimSpace(actor.Email))
	case actor.IsTechnician():
		req.PoolTechnicianID = snowflake.ID(actor.ID)
	}
	if req.Status != "" && !domain.ValidStatus(req.Status) {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.List(ctx, s.db, req)
}

func (s *service) Claim(ctx context.Context, id snowflake.ID, technicianName string) (*domain.Booking, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	if !actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}
	name := strings.TrimSpace(technicianName)
	if name == "" {
		name = actor.Name
	}

	start := time.Now()
	won, err := s.repo.Claim(ctx, s.db, id, snowflake.ID(actor.ID), name)
	metrics.Dispatch().ObserveTransition("claim", time.Since(start).Seconds())
	if err != nil {
		metrics.Dispatch().ClaimAttempt(metrics.ClaimOutcomeError)
		return nil, err
	}
	if !won {
		metrics.Dispatch().ClaimAttempt(metrics.ClaimOutcomeConflict)
		booking, findErr := s.repo.FindByID(ctx, s.db, id)
		if findErr != nil {
			return nil, findErr
		}
		if booking == nil {
			return nil, domain.ErrBookingNotFound
		}
		return nil, domain.ErrAlreadyClaimed
	}

	metrics.Dispatch().ClaimAttempt(metrics.ClaimOutcomeWon)
	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	s.hub.Publish(eventbus.Event{Topic: eventbus.TopicJobTaken, Payload: booking})
	s.log.Info("booking claimed",
		zap.String("booking_id", id.String()),
		zap.Int64("technician_id", actor.ID),
	)
	return booking, nil
}

func (s *service) Release(ctx context.Context, id snowflake.ID) (*domain.Booking, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	if !actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}
	penalty := s.dispatch.Get().ReleasePenalty

	// The conditional release and the score penalty commit together so
	// a retried release can never penalize twice.
	err := s.db.Transaction(func(tx *gorm.DB) error {
		released, err := s.repo.Release(ctx, tx, id, snowflake.ID(actor.ID))
		if err != nil {
			return err
		}
		if !released {
			return s.classifyReleaseFailure(ctx, tx, id, actor)
		}
		if _, err := s.profiles.ApplyScorePenalty(ctx, tx, snowflake.ID(actor.ID), penalty); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Dispatch().Released()
	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	s.hub.Publish(eventbus.Event{Topic: eventbus.TopicJobUpdate, Payload: booking})
	s.log.Info("booking released",
		zap.String("booking_id", id.String()),
		zap.Int64("technician_id", actor.ID),
		zap.Int("penalty", penalty),
	)
	return booking, nil
}

func (s *service) classifyReleaseFailure(ctx context.Context, tx *gorm.DB, id snowflake.ID, actor identity.Actor) error {
	booking, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if booking == nil {
		return domain.ErrBookingNotFound
	}
	// A booking that is no longer Accepted (already released, started, or
	// cancelled) is a conflict even for the technician who held it.
	if booking.Status != domain.StatusAccepted {
		return domain.ErrNotReleasable
	}
	if booking.TechnicianID == nil || int64(*booking.TechnicianID) != actor.ID {
		return domain.ErrForbidden
	}
	return domain.ErrNotReleasable
}

func (s *service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.BookingStatus) (*domain.Booking, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	if !domain.ValidStatus(status) {
		return nil, domain.ErrInvalidStatus
	}

	// Pending and Accepted are reached through release and claim, which
	// carry their own guards; the generic endpoint cannot set them.
	var from []domain.BookingStatus
	switch status {
	case domain.StatusInProgress:
		from = []domain.BookingStatus{domain.StatusAccepted}
	case domain.StatusCompleted:
		from = []domain.BookingStatus{domain.StatusInProgress}
	case domain.StatusCancelled:
		from = []domain.BookingStatus{domain.StatusPending, domain.StatusAccepted, domain.StatusInProgress}
	default:
		return nil, domain.ErrInvalidTransition
	}

	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	if !canMutate(actor, booking) {
		return nil, domain.ErrForbidden
	}

	start := time.Now()
	updated, err := s.repo.UpdateStatus(ctx, s.db, id, status, from...)
	metrics.Dispatch().ObserveTransition("status", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrInvalidTransition
	}

	booking, err = s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	metrics.Dispatch().StatusTransition(string(status))
	s.hub.Publish(eventbus.Event{Topic: eventbus.TopicJobUpdate, Payload: booking})

	background := context.WithoutCancel(ctx)
	go s.notifier.StatusChanged(background, booking.CustomerEmail, booking.ID, string(status))
	if status == domain.StatusCompleted {
		go s.completion.SendCompletionReceipt(background, receiptFor(booking))
	}

	return booking, nil
}

func (s *service) AmendDetails(ctx context.Context, id snowflake.ID, req domain.AmendDetailsRequest) (*domain.Booking, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	if req.Empty() {
		return nil, domain.ErrEmptyPatch
	}

	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	if !actor.IsAdmin() && !isAssignedTechnician(actor, booking) {
		return nil, domain.ErrForbidden
	}

	patch, err := s.buildPatch(req)
	if err != nil {
		return nil, err
	}

	guard := s.amendGuard(booking, patch)
	updated, err := s.repo.AmendDetails(ctx, s.db, id, patch, guard)
	if err != nil {
		return nil, err
	}
	if !updated {
		if guard != nil {
			current, err := s.repo.FindByID(ctx, s.db, id)
			if err != nil {
				return nil, err
			}
			if current != nil && (current.Status == domain.StatusAccepted || current.Status == domain.StatusInProgress) {
				metrics.Dispatch().SlotRejected()
				return nil, domain.ErrSlotUnavailable
			}
		}
		return nil, domain.ErrNotAmendable
	}

	booking, err = s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	s.hub.Publish(eventbus.Event{Topic: eventbus.TopicJobUpdate, Payload: booking})
	return booking, nil
}

// amendGuard re-applies the creation-time overlap predicate when the
// patch moves the booking to another slot or day. Patches that never
// touch the schedule skip the check.
func (s *service) amendGuard(booking *domain.Booking, patch domain.DetailPatch) *domain.SlotGuard {
	if patch.ClearTime {
		return nil
	}
	if patch.StartMinute == nil && patch.Date == nil {
		return nil
	}
	start := booking.StartMinute
	if patch.StartMinute != nil {
		start = patch.StartMinute
	}
	if start == nil {
		return nil
	}
	date := booking.BookingDate
	if patch.Date != nil {
		date = *patch.Date
	}

	rules := s.rules()
	return &domain.SlotGuard{
		Date:             date,
		StartMinute:      *start,
		DurationMinutes:  rules.DurationMinutes(booking.Service, booking.Tonnage),
		LongServiceKind:  domain.ServiceRepair,
		TonnageThreshold: rules.TonnageThreshold,
		LongMinutes:      rules.LongJobMinutes,
		ShortMinutes:     rules.ShortJobMinutes,
	}
}

func (s *service) buildPatch(req domain.AmendDetailsRequest) (domain.DetailPatch, error) {
	patch := domain.DetailPatch{
		Price:       req.Price,
		Description: req.Description,
		Quantity:    req.Quantity,
	}
	if req.Date != nil {
		date := strings.TrimSpace(*req.Date)
		if _, err := time.Parse(dateLayout, date); err != nil {
			return patch, domain.ErrInvalidDate
		}
		patch.Date = &date
	}
	if req.Time != nil {
		if strings.TrimSpace(*req.Time) == "" {
			patch.ClearTime = true
		} else {
			minute, err := availability.ParseSlot(*req.Time)
			if err != nil {
				return patch, domain.ErrInvalidTime
			}
			if !s.onGrid(s.rules(), minute) {
				return patch, domain.ErrInvalidTime
			}
			label := availability.MinuteLabel(minute)
			patch.Time = &label
			patch.StartMinute = &minute
		}
	}
	if req.Price != nil && *req.Price < 0 {
		return patch, domain.ErrInvalidRequest
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		return patch, domain.ErrInvalidRequest
	}
	if req.Items != nil {
		items, err := marshalItems(*req.Items)
		if err != nil {
			return patch, err
		}
		patch.Items = &items
	}
	return patch, nil
}

func (s *service) SubmitReview(ctx context.Context, id snowflake.ID, rating int, review string) (*domain.Booking, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	if rating < 1 || rating > 5 {
		return nil, domain.ErrInvalidRating
	}

	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	if !isOwner(actor, booking) {
		return nil, domain.ErrForbidden
	}

	updated, err := s.repo.SubmitReview(ctx, s.db, id, rating, strings.TrimSpace(review))
	if err != nil {
		return nil, err
	}
	if !updated {
		if booking.Status != domain.StatusCompleted {
			return nil, domain.ErrInvalidTransition
		}
		return nil, domain.ErrAlreadyReviewed
	}

	return s.repo.FindByID(ctx, s.db, id)
}

func (s *service) BlockedSlots(ctx context.Context, date string) ([]string, error) {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, domain.ErrInvalidDate
	}

	bookings, err := s.repo.ListActiveByDate(ctx, s.db, date)
	if err != nil {
		return nil, err
	}

	jobs := make([]availability.Job, 0, len(bookings))
	for _, b := range bookings {
		if b.StartMinute == nil {
			continue
		}
		jobs = append(jobs, availability.Job{
			StartMinute: *b.StartMinute,
			Service:     b.Service,
			Tonnage:     b.Tonnage,
		})
	}
	return s.rules().BlockedSlots(jobs), nil
}

func (s *service) MonthlyLoad(ctx context.Context, year, month int) ([]availability.DayLoad, error) {
	if month < 1 || month > 12 || year < 2000 || year > 2200 {
		return nil, domain.ErrInvalidDate
	}

	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	bookings, err := s.repo.ListActiveByMonth(ctx, s.db, prefix)
	if err != nil {
		return nil, err
	}

	rules := s.rules()
	minutesByDate := make(map[string]int, 31)
	for _, b := range bookings {
		minutesByDate[b.BookingDate] += rules.DurationMinutes(b.Service, b.Tonnage)
	}

	firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := firstDay.AddDate(0, 1, -1).Day()
	loads := make([]availability.DayLoad, 0, daysInMonth)
	for day := 1; day <= daysInMonth; day++ {
		date := fmt.Sprintf("%s%02d", prefix, day)
		minutes := minutesByDate[date]
		loads = append(loads, availability.DayLoad{
			Date:  date,
			Level: rules.LoadLevel(minutes),
			Load:  float64(minutes) / 60,
		})
	}
	return loads, nil
}

func (s *service) pushNewJobToTechnicians(ctx context.Context, booking *domain.Booking) {
	tokens, err := s.profiles.ListTechnicianTokens(ctx, s.db)
	if err != nil {
		s.log.Warn("technician token fan-out failed",
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err),
		)
		return
	}

	body := fmt.Sprintf("New %s job on %s", booking.Service, booking.BookingDate)
	for _, token := range tokens {
		err := s.push.Send(ctx, token, "New job available", body)
		if err != nil {
			s.log.Debug("push to technician failed", zap.Error(err))
		}
		metrics.Dispatch().NotificationResult(metrics.NotificationChannelPush, err)
	}
}

func (s *service) onGrid(rules availability.Rules, minute int) bool {
	if minute < rules.WindowStartMinute || minute > rules.WindowEndMinute {
		return false
	}
	if rules.SlotMinutes <= 0 {
		return false
	}
	return (minute-rules.WindowStartMinute)%rules.SlotMinutes == 0
}

func canMutate(actor identity.Actor, booking *domain.Booking) bool {
	return actor.IsAdmin() || isOwner(actor, booking) || isAssignedTechnician(actor, booking)
}

func isOwner(actor identity.Actor, booking *domain.Booking) bool {
	return strings.EqualFold(strings.TrimSpace(actor.Email), booking.CustomerEmail)
}

func isAssignedTechnician(actor identity.Actor, booking *domain.Booking) bool {
	return booking.TechnicianID != nil && int64(*booking.TechnicianID) == actor.ID
}

func marshalItems(items []domain.BookingItem) (datatypes.JSON, error) {
	if items == nil {
		items = []domain.BookingItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func receiptFor(booking *domain.Booking) pdf.ReceiptData {
	var items []domain.BookingItem
	_ = json.Unmarshal(booking.Items, &items)

	receiptItems := make([]pdf.ReceiptItem, 0, len(items))
	for _, item := range items {
		receiptItems = append(receiptItems, pdf.ReceiptItem{Name: item.Name, Price: item.Price})
	}

	bookingTime := ""
	if booking.BookingTime != nil {
		bookingTime = *booking.BookingTime
	}
	technicianName := ""
	if booking.TechnicianName != nil {
		technicianName = *booking.TechnicianName
	}

	return pdf.ReceiptData{
		BookingID:      booking.ID.String(),
		Service:        booking.Service,
		Date:           booking.BookingDate,
		Time:           bookingTime,
		Address:        booking.Address,
		CustomerName:   booking.CustomerName,
		CustomerEmail:  booking.CustomerEmail,
		TechnicianName: technicianName,
		Items:          receiptItems,
		Total:          booking.Price,
	}
}
