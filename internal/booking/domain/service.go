package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/chillserv/fieldops/internal/availability"
)

var (
	ErrBookingNotFound   = errors.New("booking_not_found")
	ErrAlreadyClaimed    = errors.New("booking_already_claimed")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrNotReleasable     = errors.New("booking_not_releasable")
	ErrAlreadyReviewed   = errors.New("booking_already_reviewed")
	ErrNotAmendable      = errors.New("booking_not_amendable")
	ErrSlotUnavailable   = errors.New("slot_unavailable")
	ErrForbidden         = errors.New("forbidden")
	ErrMissingActor      = errors.New("missing_actor")

	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidServiceKind = errors.New("invalid_service_kind")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidTime        = errors.New("invalid_time")
	ErrInvalidRating      = errors.New("invalid_rating")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrEmptyPatch         = errors.New("empty_patch")
)

// CreateBookingRequest carries the customer-facing creation payload.
type CreateBookingRequest struct {
	Service       string        `json:"service"`
	Tonnage       float64       `json:"tonnage"`
	Price         float64       `json:"price"`
	Date          string        `json:"date"`
	Time          *string       `json:"time"`
	Address       string        `json:"address"`
	Latitude      float64       `json:"lat"`
	Longitude     float64       `json:"lng"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	Description   string        `json:"description"`
	ContactMethod string        `json:"contact_method"`
	Quantity      int           `json:"quantity"`
	Items         []BookingItem `json:"items"`
}

// AmendDetailsRequest is a field-level patch; nil fields are untouched.
type AmendDetailsRequest struct {
	Date        *string        `json:"date"`
	Time        *string        `json:"time"`
	Price       *float64       `json:"price"`
	Description *string        `json:"description"`
	Quantity    *int           `json:"quantity"`
	Items       *[]BookingItem `json:"items"`
}

// Empty reports whether the patch touches nothing.
func (r AmendDetailsRequest) Empty() bool {
	return r.Date == nil && r.Time == nil && r.Price == nil &&
		r.Description == nil && r.Quantity == nil && r.Items == nil
}

// ListBookingsRequest filters the booking list. PoolTechnicianID scopes
// the result to claimable work plus that technician's own assignments.
type ListBookingsRequest struct {
	Status           BookingStatus
	Date             string
	CustomerEmail    string
	TechnicianID     snowflake.ID
	PoolTechnicianID snowflake.ID
}

// Service is the dispatch core: lifecycle transitions, slot
// availability, and the side effects hanging off each transition.
// The acting identity is read from the request context.
type Service interface {
	Create(ctx context.Context, req CreateBookingRequest) (*Booking, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Booking, error)
	List(ctx context.Context, req ListBookingsRequest) ([]*Booking, error)

	// Claim atomically assigns a Pending booking to the calling
	// technician. Exactly one of N concurrent claimers wins; the rest
	// receive ErrAlreadyClaimed.
	Claim(ctx context.Context, id snowflake.ID, technicianName string) (*Booking, error)
	// Release returns an Accepted booking to the pool and applies the
	// reputation penalty to the releasing technician exactly once.
	Release(ctx context.Context, id snowflake.ID) (*Booking, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status BookingStatus) (*Booking, error)
	AmendDetails(ctx context.Context, id snowflake.ID, req AmendDetailsRequest) (*Booking, error)
	SubmitReview(ctx context.Context, id snowflake.ID, rating int, review string) (*Booking, error)

	BlockedSlots(ctx context.Context, date string) ([]string, error)
	MonthlyLoad(ctx context.Context, year, month int) ([]availability.DayLoad, error)
}
