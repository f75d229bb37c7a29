package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SlotGuard parameterizes the overlap predicate evaluated inside the
// conditional insert and the conditional amend. Durations of existing
// rows are derived in SQL with the same rule the availability engine
// applies in memory.
type SlotGuard struct {
	Date             string
	StartMinute      int
	DurationMinutes  int
	LongServiceKind  string
	TonnageThreshold float64
	LongMinutes      int
	ShortMinutes     int
}

// DetailPatch is the repository-level projection of an amendment.
type DetailPatch struct {
	Date        *string
	Time        *string
	StartMinute *int
	ClearTime   bool
	Price       *float64
	Description *string
	Quantity    *int
	Items       *datatypes.JSON
}

// Repository persists bookings. Every transition method is a single
// conditional write whose WHERE clause carries the precondition; the
// returned bool is false when the precondition did not hold.
type Repository interface {
	// Insert creates the booking. With a non-nil guard the insert only
	// happens when no non-cancelled booking overlaps the guarded slot;
	// false means the slot was taken.
	Insert(ctx context.Context, db *gorm.DB, booking *Booking, guard *SlotGuard) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	List(ctx context.Context, db *gorm.DB, req ListBookingsRequest) ([]*Booking, error)
	ListActiveByDate(ctx context.Context, db *gorm.DB, date string) ([]*Booking, error)
	ListActiveByMonth(ctx context.Context, db *gorm.DB, monthPrefix string) ([]*Booking, error)

	Claim(ctx context.Context, db *gorm.DB, id, technicianID snowflake.ID, technicianName string) (bool, error)
	Release(ctx context.Context, db *gorm.DB, id, technicianID snowflake.ID) (bool, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, to BookingStatus, from ...BookingStatus) (bool, error)
	// AmendDetails patches the booking while its status allows it. With a
	// non-nil guard the patch only lands when no other non-cancelled
	// booking overlaps the guarded slot.
	AmendDetails(ctx context.Context, db *gorm.DB, id snowflake.ID, patch DetailPatch, guard *SlotGuard) (bool, error)
	SubmitReview(ctx context.Context, db *gorm.DB, id snowflake.ID, rating int, review string) (bool, error)
}
