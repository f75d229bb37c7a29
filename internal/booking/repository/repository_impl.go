package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/chillserv/fieldops/internal/booking/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const bookingColumns = `id, service, tonnage, description, items, quantity, price,
	booking_date, booking_time, start_minute, address, latitude, longitude,
	customer_name, customer_phone, contact_method, customer_email,
	technician_id, technician_name, status, rating, review, created_at, updated_at`

// Insert creates the booking row. When guard is non-nil the row is only
// written if no live booking overlaps the requested slot; both the
// existence check and the write happen in one statement so two
// concurrent creations cannot both pass the check.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, booking *domain.Booking, guard *domain.SlotGuard) (bool, error) {
	args := []any{
		booking.ID,
		booking.Service,
		booking.Tonnage,
		booking.Description,
		booking.Items,
		booking.Quantity,
		booking.Price,
		booking.BookingDate,
		booking.BookingTime,
		booking.StartMinute,
		booking.Address,
		booking.Latitude,
		booking.Longitude,
		booking.CustomerName,
		booking.CustomerPhone,
		booking.ContactMethod,
		booking.CustomerEmail,
		booking.TechnicianID,
		booking.TechnicianName,
		booking.Status,
		booking.Rating,
		booking.Review,
		booking.CreatedAt,
		booking.UpdatedAt,
	}

	if guard == nil {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO bookings (`+bookingColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...,
		).Error
		if err != nil {
			return false, err
		}
		return true, nil
	}

	candidateEnd := guard.StartMinute + guard.DurationMinutes
	args = append(args,
		guard.Date,
		candidateEnd,
		guard.StartMinute,
		guard.LongServiceKind,
		guard.TonnageThreshold,
		guard.LongMinutes,
		guard.ShortMinutes,
	)

	result := db.WithContext(ctx).Exec(
		`INSERT INTO bookings (`+bookingColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE booking_date = ?
			  AND status <> 'Cancelled'
			  AND start_minute IS NOT NULL
			  AND start_minute < ?
			  AND ? < start_minute + (CASE WHEN service = ? OR tonnage >= ? THEN ? ELSE ? END)
		 )`,
		args...,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`,
		id,
	).Scan(&booking).Error
	if err != nil {
		return nil, err
	}
	if booking.ID == 0 {
		return nil, nil
	}
	return &booking, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListBookingsRequest) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	stmt := db.WithContext(ctx).Model(&domain.Booking{})
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.Date != "" {
		stmt = stmt.Where("booking_date = ?", req.Date)
	}
	if req.CustomerEmail != "" {
		stmt = stmt.Where("customer_email = ?", req.CustomerEmail)
	}
	if req.TechnicianID != 0 {
		stmt = stmt.Where("technician_id = ?", req.TechnicianID)
	}
	if req.PoolTechnicianID != 0 {
		stmt = stmt.Where("status = ? OR technician_id = ?", domain.StatusPending, req.PoolTechnicianID)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) ListActiveByDate(ctx context.Context, db *gorm.DB, date string) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	err := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("booking_date = ?", date).
		Where("status <> ?", domain.StatusCancelled).
		Order("start_minute asc, id asc").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) ListActiveByMonth(ctx context.Context, db *gorm.DB, monthPrefix string) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	err := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("booking_date LIKE ?", monthPrefix+"%").
		Where("status <> ?", domain.StatusCancelled).
		Order("booking_date asc, id asc").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// Claim assigns the booking to the technician only while it is still
// Pending and unassigned. The WHERE clause is the entire race guard:
// of N concurrent claims the store lets exactly one row update through.
func (r *repo) Claim(ctx context.Context, db *gorm.DB, id, technicianID snowflake.ID, technicianName string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET status = ?, technician_id = ?, technician_name = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? AND technician_id IS NULL`,
		domain.StatusAccepted,
		technicianID,
		technicianName,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release returns the booking to the pool only while the caller still
// holds it and work has not started.
func (r *repo) Release(ctx context.Context, db *gorm.DB, id, technicianID snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET status = ?, technician_id = NULL, technician_name = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? AND technician_id = ?`,
		domain.StatusPending,
		id,
		domain.StatusAccepted,
		technicianID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, to domain.BookingStatus, from ...domain.BookingStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("update status requires at least one expected current status")
	}

	set := `status = ?, updated_at = CURRENT_TIMESTAMP`
	if to == domain.StatusCancelled {
		// Technician assignment only exists on live assigned work.
		set = `status = ?, technician_id = NULL, technician_name = NULL, updated_at = CURRENT_TIMESTAMP`
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := make([]any, 0, len(from)+2)
	args = append(args, to, id)
	for _, s := range from {
		args = append(args, s)
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE bookings SET `+set+` WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AmendDetails patches mutable fields while the job is assigned but not
// finished; the status guard keeps a concurrent completion or
// cancellation from being overwritten by a stale amendment. A non-nil
// slot guard reuses the insert-time overlap predicate so a reschedule
// cannot land on an occupied slot.
func (r *repo) AmendDetails(ctx context.Context, db *gorm.DB, id snowflake.ID, patch domain.DetailPatch, guard *domain.SlotGuard) (bool, error) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 10)

	if patch.Date != nil {
		sets = append(sets, "booking_date = ?")
		args = append(args, *patch.Date)
	}
	if patch.ClearTime {
		sets = append(sets, "booking_time = NULL", "start_minute = NULL")
	} else if patch.Time != nil {
		sets = append(sets, "booking_time = ?", "start_minute = ?")
		args = append(args, *patch.Time, patch.StartMinute)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *patch.Price)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *patch.Quantity)
	}
	if patch.Items != nil {
		sets = append(sets, "items = ?")
		args = append(args, *patch.Items)
	}
	if len(sets) == 0 {
		return false, nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	args = append(args, id, domain.StatusAccepted, domain.StatusInProgress)
	where := ` WHERE id = ? AND status IN (?, ?)`
	if guard != nil {
		// The overlap check reads through a derived table so the statement
		// stays valid on backends that refuse to select from the table
		// being updated.
		where += `
		 AND NOT EXISTS (
			SELECT 1 FROM (
				SELECT id, booking_date, status, start_minute, service, tonnage FROM bookings
			) other
			WHERE other.id <> ?
			  AND other.booking_date = ?
			  AND other.status <> 'Cancelled'
			  AND other.start_minute IS NOT NULL
			  AND other.start_minute < ?
			  AND ? < other.start_minute + (CASE WHEN other.service = ? OR other.tonnage >= ? THEN ? ELSE ? END)
		 )`
		candidateEnd := guard.StartMinute + guard.DurationMinutes
		args = append(args,
			id,
			guard.Date,
			candidateEnd,
			guard.StartMinute,
			guard.LongServiceKind,
			guard.TonnageThreshold,
			guard.LongMinutes,
			guard.ShortMinutes,
		)
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE bookings SET `+strings.Join(sets, ", ")+where,
		args...,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SubmitReview writes the first review only; the rating IS NULL guard
// makes a second submission lose rather than overwrite.
func (r *repo) SubmitReview(ctx context.Context, db *gorm.DB, id snowflake.ID, rating int, review string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET rating = ?, review = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? AND rating IS NULL`,
		rating,
		review,
		id,
		domain.StatusCompleted,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
