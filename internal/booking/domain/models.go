package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BookingStatus is the lifecycle state of a job.
type BookingStatus string

const (
	StatusPending    BookingStatus = "Pending"
	StatusAccepted   BookingStatus = "Accepted"
	StatusInProgress BookingStatus = "InProgress"
	StatusCompleted  BookingStatus = "Completed"
	StatusCancelled  BookingStatus = "Cancelled"
)

// ValidStatus reports whether s is one of the five lifecycle states.
func ValidStatus(s BookingStatus) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether s admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Service kinds offered to customers.
const (
	ServiceCleaning    = "Cleaning"
	ServiceGasRecharge = "GasRecharge"
	ServiceRepair      = "Repair"
)

// ValidServiceKind reports whether kind is an offered service.
func ValidServiceKind(kind string) bool {
	switch kind {
	case ServiceCleaning, ServiceGasRecharge, ServiceRepair:
		return true
	default:
		return false
	}
}

// BookingItem is one priced line item on a booking.
type BookingItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Booking is the unit of dispatched work. StartMinute mirrors
// BookingTime as a minute-of-day so the overlap guard can run in SQL;
// both are null for repair requests awaiting a quote.
type Booking struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	Service        string         `gorm:"not null" json:"service"`
	Tonnage        float64        `gorm:"not null;default:0" json:"tonnage"`
	Description    string         `gorm:"not null;default:''" json:"description"`
	Items          datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"items"`
	Quantity       int            `gorm:"not null;default:1" json:"quantity"`
	Price          float64        `gorm:"not null;default:0" json:"price"`
	BookingDate    string         `gorm:"column:booking_date;not null;index" json:"date"`
	BookingTime    *string        `gorm:"column:booking_time" json:"time,omitempty"`
	StartMinute    *int           `gorm:"column:start_minute" json:"-"`
	Address        string         `gorm:"not null;default:''" json:"address"`
	Latitude       float64        `gorm:"not null;default:0" json:"lat"`
	Longitude      float64        `gorm:"not null;default:0" json:"lng"`
	CustomerName   string         `gorm:"not null;default:''" json:"customer_name"`
	CustomerPhone  string         `gorm:"not null;default:''" json:"customer_phone"`
	ContactMethod  string         `gorm:"not null;default:''" json:"contact_method"`
	CustomerEmail  string         `gorm:"not null;index" json:"customer_email"`
	TechnicianID   *snowflake.ID  `json:"technician_id,omitempty"`
	TechnicianName *string        `json:"technician_name,omitempty"`
	Status         BookingStatus  `gorm:"not null;default:Pending;index" json:"status"`
	Rating         *int           `json:"rating,omitempty"`
	Review         *string        `json:"review,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}
