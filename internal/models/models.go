// Package models defines the scheduling domain entities shared by the
// services, repositories and the HTTP layer.
package models

import (
	"time"

	"github.com/google/uuid"

	"slotline/internal/timegrid"
)

// BookingStatus is the lifecycle state of a booking. Only confirmed
// bookings occupy time for conflict purposes.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no_show"
)

// IsTerminal reports whether the status permits no further transitions.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// OverrideType distinguishes date-specific schedule exceptions.
type OverrideType string

const (
	// OverrideBlocked removes all availability for the date.
	OverrideBlocked OverrideType = "blocked"
	// OverrideModified replaces the weekly windows for the date with the
	// override's own hours. It is not merged with the weekly schedule.
	OverrideModified OverrideType = "modified"
)

// BookedVia records which surface created a booking.
type BookedVia string

const (
	ViaAgent     BookedVia = "agent"
	ViaDashboard BookedVia = "dashboard"
	ViaAPI       BookedVia = "api"
)

// Service is a bookable offering in the catalog.
type Service struct {
	ID                     uuid.UUID `json:"id"`
	CompanyID              uuid.UUID `json:"company_id"`
	Name                   string    `json:"name"`
	DefaultDurationMinutes int       `json:"default_duration_minutes"`
	DefaultPrice           float64   `json:"default_price"`
	Currency               string    `json:"currency"`
	Active                 bool      `json:"active"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Staff is a bookable person.
type Staff struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffServiceAssignment links a staff member to a service they can
// perform. A staff member without an assignment cannot be booked for
// the service.
type StaffServiceAssignment struct {
	ID               uuid.UUID `json:"id"`
	StaffID          uuid.UUID `json:"staff_id"`
	ServiceID        uuid.UUID `json:"service_id"`
	DurationOverride *int      `json:"duration_override,omitempty"`
	PriceOverride    *float64  `json:"price_override,omitempty"`
}

// EffectiveDuration returns the assignment's duration override, or the
// service default when no override is set.
func (a *StaffServiceAssignment) EffectiveDuration(svc *Service) int {
	if a.DurationOverride != nil {
		return *a.DurationOverride
	}
	return svc.DefaultDurationMinutes
}

// EffectivePrice returns the assignment's price override, or the
// service default when no override is set.
func (a *StaffServiceAssignment) EffectivePrice(svc *Service) float64 {
	if a.PriceOverride != nil {
		return *a.PriceOverride
	}
	return svc.DefaultPrice
}

// WeeklyWindow is one recurring open interval for a staff member at a
// branch. DayOfWeek runs Monday = 0 .. Sunday = 6. Multiple disjoint
// windows per day are allowed (split shifts).
type WeeklyWindow struct {
	ID        uuid.UUID      `json:"id"`
	StaffID   uuid.UUID      `json:"staff_id"`
	BranchID  uuid.UUID      `json:"branch_id"`
	DayOfWeek int            `json:"day_of_week"`
	Start     timegrid.Clock `json:"start_time"`
	End       timegrid.Clock `json:"end_time"`
}

// Interval returns the window as a timegrid interval.
func (w *WeeklyWindow) Interval() timegrid.Interval {
	return timegrid.Interval{Start: w.Start, End: w.End}
}

// AvailabilityOverride is a date-specific exception to the weekly
// schedule. At most one override exists per (staff, branch, date).
type AvailabilityOverride struct {
	ID       uuid.UUID       `json:"id"`
	StaffID  uuid.UUID       `json:"staff_id"`
	BranchID uuid.UUID       `json:"branch_id"`
	Date     time.Time       `json:"date"`
	Type     OverrideType    `json:"type"`
	Start    *timegrid.Clock `json:"start_time,omitempty"`
	End      *timegrid.Clock `json:"end_time,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// Windows returns the effective open intervals this override dictates
// for its date. Blocked overrides, and modified overrides with missing
// hours, yield nothing.
func (o *AvailabilityOverride) Windows() []timegrid.Interval {
	if o.Type != OverrideModified || o.Start == nil || o.End == nil {
		return nil
	}
	return []timegrid.Interval{{Start: *o.Start, End: *o.End}}
}

// Booking is a committed reservation. Duration, price and currency are
// snapshotted at commit time and never recomputed from the catalog.
type Booking struct {
	ID              uuid.UUID      `json:"id"`
	CompanyID       uuid.UUID      `json:"company_id"`
	BranchID        uuid.UUID      `json:"branch_id"`
	StaffID         uuid.UUID      `json:"staff_id"`
	ServiceID       uuid.UUID      `json:"service_id"`
	CustomerName    string         `json:"customer_name"`
	CustomerPhone   string         `json:"customer_phone"`
	Date            time.Time      `json:"date"`
	Start           timegrid.Clock `json:"start_time"`
	End             timegrid.Clock `json:"end_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Price           float64        `json:"price"`
	Currency        string         `json:"currency"`
	Status          BookingStatus  `json:"status"`
	BookedVia       BookedVia      `json:"booked_via"`
	Notes           string         `json:"notes,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Interval returns the occupied time range.
func (b *Booking) Interval() timegrid.Interval {
	return timegrid.Interval{Start: b.Start, End: b.End}
}

// OverlapsRange reports whether the booking strictly overlaps the given
// range. Touching ranges do not overlap.
func (b *Booking) OverlapsRange(start, end timegrid.Clock) bool {
	return timegrid.Overlaps(b.Interval(), timegrid.Interval{Start: start, End: end})
}
