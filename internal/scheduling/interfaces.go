package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotline/internal/models"
	"slotline/internal/timegrid"
)

// CatalogReader resolves services and staff-service assignments.
// Implementations return (nil, nil) when the entity does not exist;
// errors are reserved for infrastructure failures.
type CatalogReader interface {
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	GetAssignment(ctx context.Context, staffID, serviceID uuid.UUID) (*models.StaffServiceAssignment, error)
}

// ScheduleContextRow is one joined row of assignment + weekly window +
// staff name, used for batch availability enumeration.
type ScheduleContextRow struct {
	Assignment models.StaffServiceAssignment
	Window     models.WeeklyWindow
	StaffName  string
}

// ScheduleReader provides weekly windows and date overrides.
type ScheduleReader interface {
	ListWeeklyWindows(ctx context.Context, staffID, branchID uuid.UUID, dayOfWeek int) ([]models.WeeklyWindow, error)
	GetOverride(ctx context.Context, staffID, branchID uuid.UUID, date time.Time) (*models.AvailabilityOverride, error)

	// ListScheduleContext returns one row per weekly window for every
	// staff member assigned to the service with windows at the branch.
	// staffIDs == nil means all assigned staff; an empty non-nil slice
	// returns nothing.
	ListScheduleContext(ctx context.Context, staffIDs []uuid.UUID, serviceID, branchID uuid.UUID) ([]ScheduleContextRow, error)
}

// BookingReader is the read side of the booking store used for
// conflict detection. Both methods return confirmed bookings only.
type BookingReader interface {
	FindOverlapping(ctx context.Context, staffID uuid.UUID, date time.Time, start, end timegrid.Clock, excludeBookingID *uuid.UUID) ([]models.Booking, error)
	ListByStaffIDsDateRange(ctx context.Context, staffIDs []uuid.UUID, branchID uuid.UUID, dateFrom, dateTo time.Time) ([]models.Booking, error)
}
