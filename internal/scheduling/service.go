// Package scheduling computes bookable time and gates every booking
// write through a single slot-validation chokepoint.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slotline/internal/metrics"
	"slotline/internal/timegrid"
)

// Validation error codes. All are business-rule rejections the caller
// can recover from; they never surface as Go errors.
const (
	CodeServiceNotFound   = "service_not_found"
	CodeInvalidAssignment = "invalid_assignment"
	CodeStaffUnavailable  = "staff_unavailable"
	CodeOutsideHours      = "outside_hours"
	CodeSlotUnavailable   = "slot_unavailable"
	CodeInvalidStatus     = "invalid_status"
	CodeNotFound          = "not_found"
)

// ErrServiceNotFound is returned by CheckAvailability for an unknown
// service ID.
var ErrServiceNotFound = errors.New("service not found")

// ValidationResult is the structured outcome of slot validation.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Code    string `json:"error_code,omitempty"`
	Message string `json:"error_message,omitempty"`
}

func invalid(code, format string, args ...any) *ValidationResult {
	metrics.IncSlotRejected(code)
	return &ValidationResult{Valid: false, Code: code, Message: fmt.Sprintf(format, args...)}
}

// StaffAvailability lists the free windows for one staff member on one
// date. Windows are compressed free ranges, not discrete start times;
// callers needing fixed slot starts slice them.
type StaffAvailability struct {
	StaffID     uuid.UUID `json:"staff_id"`
	StaffName   string    `json:"staff_name"`
	FreeWindows []string  `json:"free_windows"`
}

// DayAvailability groups staff availability for one date.
type DayAvailability struct {
	Date  string              `json:"date"`
	Staff []StaffAvailability `json:"staff"`
}

// AvailabilityResult is the answer to "what's free?".
type AvailabilityResult struct {
	ServiceName     string            `json:"service_name"`
	DurationMinutes int               `json:"duration_minutes"`
	Days            []DayAvailability `json:"days"`
	Message         string            `json:"message,omitempty"`
}

// CheckAvailabilityRequest narrows availability enumeration. StaffID
// nil means every staff member assigned to the service at the branch.
type CheckAvailabilityRequest struct {
	ServiceID uuid.UUID
	BranchID  uuid.UUID
	DateFrom  time.Time
	DateTo    time.Time
	StaffID   *uuid.UUID
}

// ValidateSlotRequest is a candidate slot to be checked before a write.
type ValidateSlotRequest struct {
	StaffID          uuid.UUID
	BranchID         uuid.UUID
	Date             time.Time
	Start            timegrid.Clock
	End              timegrid.Clock
	ExcludeBookingID *uuid.UUID
}

// Service orchestrates the availability resolver and the booking
// conflict checker. It is the single source of truth for slot
// computation; no other code path may decide bookability.
type Service struct {
	catalog  CatalogReader
	schedule ScheduleReader
	bookings BookingReader
	resolver *Resolver
	logger   *zerolog.Logger
}

// NewService creates a scheduling service.
func NewService(catalog CatalogReader, schedule ScheduleReader, bookings BookingReader, logger *zerolog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		schedule: schedule,
		bookings: bookings,
		resolver: NewResolver(schedule),
		logger:   logger,
	}
}

// Resolver exposes the availability resolver for callers that need raw
// effective windows.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// CheckAvailability enumerates free windows for a service across a date
// range, for one staff member or every assigned one. Staff and dates
// with no qualifying free windows are omitted from the result.
func (s *Service) CheckAvailability(ctx context.Context, req CheckAvailabilityRequest) (*AvailabilityResult, error) {
	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil {
		return nil, ErrServiceNotFound
	}

	var staffIDs []uuid.UUID
	if req.StaffID != nil {
		staffIDs = []uuid.UUID{*req.StaffID}
	}

	rows, err := s.schedule.ListScheduleContext(ctx, staffIDs, req.ServiceID, req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("list schedule context: %w", err)
	}

	result := &AvailabilityResult{
		ServiceName:     svc.Name,
		DurationMinutes: svc.DefaultDurationMinutes,
		Days:            []DayAvailability{},
	}
	if len(rows) == 0 {
		result.Message = fmt.Sprintf("No staff offer %s at this branch.", svc.Name)
		return result, nil
	}

	// Index the joined rows: weekly windows per staff per weekday,
	// one assignment and display name per staff.
	weeklyByStaff := make(map[uuid.UUID]map[int][]timegrid.Interval)
	durationByStaff := make(map[uuid.UUID]int)
	nameByStaff := make(map[uuid.UUID]string)
	for _, row := range rows {
		sid := row.Assignment.StaffID
		if _, ok := weeklyByStaff[sid]; !ok {
			weeklyByStaff[sid] = make(map[int][]timegrid.Interval)
			durationByStaff[sid] = row.Assignment.EffectiveDuration(svc)
			nameByStaff[sid] = row.StaffName
		}
		day := row.Window.DayOfWeek
		weeklyByStaff[sid][day] = append(weeklyByStaff[sid][day], row.Window.Interval())
	}

	candidates := make([]uuid.UUID, 0, len(weeklyByStaff))
	for sid := range weeklyByStaff {
		candidates = append(candidates, sid)
	}
	// Stable staff order: by name, then ID for identical names.
	sort.Slice(candidates, func(i, j int) bool {
		ni, nj := nameByStaff[candidates[i]], nameByStaff[candidates[j]]
		if ni != nj {
			return ni < nj
		}
		return candidates[i].String() < candidates[j].String()
	})

	// One bulk read covers every candidate across the whole range.
	allBookings, err := s.bookings.ListByStaffIDsDateRange(ctx, candidates, req.BranchID, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	busy := make(map[uuid.UUID]map[string][]timegrid.Interval)
	for _, b := range allBookings {
		if _, ok := busy[b.StaffID]; !ok {
			busy[b.StaffID] = make(map[string][]timegrid.Interval)
		}
		key := timegrid.DateString(b.Date)
		busy[b.StaffID][key] = append(busy[b.StaffID][key], b.Interval())
	}

	for date := req.DateFrom; !date.After(req.DateTo); date = date.AddDate(0, 0, 1) {
		dateKey := timegrid.DateString(date)
		var day []StaffAvailability

		for _, sid := range candidates {
			windows, err := s.resolver.resolveFromWeekly(ctx, sid, req.BranchID, date, weeklyByStaff[sid])
			if err != nil {
				return nil, err
			}

			duration := durationByStaff[sid]
			var free []string
			for _, w := range windows {
				for _, fragment := range timegrid.Subtract(w, busy[sid][dateKey]) {
					// A fragment shorter than the service cannot be offered.
					if fragment.Minutes() >= duration {
						free = append(free, fragment.String())
					}
				}
			}
			if len(free) > 0 {
				day = append(day, StaffAvailability{
					StaffID:     sid,
					StaffName:   nameByStaff[sid],
					FreeWindows: free,
				})
			}
		}

		if len(day) > 0 {
			result.Days = append(result.Days, DayAvailability{Date: dateKey, Staff: day})
		}
	}

	if len(result.Days) == 0 {
		result.Message = "No availability in the requested date range."
	}

	s.logger.Debug().
		Str("service", svc.Name).
		Int("candidates", len(candidates)).
		Int("days_with_availability", len(result.Days)).
		Msg("availability computed")

	return result, nil
}

// ValidateSlot decides whether a candidate slot can be booked. Every
// booking creation and edit must pass through here before writing.
func (s *Service) ValidateSlot(ctx context.Context, req ValidateSlotRequest) (*ValidationResult, error) {
	windows, blocked, err := s.resolver.resolve(ctx, req.StaffID, req.BranchID, req.Date)
	if err != nil {
		return nil, err
	}

	if len(windows) == 0 {
		if blocked {
			return invalid(CodeStaffUnavailable,
				"The staff member is not available on %s.", timegrid.DateString(req.Date)), nil
		}
		return invalid(CodeStaffUnavailable,
			"The staff member is not available on %ss.", req.Date.Weekday()), nil
	}

	slot := timegrid.Interval{Start: req.Start, End: req.End}
	covered := false
	for _, w := range windows {
		if timegrid.Contains(w, slot) {
			covered = true
			break
		}
	}
	if !covered {
		strs := make([]string, 0, len(windows))
		for _, w := range windows {
			strs = append(strs, w.String())
		}
		return invalid(CodeOutsideHours,
			"The requested time %s is outside the staff's available hours (%s).",
			slot.String(), strings.Join(strs, ", ")), nil
	}

	overlapping, err := s.bookings.FindOverlapping(ctx, req.StaffID, req.Date, req.Start, req.End, req.ExcludeBookingID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	if len(overlapping) > 0 {
		return invalid(CodeSlotUnavailable, "This slot is no longer available."), nil
	}

	return &ValidationResult{Valid: true}, nil
}
