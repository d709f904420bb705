// Package booking owns the reservation lifecycle: creation, edits,
// cancellation and the auto-complete sweep. Every mutation re-runs slot
// validation through the scheduling service before touching storage.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slotline/internal/metrics"
	"slotline/internal/models"
	"slotline/internal/scheduling"
	"slotline/internal/timegrid"
)

// ErrSlotTaken is returned by Store implementations when the
// storage-level overlap check rejects a write that passed validation.
// It is the backstop that keeps two concurrent winners out.
var ErrSlotTaken = errors.New("slot already taken")

// SlotValidator is the scheduling service chokepoint.
type SlotValidator interface {
	ValidateSlot(ctx context.Context, req scheduling.ValidateSlotRequest) (*scheduling.ValidationResult, error)
}

// StaffReader resolves staff display names for results.
// Returns (nil, nil) when the staff member does not exist.
type StaffReader interface {
	GetStaff(ctx context.Context, id uuid.UUID) (*models.Staff, error)
}

// Store is the write side of the booking store. CreateBooking and
// UpdateBooking must enforce the no-overlap invariant under a
// serialized-write boundary and return ErrSlotTaken on violation.
type Store interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	UpdateBooking(ctx context.Context, b *models.Booking) error
	ListByCompany(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID) ([]models.Booking, error)

	// BulkMarkCompleted flips confirmed bookings dated strictly before
	// the given day to completed and reports how many changed.
	BulkMarkCompleted(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID, before time.Time) (int, error)
}

// Rejection is a recoverable business-rule refusal. It carries the same
// codes as scheduling validation so callers see one taxonomy.
type Rejection struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func reject(code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Result is a successful booking mutation, enriched with display names
// so conversational callers can confirm without extra lookups.
type Result struct {
	Booking     models.Booking `json:"booking"`
	ServiceName string         `json:"service_name"`
	StaffName   string         `json:"staff_name"`
}

// CreateRequest describes a new reservation. End time is derived from
// the snapshotted duration, never supplied by the caller.
type CreateRequest struct {
	CompanyID     uuid.UUID
	BranchID      uuid.UUID
	StaffID       uuid.UUID
	ServiceID     uuid.UUID
	CustomerName  string
	CustomerPhone string
	Date          time.Time
	Start         timegrid.Clock
	Via           models.BookedVia
	Notes         string
}

// EditRequest carries the fields to merge over an existing confirmed
// booking. Nil fields keep their current values.
type EditRequest struct {
	BookingID uuid.UUID
	BranchID  uuid.UUID
	Date      *time.Time
	Start     *timegrid.Clock
	StaffID   *uuid.UUID
	ServiceID *uuid.UUID
}

// Service is the booking lifecycle manager.
type Service struct {
	store     Store
	catalog   scheduling.CatalogReader
	staff     StaffReader
	validator SlotValidator
	logger    *zerolog.Logger
}

// NewService creates a booking lifecycle service.
func NewService(store Store, catalog scheduling.CatalogReader, staff StaffReader, validator SlotValidator, logger *zerolog.Logger) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		staff:     staff,
		validator: validator,
		logger:    logger,
	}
}

// snapshot resolves the assignment and service and returns the
// duration, price and currency frozen into the booking row.
func (s *Service) snapshot(ctx context.Context, staffID, serviceID uuid.UUID) (*models.Service, int, float64, *Rejection, error) {
	asg, err := s.catalog.GetAssignment(ctx, staffID, serviceID)
	if err != nil {
		return nil, 0, 0, nil, fmt.Errorf("get assignment: %w", err)
	}
	if asg == nil {
		return nil, 0, 0, reject(scheduling.CodeInvalidAssignment, "Staff is not assigned to this service."), nil
	}

	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, 0, 0, nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil {
		return nil, 0, 0, reject(scheduling.CodeServiceNotFound, "Service not found."), nil
	}

	return svc, asg.EffectiveDuration(svc), asg.EffectivePrice(svc), nil, nil
}

func (s *Service) staffName(ctx context.Context, id uuid.UUID) string {
	staff, err := s.staff.GetStaff(ctx, id)
	if err != nil || staff == nil {
		return "Unknown"
	}
	return staff.Name
}

// Create validates and commits a new reservation. Duration and price
// are snapshotted from the assignment or service at this instant and
// never recomputed, even if catalog prices change later.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, *Rejection, error) {
	svc, duration, price, rej, err := s.snapshot(ctx, req.StaffID, req.ServiceID)
	if err != nil || rej != nil {
		return nil, rej, err
	}

	end := req.Start.Add(duration)
	vr, err := s.validator.ValidateSlot(ctx, scheduling.ValidateSlotRequest{
		StaffID:  req.StaffID,
		BranchID: req.BranchID,
		Date:     req.Date,
		Start:    req.Start,
		End:      end,
	})
	if err != nil {
		return nil, nil, err
	}
	if !vr.Valid {
		return nil, &Rejection{Code: vr.Code, Message: vr.Message}, nil
	}

	now := time.Now().UTC()
	b := &models.Booking{
		ID:              uuid.New(),
		CompanyID:       req.CompanyID,
		BranchID:        req.BranchID,
		StaffID:         req.StaffID,
		ServiceID:       req.ServiceID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Date:            req.Date,
		Start:           req.Start,
		End:             end,
		DurationMinutes: duration,
		Price:           price,
		Currency:        svc.Currency,
		Status:          models.StatusConfirmed,
		BookedVia:       req.Via,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			// Lost the race to a concurrent booking that validated in parallel.
			metrics.IncSlotRejected(scheduling.CodeSlotUnavailable)
			return nil, reject(scheduling.CodeSlotUnavailable, "This slot is no longer available."), nil
		}
		return nil, nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingCreated(string(req.Via))
	s.logger.Info().
		Str("booking_id", b.ID.String()).
		Str("staff_id", b.StaffID.String()).
		Str("date", timegrid.DateString(b.Date)).
		Str("slot", b.Interval().String()).
		Msg("booking created")

	return &Result{
		Booking:     *b,
		ServiceName: svc.Name,
		StaffName:   s.staffName(ctx, b.StaffID),
	}, nil, nil
}

// Edit merges the supplied fields over a confirmed booking, re-snapshots
// duration and price (changing staff or service re-prices the booking)
// and re-validates the slot excluding the booking itself.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*Result, *Rejection, error) {
	b, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil || b.BranchID != req.BranchID {
		return nil, reject(scheduling.CodeNotFound, "Booking not found."), nil
	}
	if b.Status != models.StatusConfirmed {
		return nil, reject(scheduling.CodeInvalidStatus,
			"Booking cannot be edited: current status is %q.", b.Status), nil
	}

	newDate := b.Date
	if req.Date != nil {
		newDate = *req.Date
	}
	newStart := b.Start
	if req.Start != nil {
		newStart = *req.Start
	}
	newStaffID := b.StaffID
	if req.StaffID != nil {
		newStaffID = *req.StaffID
	}
	newServiceID := b.ServiceID
	if req.ServiceID != nil {
		newServiceID = *req.ServiceID
	}

	svc, duration, price, rejx, err := s.snapshot(ctx, newStaffID, newServiceID)
	if err != nil || rejx != nil {
		return nil, rejx, err
	}
	newEnd := newStart.Add(duration)

	excludeID := b.ID
	vr, err := s.validator.ValidateSlot(ctx, scheduling.ValidateSlotRequest{
		StaffID:          newStaffID,
		BranchID:         req.BranchID,
		Date:             newDate,
		Start:            newStart,
		End:              newEnd,
		ExcludeBookingID: &excludeID,
	})
	if err != nil {
		return nil, nil, err
	}
	if !vr.Valid {
		return nil, &Rejection{Code: vr.Code, Message: vr.Message}, nil
	}

	b.Date = newDate
	b.Start = newStart
	b.End = newEnd
	b.StaffID = newStaffID
	b.ServiceID = newServiceID
	b.DurationMinutes = duration
	b.Price = price
	b.Currency = svc.Currency
	b.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateBooking(ctx, b); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			metrics.IncSlotRejected(scheduling.CodeSlotUnavailable)
			return nil, reject(scheduling.CodeSlotUnavailable, "This slot is no longer available."), nil
		}
		return nil, nil, fmt.Errorf("update booking: %w", err)
	}

	s.logger.Info().
		Str("booking_id", b.ID.String()).
		Str("date", timegrid.DateString(b.Date)).
		Str("slot", b.Interval().String()).
		Msg("booking edited")

	return &Result{
		Booking:     *b,
		ServiceName: svc.Name,
		StaffName:   s.staffName(ctx, b.StaffID),
	}, nil, nil
}

// Cancel transitions a confirmed booking to cancelled and records the
// cancellation time. Terminal states do not transition further.
func (s *Service) Cancel(ctx context.Context, bookingID, branchID uuid.UUID) (*models.Booking, *Rejection, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil || b.BranchID != branchID {
		return nil, reject(scheduling.CodeNotFound, "Booking not found."), nil
	}
	if b.Status != models.StatusConfirmed {
		return nil, reject(scheduling.CodeInvalidStatus,
			"Booking cannot be cancelled: current status is %q.", b.Status), nil
	}

	now := time.Now().UTC()
	b.Status = models.StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now

	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return nil, nil, fmt.Errorf("update booking: %w", err)
	}

	metrics.IncBookingCancelled()
	s.logger.Info().Str("booking_id", b.ID.String()).Msg("booking cancelled")
	return b, nil, nil
}

// AutoCompletePast flips confirmed bookings dated before today to
// completed for a company, optionally scoped to one branch. The sweep
// is idempotent; it runs on read rather than on a schedule.
func (s *Service) AutoCompletePast(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID) (int, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	n, err := s.store.BulkMarkCompleted(ctx, companyID, branchID, today)
	if err != nil {
		return 0, fmt.Errorf("bulk mark completed: %w", err)
	}
	if n > 0 {
		metrics.AddBookingsCompleted(n)
		s.logger.Info().Int("count", n).Str("company_id", companyID.String()).Msg("bookings auto-completed")
	}
	return n, nil
}

// List returns the company's bookings, sweeping elapsed confirmed
// bookings to completed first so callers never see stale statuses.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID) ([]models.Booking, error) {
	if _, err := s.AutoCompletePast(ctx, companyID, branchID); err != nil {
		return nil, err
	}
	return s.store.ListByCompany(ctx, companyID, branchID)
}
