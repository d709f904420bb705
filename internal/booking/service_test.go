package booking

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slotline/internal/models"
	"slotline/internal/scheduling"
	"slotline/internal/timegrid"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) ListByCompany(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID) ([]models.Booking, error) {
	args := m.Called(ctx, companyID, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockStore) BulkMarkCompleted(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID, before time.Time) (int, error) {
	args := m.Called(ctx, companyID, branchID, before)
	return args.Int(0), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockCatalog) GetAssignment(ctx context.Context, staffID, serviceID uuid.UUID) (*models.StaffServiceAssignment, error) {
	args := m.Called(ctx, staffID, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StaffServiceAssignment), args.Error(1)
}

type mockStaff struct {
	mock.Mock
}

func (m *mockStaff) GetStaff(ctx context.Context, id uuid.UUID) (*models.Staff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Staff), args.Error(1)
}

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) ValidateSlot(ctx context.Context, req scheduling.ValidateSlotRequest) (*scheduling.ValidationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduling.ValidationResult), args.Error(1)
}

func clk(t *testing.T, s string) timegrid.Clock {
	t.Helper()
	c, err := timegrid.ParseClock(s)
	require.NoError(t, err)
	return c
}

type fixture struct {
	svc       *Service
	store     *mockStore
	catalog   *mockCatalog
	staff     *mockStaff
	validator *mockValidator
}

func newFixture() *fixture {
	logger := zerolog.New(io.Discard)
	f := &fixture{
		store:     new(mockStore),
		catalog:   new(mockCatalog),
		staff:     new(mockStaff),
		validator: new(mockValidator),
	}
	f.svc = NewService(f.store, f.catalog, f.staff, f.validator, &logger)
	return f
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	branchID := uuid.New()
	staffID := uuid.New()
	serviceID := uuid.New()
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	svcModel := &models.Service{
		ID:                     serviceID,
		CompanyID:              companyID,
		Name:                   "Haircut",
		DefaultDurationMinutes: 60,
		DefaultPrice:           40,
		Currency:               "USD",
	}
	req := CreateRequest{
		CompanyID:    companyID,
		BranchID:     branchID,
		StaffID:      staffID,
		ServiceID:    serviceID,
		CustomerName: "Dana",
		Date:         date,
		Start:        clk(t, "10:00"),
		Via:          models.ViaAgent,
	}

	t.Run("SnapshotsDefaultsAndPersists", func(t *testing.T) {
		f := newFixture()
		f.catalog.On("GetAssignment", ctx, staffID, serviceID).
			Return(&models.StaffServiceAssignment{StaffID: staffID, ServiceID: serviceID}, nil).Once()
		f.catalog.On("GetService", ctx, serviceID).Return(svcModel, nil).Once()
		f.validator.On("ValidateSlot", ctx, mock.MatchedBy(func(r scheduling.ValidateSlotRequest) bool {
			return r.StaffID == staffID && r.Start == clk(t, "10:00") && r.End == clk(t, "11:00") && r.ExcludeBookingID == nil
		})).Return(&scheduling.ValidationResult{Valid: true}, nil).Once()
		f.store.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		f.staff.On("GetStaff", ctx, staffID).Return(&models.Staff{ID: staffID, Name: "Alice"}, nil).Once()

		res, rej, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
		require.Nil(t, rej)
		assert.Equal(t, clk(t, "11:00"), res.Booking.End)
		assert.Equal(t, 60, res.Booking.DurationMinutes)
		assert.Equal(t, 40.0, res.Booking.Price)
		assert.Equal(t, "USD", res.Booking.Currency)
		assert.Equal(t, models.StatusConfirmed, res.Booking.Status)
		assert.Equal(t, models.ViaAgent, res.Booking.BookedVia)
		assert.Equal(t, "Haircut", res.ServiceName)
		assert.Equal(t, "Alice", res.StaffName)
		f.store.AssertExpectations(t)
	})

	t.Run("AssignmentOverridesWin", func(t *testing.T) {
		f := newFixture()
		ninety := 90
		price := 55.0
		f.catalog.On("GetAssignment", ctx, staffID, serviceID).
			Return(&models.StaffServiceAssignment{
				StaffID:          staffID,
				ServiceID:        serviceID,
				DurationOverride: &ninety,
				PriceOverride:    &price,
			}, nil).Once()
		f.catalog.On("GetService", ctx, serviceID).Return(svcModel, nil).Once()
		f.validator.On("ValidateSlot", ctx, mock.MatchedBy(func(r scheduling.ValidateSlotRequest) bool {
			return r.End == clk(t, "11:30")
		})).Return(&scheduling.ValidationResult{Valid: true}, nil).Once()
		f.store.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		f.staff.On("GetStaff", ctx, staffID).Return(&models.Staff{ID: staffID, Name: "Alice"}, nil).Once()

		res, rej, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
		require.Nil(t, rej)
		assert.Equal(t, 90, res.Booking.DurationMinutes)
		assert.Equal(t, 55.0, res.Booking.Price)
	})

	t.Run("NoAssignment", func(t *testing.T) {
		f := newFixture()
		f.catalog.On("GetAssignment", ctx, staffID, serviceID).Return(nil, nil).Once()

		res, rej, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
		require.Nil(t, res)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeInvalidAssignment, rej.Code)
		f.store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("ValidationRejectionPassedThrough", func(t *testing.T) {
		f := newFixture()
		f.catalog.On("GetAssignment", ctx, staffID, serviceID).
			Return(&models.StaffServiceAssignment{StaffID: staffID, ServiceID: serviceID}, nil).Once()
		f.catalog.On("GetService", ctx, serviceID).Return(svcModel, nil).Once()
		f.validator.On("ValidateSlot", ctx, mock.Anything).
			Return(&scheduling.ValidationResult{Valid: false, Code: scheduling.CodeOutsideHours, Message: "outside"}, nil).Once()

		res, rej, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
		require.Nil(t, res)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeOutsideHours, rej.Code)
		f.store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("StorageRaceBecomesSlotUnavailable", func(t *testing.T) {
		f := newFixture()
		f.catalog.On("GetAssignment", ctx, staffID, serviceID).
			Return(&models.StaffServiceAssignment{StaffID: staffID, ServiceID: serviceID}, nil).Once()
		f.catalog.On("GetService", ctx, serviceID).Return(svcModel, nil).Once()
		f.validator.On("ValidateSlot", ctx, mock.Anything).
			Return(&scheduling.ValidationResult{Valid: true}, nil).Once()
		f.store.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(ErrSlotTaken).Once()

		res, rej, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
		require.Nil(t, res)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeSlotUnavailable, rej.Code)
	})
}

func TestEditBooking(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	branchID := uuid.New()
	staffID := uuid.New()
	serviceID := uuid.New()
	bookingID := uuid.New()
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	svcModel := &models.Service{
		ID:                     serviceID,
		Name:                   "Haircut",
		DefaultDurationMinutes: 60,
		DefaultPrice:           40,
		Currency:               "USD",
	}

	existing := func() *models.Booking {
		return &models.Booking{
			ID:              bookingID,
			CompanyID:       companyID,
			BranchID:        branchID,
			StaffID:         staffID,
			ServiceID:       serviceID,
			Date:            date,
			Start:           clk(t, "10:00"),
			End:             clk(t, "11:00"),
			DurationMinutes: 60,
			Price:           40,
			Currency:        "USD",
			Status:          models.StatusConfirmed,
		}
	}

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBooking", ctx, bookingID).Return(nil, nil).Once()

		_, rej, err := f.svc.Edit(ctx, EditRequest{BookingID: bookingID, BranchID: branchID})
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeNotFound, rej.Code)
	})

	t.Run("BranchMismatchIsNotFound", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBooking", ctx, bookingID).Return(existing(), nil).Once()

		_, rej, err := f.svc.Edit(ctx, EditRequest{BookingID: bookingID, BranchID: uuid.New()})
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeNotFound, rej.Code)
	})

	t.Run("TerminalStatusRejected", func(t *testing.T) {
		f := newFixture()
		b := existing()
		b.Status = models.StatusCancelled
		f.store.On("GetBooking", ctx, bookingID).Return(b, nil).Once()

		_, rej, err := f.svc.Edit(ctx, EditRequest{BookingID: bookingID, BranchID: branchID})
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeInvalidStatus, rej.Code)
		f.store.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything)
	})

	t.Run("RescheduleKeepsOtherFields", func(t *testing.T) {
		f := newFixture()
		newStart := clk(t, "14:00")
		f.store.On("GetBooking", ctx, bookingID).Return(existing(), nil).Once()
		f.catalog.On("GetAssignment", ctx, staffID, serviceID).
			Return(&models.StaffServiceAssignment{StaffID: staffID, ServiceID: serviceID}, nil).Once()
		f.catalog.On("GetService", ctx, serviceID).Return(svcModel, nil).Once()
		f.validator.On("ValidateSlot", ctx, mock.MatchedBy(func(r scheduling.ValidateSlotRequest) bool {
			return r.Start == newStart && r.End == clk(t, "15:00") &&
				r.ExcludeBookingID != nil && *r.ExcludeBookingID == bookingID
		})).Return(&scheduling.ValidationResult{Valid: true}, nil).Once()
		f.store.On("UpdateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		f.staff.On("GetStaff", ctx, staffID).Return(&models.Staff{ID: staffID, Name: "Alice"}, nil).Once()

		res, rej, err := f.svc.Edit(ctx, EditRequest{
			BookingID: bookingID,
			BranchID:  branchID,
			Start:     &newStart,
		})
		require.NoError(t, err)
		require.Nil(t, rej)
		assert.Equal(t, newStart, res.Booking.Start)
		assert.Equal(t, date, res.Booking.Date)
		assert.Equal(t, staffID, res.Booking.StaffID)
	})

	t.Run("ChangingServiceReprices", func(t *testing.T) {
		f := newFixture()
		otherServiceID := uuid.New()
		otherSvc := &models.Service{
			ID:                     otherServiceID,
			Name:                   "Massage",
			DefaultDurationMinutes: 30,
			DefaultPrice:           25,
			Currency:               "EUR",
		}
		f.store.On("GetBooking", ctx, bookingID).Return(existing(), nil).Once()
		f.catalog.On("GetAssignment", ctx, staffID, otherServiceID).
			Return(&models.StaffServiceAssignment{StaffID: staffID, ServiceID: otherServiceID}, nil).Once()
		f.catalog.On("GetService", ctx, otherServiceID).Return(otherSvc, nil).Once()
		f.validator.On("ValidateSlot", ctx, mock.MatchedBy(func(r scheduling.ValidateSlotRequest) bool {
			return r.End == clk(t, "10:30")
		})).Return(&scheduling.ValidationResult{Valid: true}, nil).Once()
		f.store.On("UpdateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		f.staff.On("GetStaff", ctx, staffID).Return(&models.Staff{ID: staffID, Name: "Alice"}, nil).Once()

		res, rej, err := f.svc.Edit(ctx, EditRequest{
			BookingID: bookingID,
			BranchID:  branchID,
			ServiceID: &otherServiceID,
		})
		require.NoError(t, err)
		require.Nil(t, rej)
		assert.Equal(t, 30, res.Booking.DurationMinutes)
		assert.Equal(t, 25.0, res.Booking.Price)
		assert.Equal(t, "EUR", res.Booking.Currency)
		assert.Equal(t, "Massage", res.ServiceName)
	})

	t.Run("MovingToUnassignedStaffRejected", func(t *testing.T) {
		f := newFixture()
		otherStaffID := uuid.New()
		f.store.On("GetBooking", ctx, bookingID).Return(existing(), nil).Once()
		f.catalog.On("GetAssignment", ctx, otherStaffID, serviceID).Return(nil, nil).Once()

		_, rej, err := f.svc.Edit(ctx, EditRequest{
			BookingID: bookingID,
			BranchID:  branchID,
			StaffID:   &otherStaffID,
		})
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeInvalidAssignment, rej.Code)
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	branchID := uuid.New()
	bookingID := uuid.New()

	t.Run("ConfirmedBecomesCancelled", func(t *testing.T) {
		f := newFixture()
		b := &models.Booking{ID: bookingID, BranchID: branchID, Status: models.StatusConfirmed}
		f.store.On("GetBooking", ctx, bookingID).Return(b, nil).Once()
		f.store.On("UpdateBooking", ctx, mock.MatchedBy(func(u *models.Booking) bool {
			return u.Status == models.StatusCancelled && u.CancelledAt != nil
		})).Return(nil).Once()

		res, rej, err := f.svc.Cancel(ctx, bookingID, branchID)
		require.NoError(t, err)
		require.Nil(t, rej)
		assert.Equal(t, models.StatusCancelled, res.Status)
		f.store.AssertExpectations(t)
	})

	t.Run("TerminalStatesAreImmutable", func(t *testing.T) {
		for _, status := range []models.BookingStatus{models.StatusCancelled, models.StatusCompleted, models.StatusNoShow} {
			f := newFixture()
			b := &models.Booking{ID: bookingID, BranchID: branchID, Status: status}
			f.store.On("GetBooking", ctx, bookingID).Return(b, nil).Once()

			_, rej, err := f.svc.Cancel(ctx, bookingID, branchID)
			require.NoError(t, err)
			require.NotNil(t, rej)
			assert.Equal(t, scheduling.CodeInvalidStatus, rej.Code)
			f.store.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything)
		}
	})

	t.Run("UnknownBooking", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetBooking", ctx, bookingID).Return(nil, nil).Once()

		_, rej, err := f.svc.Cancel(ctx, bookingID, branchID)
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, scheduling.CodeNotFound, rej.Code)
	})
}

func TestAutoCompleteAndList(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	t.Run("SweepRunsBeforeList", func(t *testing.T) {
		f := newFixture()
		f.store.On("BulkMarkCompleted", ctx, companyID, (*uuid.UUID)(nil), mock.MatchedBy(func(d time.Time) bool {
			// Cutoff is today at midnight; hour precision is enough here.
			return d.Hour() == 0 && d.Minute() == 0
		})).Return(3, nil).Once()
		f.store.On("ListByCompany", ctx, companyID, (*uuid.UUID)(nil)).
			Return([]models.Booking{{ID: uuid.New()}}, nil).Once()

		bookings, err := f.svc.List(ctx, companyID, nil)
		require.NoError(t, err)
		assert.Len(t, bookings, 1)
		f.store.AssertExpectations(t)
	})

	t.Run("SweepIsIdempotent", func(t *testing.T) {
		f := newFixture()
		f.store.On("BulkMarkCompleted", ctx, companyID, (*uuid.UUID)(nil), mock.Anything).
			Return(0, nil).Twice()

		n, err := f.svc.AutoCompletePast(ctx, companyID, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = f.svc.AutoCompletePast(ctx, companyID, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
