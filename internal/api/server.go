// Package api exposes the scheduling engine over HTTP. The engine
// itself is transport-agnostic; everything here is request parsing,
// error mapping and response shaping.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slotline/internal/booking"
	"slotline/internal/models"
	"slotline/internal/scheduling"
	"slotline/internal/timegrid"
)

// SchedulingService is the read/validate surface of the engine.
type SchedulingService interface {
	CheckAvailability(ctx context.Context, req scheduling.CheckAvailabilityRequest) (*scheduling.AvailabilityResult, error)
	ValidateSlot(ctx context.Context, req scheduling.ValidateSlotRequest) (*scheduling.ValidationResult, error)
}

// BookingService is the booking lifecycle surface.
type BookingService interface {
	Create(ctx context.Context, req booking.CreateRequest) (*booking.Result, *booking.Rejection, error)
	Edit(ctx context.Context, req booking.EditRequest) (*booking.Result, *booking.Rejection, error)
	Cancel(ctx context.Context, bookingID, branchID uuid.UUID) (*models.Booking, *booking.Rejection, error)
	List(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID) ([]models.Booking, error)
}

// NamesReader resolves display names for the export report.
type NamesReader interface {
	StaffNames(ctx context.Context, companyID uuid.UUID) (map[uuid.UUID]string, error)
	ServiceNames(ctx context.Context, companyID uuid.UUID) (map[uuid.UUID]string, error)
}

// AvailabilityCache is the optional response cache for availability
// reads. A nil cache disables caching.
type AvailabilityCache interface {
	Get(ctx context.Context, key string, v any) bool
	Set(ctx context.Context, key string, v any)
	InvalidateBranch(ctx context.Context, branchID uuid.UUID)
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	scheduling   SchedulingService
	bookings     BookingService
	names        NamesReader
	cache        AvailabilityCache
	limiter      *rate.Limiter
	maxRangeDays int
	logger       *zerolog.Logger
}

// Options tunes the server beyond its service dependencies.
type Options struct {
	Cache        AvailabilityCache
	RateLimit    rate.Limit
	RateBurst    int
	MaxRangeDays int
}

// NewHTTPServer creates the API server.
func NewHTTPServer(sched SchedulingService, bookings BookingService, names NamesReader, opts Options, logger *zerolog.Logger) *HTTPServer {
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 90
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit)
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return &HTTPServer{
		scheduling:   sched,
		bookings:     bookings,
		names:        names,
		cache:        opts.Cache,
		limiter:      limiter,
		maxRangeDays: opts.MaxRangeDays,
		logger:       logger,
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/availability", s.handleAvailability)
	mux.HandleFunc("POST /api/slots/validate", s.handleValidateSlot)
	mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	mux.HandleFunc("POST /api/bookings/{id}/edit", s.handleEditBooking)
	mux.HandleFunc("POST /api/bookings/{id}/cancel", s.handleCancelBooking)
	mux.HandleFunc("GET /api/bookings", s.handleListBookings)
	mux.HandleFunc("GET /api/bookings/export", s.handleExportBookings)
	return s.rateLimited(mux)
}

func (s *HTTPServer) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRejection maps a business-rule rejection to an HTTP status. The
// body always carries the engine's error code and human explanation.
func writeRejection(w http.ResponseWriter, rej *booking.Rejection) {
	status := http.StatusConflict
	switch rej.Code {
	case scheduling.CodeNotFound, scheduling.CodeServiceNotFound:
		status = http.StatusNotFound
	case scheduling.CodeInvalidAssignment:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, rej)
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func parseUUID(s, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s; expected UUID", field)
	}
	return id, nil
}

func parseDate(s, field string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected YYYY-MM-DD", field)
	}
	return d, nil
}

func parseClock(s, field string) (timegrid.Clock, error) {
	c, err := timegrid.ParseClock(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s; expected HH:MM", field)
	}
	return c, nil
}

func parseClockRange(start, end string) (timegrid.Interval, error) {
	cs, err := parseClock(start, "start_time")
	if err != nil {
		return timegrid.Interval{}, err
	}
	ce, err := parseClock(end, "end_time")
	if err != nil {
		return timegrid.Interval{}, err
	}
	if cs >= ce {
		return timegrid.Interval{}, fmt.Errorf("start_time must precede end_time")
	}
	return timegrid.Interval{Start: cs, End: ce}, nil
}
