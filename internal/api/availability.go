package api

import (
	"net/http"

	"github.com/google/uuid"

	"slotline/internal/cache"
	"slotline/internal/metrics"
	"slotline/internal/scheduling"
)

// AvailabilityRequest is the request body for POST /api/availability.
type AvailabilityRequest struct {
	ServiceID string  `json:"service_id"`
	BranchID  string  `json:"branch_id"`
	DateFrom  string  `json:"date_from"` // Format: YYYY-MM-DD
	DateTo    string  `json:"date_to"`   // Format: YYYY-MM-DD
	StaffID   *string `json:"staff_id,omitempty"`
}

// ValidateSlotRequest is the request body for POST /api/slots/validate.
type ValidateSlotRequest struct {
	StaffID          string  `json:"staff_id"`
	BranchID         string  `json:"branch_id"`
	Date             string  `json:"date"`       // Format: YYYY-MM-DD
	StartTime        string  `json:"start_time"` // Format: HH:MM
	EndTime          string  `json:"end_time"`   // Format: HH:MM
	ExcludeBookingID *string `json:"exclude_booking_id,omitempty"`
}

// handleAvailability enumerates free windows for a service.
// POST /api/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	var req AvailabilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	serviceID, err := parseUUID(req.ServiceID, "service_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	branchID, err := parseUUID(req.BranchID, "branch_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dateFrom, err := parseDate(req.DateFrom, "date_from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dateTo, err := parseDate(req.DateTo, "date_to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if dateFrom.After(dateTo) {
		writeError(w, http.StatusBadRequest, "date_from must be before or equal to date_to")
		return
	}
	if days := int(dateTo.Sub(dateFrom).Hours() / 24); days > s.maxRangeDays {
		writeError(w, http.StatusBadRequest, "date range exceeds maximum")
		return
	}

	var staffID *uuid.UUID
	if req.StaffID != nil {
		id, err := parseUUID(*req.StaffID, "staff_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		staffID = &id
	}

	key := cache.Key(branchID, serviceID, req.DateFrom, req.DateTo, staffID)
	if s.cache != nil {
		var cached scheduling.AvailabilityResult
		if s.cache.Get(r.Context(), key, &cached) {
			writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	result, err := s.scheduling.CheckAvailability(r.Context(), scheduling.CheckAvailabilityRequest{
		ServiceID: serviceID,
		BranchID:  branchID,
		DateFrom:  dateFrom,
		DateTo:    dateTo,
		StaffID:   staffID,
	})
	if err != nil {
		if err == scheduling.ErrServiceNotFound {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		s.logger.Error().Err(err).Msg("availability check failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.cache != nil {
		s.cache.Set(r.Context(), key, result)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleValidateSlot checks one candidate slot without writing.
// POST /api/slots/validate
func (s *HTTPServer) handleValidateSlot(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("validate_slot")

	var req ValidateSlotRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	staffID, err := parseUUID(req.StaffID, "staff_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	branchID, err := parseUUID(req.BranchID, "branch_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slot, err := parseClockRange(req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var excludeID *uuid.UUID
	if req.ExcludeBookingID != nil {
		id, err := parseUUID(*req.ExcludeBookingID, "exclude_booking_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		excludeID = &id
	}

	result, err := s.scheduling.ValidateSlot(r.Context(), scheduling.ValidateSlotRequest{
		StaffID:          staffID,
		BranchID:         branchID,
		Date:             date,
		Start:            slot.Start,
		End:              slot.End,
		ExcludeBookingID: excludeID,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("slot validation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
