package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"slotline/internal/booking"
	"slotline/internal/export"
	"slotline/internal/metrics"
	"slotline/internal/models"
	"slotline/internal/timegrid"
)

// CreateBookingRequest is the request body for POST /api/bookings.
type CreateBookingRequest struct {
	CompanyID     string `json:"company_id"`
	BranchID      string `json:"branch_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Date          string `json:"date"`       // Format: YYYY-MM-DD
	StartTime     string `json:"start_time"` // Format: HH:MM
	BookedVia     string `json:"booked_via,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// EditBookingRequest is the request body for POST /api/bookings/{id}/edit.
// Omitted fields keep their current values.
type EditBookingRequest struct {
	BranchID  string  `json:"branch_id"`
	Date      *string `json:"date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	StaffID   *string `json:"staff_id,omitempty"`
	ServiceID *string `json:"service_id,omitempty"`
}

// CancelBookingRequest is the request body for POST /api/bookings/{id}/cancel.
type CancelBookingRequest struct {
	BranchID string `json:"branch_id"`
}

// handleCreateBooking validates and commits a new reservation.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req CreateBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	companyID, err := parseUUID(req.CompanyID, "company_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	branchID, err := parseUUID(req.BranchID, "branch_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	staffID, err := parseUUID(req.StaffID, "staff_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	serviceID, err := parseUUID(req.ServiceID, "service_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := parseClock(req.StartTime, "start_time")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	via := models.BookedVia(req.BookedVia)
	if via == "" {
		via = models.ViaAPI
	}

	result, rej, err := s.bookings.Create(r.Context(), booking.CreateRequest{
		CompanyID:     companyID,
		BranchID:      branchID,
		StaffID:       staffID,
		ServiceID:     serviceID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Date:          date,
		Start:         start,
		Via:           via,
		Notes:         req.Notes,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("create booking failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rej != nil {
		writeRejection(w, rej)
		return
	}

	s.invalidateAvailability(r, branchID)
	writeJSON(w, http.StatusCreated, result)
}

// handleEditBooking merges new fields over a confirmed booking.
// POST /api/bookings/{id}/edit
func (s *HTTPServer) handleEditBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("edit_booking")

	bookingID, err := parseUUID(r.PathValue("id"), "booking id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EditBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	branchID, err := parseUUID(req.BranchID, "branch_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	edit := booking.EditRequest{BookingID: bookingID, BranchID: branchID}
	if req.Date != nil {
		d, err := parseDate(*req.Date, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		edit.Date = &d
	}
	if req.StartTime != nil {
		c, err := parseClock(*req.StartTime, "start_time")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		edit.Start = &c
	}
	if req.StaffID != nil {
		id, err := parseUUID(*req.StaffID, "staff_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		edit.StaffID = &id
	}
	if req.ServiceID != nil {
		id, err := parseUUID(*req.ServiceID, "service_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		edit.ServiceID = &id
	}

	result, rej, err := s.bookings.Edit(r.Context(), edit)
	if err != nil {
		s.logger.Error().Err(err).Msg("edit booking failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rej != nil {
		writeRejection(w, rej)
		return
	}

	s.invalidateAvailability(r, branchID)
	writeJSON(w, http.StatusOK, result)
}

// handleCancelBooking cancels a confirmed booking.
// POST /api/bookings/{id}/cancel
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")

	bookingID, err := parseUUID(r.PathValue("id"), "booking id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CancelBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, err := parseUUID(req.BranchID, "branch_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, rej, err := s.bookings.Cancel(r.Context(), bookingID, branchID)
	if err != nil {
		s.logger.Error().Err(err).Msg("cancel booking failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rej != nil {
		writeRejection(w, rej)
		return
	}

	s.invalidateAvailability(r, branchID)
	writeJSON(w, http.StatusOK, b)
}

// handleListBookings lists a company's bookings; elapsed confirmed
// bookings are swept to completed first.
// GET /api/bookings?company_id=...&branch_id=...
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	companyID, branchID, err := companyBranchQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.bookings.List(r.Context(), companyID, branchID)
	if err != nil {
		s.logger.Error().Err(err).Msg("list bookings failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleExportBookings streams the company's bookings as a workbook.
// GET /api/bookings/export?company_id=...&branch_id=...
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")

	companyID, branchID, err := companyBranchQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.bookings.List(r.Context(), companyID, branchID)
	if err != nil {
		s.logger.Error().Err(err).Msg("export bookings failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	staffNames, err := s.names.StaffNames(r.Context(), companyID)
	if err != nil {
		s.logger.Error().Err(err).Msg("export bookings failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	serviceNames, err := s.names.ServiceNames(r.Context(), companyID)
	if err != nil {
		s.logger.Error().Err(err).Msg("export bookings failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writer := export.NewExcelizeWriter()
	defer writer.Close()
	if err := export.WriteBookingsReport(writer, bookings, export.NameLookup{}, staffNames, serviceNames); err != nil {
		s.logger.Error().Err(err).Msg("build bookings report failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	filename := fmt.Sprintf("bookings_%s.xlsx", timegrid.DateString(time.Now()))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := writer.Save(w); err != nil {
		s.logger.Error().Err(err).Msg("write workbook failed")
	}
}

func companyBranchQuery(r *http.Request) (uuid.UUID, *uuid.UUID, error) {
	companyID, err := parseUUID(r.URL.Query().Get("company_id"), "company_id")
	if err != nil {
		return uuid.Nil, nil, err
	}
	var branchID *uuid.UUID
	if v := r.URL.Query().Get("branch_id"); v != "" {
		id, err := parseUUID(v, "branch_id")
		if err != nil {
			return uuid.Nil, nil, err
		}
		branchID = &id
	}
	return companyID, branchID, nil
}

func (s *HTTPServer) invalidateAvailability(r *http.Request, branchID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateBranch(r.Context(), branchID)
	}
}
