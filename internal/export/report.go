// Package export builds downloadable workbooks from booking data.
package export

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"slotline/internal/models"
	"slotline/internal/timegrid"
)

var bookingColumns = []string{
	"Date", "Time", "Staff", "Service", "Customer", "Phone",
	"Status", "Duration (min)", "Price", "Currency", "Booked via",
}

// NameLookup maps entity IDs to display names. Missing entries fall
// back to the raw ID so the report never loses a row.
type NameLookup map[uuid.UUID]string

func (n NameLookup) get(id uuid.UUID) string {
	if name, ok := n[id]; ok {
		return name
	}
	return id.String()
}

// WriteBookingsReport writes one sheet per branch with every booking,
// ordered by date and start time within each sheet.
func WriteBookingsReport(w ExcelWriter, bookings []models.Booking, branchNames, staffNames, serviceNames NameLookup) error {
	byBranch := make(map[uuid.UUID][]models.Booking)
	for _, b := range bookings {
		byBranch[b.BranchID] = append(byBranch[b.BranchID], b)
	}

	branchIDs := make([]uuid.UUID, 0, len(byBranch))
	for id := range byBranch {
		branchIDs = append(branchIDs, id)
	}
	sort.Slice(branchIDs, func(i, j int) bool {
		return branchNames.get(branchIDs[i]) < branchNames.get(branchIDs[j])
	})

	if len(branchIDs) == 0 {
		if err := w.AddSheet("Bookings"); err != nil {
			return err
		}
		return w.WriteHeader(bookingColumns)
	}

	for _, branchID := range branchIDs {
		if err := w.AddSheet(branchNames.get(branchID)); err != nil {
			return err
		}
		if err := w.WriteHeader(bookingColumns); err != nil {
			return err
		}

		rows := byBranch[branchID]
		sort.Slice(rows, func(i, j int) bool {
			if !rows[i].Date.Equal(rows[j].Date) {
				return rows[i].Date.Before(rows[j].Date)
			}
			return rows[i].Start < rows[j].Start
		})

		for _, b := range rows {
			err := w.WriteRow([]interface{}{
				timegrid.DateString(b.Date),
				b.Interval().String(),
				staffNames.get(b.StaffID),
				serviceNames.get(b.ServiceID),
				b.CustomerName,
				b.CustomerPhone,
				string(b.Status),
				b.DurationMinutes,
				b.Price,
				b.Currency,
				string(b.BookedVia),
			})
			if err != nil {
				return fmt.Errorf("write booking row: %w", err)
			}
		}
	}

	return nil
}
