package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotline/internal/models"
	"slotline/internal/timegrid"
)

// Resolver computes the effective open intervals for a staff member on
// a concrete date, applying date overrides on top of the weekly
// schedule. Absence of data yields an empty result, never an error.
type Resolver struct {
	schedule ScheduleReader
}

// NewResolver creates a resolver backed by the given schedule reader.
func NewResolver(schedule ScheduleReader) *Resolver {
	return &Resolver{schedule: schedule}
}

// EffectiveWindows returns the open intervals for the date.
// A blocked override wins over everything; a modified override replaces
// the weekly windows entirely (empty when its hours are missing).
func (r *Resolver) EffectiveWindows(ctx context.Context, staffID, branchID uuid.UUID, date time.Time) ([]timegrid.Interval, error) {
	windows, _, err := r.resolve(ctx, staffID, branchID, date)
	return windows, err
}

// resolve additionally reports whether an explicit blocked override
// drove the empty result, which changes the wording of the
// staff_unavailable message.
func (r *Resolver) resolve(ctx context.Context, staffID, branchID uuid.UUID, date time.Time) ([]timegrid.Interval, bool, error) {
	override, err := r.schedule.GetOverride(ctx, staffID, branchID, date)
	if err != nil {
		return nil, false, fmt.Errorf("get override: %w", err)
	}
	if override != nil {
		if override.Type == models.OverrideBlocked {
			return nil, true, nil
		}
		return override.Windows(), false, nil
	}

	weekly, err := r.schedule.ListWeeklyWindows(ctx, staffID, branchID, timegrid.DayOfWeek(date))
	if err != nil {
		return nil, false, fmt.Errorf("list weekly windows: %w", err)
	}

	windows := make([]timegrid.Interval, 0, len(weekly))
	for _, w := range weekly {
		windows = append(windows, w.Interval())
	}
	return windows, false, nil
}

// resolveFromWeekly applies override precedence over an already-loaded
// weekly schedule map, used by the batch enumeration path to avoid
// re-querying weekly windows per date.
func (r *Resolver) resolveFromWeekly(ctx context.Context, staffID, branchID uuid.UUID, date time.Time, weekly map[int][]timegrid.Interval) ([]timegrid.Interval, error) {
	override, err := r.schedule.GetOverride(ctx, staffID, branchID, date)
	if err != nil {
		return nil, fmt.Errorf("get override: %w", err)
	}
	if override != nil {
		if override.Type == models.OverrideBlocked {
			return nil, nil
		}
		return override.Windows(), nil
	}
	return weekly[timegrid.DayOfWeek(date)], nil
}
