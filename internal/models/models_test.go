package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotline/internal/timegrid"
)

func TestBookingStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusNoShow.IsTerminal())
}

func TestAssignmentEffectiveValues(t *testing.T) {
	svc := &Service{DefaultDurationMinutes: 60, DefaultPrice: 40}

	t.Run("DefaultsWithoutOverrides", func(t *testing.T) {
		a := &StaffServiceAssignment{}
		assert.Equal(t, 60, a.EffectiveDuration(svc))
		assert.Equal(t, 40.0, a.EffectivePrice(svc))
	})

	t.Run("OverridesWin", func(t *testing.T) {
		ninety := 90
		price := 55.0
		a := &StaffServiceAssignment{DurationOverride: &ninety, PriceOverride: &price}
		assert.Equal(t, 90, a.EffectiveDuration(svc))
		assert.Equal(t, 55.0, a.EffectivePrice(svc))
	})

	t.Run("PartialOverride", func(t *testing.T) {
		ninety := 90
		a := &StaffServiceAssignment{DurationOverride: &ninety}
		assert.Equal(t, 90, a.EffectiveDuration(svc))
		assert.Equal(t, 40.0, a.EffectivePrice(svc))
	})
}

func TestOverrideWindows(t *testing.T) {
	mustClock := func(s string) *timegrid.Clock {
		c, err := timegrid.ParseClock(s)
		require.NoError(t, err)
		return &c
	}

	t.Run("BlockedHasNoWindows", func(t *testing.T) {
		o := &AvailabilityOverride{Type: OverrideBlocked}
		assert.Nil(t, o.Windows())
	})

	t.Run("ModifiedWithHours", func(t *testing.T) {
		o := &AvailabilityOverride{
			Type:  OverrideModified,
			Start: mustClock("12:00"),
			End:   mustClock("15:00"),
		}
		windows := o.Windows()
		require.Len(t, windows, 1)
		assert.Equal(t, "12:00-15:00", windows[0].String())
	})

	t.Run("ModifiedWithoutHoursMeansClosed", func(t *testing.T) {
		o := &AvailabilityOverride{Type: OverrideModified}
		assert.Nil(t, o.Windows())

		o.Start = mustClock("12:00")
		assert.Nil(t, o.Windows())
	})
}

func TestBookingOverlapsRange(t *testing.T) {
	mustClock := func(s string) timegrid.Clock {
		c, err := timegrid.ParseClock(s)
		require.NoError(t, err)
		return c
	}
	b := &Booking{Start: mustClock("10:00"), End: mustClock("11:00")}

	assert.True(t, b.OverlapsRange(mustClock("10:30"), mustClock("11:30")))
	assert.True(t, b.OverlapsRange(mustClock("09:00"), mustClock("12:00")))
	// Touching ranges do not conflict.
	assert.False(t, b.OverlapsRange(mustClock("11:00"), mustClock("12:00")))
	assert.False(t, b.OverlapsRange(mustClock("09:00"), mustClock("10:00")))
}
