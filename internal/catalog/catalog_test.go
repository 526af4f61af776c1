package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsAreFixedAndOrdered(t *testing.T) {
	got := Slots()
	require.Len(t, got, 12)
	assert.Equal(t, "09:00 AM", got[0])
	assert.Equal(t, "11:30 AM", got[5])
	assert.Equal(t, "02:00 PM", got[6])
	assert.Equal(t, "04:30 PM", got[11])
	assert.Equal(t, 6, SlotIndex("02:00 PM"))
	assert.Equal(t, -1, SlotIndex("12:00 PM"))

	got[0] = "mutated"
	assert.Equal(t, "09:00 AM", Slots()[0], "callers must not mutate the catalog")
}

func TestMembership(t *testing.T) {
	assert.True(t, IsService("Root Canal"))
	assert.False(t, IsService("Botox"))
	assert.True(t, IsBlogCategory("Dental Implants"))
	assert.False(t, IsBlogCategory("dental implants"))
	assert.True(t, IsWeekday("Sat"))
	assert.False(t, IsAdminWeekday("Sat"))
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri"}, AdminWeekdays())
	assert.Len(t, Services(), 8)
	assert.Len(t, BlogCategories(), 6)
}

func TestParseDateAndWeekday(t *testing.T) {
	day, err := ParseDate("2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, "Wed", WeekdayLabel(day))
	assert.Equal(t, "2026-10-14", FormatDate(day))

	_, err = ParseDate("14/10/2026")
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

func TestCheckBookable(t *testing.T) {
	today := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC) // Wednesday afternoon

	tests := []struct {
		name string
		day  string
		want error
	}{
		{"today is bookable", "2026-10-14", nil},
		{"future weekday", "2026-10-16", nil},
		{"yesterday", "2026-10-13", ErrPastDate},
		{"saturday", "2026-10-17", ErrWeekendDate},
		{"sunday", "2026-10-18", ErrWeekendDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, err := ParseDate(tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, CheckBookable(day, today))
		})
	}
}

func TestFixedClockTruncates(t *testing.T) {
	c := FixedClock(time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), c.Today())
}
