package availability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentacare/clinic-portal/internal/appointments"
	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/schedule"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

func TestComputeIsUnion(t *testing.T) {
	a := Compute(1, "2026-10-19", "Mon",
		[]string{"02:00 PM", "09:00 AM"},
		[]string{"09:00 AM", "10:30 AM", "not a slot"},
	)
	assert.Equal(t, []string{"09:00 AM", "10:30 AM", "02:00 PM"}, a.Unavailable)
	assert.Len(t, a.Slots, 12)
	assert.False(t, a.IsAvailable("09:00 AM"))
	assert.False(t, a.IsAvailable("10:30 AM"))
	assert.True(t, a.IsAvailable("11:00 AM"))
	assert.False(t, a.IsAvailable("not a slot"))

	for _, s := range a.Slots {
		switch s.Slot {
		case "09:00 AM", "02:00 PM":
			assert.Equal(t, ReasonBlocked, s.Reason)
		case "10:30 AM":
			assert.Equal(t, ReasonBooked, s.Reason)
		}
	}
}

func seeded(t *testing.T) (*schedule.InMemoryRepository, *appointments.InMemoryRepository) {
	t.Helper()
	ctx := context.Background()
	blocked := schedule.NewInMemoryRepository()
	_, err := blocked.Create(ctx, schedule.Cell{DentistID: 1, Day: "Mon", Slot: "09:00 AM"})
	require.NoError(t, err)
	// Blocks are weekly: a Tuesday block must not leak into Monday.
	_, err = blocked.Create(ctx, schedule.Cell{DentistID: 1, Day: "Tue", Slot: "09:30 AM"})
	require.NoError(t, err)

	appts := appointments.NewInMemoryRepository()
	for _, tc := range []struct{ date, slot string }{
		{"2026-10-19", "11:00 AM"},
		{"2026-10-26", "11:30 AM"},
	} {
		_, err := appts.Create(ctx, &appointments.CreateRequest{
			PatientName: "Sam", PatientEmail: "sam@example.com", PatientPhone: "555",
			DentistID: 1, DentistName: "Dr. Aisha Patel",
			Date: tc.date, TimeSlot: tc.slot, Service: "Fillings",
		})
		require.NoError(t, err)
	}
	cancelled, err := appts.Create(ctx, &appointments.CreateRequest{
		PatientName: "Kim", PatientEmail: "kim@example.com", PatientPhone: "555",
		DentistID: 1, DentistName: "Dr. Aisha Patel",
		Date: "2026-10-19", TimeSlot: "02:00 PM", Service: "Fillings",
	})
	require.NoError(t, err)
	_, err = appts.UpdateStatus(ctx, cancelled.ID, appointments.StatusCancelled)
	require.NoError(t, err)
	return blocked, appts
}

func TestLookupMergesSources(t *testing.T) {
	blocked, appts := seeded(t)
	svc := NewService(blocked, appts, nil)

	a, err := svc.Lookup(context.Background(), 1, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "Mon", a.Weekday)
	assert.Equal(t, []string{"09:00 AM", "11:00 AM"}, a.Unavailable)
	assert.True(t, a.IsAvailable("02:00 PM"), "cancelled appointments do not hold slots")
}

type failingBooked struct{}

func (failingBooked) BookedSlots(context.Context, int64, string) ([]string, error) {
	return nil, errors.New("db down")
}

func TestLookupPropagatesErrors(t *testing.T) {
	svc := NewService(schedule.NewInMemoryRepository(), failingBooked{}, nil)
	_, err := svc.Lookup(context.Background(), 1, "2026-10-19")
	assert.ErrorContains(t, err, "db down")

	_, err = svc.Lookup(context.Background(), 1, "tomorrow")
	assert.True(t, errors.Is(err, catalog.ErrInvalidDate))
}

func TestHandler(t *testing.T) {
	blocked, appts := seeded(t)
	h := NewHandler(
		NewService(blocked, appts, nil),
		dentists.NewInMemoryRepository(dentists.Seed...),
		catalog.FixedClock(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)),
		logging.Discard(),
	)
	r := chi.NewRouter()
	r.Get("/api/dentists/{dentistID}/availability", h.Get)

	tests := []struct {
		path string
		code int
	}{
		{"/api/dentists/1/availability?date=2026-10-19", http.StatusOK},
		{"/api/dentists/1/availability?date=2026-10-14", http.StatusUnprocessableEntity},
		{"/api/dentists/1/availability?date=2026-10-17", http.StatusUnprocessableEntity},
		{"/api/dentists/1/availability?date=soon", http.StatusBadRequest},
		{"/api/dentists/9/availability?date=2026-10-19", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
