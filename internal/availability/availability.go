// Package availability answers which slots a dentist can still take on a
// given day: everything in the catalog minus the weekly blocks for that
// weekday and the slots already held by live appointments on that date.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
)

var tracer = otel.Tracer("dentacare.availability")

// Reasons a slot is unavailable.
const (
	ReasonBlocked = "blocked"
	ReasonBooked  = "booked"
)

// BlockedSource lists weekly blocked slots.
type BlockedSource interface {
	ListForDay(ctx context.Context, dentistID int64, day string) ([]string, error)
}

// BookedSource lists slots held by non-cancelled appointments.
type BookedSource interface {
	BookedSlots(ctx context.Context, dentistID int64, date string) ([]string, error)
}

// SlotState is one catalog slot with its availability.
type SlotState struct {
	Slot      string `json:"slot"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Availability is the slot picture for a dentist on a date.
type Availability struct {
	DentistID   int64       `json:"dentist_id"`
	Date        string      `json:"date"`
	Weekday     string      `json:"weekday"`
	Slots       []SlotState `json:"slots"`
	Unavailable []string    `json:"unavailable"`
}

// IsAvailable reports whether slot is a catalog slot that is still free.
func (a *Availability) IsAvailable(slot string) bool {
	for _, s := range a.Slots {
		if s.Slot == slot {
			return s.Available
		}
	}
	return false
}

// Compute builds the availability from raw blocked and booked slot lists.
// Unavailable is their union in catalog order. Labels outside the catalog are
// ignored.
func Compute(dentistID int64, date, weekday string, blocked, booked []string) *Availability {
	reasons := make(map[string]string, len(blocked)+len(booked))
	for _, s := range booked {
		reasons[s] = ReasonBooked
	}
	for _, s := range blocked {
		reasons[s] = ReasonBlocked
	}

	a := &Availability{DentistID: dentistID, Date: date, Weekday: weekday, Unavailable: []string{}}
	for _, slot := range catalog.Slots() {
		reason, taken := reasons[slot]
		a.Slots = append(a.Slots, SlotState{Slot: slot, Available: !taken, Reason: reason})
		if taken {
			a.Unavailable = append(a.Unavailable, slot)
		}
	}
	sort.SliceStable(a.Unavailable, func(i, j int) bool {
		return catalog.SlotIndex(a.Unavailable[i]) < catalog.SlotIndex(a.Unavailable[j])
	})
	return a
}

// Service looks availability up from storage.
type Service struct {
	blocked BlockedSource
	booked  BookedSource
	metrics *metrics.PortalMetrics
}

func NewService(blocked BlockedSource, booked BookedSource, m *metrics.PortalMetrics) *Service {
	return &Service{blocked: blocked, booked: booked, metrics: m}
}

// Lookup fetches both sources concurrently and merges them.
func (s *Service) Lookup(ctx context.Context, dentistID int64, date string) (*Availability, error) {
	day, err := catalog.ParseDate(date)
	if err != nil {
		return nil, err
	}
	weekday := catalog.WeekdayLabel(day)

	ctx, span := tracer.Start(ctx, "availability.lookup")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("dentist.id", dentistID),
		attribute.String("date", date),
	)
	start := time.Now()
	defer func() { s.metrics.ObserveAvailabilityLatency(time.Since(start).Seconds()) }()

	var blocked, booked []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		blocked, err = s.blocked.ListForDay(gctx, dentistID, weekday)
		if err != nil {
			return fmt.Errorf("availability: blocked slots: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		booked, err = s.booked.BookedSlots(gctx, dentistID, catalog.FormatDate(day))
		if err != nil {
			return fmt.Errorf("availability: booked slots: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return Compute(dentistID, catalog.FormatDate(day), weekday, blocked, booked), nil
}
