package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dentacare/clinic-portal/internal/appointments"
	"github.com/dentacare/clinic-portal/internal/availability"
	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/inflight"
	"github.com/dentacare/clinic-portal/internal/notify"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

var tracer = otel.Tracer("dentacare.booking")

// AvailabilityLookup returns the slot picture for a dentist on a date.
type AvailabilityLookup interface {
	Lookup(ctx context.Context, dentistID int64, date string) (*availability.Availability, error)
}

// AppointmentCreator writes new pending appointments.
type AppointmentCreator interface {
	Create(ctx context.Context, req *appointments.CreateRequest) (*appointments.Appointment, error)
}

// Deps wires a Service. Sessions, Dentists, Availability and Appointments are
// required.
type Deps struct {
	Sessions     SessionStore
	Dentists     dentists.Repository
	Availability AvailabilityLookup
	Appointments AppointmentCreator
	Guard        inflight.Guard
	Changes      changefeed.Publisher
	Feed         changefeed.Subscriber
	Notifier     appointments.Enqueuer
	Clock        catalog.Clock
	Metrics      *metrics.PortalMetrics
	Logger       *logging.Logger
}

// Service runs wizard sessions against storage.
type Service struct {
	sessions SessionStore
	dentists dentists.Repository
	avail    AvailabilityLookup
	appts    AppointmentCreator
	guard    inflight.Guard
	changes  changefeed.Publisher
	feed     changefeed.Subscriber
	notifier appointments.Enqueuer
	clock    catalog.Clock
	metrics  *metrics.PortalMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	if d.Guard == nil {
		d.Guard = inflight.NewLocalGuard()
	}
	if d.Changes == nil {
		d.Changes = changefeed.Nop{}
	}
	if d.Clock == nil {
		d.Clock = catalog.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	return &Service{
		sessions: d.Sessions,
		dentists: d.Dentists,
		avail:    d.Availability,
		appts:    d.Appointments,
		guard:    d.Guard,
		changes:  d.Changes,
		feed:     d.Feed,
		notifier: d.Notifier,
		clock:    d.Clock,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a new session on step 1.
func (s *Service) Start(ctx context.Context) (*Wizard, error) {
	w := NewWizard(uuid.New().String(), s.now())
	if err := s.sessions.Save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Wizard, error) {
	return s.sessions.Load(ctx, id)
}

// update loads a session, applies fn and saves the result. Nothing is saved
// when fn fails.
func (s *Service) update(ctx context.Context, id string, fn func(*Wizard) error) (*Wizard, error) {
	w, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	w.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// refresh reloads the unavailable set when both dentist and date are chosen.
func (s *Service) refresh(ctx context.Context, w *Wizard) error {
	if !w.HasSelection() {
		return nil
	}
	a, err := s.avail.Lookup(ctx, w.DentistID, w.Date)
	if err != nil {
		return fmt.Errorf("booking: availability: %w", err)
	}
	w.SetUnavailable(a.Unavailable)
	return nil
}

func (s *Service) SelectDentist(ctx context.Context, id string, dentistID int64) (*Wizard, error) {
	d, err := s.dentists.Get(ctx, dentistID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(w *Wizard) error {
		if err := w.SelectDentist(d.ID, d.Name); err != nil {
			return err
		}
		return s.refresh(ctx, w)
	})
}

func (s *Service) SelectDate(ctx context.Context, id, date string) (*Wizard, error) {
	day, err := catalog.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(w *Wizard) error {
		if err := w.SelectDate(day, s.clock.Today()); err != nil {
			return err
		}
		return s.refresh(ctx, w)
	})
}

// SelectSlot refreshes availability before checking the slot so a block
// added since the date was picked is honoured.
func (s *Service) SelectSlot(ctx context.Context, id, slot string) (*Wizard, error) {
	return s.update(ctx, id, func(w *Wizard) error {
		if w.Step == StepSchedule {
			if err := s.refresh(ctx, w); err != nil {
				return err
			}
		}
		return w.SelectSlot(slot)
	})
}

func (s *Service) SelectService(ctx context.Context, id, service string) (*Wizard, error) {
	return s.update(ctx, id, func(w *Wizard) error { return w.SelectService(service) })
}

func (s *Service) SetContact(ctx context.Context, id string, c Contact) (*Wizard, error) {
	return s.update(ctx, id, func(w *Wizard) error { return w.SetContact(c) })
}

func (s *Service) Next(ctx context.Context, id string) (*Wizard, error) {
	return s.update(ctx, id, func(w *Wizard) error { return w.Next() })
}

// Back steps back, refreshing availability when it lands on the schedule
// step.
func (s *Service) Back(ctx context.Context, id string) (*Wizard, error) {
	return s.update(ctx, id, func(w *Wizard) error {
		if err := w.Back(); err != nil {
			return err
		}
		if w.Step == StepSchedule {
			return s.refresh(ctx, w)
		}
		return nil
	})
}

// Submit books the session's selection as a pending appointment. Failures
// are recorded on the session and the returned wizard so the patient can
// retry; only one submission per session runs at a time.
func (s *Service) Submit(ctx context.Context, id string) (*Wizard, error) {
	ctx, span := tracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(attribute.String("booking.session_id", id))

	release, ok, err := s.guard.Acquire(ctx, "booking:submit:"+id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: acquire submit lock: %w", err)
	}
	if !ok {
		s.metrics.ObserveBookingSubmission("in_flight")
		return nil, ErrSubmitInFlight
	}
	defer release()

	w, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.BeginSubmit(); err != nil {
		s.metrics.ObserveBookingSubmission("rejected")
		return nil, err
	}
	if err := s.sessions.Save(ctx, w); err != nil {
		return nil, err
	}

	appt, outcome, err := s.book(ctx, w)
	s.metrics.ObserveBookingSubmission(outcome)
	if err != nil {
		span.RecordError(err)
		msg := MsgSubmitFailed
		switch {
		case errors.Is(err, appointments.ErrSlotTaken):
			msg = MsgSlotTaken
		case errors.Is(err, catalog.ErrPastDate), errors.Is(err, catalog.ErrWeekendDate):
			msg = MsgDateExpired
		case isValidation(err):
			msg = MsgInvalidDetails
		}
		s.logger.Warn("booking submission failed", "error", err, "session_id", id, "outcome", outcome)
		w.FailSubmit(msg)
		w.UpdatedAt = s.now()
		if saveErr := s.sessions.Save(ctx, w); saveErr != nil {
			s.logger.Error("failed to save booking session", "error", saveErr, "session_id", id)
		}
		return w, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	w.CompleteSubmit(appt.ID)
	w.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, w); err != nil {
		// The appointment exists; report success and let the session expire.
		s.logger.Error("failed to save submitted booking session", "error", err, "session_id", id)
	}
	s.logger.Info("booking submitted", "appointment_id", appt.ID, "session_id", id, "dentist_id", appt.DentistID)

	if err := s.changes.Publish(ctx, changefeed.NewEvent(changefeed.Appointments, changefeed.ActionInsert, appt.ID)); err != nil {
		s.logger.Warn("failed to publish appointment change", "error", err, "appointment_id", appt.ID)
	}
	if s.notifier != nil {
		job := appointments.NotificationFor(*appt, notify.KindAppointmentRequested)
		if err := s.notifier.Enqueue(ctx, job); err != nil {
			s.logger.Warn("failed to enqueue booking notification", "error", err, "appointment_id", appt.ID)
		}
	}
	return w, nil
}

// book re-checks the slot and writes the appointment. It returns the metrics
// outcome alongside any error.
func (s *Service) book(ctx context.Context, w *Wizard) (*appointments.Appointment, string, error) {
	day, err := catalog.ParseDate(w.Date)
	if err != nil {
		return nil, "rejected", err
	}
	if err := catalog.CheckBookable(day, s.clock.Today()); err != nil {
		return nil, "rejected", err
	}

	a, err := s.avail.Lookup(ctx, w.DentistID, w.Date)
	if err != nil {
		return nil, "failed", err
	}
	if !a.IsAvailable(w.Slot) {
		return nil, "slot_taken", appointments.ErrSlotTaken
	}

	appt, err := s.appts.Create(ctx, &appointments.CreateRequest{
		PatientName:  w.Contact.Name,
		PatientEmail: w.Contact.Email,
		PatientPhone: w.Contact.Phone,
		DentistID:    w.DentistID,
		DentistName:  w.DentistName,
		Date:         w.Date,
		TimeSlot:     w.Slot,
		Service:      w.Service,
		Notes:        w.Contact.Notes,
	})
	switch {
	case errors.Is(err, appointments.ErrSlotTaken):
		return nil, "slot_taken", err
	case err != nil:
		return nil, "failed", err
	}
	return appt, "created", nil
}

// Watch calls emit with a freshly computed view of the session now and after
// every change to blocked slots or appointments, until ctx ends. The view is
// not saved; the next slot selection refreshes the stored copy.
func (s *Service) Watch(ctx context.Context, id string, emit func(*Wizard)) error {
	if s.feed == nil {
		return errors.New("booking: no change feed configured")
	}
	if _, err := s.sessions.Load(ctx, id); err != nil {
		return err
	}

	var mu sync.Mutex
	fetch := func(ctx context.Context) error {
		w, err := s.sessions.Load(ctx, id)
		if err != nil {
			return err
		}
		if !w.Submitted {
			if err := s.refresh(ctx, w); err != nil {
				return err
			}
		}
		mu.Lock()
		defer mu.Unlock()
		emit(w)
		return nil
	}
	onErr := func(err error) {
		s.logger.Warn("booking watch refresh failed", "error", err, "session_id", id)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return changefeed.Watch(gctx, s.feed, changefeed.BlockedSlots, fetch, onErr) })
	g.Go(func() error { return changefeed.Watch(gctx, s.feed, changefeed.Appointments, fetch, onErr) })
	return g.Wait()
}
