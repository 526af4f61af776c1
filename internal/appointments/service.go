package appointments

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/notify"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

var tracer = otel.Tracer("dentacare.appointments")

// RecentLimit is how many appointments the dashboard shows.
const RecentLimit = 4

// Enqueuer accepts patient notification jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job notify.Job) error
}

// Service applies admin status changes and emits their side effects.
type Service struct {
	repo     Repository
	changes  changefeed.Publisher
	notifier Enqueuer
	metrics  *metrics.PortalMetrics
	logger   *logging.Logger
}

func NewService(repo Repository, changes changefeed.Publisher, notifier Enqueuer, m *metrics.PortalMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if changes == nil {
		changes = changefeed.Nop{}
	}
	return &Service{repo: repo, changes: changes, notifier: notifier, metrics: m, logger: logger}
}

// Dashboard is the admin overview.
type Dashboard struct {
	Counts Counts        `json:"counts"`
	Recent []Appointment `json:"recent"`
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.List(ctx, ListFilter{Limit: RecentLimit})
	if err != nil {
		return nil, err
	}
	return &Dashboard{Counts: counts, Recent: recent}, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

// Cancel moves a pending appointment to cancelled, which frees its slot.
func (s *Service) Cancel(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.transition")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id), attribute.String("appointment.to", string(to)))

	appt, err := s.repo.UpdateStatus(ctx, id, to)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveStatusChange(string(to), "rejected")
		return nil, fmt.Errorf("appointments: %s %s: %w", to, id, err)
	}
	s.metrics.ObserveStatusChange(string(to), "ok")
	s.logger.Info("appointment status changed", "appointment_id", appt.ID, "status", appt.Status)

	if err := s.changes.Publish(ctx, changefeed.NewEvent(changefeed.Appointments, changefeed.ActionUpdate, appt.ID)); err != nil {
		s.logger.Warn("failed to publish appointment change", "error", err, "appointment_id", appt.ID)
	}

	kind := notify.KindAppointmentConfirmed
	if to == StatusCancelled {
		kind = notify.KindAppointmentCancelled
	}
	s.enqueue(ctx, *appt, kind)
	return appt, nil
}

func (s *Service) enqueue(ctx context.Context, appt Appointment, kind notify.Kind) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(ctx, NotificationFor(appt, kind)); err != nil {
		s.logger.Warn("failed to enqueue patient notification", "error", err, "appointment_id", appt.ID, "kind", kind)
	}
}

// NotificationFor snapshots an appointment into a notification job.
func NotificationFor(appt Appointment, kind notify.Kind) notify.Job {
	return notify.Job{
		Kind:          kind,
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		PatientEmail:  appt.PatientEmail,
		DentistName:   appt.DentistName,
		Date:          appt.Date,
		TimeSlot:      appt.TimeSlot,
		Service:       appt.Service,
	}
}
