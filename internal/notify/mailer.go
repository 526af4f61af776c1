package notify

import (
	"context"
	"fmt"

	"github.com/dentacare/clinic-portal/pkg/logging"
)

// DefaultClinicName is the From display name when none is configured.
const DefaultClinicName = "DentaCare"

// Mailer delivers a rendered patient email.
type Mailer interface {
	Deliver(ctx context.Context, email PatientEmail) error
}

// ClinicSender is the identity patient emails are sent as. ReplyTo routes
// patient replies to the front desk when set.
type ClinicSender struct {
	Name    string
	Address string
	ReplyTo string
}

func (s ClinicSender) withDefaults() ClinicSender {
	if s.Name == "" {
		s.Name = DefaultClinicName
	}
	return s
}

func (s ClinicSender) header() string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Address)
}

// PatientEmail is one plain-text message about an appointment. Kind and
// AppointmentID travel with it so providers can tag the send.
type PatientEmail struct {
	Kind          Kind
	AppointmentID string
	To            string
	ToName        string
	Subject       string
	Text          string
}

// LogMailer only logs. It is used when no provider is configured.
type LogMailer struct {
	logger *logging.Logger
}

func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Deliver(_ context.Context, email PatientEmail) error {
	m.logger.Info("patient email not sent: no provider configured",
		"kind", email.Kind, "appointment_id", email.AppointmentID, "subject", email.Subject)
	return nil
}
