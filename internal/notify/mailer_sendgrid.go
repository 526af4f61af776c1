package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/dentacare/clinic-portal/pkg/logging"
)

// SendGridAPI is the part of the SendGrid client the mailer uses.
type SendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers patient emails through SendGrid. Each send is
// categorized by notification kind and carries the appointment id as a
// custom arg so bounces can be traced back to a booking.
type SendGridMailer struct {
	client SendGridAPI
	from   ClinicSender
	logger *logging.Logger
}

// NewSendGridMailer returns nil without an API key.
func NewSendGridMailer(apiKey string, from ClinicSender, logger *logging.Logger) *SendGridMailer {
	if apiKey == "" {
		return nil
	}
	return newSendGridMailer(sendgrid.NewSendClient(apiKey), from, logger)
}

func newSendGridMailer(client SendGridAPI, from ClinicSender, logger *logging.Logger) *SendGridMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridMailer{client: client, from: from.withDefaults(), logger: logger}
}

func (m *SendGridMailer) Deliver(ctx context.Context, email PatientEmail) error {
	if m.client == nil {
		return errors.New("notify: sendgrid client not configured")
	}

	response, err := m.client.SendWithContext(ctx, m.build(email))
	if err != nil {
		return fmt.Errorf("notify: sendgrid deliver %s: %w", email.Kind, err)
	}
	if response.StatusCode >= 400 {
		m.logger.Error("sendgrid rejected patient email", "status", response.StatusCode, "body", response.Body,
			"kind", email.Kind, "appointment_id", email.AppointmentID)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	m.logger.Info("patient email sent via sendgrid", "kind", email.Kind, "appointment_id", email.AppointmentID, "status", response.StatusCode)
	return nil
}

func (m *SendGridMailer) build(email PatientEmail) *mail.SGMailV3 {
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(email.ToName, email.To))
	if email.AppointmentID != "" {
		p.SetCustomArg("appointment_id", email.AppointmentID)
	}

	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(m.from.Name, m.from.Address))
	msg.Subject = email.Subject
	msg.AddPersonalizations(p)
	msg.AddContent(mail.NewContent("text/plain", email.Text))
	msg.AddCategories(string(email.Kind))
	if m.from.ReplyTo != "" {
		msg.SetReplyTo(mail.NewEmail(m.from.Name, m.from.ReplyTo))
	}
	return msg
}
