package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/dentacare/clinic-portal/pkg/logging"
)

// SESAPI is the subset of the SES v2 client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer delivers patient emails through SES v2 with message tags for the
// notification kind and appointment.
type SESMailer struct {
	client SESAPI
	from   ClinicSender
	logger *logging.Logger
}

// NewSESMailer returns nil without a client.
func NewSESMailer(client SESAPI, from ClinicSender, logger *logging.Logger) *SESMailer {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESMailer{client: client, from: from.withDefaults(), logger: logger}
}

func (m *SESMailer) Deliver(ctx context.Context, email PatientEmail) error {
	output, err := m.client.SendEmail(ctx, m.input(email))
	if err != nil {
		return fmt.Errorf("notify: ses deliver %s: %w", email.Kind, err)
	}
	m.logger.Info("patient email sent via ses", "kind", email.Kind, "appointment_id", email.AppointmentID,
		"message_id", aws.ToString(output.MessageId))
	return nil
}

func (m *SESMailer) input(email PatientEmail) *sesv2.SendEmailInput {
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from.header()),
		Destination:      &types.Destination{ToAddresses: []string{email.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(email.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("kind"), Value: aws.String(sesTagValue(string(email.Kind)))},
		},
	}
	if email.AppointmentID != "" {
		in.EmailTags = append(in.EmailTags, types.MessageTag{
			Name:  aws.String("appointment_id"),
			Value: aws.String(sesTagValue(email.AppointmentID)),
		})
	}
	if m.from.ReplyTo != "" {
		in.ReplyToAddresses = []string{m.from.ReplyTo}
	}
	return in
}

// sesTagValue maps a value onto the characters SES accepts in message tags.
func sesTagValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, v)
}
