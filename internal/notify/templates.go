package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

type emailTemplate struct {
	subject string
	body    string
}

var emailTemplates = map[Kind]emailTemplate{
	KindAppointmentRequested: {
		subject: "We received your appointment request",
		body: `Hi {{.PatientName}},

Thanks for booking with DentaCare. Your request is pending confirmation:

  Dentist: {{.DentistName}}
  Date:    {{.Date}}
  Time:    {{.TimeSlot}}
  Service: {{.Service}}

We will email you again once the clinic confirms.
`,
	},
	KindAppointmentConfirmed: {
		subject: "Your appointment is confirmed",
		body: `Hi {{.PatientName}},

Your {{.Service}} appointment with {{.DentistName}} on {{.Date}} at {{.TimeSlot}} is confirmed.

See you soon,
DentaCare
`,
	},
	KindAppointmentCancelled: {
		subject: "Your appointment was cancelled",
		body: `Hi {{.PatientName}},

Your {{.Service}} appointment with {{.DentistName}} on {{.Date}} at {{.TimeSlot}} has been cancelled.
You are welcome to book another time online.

DentaCare
`,
	},
}

// Compose renders the patient email for a job. Templates use strict
// missing-key semantics so a malformed job fails loudly instead of sending
// blanks.
func Compose(job Job) (PatientEmail, error) {
	tpl, ok := emailTemplates[job.Kind]
	if !ok {
		return PatientEmail{}, fmt.Errorf("notify: no template for kind %q", job.Kind)
	}
	t, err := template.New(string(job.Kind)).Option("missingkey=error").Parse(tpl.body)
	if err != nil {
		return PatientEmail{}, fmt.Errorf("notify: parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, job); err != nil {
		return PatientEmail{}, fmt.Errorf("notify: execute template: %w", err)
	}
	return PatientEmail{
		Kind:          job.Kind,
		AppointmentID: job.AppointmentID,
		To:            job.PatientEmail,
		ToName:        job.PatientName,
		Subject:       tpl.subject,
		Text:          buf.String(),
	}, nil
}
