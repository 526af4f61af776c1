package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which patient email a job produces.
type Kind string

const (
	KindAppointmentRequested Kind = "appointment.requested"
	KindAppointmentConfirmed Kind = "appointment.confirmed"
	KindAppointmentCancelled Kind = "appointment.cancelled"
)

// Job is a queued patient notification. It carries a snapshot of the
// appointment so the worker never reads the database.
type Job struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email"`
	DentistName   string    `json:"dentist_name"`
	Date          string    `json:"date"`
	TimeSlot      string    `json:"time_slot"`
	Service       string    `json:"service"`
	CreatedAt     time.Time `json:"created_at"`
}

func encodeJob(job Job) (Job, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("notify: encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("notify: decode job: %w", err)
	}
	if job.Kind == "" || job.PatientEmail == "" {
		return Job{}, fmt.Errorf("notify: job %s missing kind or recipient", job.ID)
	}
	return job, nil
}
