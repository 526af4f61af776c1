package appointments

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dentacare/clinic-portal/internal/catalog"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// CanTransition reports whether from -> to is allowed. Only pending
// appointments move, and only to confirmed or cancelled.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusConfirmed || to == StatusCancelled)
}

// Appointment is a patient's booking request with a dentist.
type Appointment struct {
	ID           string    `json:"id"`
	PatientName  string    `json:"patient"`
	PatientEmail string    `json:"patient_email"`
	PatientPhone string    `json:"patient_phone"`
	DentistID    int64     `json:"dentist_id"`
	DentistName  string    `json:"dentist"`
	Date         string    `json:"date"`
	TimeSlot     string    `json:"time"`
	Service      string    `json:"service"`
	Notes        string    `json:"notes,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateRequest carries the fields of a new booking. New appointments always
// start pending.
type CreateRequest struct {
	PatientName  string `json:"patient"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_phone"`
	DentistID    int64  `json:"dentist_id"`
	DentistName  string `json:"dentist"`
	Date         string `json:"date"`
	TimeSlot     string `json:"time"`
	Service      string `json:"service"`
	Notes        string `json:"notes,omitempty"`
}

// Validate normalizes whitespace and checks the request against the catalog.
func (r *CreateRequest) Validate() error {
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.PatientEmail = strings.TrimSpace(r.PatientEmail)
	r.PatientPhone = strings.TrimSpace(r.PatientPhone)
	r.Notes = strings.TrimSpace(r.Notes)

	if r.PatientName == "" || r.PatientEmail == "" || r.PatientPhone == "" {
		return ErrMissingPatient
	}
	if _, err := mail.ParseAddress(r.PatientEmail); err != nil {
		return fmt.Errorf("%w: invalid email", ErrMissingPatient)
	}
	if r.DentistID <= 0 || strings.TrimSpace(r.DentistName) == "" {
		return ErrMissingDentist
	}
	if _, err := catalog.ParseDate(r.Date); err != nil {
		return err
	}
	if !catalog.IsSlot(r.TimeSlot) {
		return ErrInvalidSlot
	}
	if !catalog.IsService(r.Service) {
		return ErrInvalidService
	}
	return nil
}

// ListFilter narrows admin listings. A zero Status means all.
type ListFilter struct {
	Status Status
	Limit  int
}

// Counts summarizes appointments by status for the dashboard.
type Counts struct {
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

func (c *Counts) add(s Status, n int) {
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusConfirmed:
		c.Confirmed += n
	case StatusCancelled:
		c.Cancelled += n
	}
	c.Total += n
}
