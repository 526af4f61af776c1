// Package booking drives the patient booking wizard: a four step flow from
// choosing a dentist to submitting contact details, persisted as a session so
// a browser can resume it and watch slot availability change live.
package booking

import (
	"net/mail"
	"strings"
	"time"

	"github.com/dentacare/clinic-portal/internal/catalog"
)

// Step is a wizard position, 1 through 4.
type Step int

const (
	StepDentist  Step = 1
	StepSchedule Step = 2
	StepService  Step = 3
	StepDetails  Step = 4
)

// Title is the heading shown for the step.
func (s Step) Title() string {
	switch s {
	case StepDentist:
		return "Choose Dentist"
	case StepSchedule:
		return "Pick Date & Time"
	case StepService:
		return "Select Service"
	case StepDetails:
		return "Your Details"
	}
	return ""
}

// Contact is the patient's details entered on the last step.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes,omitempty"`
}

func (c Contact) complete() bool {
	if c.Name == "" || c.Email == "" || c.Phone == "" {
		return false
	}
	_, err := mail.ParseAddress(c.Email)
	return err == nil
}

// Wizard is the full state of one booking session. Its methods only change
// local state; loading availability and writing the appointment belong to
// Service.
type Wizard struct {
	ID            string    `json:"id"`
	Step          Step      `json:"step"`
	DentistID     int64     `json:"dentist_id,omitempty"`
	DentistName   string    `json:"dentist,omitempty"`
	Date          string    `json:"date,omitempty"`
	Slot          string    `json:"time,omitempty"`
	Service       string    `json:"service,omitempty"`
	Contact       Contact   `json:"contact"`
	Unavailable   []string  `json:"unavailable"`
	Submitting    bool      `json:"submitting"`
	Submitted     bool      `json:"submitted"`
	SubmitError   string    `json:"submit_error,omitempty"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewWizard starts a session on the first step.
func NewWizard(id string, now time.Time) *Wizard {
	return &Wizard{ID: id, Step: StepDentist, Unavailable: []string{}, CreatedAt: now, UpdatedAt: now}
}

// CanAdvance reports whether the current step's required fields are filled.
func (w *Wizard) CanAdvance() bool {
	switch w.Step {
	case StepDentist:
		return w.DentistID != 0
	case StepSchedule:
		return w.Date != "" && w.Slot != ""
	case StepService:
		return w.Service != ""
	case StepDetails:
		return w.Contact.complete()
	}
	return false
}

// HasSelection reports whether both dentist and date are chosen, which is
// when availability applies.
func (w *Wizard) HasSelection() bool {
	return w.DentistID != 0 && w.Date != ""
}

// locked refuses changes once a submission has started or finished.
func (w *Wizard) locked() error {
	if w.Submitted {
		return ErrAlreadySubmitted
	}
	if w.Submitting {
		return ErrSubmitInFlight
	}
	return nil
}

func (w *Wizard) editable(step Step) error {
	if err := w.locked(); err != nil {
		return err
	}
	if w.Step != step {
		return ErrWrongStep
	}
	return nil
}

// SelectDentist records the chosen dentist. A previously picked slot is kept;
// the caller refreshes availability, which drops it if it is now taken.
func (w *Wizard) SelectDentist(id int64, name string) error {
	if err := w.editable(StepDentist); err != nil {
		return err
	}
	w.DentistID = id
	w.DentistName = name
	w.SubmitError = ""
	return nil
}

// SelectDate records the chosen day. Past and weekend days are refused, and
// changing the day clears the selected slot.
func (w *Wizard) SelectDate(day, today time.Time) error {
	if err := w.editable(StepSchedule); err != nil {
		return err
	}
	if err := catalog.CheckBookable(day, today); err != nil {
		return err
	}
	date := catalog.FormatDate(day)
	if date != w.Date {
		w.Slot = ""
		w.Unavailable = []string{}
	}
	w.Date = date
	w.SubmitError = ""
	return nil
}

// SetUnavailable replaces the unavailable slot set for the current dentist
// and date. A selected slot that became unavailable is dropped.
func (w *Wizard) SetUnavailable(slots []string) {
	w.Unavailable = append([]string{}, slots...)
	if w.Slot != "" && w.isUnavailable(w.Slot) {
		w.Slot = ""
	}
}

func (w *Wizard) isUnavailable(slot string) bool {
	for _, s := range w.Unavailable {
		if s == slot {
			return true
		}
	}
	return false
}

// SelectSlot records the chosen time. The date must already be set and the
// slot must not be in the unavailable set.
func (w *Wizard) SelectSlot(slot string) error {
	if err := w.editable(StepSchedule); err != nil {
		return err
	}
	if w.Date == "" {
		return ErrDateRequired
	}
	if !catalog.IsSlot(slot) {
		return ErrUnknownSlot
	}
	if w.isUnavailable(slot) {
		return ErrSlotUnavailable
	}
	w.Slot = slot
	w.SubmitError = ""
	return nil
}

func (w *Wizard) SelectService(name string) error {
	if err := w.editable(StepService); err != nil {
		return err
	}
	if !catalog.IsService(name) {
		return ErrUnknownService
	}
	w.Service = name
	return nil
}

// SetContact stores the patient's details with surrounding whitespace removed.
func (w *Wizard) SetContact(c Contact) error {
	if err := w.editable(StepDetails); err != nil {
		return err
	}
	w.Contact = Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
		Notes: strings.TrimSpace(c.Notes),
	}
	return nil
}

// Next moves forward one step when the current step is complete.
func (w *Wizard) Next() error {
	if err := w.locked(); err != nil {
		return err
	}
	if w.Step >= StepDetails {
		return ErrWrongStep
	}
	if !w.CanAdvance() {
		return ErrStepIncomplete
	}
	w.Step++
	return nil
}

// Back moves to the previous step.
func (w *Wizard) Back() error {
	if err := w.locked(); err != nil {
		return err
	}
	if w.Step <= StepDentist {
		return ErrWrongStep
	}
	w.Step--
	return nil
}

// BeginSubmit marks a submission in flight. It needs the last step complete
// and refuses a session that already booked.
func (w *Wizard) BeginSubmit() error {
	if w.Submitted {
		return ErrAlreadySubmitted
	}
	if w.Step != StepDetails {
		return ErrWrongStep
	}
	if !w.CanAdvance() {
		return ErrStepIncomplete
	}
	w.Submitting = true
	w.SubmitError = ""
	return nil
}

// FailSubmit ends a submission with a message the patient can retry from.
func (w *Wizard) FailSubmit(msg string) {
	w.Submitting = false
	w.SubmitError = msg
}

// CompleteSubmit ends a submission successfully. The session is terminal
// afterwards.
func (w *Wizard) CompleteSubmit(appointmentID string) {
	w.Submitting = false
	w.Submitted = true
	w.SubmitError = ""
	w.AppointmentID = appointmentID
}
