package appointments

import "errors"

var (
	// ErrNotFound is returned when an appointment id does not exist.
	ErrNotFound = errors.New("appointment not found")

	// ErrInvalidTransition is returned for any status change other than
	// pending to confirmed or pending to cancelled.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSlotTaken is returned when the dentist already has a live
	// appointment in the same slot on the same day.
	ErrSlotTaken = errors.New("time slot is no longer available")

	ErrMissingPatient = errors.New("patient name, email and phone are required")
	ErrMissingDentist = errors.New("dentist is required")
	ErrInvalidSlot    = errors.New("unknown time slot")
	ErrInvalidService = errors.New("unknown service")
	ErrInvalidStatus  = errors.New("unknown status")
)
