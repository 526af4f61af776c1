package booking

import "errors"

var (
	ErrSessionNotFound  = errors.New("booking session not found")
	ErrWrongStep        = errors.New("action not allowed on the current step")
	ErrStepIncomplete   = errors.New("current step is incomplete")
	ErrDateRequired     = errors.New("select a date first")
	ErrUnknownSlot      = errors.New("unknown time slot")
	ErrUnknownService   = errors.New("unknown service")
	ErrSlotUnavailable  = errors.New("time slot is not available")
	ErrSubmitInFlight   = errors.New("booking is already being submitted")
	ErrAlreadySubmitted = errors.New("booking already submitted")
	ErrSubmitFailed     = errors.New("booking submission failed")
)

// Messages stored on the session when a submission fails.
const (
	MsgSubmitFailed   = "Failed to book appointment. Please try again."
	MsgSlotTaken      = "That time slot was just taken. Please go back and pick another."
	MsgDateExpired    = "That date can no longer be booked. Please go back and pick another."
	MsgInvalidDetails = "Please check your details and try again."
)
