// Package catalog holds the fixed clinic enumerations: bookable time slots,
// services, blog categories and weekday labels, plus the calendar rules that
// decide which dates a patient may book.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate = errors.New("catalog: invalid date")
	ErrPastDate    = errors.New("catalog: date is in the past")
	ErrWeekendDate = errors.New("catalog: clinic is closed on weekends")
)

var slots = []string{
	"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
	"02:00 PM", "02:30 PM", "03:00 PM", "03:30 PM", "04:00 PM", "04:30 PM",
}

var services = []string{
	"General Checkup",
	"Teeth Cleaning",
	"Teeth Whitening",
	"Fillings",
	"Root Canal",
	"Orthodontic Consultation",
	"Dental Implant Consultation",
	"Emergency Care",
}

var blogCategories = []string{
	"Oral Health",
	"Patient Guide",
	"Cosmetic Dentistry",
	"Dental Implants",
	"Pediatric",
	"General",
}

var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Slots returns the bookable 30-minute slot labels in display order.
func Slots() []string { return clone(slots) }

// Services returns the services a patient can book.
func Services() []string { return clone(services) }

// BlogCategories returns the allowed blog post categories.
func BlogCategories() []string { return clone(blogCategories) }

// AdminWeekdays returns the weekday labels shown on the admin slot grid.
func AdminWeekdays() []string { return clone(weekdayLabels[1:6]) }

func IsSlot(label string) bool         { return contains(slots, label) }
func IsService(name string) bool       { return contains(services, name) }
func IsBlogCategory(name string) bool  { return contains(blogCategories, name) }
func IsWeekday(label string) bool      { return contains(weekdayLabels[:], label) }
func IsAdminWeekday(label string) bool { return contains(weekdayLabels[1:6], label) }

// SlotIndex reports the display position of a slot, or -1.
func SlotIndex(label string) int {
	for i, s := range slots {
		if s == label {
			return i
		}
	}
	return -1
}

// WeekdayLabel returns the short label for the day of t.
func WeekdayLabel(t time.Time) string {
	return weekdayLabels[t.Weekday()]
}

// ParseDate parses a YYYY-MM-DD calendar day in UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// CheckBookable rejects days before today and weekend days.
func CheckBookable(day, today time.Time) error {
	d := truncate(day)
	if d.Before(truncate(today)) {
		return ErrPastDate
	}
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return ErrWeekendDate
	}
	return nil
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
