package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/dentacare/clinic-portal/internal/catalog"
)

var (
	ErrNotFound    = errors.New("blocked slot not found")
	ErrInvalidCell = errors.New("invalid slot cell")

	// ErrToggleInFlight is returned when the same cell is already being
	// toggled. The second request does nothing.
	ErrToggleInFlight = errors.New("toggle already in progress for this slot")
)

// Cell addresses one (dentist, weekday, slot) position of the weekly grid.
type Cell struct {
	DentistID int64  `json:"dentist_id"`
	Day       string `json:"day"`
	Slot      string `json:"slot"`
}

// Validate checks the cell against the catalog.
func (c Cell) Validate() error {
	if c.DentistID <= 0 {
		return fmt.Errorf("%w: dentist required", ErrInvalidCell)
	}
	if !catalog.IsAdminWeekday(c.Day) {
		return fmt.Errorf("%w: day %q is not on the weekly grid", ErrInvalidCell, c.Day)
	}
	if !catalog.IsSlot(c.Slot) {
		return fmt.Errorf("%w: unknown slot %q", ErrInvalidCell, c.Slot)
	}
	return nil
}

// Key identifies the cell for in-flight guarding.
func (c Cell) Key() string {
	return fmt.Sprintf("%d|%s|%s", c.DentistID, c.Day, c.Slot)
}

// BlockedSlot is a recurring weekly block: the dentist is unavailable at Slot
// on every Day.
type BlockedSlot struct {
	ID        int64     `json:"id"`
	DentistID int64     `json:"dentist_id"`
	Day       string    `json:"day"`
	Slot      string    `json:"slot"`
	CreatedAt time.Time `json:"created_at"`
}

func (b BlockedSlot) Cell() Cell {
	return Cell{DentistID: b.DentistID, Day: b.Day, Slot: b.Slot}
}
