package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/inflight"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// ToggleResult reports the state of the cell after a toggle resolved.
type ToggleResult struct {
	Cell    Cell         `json:"cell"`
	Blocked bool         `json:"blocked"`
	Row     *BlockedSlot `json:"row,omitempty"`
}

// Toggler flips grid cells between blocked and available.
type Toggler struct {
	repo    Repository
	guard   inflight.Guard
	changes changefeed.Publisher
	metrics *metrics.PortalMetrics
	logger  *logging.Logger
}

func NewToggler(repo Repository, guard inflight.Guard, changes changefeed.Publisher, m *metrics.PortalMetrics, logger *logging.Logger) *Toggler {
	if guard == nil {
		guard = inflight.NewLocalGuard()
	}
	if changes == nil {
		changes = changefeed.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Toggler{repo: repo, guard: guard, changes: changes, metrics: m, logger: logger}
}

// Toggle deletes the block for cell if one exists and creates it otherwise.
// While a toggle for the same cell is running a second call returns
// ErrToggleInFlight without touching storage.
func (t *Toggler) Toggle(ctx context.Context, cell Cell) (*ToggleResult, error) {
	if err := cell.Validate(); err != nil {
		return nil, err
	}

	release, ok, err := t.guard.Acquire(ctx, cell.Key())
	if err != nil {
		return nil, fmt.Errorf("schedule: guard: %w", err)
	}
	if !ok {
		t.metrics.ObserveSlotToggle("in_flight")
		return nil, ErrToggleInFlight
	}
	defer release()

	result, action, err := t.flip(ctx, cell)
	if err != nil {
		t.metrics.ObserveSlotToggle("error")
		return nil, err
	}

	if result.Blocked {
		t.metrics.ObserveSlotToggle("blocked")
	} else {
		t.metrics.ObserveSlotToggle("unblocked")
	}
	t.logger.Info("slot toggled", "dentist_id", cell.DentistID, "day", cell.Day, "slot", cell.Slot, "blocked", result.Blocked)

	if err := t.changes.Publish(ctx, changefeed.NewEvent(changefeed.BlockedSlots, action, cell.Key())); err != nil {
		t.logger.Warn("failed to publish slot change", "error", err, "cell", cell.Key())
	}
	return result, nil
}

func (t *Toggler) flip(ctx context.Context, cell Cell) (*ToggleResult, string, error) {
	_, err := t.repo.Find(ctx, cell)
	switch {
	case err == nil:
		if err := t.repo.Delete(ctx, cell); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
		return &ToggleResult{Cell: cell, Blocked: false}, changefeed.ActionDelete, nil
	case errors.Is(err, ErrNotFound):
		row, err := t.repo.Create(ctx, cell)
		if err != nil {
			return nil, "", err
		}
		return &ToggleResult{Cell: cell, Blocked: true, Row: row}, changefeed.ActionInsert, nil
	default:
		return nil, "", err
	}
}
