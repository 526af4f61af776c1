package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/inflight"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

var monNine = Cell{DentistID: 1, Day: "Mon", Slot: "09:00 AM"}

func TestToggleCreatesThenDeletes(t *testing.T) {
	repo := NewInMemoryRepository()
	broker := changefeed.NewLocalBroker()
	events, cancel, _ := broker.Subscribe(context.Background(), changefeed.BlockedSlots)
	defer cancel()

	tg := NewToggler(repo, inflight.NewLocalGuard(), broker, nil, logging.Discard())
	ctx := context.Background()

	res, err := tg.Toggle(ctx, monNine)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	require.NotNil(t, res.Row)
	assert.Equal(t, changefeed.ActionInsert, (<-events).Action)

	slots, _ := repo.ListForDay(ctx, 1, "Mon")
	assert.Equal(t, []string{"09:00 AM"}, slots)

	res, err = tg.Toggle(ctx, monNine)
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Equal(t, changefeed.ActionDelete, (<-events).Action)

	slots, _ = repo.ListForDay(ctx, 1, "Mon")
	assert.Empty(t, slots)
}

func TestToggleRejectsInvalidCells(t *testing.T) {
	tg := NewToggler(NewInMemoryRepository(), nil, nil, nil, logging.Discard())
	for _, c := range []Cell{
		{DentistID: 0, Day: "Mon", Slot: "09:00 AM"},
		{DentistID: 1, Day: "Funday", Slot: "09:00 AM"},
		{DentistID: 1, Day: "Mon", Slot: "12:15 PM"},
	} {
		_, err := tg.Toggle(context.Background(), c)
		assert.True(t, errors.Is(err, ErrInvalidCell), "%+v", c)
	}
}

func TestToggleRejectsWeekendCells(t *testing.T) {
	repo := NewInMemoryRepository()
	tg := NewToggler(repo, nil, nil, nil, logging.Discard())
	ctx := context.Background()

	for _, day := range []string{"Sat", "Sun"} {
		_, err := tg.Toggle(ctx, Cell{DentistID: 1, Day: day, Slot: "09:00 AM"})
		assert.ErrorIs(t, err, ErrInvalidCell, day)

		slots, err := repo.ListForDay(ctx, 1, day)
		require.NoError(t, err)
		assert.Empty(t, slots, day)
	}
}

// blockingRepo parks Find until released so a toggle can be held in flight.
type blockingRepo struct {
	*InMemoryRepository
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRepo) Find(ctx context.Context, cell Cell) (*BlockedSlot, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.InMemoryRepository.Find(ctx, cell)
}

func TestToggleWhileInFlightIsNoOp(t *testing.T) {
	repo := &blockingRepo{
		InMemoryRepository: NewInMemoryRepository(),
		entered:            make(chan struct{}, 1),
		release:            make(chan struct{}),
	}
	tg := NewToggler(repo, inflight.NewLocalGuard(), nil, nil, logging.Discard())
	ctx := context.Background()

	first := make(chan *ToggleResult, 1)
	go func() {
		res, err := tg.Toggle(ctx, monNine)
		if err == nil {
			first <- res
		}
	}()
	<-repo.entered

	_, err := tg.Toggle(ctx, monNine)
	assert.True(t, errors.Is(err, ErrToggleInFlight))

	// Other cells are not blocked by the in-flight one.
	other := monNine
	other.Slot = "09:30 AM"
	otherDone := make(chan error, 1)
	go func() {
		_, err := tg.Toggle(ctx, other)
		otherDone <- err
	}()
	<-repo.entered
	repo.release <- struct{}{}
	repo.release <- struct{}{}

	select {
	case res := <-first:
		assert.True(t, res.Blocked, "only the first toggle applied")
	case <-time.After(time.Second):
		t.Fatal("first toggle did not finish")
	}
	require.NoError(t, <-otherDone)

	slots, _ := repo.ListForDay(ctx, 1, "Mon")
	assert.ElementsMatch(t, []string{"09:00 AM", "09:30 AM"}, slots)
}
