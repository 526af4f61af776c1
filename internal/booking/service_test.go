package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentacare/clinic-portal/internal/appointments"
	"github.com/dentacare/clinic-portal/internal/availability"
	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/inflight"
	"github.com/dentacare/clinic-portal/internal/notify"
	"github.com/dentacare/clinic-portal/internal/schedule"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []notify.Job
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, job notify.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

type failingCreator struct{ err error }

func (f failingCreator) Create(context.Context, *appointments.CreateRequest) (*appointments.Appointment, error) {
	return nil, f.err
}

type env struct {
	svc      *Service
	appts    *appointments.InMemoryRepository
	blocked  *schedule.InMemoryRepository
	broker   *changefeed.LocalBroker
	enqueuer *recordingEnqueuer
	guard    *inflight.LocalGuard
}

func newEnv(t *testing.T, opts ...func(*Deps)) *env {
	t.Helper()
	e := &env{
		appts:    appointments.NewInMemoryRepository(),
		blocked:  schedule.NewInMemoryRepository(),
		broker:   changefeed.NewLocalBroker(),
		enqueuer: &recordingEnqueuer{},
		guard:    inflight.NewLocalGuard(),
	}
	deps := Deps{
		Sessions:     NewMemorySessionStore(time.Hour),
		Dentists:     dentists.NewInMemoryRepository(dentists.Seed...),
		Availability: availability.NewService(e.blocked, e.appts, nil),
		Appointments: e.appts,
		Guard:        e.guard,
		Changes:      e.broker,
		Feed:         e.broker,
		Notifier:     e.enqueuer,
		Clock:        catalog.FixedClock(today),
		Logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.svc = NewService(deps)
	return e
}

// walk drives a fresh session up to the details step.
func (e *env) walk(t *testing.T, dentistID int64, date, slot string) *Wizard {
	t.Helper()
	ctx := context.Background()
	w, err := e.svc.Start(ctx)
	require.NoError(t, err)
	_, err = e.svc.SelectDentist(ctx, w.ID, dentistID)
	require.NoError(t, err)
	_, err = e.svc.Next(ctx, w.ID)
	require.NoError(t, err)
	_, err = e.svc.SelectDate(ctx, w.ID, date)
	require.NoError(t, err)
	_, err = e.svc.SelectSlot(ctx, w.ID, slot)
	require.NoError(t, err)
	_, err = e.svc.Next(ctx, w.ID)
	require.NoError(t, err)
	_, err = e.svc.SelectService(ctx, w.ID, "General Checkup")
	require.NoError(t, err)
	_, err = e.svc.Next(ctx, w.ID)
	require.NoError(t, err)
	w, err = e.svc.SetContact(ctx, w.ID, Contact{Name: "Jane Smith", Email: "jane@email.com", Phone: "555-0100"})
	require.NoError(t, err)
	return w
}

func TestSubmitCreatesOnePendingAppointment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	events, cancel, err := e.broker.Subscribe(ctx, changefeed.Appointments)
	require.NoError(t, err)
	defer cancel()

	w := e.walk(t, 2, "2026-10-20", "10:00 AM")
	done, err := e.svc.Submit(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, done.Submitted)
	require.NotEmpty(t, done.AppointmentID)

	all, err := e.appts.List(ctx, appointments.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	appt := all[0]
	assert.Equal(t, done.AppointmentID, appt.ID)
	assert.Equal(t, appointments.StatusPending, appt.Status)
	assert.Equal(t, "Jane Smith", appt.PatientName)
	assert.Equal(t, "jane@email.com", appt.PatientEmail)
	assert.Equal(t, "555-0100", appt.PatientPhone)
	assert.Equal(t, "Dr. James Morrison", appt.DentistName)
	assert.Equal(t, "2026-10-20", appt.Date)
	assert.Equal(t, "10:00 AM", appt.TimeSlot)
	assert.Equal(t, "General Checkup", appt.Service)

	select {
	case evt := <-events:
		assert.Equal(t, changefeed.ActionInsert, evt.Action)
		assert.Equal(t, appt.ID, evt.RecordID)
	case <-time.After(time.Second):
		t.Fatal("no appointment change published")
	}

	require.Len(t, e.enqueuer.jobs, 1)
	assert.Equal(t, notify.KindAppointmentRequested, e.enqueuer.jobs[0].Kind)
	assert.Equal(t, appt.ID, e.enqueuer.jobs[0].AppointmentID)

	_, err = e.svc.Submit(ctx, w.ID)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	_, err = e.svc.Back(ctx, w.ID)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	stored, err := e.svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, stored.Submitted)
	assert.False(t, stored.Submitting)
}

func TestBlockedSlotIsNotSelectable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.blocked.Create(ctx, schedule.Cell{DentistID: 1, Day: "Tue", Slot: "09:00 AM"})
	require.NoError(t, err)

	w, err := e.svc.Start(ctx)
	require.NoError(t, err)
	_, err = e.svc.SelectDentist(ctx, w.ID, 1)
	require.NoError(t, err)
	_, err = e.svc.Next(ctx, w.ID)
	require.NoError(t, err)

	w, err = e.svc.SelectDate(ctx, w.ID, "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00 AM"}, w.Unavailable)

	_, err = e.svc.SelectSlot(ctx, w.ID, "09:00 AM")
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	w, err = e.svc.SelectSlot(ctx, w.ID, "09:30 AM")
	require.NoError(t, err)
	assert.Equal(t, "09:30 AM", w.Slot)

	// A Wednesday is unaffected by the Tuesday block.
	w, err = e.svc.SelectDate(ctx, w.ID, "2026-10-21")
	require.NoError(t, err)
	assert.Empty(t, w.Unavailable)
	assert.Empty(t, w.Slot)
}

func TestSelectSlotSeesBlocksAddedAfterDate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w, err := e.svc.Start(ctx)
	require.NoError(t, err)
	_, err = e.svc.SelectDentist(ctx, w.ID, 1)
	require.NoError(t, err)
	_, err = e.svc.Next(ctx, w.ID)
	require.NoError(t, err)
	_, err = e.svc.SelectDate(ctx, w.ID, "2026-10-20")
	require.NoError(t, err)

	_, err = e.blocked.Create(ctx, schedule.Cell{DentistID: 1, Day: "Tue", Slot: "02:00 PM"})
	require.NoError(t, err)
	_, err = e.svc.SelectSlot(ctx, w.ID, "02:00 PM")
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestSelectDentistUnknown(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w, err := e.svc.Start(ctx)
	require.NoError(t, err)
	_, err = e.svc.SelectDentist(ctx, w.ID, 99)
	assert.ErrorIs(t, err, dentists.ErrNotFound)

	_, err = e.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	e := newEnv(t, func(d *Deps) {
		d.Appointments = failingCreator{err: errors.New("connection reset")}
	})
	ctx := context.Background()
	w := e.walk(t, 2, "2026-10-20", "10:00 AM")

	failed, err := e.svc.Submit(ctx, w.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	require.NotNil(t, failed)
	assert.Equal(t, MsgSubmitFailed, failed.SubmitError)
	assert.False(t, failed.Submitting)
	assert.False(t, failed.Submitted)

	stored, err := e.svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, MsgSubmitFailed, stored.SubmitError)
	assert.Equal(t, StepDetails, stored.Step)
	assert.Equal(t, "10:00 AM", stored.Slot)
	assert.Empty(t, e.enqueuer.jobs)
}

func TestSubmitRechecksSlot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.walk(t, 2, "2026-10-20", "10:00 AM")
	second := e.walk(t, 2, "2026-10-20", "10:00 AM")

	_, err := e.svc.Submit(ctx, first.ID)
	require.NoError(t, err)

	lost, err := e.svc.Submit(ctx, second.ID)
	assert.ErrorIs(t, err, appointments.ErrSlotTaken)
	assert.Equal(t, MsgSlotTaken, lost.SubmitError)

	all, err := e.appts.List(ctx, appointments.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	w, err := e.svc.Back(ctx, second.ID)
	require.NoError(t, err)
	w, err = e.svc.Back(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSchedule, w.Step)
	assert.Empty(t, w.Slot, "returning to the schedule drops the taken slot")
	assert.Contains(t, w.Unavailable, "10:00 AM")
}

func TestSubmitInFlightIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.walk(t, 2, "2026-10-20", "10:00 AM")

	release, ok, err := e.guard.Acquire(ctx, "booking:submit:"+w.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = e.svc.Submit(ctx, w.ID)
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	release()

	_, err = e.svc.Submit(ctx, w.ID)
	assert.NoError(t, err)
}

func TestWatchRefreshesOnBlockedSlotChange(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := e.svc.Start(ctx)
	require.NoError(t, err)
	_, err = e.svc.SelectDentist(ctx, w.ID, 1)
	require.NoError(t, err)
	_, err = e.svc.Next(ctx, w.ID)
	require.NoError(t, err)
	_, err = e.svc.SelectDate(ctx, w.ID, "2026-10-20")
	require.NoError(t, err)

	views := make(chan *Wizard, 16)
	go func() {
		_ = e.svc.Watch(ctx, w.ID, func(v *Wizard) { views <- v })
	}()

	// Both collection watchers push an initial view.
	for i := 0; i < 2; i++ {
		select {
		case v := <-views:
			assert.Empty(t, v.Unavailable)
		case <-time.After(time.Second):
			t.Fatal("no initial view")
		}
	}

	_, err = e.blocked.Create(ctx, schedule.Cell{DentistID: 1, Day: "Tue", Slot: "09:00 AM"})
	require.NoError(t, err)
	require.NoError(t, e.broker.Publish(ctx, changefeed.NewEvent(changefeed.BlockedSlots, changefeed.ActionInsert, "1")))

	select {
	case v := <-views:
		assert.Equal(t, []string{"09:00 AM"}, v.Unavailable)
	case <-time.After(time.Second):
		t.Fatal("no refreshed view")
	}
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisSessionStore(client, time.Minute)
	ctx := context.Background()

	w := completeWizard(t)
	require.NoError(t, store.Save(ctx, w))
	assert.True(t, mr.Exists("booking:session:s1"))
	assert.Equal(t, time.Minute, mr.TTL("booking:session:s1"))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, w.Slot, got.Slot)
	assert.Equal(t, w.Contact, got.Contact)
	assert.Equal(t, StepDetails, got.Step)

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStoreExpires(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	now := today
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewWizard("s1", now)))
	_, err := store.Load(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// gatedCreator parks Create until released so a submission can be held in
// flight.
type gatedCreator struct {
	AppointmentCreator
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCreator) Create(ctx context.Context, req *appointments.CreateRequest) (*appointments.Appointment, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.AppointmentCreator.Create(ctx, req)
}

func TestEditsRejectedWhileSubmitting(t *testing.T) {
	gate := &gatedCreator{entered: make(chan struct{}, 1), release: make(chan struct{})}
	e := newEnv(t, func(d *Deps) {
		gate.AppointmentCreator = d.Appointments
		d.Appointments = gate
	})
	ctx := context.Background()
	w := e.walk(t, 2, "2026-10-20", "10:00 AM")

	type result struct {
		w   *Wizard
		err error
	}
	done := make(chan result, 1)
	go func() {
		got, err := e.svc.Submit(ctx, w.ID)
		done <- result{got, err}
	}()

	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never reached the appointment writer")
	}

	_, err := e.svc.Back(ctx, w.ID)
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	_, err = e.svc.SetContact(ctx, w.ID, Contact{Name: "Someone Else", Email: "else@email.com", Phone: "555-0199"})
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	stored, err := e.svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, stored.Submitting)
	assert.Equal(t, StepDetails, stored.Step)

	close(gate.release)
	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.w.Submitted)
	assert.Equal(t, "Jane Smith", res.w.Contact.Name)
}

type adjustableClock struct {
	mu  sync.Mutex
	day time.Time
}

func (c *adjustableClock) Today() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

func (c *adjustableClock) set(day time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = day
}

func TestSubmitRejectsDateThatHasPassed(t *testing.T) {
	clock := &adjustableClock{day: today}
	e := newEnv(t, func(d *Deps) { d.Clock = clock })
	ctx := context.Background()
	w := e.walk(t, 2, "2026-10-20", "10:00 AM")

	clock.set(today.AddDate(0, 0, 6))
	failed, err := e.svc.Submit(ctx, w.ID)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.ErrorIs(t, err, catalog.ErrPastDate)
	require.NotNil(t, failed)
	assert.Equal(t, MsgDateExpired, failed.SubmitError)
	assert.False(t, failed.Submitting)

	all, err := e.appts.List(ctx, appointments.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	back, err := e.svc.Back(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, StepService, back.Step)
}
