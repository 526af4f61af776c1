package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, req *CreateRequest) (*Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
	// BookedSlots returns the slots held by non-cancelled appointments.
	BookedSlots(ctx context.Context, dentistID int64, date string) ([]string, error)
	// UpdateStatus moves a pending appointment to the given status and
	// returns the stored row.
	UpdateStatus(ctx context.Context, id string, to Status) (*Appointment, error)
	CountByStatus(ctx context.Context) (Counts, error)
}

// InMemoryRepository stores appointments in a map.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment
	now   func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*Appointment),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.DentistID == req.DentistID && a.Date == req.Date && a.TimeSlot == req.TimeSlot && a.Status != StatusCancelled {
			return nil, ErrSlotTaken
		}
	}

	appt := &Appointment{
		ID:           uuid.New().String(),
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		DentistID:    req.DentistID,
		DentistName:  req.DentistName,
		Date:         req.Date,
		TimeSlot:     req.TimeSlot,
		Service:      req.Service,
		Notes:        req.Notes,
		Status:       StatusPending,
		CreatedAt:    r.now(),
	}
	r.items[appt.ID] = appt
	out := *appt
	return &out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	r.mu.RLock()
	out := make([]Appointment, 0, len(r.items))
	for _, a := range r.items {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, *a)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) BookedSlots(ctx context.Context, dentistID int64, date string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, a := range r.items {
		if a.DentistID == dentistID && a.Date == date && a.Status != StatusCancelled {
			out = append(out, a.TimeSlot)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(a.Status, to) {
		return nil, ErrInvalidTransition
	}
	a.Status = to
	out := *a
	return &out, nil
}

func (r *InMemoryRepository) CountByStatus(ctx context.Context) (Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var c Counts
	for _, a := range r.items {
		c.add(a.Status, 1)
	}
	return c, nil
}
