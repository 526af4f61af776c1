package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/platform/pgdb"
)

// Repository persists blocked slots.
type Repository interface {
	ListForDentist(ctx context.Context, dentistID int64) ([]BlockedSlot, error)
	// ListForDay returns the blocked slot labels for one weekday.
	ListForDay(ctx context.Context, dentistID int64, day string) ([]string, error)
	Find(ctx context.Context, cell Cell) (*BlockedSlot, error)
	Create(ctx context.Context, cell Cell) (*BlockedSlot, error)
	Delete(ctx context.Context, cell Cell) error
}

// InMemoryRepository keeps blocked slots in a map keyed by cell.
type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[Cell]BlockedSlot
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: make(map[Cell]BlockedSlot)}
}

func (r *InMemoryRepository) ListForDentist(ctx context.Context, dentistID int64) ([]BlockedSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []BlockedSlot
	for c, row := range r.rows {
		if c.DentistID == dentistID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) ListForDay(ctx context.Context, dentistID int64, day string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for c := range r.rows {
		if c.DentistID == dentistID && c.Day == day {
			out = append(out, c.Slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return catalog.SlotIndex(out[i]) < catalog.SlotIndex(out[j]) })
	return out, nil
}

func (r *InMemoryRepository) Find(ctx context.Context, cell Cell) (*BlockedSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[cell]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

// Create is idempotent: an existing row for the cell is returned as is.
func (r *InMemoryRepository) Create(ctx context.Context, cell Cell) (*BlockedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[cell]; ok {
		return &row, nil
	}
	r.nextID++
	row := BlockedSlot{ID: r.nextID, DentistID: cell.DentistID, Day: cell.Day, Slot: cell.Slot, CreatedAt: time.Now().UTC()}
	r.rows[cell] = row
	return &row, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, cell Cell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[cell]; !ok {
		return ErrNotFound
	}
	delete(r.rows, cell)
	return nil
}

// PostgresRepository stores blocked slots in the blocked_slots table, which
// has a unique key on (dentist_id, day, time_slot).
type PostgresRepository struct {
	db pgdb.DB
}

func NewPostgresRepository(db pgdb.DB) *PostgresRepository {
	if db == nil {
		panic("schedule: db required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListForDentist(ctx context.Context, dentistID int64) ([]BlockedSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, dentist_id, day, time_slot, created_at
		FROM blocked_slots
		WHERE dentist_id = $1
		ORDER BY id
	`, dentistID)
	if err != nil {
		return nil, fmt.Errorf("schedule: list: %w", err)
	}
	defer rows.Close()

	var out []BlockedSlot
	for rows.Next() {
		var b BlockedSlot
		if err := rows.Scan(&b.ID, &b.DentistID, &b.Day, &b.Slot, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("schedule: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListForDay(ctx context.Context, dentistID int64, day string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT time_slot FROM blocked_slots
		WHERE dentist_id = $1 AND day = $2
	`, dentistID, day)
	if err != nil {
		return nil, fmt.Errorf("schedule: list day: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("schedule: scan slot: %w", err)
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Find(ctx context.Context, cell Cell) (*BlockedSlot, error) {
	var b BlockedSlot
	err := r.db.QueryRow(ctx, `
		SELECT id, dentist_id, day, time_slot, created_at
		FROM blocked_slots
		WHERE dentist_id = $1 AND day = $2 AND time_slot = $3
	`, cell.DentistID, cell.Day, cell.Slot).Scan(&b.ID, &b.DentistID, &b.Day, &b.Slot, &b.CreatedAt)
	if err != nil {
		if pgdb.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("schedule: find: %w", err)
	}
	return &b, nil
}

func (r *PostgresRepository) Create(ctx context.Context, cell Cell) (*BlockedSlot, error) {
	var b BlockedSlot
	err := r.db.QueryRow(ctx, `
		INSERT INTO blocked_slots (dentist_id, day, time_slot)
		VALUES ($1, $2, $3)
		ON CONFLICT (dentist_id, day, time_slot) DO UPDATE SET day = EXCLUDED.day
		RETURNING id, dentist_id, day, time_slot, created_at
	`, cell.DentistID, cell.Day, cell.Slot).Scan(&b.ID, &b.DentistID, &b.Day, &b.Slot, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("schedule: insert: %w", err)
	}
	return &b, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, cell Cell) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM blocked_slots
		WHERE dentist_id = $1 AND day = $2 AND time_slot = $3
	`, cell.DentistID, cell.Day, cell.Slot)
	if err != nil {
		return fmt.Errorf("schedule: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
