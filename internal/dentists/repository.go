package dentists

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dentacare/clinic-portal/internal/platform/pgdb"
)

// Repository reads the dentist roster.
type Repository interface {
	List(ctx context.Context) ([]Dentist, error)
	Get(ctx context.Context, id int64) (*Dentist, error)
}

// InMemoryRepository keeps dentists in a map. Used in tests and local runs
// without a database.
type InMemoryRepository struct {
	mu       sync.RWMutex
	dentists map[int64]Dentist
}

// NewInMemoryRepository returns a repository preloaded with the given rows.
func NewInMemoryRepository(seed ...Dentist) *InMemoryRepository {
	r := &InMemoryRepository{dentists: make(map[int64]Dentist, len(seed))}
	for _, d := range seed {
		r.dentists[d.ID] = d
	}
	return r
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Dentist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Dentist, 0, len(r.dentists))
	for _, d := range r.dentists {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id int64) (*Dentist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dentists[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// PostgresRepository reads dentists from the dentists table.
type PostgresRepository struct {
	db pgdb.DB
}

func NewPostgresRepository(db pgdb.DB) *PostgresRepository {
	if db == nil {
		panic("dentists: db required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Dentist, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, specialty, avatar FROM dentists ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("dentists: list: %w", err)
	}
	defer rows.Close()

	var out []Dentist
	for rows.Next() {
		var d Dentist
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.Avatar); err != nil {
			return nil, fmt.Errorf("dentists: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dentists: rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Dentist, error) {
	var d Dentist
	err := r.db.QueryRow(ctx, `SELECT id, name, specialty, avatar FROM dentists WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Specialty, &d.Avatar)
	if err != nil {
		if pgdb.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("dentists: get: %w", err)
	}
	return &d, nil
}
