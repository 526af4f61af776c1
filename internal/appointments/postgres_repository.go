package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/platform/pgdb"
)

const selectColumns = `id, patient, patient_email, patient_phone, dentist_id, dentist, date, time_slot, service, notes, status, created_at`

// PostgresRepository stores appointments in the appointments table.
type PostgresRepository struct {
	db pgdb.DB
}

func NewPostgresRepository(db pgdb.DB) *PostgresRepository {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a pending row. The partial unique index on
// (dentist_id, date, time_slot) rejects a second live booking of the slot.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	day, _ := catalog.ParseDate(req.Date)

	query := `
		INSERT INTO appointments (id, patient, patient_email, patient_phone, dentist_id, dentist, date, time_slot, service, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + selectColumns
	row := r.db.QueryRow(ctx, query,
		uuid.New(),
		req.PatientName,
		req.PatientEmail,
		req.PatientPhone,
		req.DentistID,
		req.DentistName,
		day,
		req.TimeSlot,
		req.Service,
		req.Notes,
		string(StatusPending),
	)
	appt, err := scanAppointment(row)
	if err != nil {
		if pgdb.IsUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	appt, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM appointments WHERE id = $1`, uid))
	if err != nil {
		if pgdb.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) BookedSlots(ctx context.Context, dentistID int64, date string) ([]string, error) {
	day, err := catalog.ParseDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT time_slot FROM appointments
		WHERE dentist_id = $1 AND date = $2 AND status <> 'cancelled'
		ORDER BY time_slot
	`, dentistID, day)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// UpdateStatus only touches pending rows, so two admins resolving the same
// appointment cannot both succeed.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, to Status) (*Appointment, error) {
	if !CanTransition(StatusPending, to) {
		return nil, ErrInvalidTransition
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	appt, err := scanAppointment(r.db.QueryRow(ctx, `
		UPDATE appointments SET status = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+selectColumns, uid, string(to)))
	if err == nil {
		return appt, nil
	}
	if !pgdb.IsNoRows(err) {
		return nil, fmt.Errorf("appointments: update status: %w", err)
	}

	var current string
	if err := r.db.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, uid).Scan(&current); err != nil {
		if pgdb.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load status: %w", err)
	}
	return nil, ErrInvalidTransition
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (Counts, error) {
	var c Counts
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM appointments GROUP BY status`)
	if err != nil {
		return c, fmt.Errorf("appointments: count: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return c, fmt.Errorf("appointments: scan count: %w", err)
		}
		c.add(Status(status), int(n))
	}
	return c, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		id     uuid.UUID
		day    time.Time
		status string
	)
	if err := row.Scan(
		&id,
		&a.PatientName,
		&a.PatientEmail,
		&a.PatientPhone,
		&a.DentistID,
		&a.DentistName,
		&day,
		&a.TimeSlot,
		&a.Service,
		&a.Notes,
		&status,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.ID = id.String()
	a.Date = catalog.FormatDate(day)
	a.Status = Status(status)
	return &a, nil
}
