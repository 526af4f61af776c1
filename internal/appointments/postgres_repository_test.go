package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentColumns = []string{
	"id", "patient", "patient_email", "patient_phone", "dentist_id", "dentist",
	"date", "time_slot", "service", "notes", "status", "created_at",
}

func appointmentRow(id uuid.UUID, status string) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentColumns).AddRow(
		id, "Maya Lopez", "maya@example.com", "+1 555 0100", int64(3), "Dr. Lisa Chen",
		time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), "10:30 AM", "Teeth Cleaning", "", status,
		time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC),
	)
}

func TestPostgresCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "Maya Lopez", "maya@example.com", "+1 555 0100", int64(3), "Dr. Lisa Chen",
			time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), "10:30 AM", "Teeth Cleaning", "", "pending").
		WillReturnRows(appointmentRow(id, "pending"))

	repo := NewPostgresRepository(mock)
	appt, err := repo.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, id.String(), appt.ID)
	assert.Equal(t, "2026-10-19", appt.Date)
	assert.Equal(t, StatusPending, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateMapsUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO appointments").WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = NewPostgresRepository(mock).Create(context.Background(), validRequest())
	assert.True(t, errors.Is(err, ErrSlotTaken))
}

func TestPostgresUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE appointments SET status").WithArgs(id, "confirmed").
		WillReturnRows(appointmentRow(id, "confirmed"))

	appt, err := NewPostgresRepository(mock).UpdateStatus(context.Background(), id.String(), StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatusNotPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE appointments SET status").WithArgs(id, "cancelled").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("confirmed"))

	_, err = NewPostgresRepository(mock).UpdateStatus(context.Background(), id.String(), StatusCancelled)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatusMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE appointments SET status").WithArgs(id, "confirmed").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresRepository(mock).UpdateStatus(context.Background(), id.String(), StatusConfirmed)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = NewPostgresRepository(mock).UpdateStatus(context.Background(), id.String(), StatusPending)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "rejected before touching the database")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookedSlotsAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT time_slot FROM appointments").WithArgs(int64(3), day).
		WillReturnRows(pgxmock.NewRows([]string{"time_slot"}).AddRow("09:00 AM").AddRow("10:30 AM"))

	repo := NewPostgresRepository(mock)
	slots, err := repo.BookedSlots(context.Background(), 3, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00 AM", "10:30 AM"}, slots)

	id := uuid.New()
	mock.ExpectQuery(`FROM appointments WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("pending", 4).
		WillReturnRows(appointmentRow(id, "pending"))
	list, err := repo.List(context.Background(), ListFilter{Status: StatusPending, Limit: 4})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id.String(), list[0].ID)

	mock.ExpectQuery("SELECT status, count").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).AddRow("pending", int64(2)).AddRow("cancelled", int64(1)))
	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{Pending: 2, Cancelled: 1, Total: 3}, counts)

	require.NoError(t, mock.ExpectationsWereMet())
}
