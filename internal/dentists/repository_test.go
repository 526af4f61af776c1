package dentists

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepositoryListSorted(t *testing.T) {
	repo := NewInMemoryRepository(Seed[2], Seed[0], Seed[1])
	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Dr. Aisha Patel", list[0].Name)
	assert.Equal(t, "LC", list[2].Avatar)

	_, err = repo.Get(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgresRepositoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "name", "specialty", "avatar"}).
		AddRow(int64(1), "Dr. Aisha Patel", "General & Cosmetics", "AP").
		AddRow(int64(2), "Dr. James Morrison", "Orthodontics", "JM")
	mock.ExpectQuery("SELECT id, name, specialty, avatar FROM dentists ORDER BY id").WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	list, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Dentist{Seed[0], Seed[1]}, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM dentists WHERE id").WithArgs(int64(9)).WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	_, err = repo.Get(context.Background(), 9)
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
