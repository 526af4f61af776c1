package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStoreUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM users WHERE lower\\(email\\)").
		WithArgs("admin@dentacare.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u-1", "admin@dentacare.com", "$2a$hash", created))

	store := NewUserStore(db)
	u, err := store.UserByEmail(context.Background(), " admin@dentacare.com ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, created, u.CreatedAt)

	mock.ExpectQuery("FROM users WHERE id").WithArgs("u-2").WillReturnError(sql.ErrNoRows)
	_, err = store.UserByID(context.Background(), "u-2")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM user_roles").WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"roles"}).AddRow([]byte("{admin,editor}")))

	roles, err := NewUserStore(db).Roles(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "editor"}, roles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreCreateAndAssign(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewUserStore(db)
	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO users").WithArgs("new@dentacare.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u-9", "new@dentacare.com", "hash", now))
	mock.ExpectExec("INSERT INTO user_roles").WithArgs("u-9", RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := store.CreateUser(context.Background(), "new@dentacare.com", "hash")
	require.NoError(t, err)
	require.NoError(t, store.AssignRole(context.Background(), u.ID, RoleAdmin))
	require.NoError(t, mock.ExpectationsWereMet())
}
