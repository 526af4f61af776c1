package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentacare/clinic-portal/internal/auth"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

type fakeUsers struct {
	created map[string]string
	roles   map[string][]string
}

func (f *fakeUsers) CreateUser(_ context.Context, email, hash string) (*auth.User, error) {
	if f.created == nil {
		f.created = map[string]string{}
	}
	f.created[email] = hash
	return &auth.User{ID: "user-" + email, Email: email, PasswordHash: hash}, nil
}

func (f *fakeUsers) AssignRole(_ context.Context, userID, role string) error {
	if f.roles == nil {
		f.roles = map[string][]string{}
	}
	f.roles[userID] = append(f.roles[userID], role)
	return nil
}

func TestProvisionGrantsAdmin(t *testing.T) {
	users := &fakeUsers{}
	hash, err := auth.HashPassword("admin123")
	require.NoError(t, err)

	require.NoError(t, provision(context.Background(), users, "admin@dentacare.com", hash, true, logging.Discard()))

	assert.Equal(t, hash, users.created["admin@dentacare.com"])
	assert.Equal(t, []string{auth.RoleAdmin}, users.roles["user-admin@dentacare.com"])
}

func TestProvisionWithoutGrant(t *testing.T) {
	users := &fakeUsers{}

	require.NoError(t, provision(context.Background(), users, "staff@dentacare.com", "hash", false, logging.Discard()))

	assert.Empty(t, users.roles)
}

func TestRunValidatesInput(t *testing.T) {
	logger := logging.Discard()

	assert.Error(t, run("postgres://localhost/dentacare", " ", "admin123", true, logger))
	assert.Error(t, run("", "admin@dentacare.com", "admin123", true, logger))
	assert.ErrorIs(t, run("postgres://localhost/dentacare", "admin@dentacare.com", "short", true, logger), auth.ErrWeakPassword)
}
