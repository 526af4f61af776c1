package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dentacare/clinic-portal/cmd/mainconfig"
	"github.com/dentacare/clinic-portal/internal/auth"
	"github.com/dentacare/clinic-portal/internal/config"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// admin-user creates an account, or resets its password, and grants it the
// admin role.
//
//	admin-user -email admin@dentacare.com -password '...'
func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password (or ADMIN_PASSWORD)")
	grant := flag.Bool("admin", true, "grant the admin role")
	flag.Parse()

	mainconfig.LoadEnv(nil)
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if err := run(cfg.DatabaseURL, *email, *password, *grant, logger); err != nil {
		logger.Error("admin-user failed", "error", err)
		os.Exit(1)
	}
}

func run(databaseURL, email, password string, grant bool, logger *logging.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("-email is required")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return provision(ctx, auth.NewUserStore(db), email, hash, grant, logger)
}

// userWriter is the part of auth.UserStore this command needs.
type userWriter interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*auth.User, error)
	AssignRole(ctx context.Context, userID, role string) error
}

func provision(ctx context.Context, users userWriter, email, hash string, grant bool, logger *logging.Logger) error {
	user, err := users.CreateUser(ctx, email, hash)
	if err != nil {
		return err
	}
	if grant {
		if err := users.AssignRole(ctx, user.ID, auth.RoleAdmin); err != nil {
			return err
		}
	}
	logger.Info("account ready", "user_id", user.ID, "email", user.Email, "admin", grant)
	return nil
}
