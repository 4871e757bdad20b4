// Command manage runs one-off administrative tasks against the database.
//
// Usage:
//
//	manage migrate
//	manage createsuperuser -email admin@example.com -password s3cret [-name Admin]
//
// Settings come from the same environment (and .env file) as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/model"
	sqliteRepo "github.com/sakif/recipe-api/internal/repository/sqlite"
	"github.com/sakif/recipe-api/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("manage failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: manage <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  migrate           apply pending database migrations")
	fmt.Fprintln(w, "  createsuperuser   create a staff superuser account")
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		usage(out)
		return errors.New("no command given")
	}

	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	switch args[0] {
	case "migrate":
		db, err := openDB(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(out, "database %s is up to date\n", cfg.DBPath)
		return nil

	case "createsuperuser":
		return createSuperuser(ctx, cfg, args[1:], out, logger)

	default:
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// openDB opens (and thereby migrates) the database.
func openDB(ctx context.Context, path string) (*sqliteRepo.DB, error) {
	if path != sqliteRepo.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return sqliteRepo.New(ctx, path)
}

func createSuperuser(ctx context.Context, cfg *config.Config, args []string, out io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "account email (required)")
	password := fs.String("password", "", "account password; empty creates an account that cannot log in with a password")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fs.Usage()
		return errors.New("-email is required")
	}

	db, err := openDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Tokens are never issued here, so any valid secret will do.
	secret := cfg.JWTSecret
	if len(secret) < 16 {
		secret = "manage-command-unused-secret"
	}
	tokens, err := auth.NewTokenService(secret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	users := service.NewUserService(db, tokens, auth.NewPasswordService(), logger)
	user, err := users.CreateSuperuser(ctx, *email, *password, model.UserFields{Name: *name})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && !appErr.Fields.Empty() {
			for field, msgs := range appErr.Fields {
				for _, m := range msgs {
					fmt.Fprintf(out, "%s: %s\n", field, m)
				}
			}
		}
		return err
	}

	fmt.Fprintf(out, "superuser %s created (id %d)\n", user.Email, user.ID)
	return nil
}
