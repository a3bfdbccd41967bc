// Command admin is the operator CLI: create admin accounts, activate users,
// list accounts, delete accounts and purge stale unverified registrations
// without going through the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required for admin commands")
	}
	users := repository.NewUserRepository(pool)

	switch os.Args[1] {
	case "create-admin":
		err = createAdmin(ctx, users, cfg, os.Args[2:])
	case "activate":
		err = activate(ctx, users, os.Args[2:])
	case "list":
		err = list(ctx, users, os.Args[2:])
	case "delete":
		err = deleteUser(ctx, users, os.Args[2:])
	case "cleanup":
		err = cleanup(ctx, users, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

commands:
  create-admin -name NAME -email EMAIL -password PASSWORD -birth-date YYYY-MM-DD
  activate     -email EMAIL
  list         [-page N] [-limit N]
  delete       -email EMAIL
  cleanup      [-older-than DURATION]`)
}

func createAdmin(ctx context.Context, users repository.UserRepository, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (min 8 chars)")
	birthDate := fs.String("birth-date", "", "birth date YYYY-MM-DD")
	_ = fs.Parse(args)

	if *name == "" || *email == "" || len(*password) < 8 || *birthDate == "" {
		return fmt.Errorf("name, email, birth-date and a password of at least 8 chars are required")
	}
	parsed, err := time.Parse("2006-01-02", *birthDate)
	if err != nil {
		return fmt.Errorf("invalid birth date: %w", err)
	}

	// Existing account gets promoted and activated instead of duplicated.
	if existing, err := users.GetByEmail(ctx, *email); err == nil {
		existing.Role = domain.RoleAdmin
		existing.EmailVerified = true
		existing.Blocked = false
		if err := users.Update(ctx, existing); err != nil {
			return err
		}
		fmt.Printf("existing user %s promoted to ADMIN\n", *email)
		return nil
	}

	hash, err := auth.HashPassword(*password, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	admin := &domain.User{
		FullName:      *name,
		BirthDate:     parsed,
		Email:         *email,
		PasswordHash:  hash,
		Role:          domain.RoleAdmin,
		EmailVerified: true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	fmt.Printf("admin %s created (%s)\n", *email, admin.ID)
	return nil
}

func activate(ctx context.Context, users repository.UserRepository, args []string) error {
	fs := flag.NewFlagSet("activate", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	_ = fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("email is required")
	}

	user, err := users.GetByEmail(ctx, *email)
	if err != nil {
		return err
	}
	user.EmailVerified = true
	if err := users.Update(ctx, user); err != nil {
		return err
	}
	fmt.Printf("user %s activated\n", *email)
	return nil
}

func list(ctx context.Context, users repository.UserRepository, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 50, "page size")
	_ = fs.Parse(args)

	if *page < 1 {
		*page = 1
	}
	all, err := users.List(ctx, *limit, (*page-1)*(*limit))
	if err != nil {
		return err
	}
	total, err := users.Count(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tVERIFIED\tBLOCKED\tCREATED")
	for _, user := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n",
			user.ID, user.Email, user.Role, user.EmailVerified, user.Blocked,
			user.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Printf("%d of %d user(s)\n", len(all), total)
	return nil
}

func deleteUser(ctx context.Context, users repository.UserRepository, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	_ = fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("email is required")
	}

	user, err := users.GetByEmail(ctx, *email)
	if err != nil {
		return err
	}
	if err := users.DeleteByID(ctx, user.ID); err != nil {
		return err
	}
	fmt.Printf("user %s deleted\n", *email)
	return nil
}

func cleanup(ctx context.Context, users repository.UserRepository, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	olderThan := fs.Duration("older-than", 24*time.Hour, "delete unverified users older than this")
	_ = fs.Parse(args)

	deleted, err := users.DeleteUnverifiedBefore(ctx, time.Now().Add(-*olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d unverified user(s)\n", deleted)
	return nil
}
