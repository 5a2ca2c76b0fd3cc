package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/atelierhq/atelier/internal/adapter/postgres"
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/domain/user"
	"github.com/atelierhq/atelier/internal/service"
)

// runAdmin dispatches admin subcommands (create-user, create-key).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "create-key":
		return runAdminCreateKey(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: atelier admin <command> [options]

Commands:
  create-user   Create a new user
  create-key    Mint an API key for a user
  help          Show this help message

Examples:
  atelier admin create-user --email ada@example.com --name "Ada"
  atelier admin create-key --user <user-id>
`)
}

func loadAdminDeps() (*service.AuthService, *postgres.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	authSvc := service.NewAuthService(store, cfg.Auth.BcryptCost)

	cleanup := func() {
		pool.Close()
	}
	return authSvc, store, cleanup, nil
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "user email address (required)")
	name := fs.String("name", "", "user display name (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return fmt.Errorf("--email is required")
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	_, store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	u, err := store.CreateUser(context.Background(), &user.User{Email: *email, Name: *name})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%s)\n", u.Email, u.ID)
	return nil
}

func runAdminCreateKey(args []string) error {
	fs := flag.NewFlagSet("create-key", flag.ContinueOnError)
	userID := fs.String("user", "", "user id to mint the key for (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID == "" {
		return fmt.Errorf("--user is required")
	}

	authSvc, store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if _, err := store.GetUser(ctx, *userID); err != nil {
		return fmt.Errorf("look up user: %w", err)
	}

	plaintext, key, err := authSvc.GenerateAPIKey(ctx, *userID)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	// The plaintext is shown exactly once; only its hash persists.
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintf(os.Stderr, "API key created (prefix %s). Store it now; it cannot be shown again.\n", key.Prefix)
	}
	fmt.Println(plaintext)
	return nil
}
