// Command migrate applies or inspects the embedded schema migrations.
//
//	migrate up | down | status
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/todo-service/internal/config"
	"github.com/iliyamo/todo-service/internal/database"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}
	var apply func(context.Context, *sql.DB) error
	switch cmd {
	case "up":
		apply = database.Migrate
	case "down":
		apply = database.Rollback
	case "status":
		apply = database.MigrationStatus
	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", cmd)
	}

	_ = godotenv.Load()
	cfg, err := config.LoadDB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Password: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	return apply(ctx, db)
}
