package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	action := flag.String("action", "up", "Migration action: up, down, status, force")
	steps := flag.Int("steps", 1, "Migrations to roll back (down) or target version (force)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.PersistenceEnabled() {
		return errors.New("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// golang-migrate needs database/sql
	db, err := database.OpenSQL(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	dbName := database.DatabaseName(cfg.DatabaseURL)
	log.Printf("Connected to database %s\n", dbName)

	migrator, err := database.NewMigrator(db, dbName)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	switch *action {
	case "up":
		log.Println("Running migrations...")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Println("Migrations completed successfully")

	case "down":
		if *steps <= 0 {
			return fmt.Errorf("steps must be positive for down, got %d", *steps)
		}
		log.Printf("Rolling back %d migration(s)...\n", *steps)
		if err := migrator.Steps(-*steps); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Println("Rollback completed successfully")

	case "status":
		st, err := migrator.Status()
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		switch {
		case st.Dirty:
			log.Printf("Version %d of %d (DIRTY - migration incomplete)\n", st.Current, st.Latest)
		case st.Pending():
			log.Printf("Version %d of %d (%d pending)\n", st.Current, st.Latest, st.Latest-st.Current)
		default:
			log.Printf("Version %d (up to date)\n", st.Current)
		}

	case "force":
		log.Printf("Forcing migration to version %d...\n", *steps)
		if err := migrator.Force(*steps); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
		log.Println("Migration version forced successfully")

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, status, force)", *action)
	}

	return nil
}
