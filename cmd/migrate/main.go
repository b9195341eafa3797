package main

import (
	"errors"
	"flag"
	"log"

	"storefront/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func main() {
	var migrationsPath string
	var down bool
	flag.StringVar(&migrationsPath, "migrations-path", "migrations", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back one migration instead of migrating up")
	flag.Parse()

	cfg := config.Load()

	m, err := migrate.New("file://"+migrationsPath, cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}
	defer m.Close()

	if down {
		if err := m.Steps(-1); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Println("Rolled back one migration")
		return
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No migrations to apply")
			return
		}
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("Migrations applied successfully")
}
