package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/md-rashed-zaman/clinicdesk/libs/config"
	"github.com/md-rashed-zaman/clinicdesk/libs/runtime"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/migrations"
)

// Usage: migrate [up | down | force <version>]
func main() {
	logger := runtime.NewLogger("appointment-migrate", config.String("LOG_LEVEL", "info"))
	fail := func(msg string, err error) {
		logger.Error(msg, "err", err)
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		fail("load .env", err)
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		fail("config", err)
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		fail("open db", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		fail("ping db", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		fail("db driver", err)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		fail("source driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		fail("create migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "force":
		if len(os.Args) < 3 {
			fail("force", errors.New("version is required"))
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fail("invalid version", err)
		}
		if err := m.Force(version); err != nil {
			fail("force version", err)
		}
		logger.Info("forced migration version", "version", version)
	case "down":
		if err := m.Steps(-1); err != nil {
			fail("migrate down", err)
		}
		logger.Info("rolled back one migration")
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fail("migrate up", err)
		}
		logger.Info("migrations complete")
	default:
		fail("usage", errors.New("expected up, down or force <version>"))
	}
}
