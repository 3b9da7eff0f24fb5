package db

import (
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var fs embed.FS

var ErrNoDSN = errors.New("DATABASE_URL is not set")

// Open prepares the pool without dialling. Only a missing or malformed DSN
// fails here; reachability is tracked by Health.
func Open(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func newMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	d, err := mysql.WithInstance(db.DB, &mysql.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrate driver: %w", err)
	}
	s, err := iofs.New(fs, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	return migrate.NewWithInstance("iofs", s, "mysql", d)
}

// Migrate applies every pending up migration.
func Migrate(db *sqlx.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Reset drops every table in the configured database, including ones the
// migrations do not know about.
func Reset(db *sqlx.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Drop(); err != nil {
		return fmt.Errorf("migrate drop: %w", err)
	}
	return nil
}
