// Package postgres stores submissions, roles and urgency slots in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/lib/pq"
	"github.com/nhatthm/otelsql"
	slotleads "github.com/phbpx/slotleads"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

//go:embed migrations
var migrations embed.FS

// Config locates the slotleads database and sizes its pool.
type Config struct {
	User         string
	Password     string
	Host         string
	Name         string
	MaxIdleConns int
	MaxOpenConns int
	DisableTLS   bool
}

// URL renders cfg as a lib/pq connection URL. Sessions run in UTC so stored
// instants read back unshifted.
func (cfg Config) URL() string {
	q := url.Values{
		"sslmode":  {"require"},
		"timezone": {"utc"},
	}
	if cfg.DisableTLS {
		q.Set("sslmode", "disable")
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open returns a pool whose queries are traced and whose stats are recorded.
// It does not dial; use StatusCheck for that.
func Open(cfg Config) (*sql.DB, error) {
	driver, err := otelsql.Register("postgres",
		otelsql.AllowRoot(),
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsClose(),
		otelsql.TraceRowsAffected(),
		otelsql.WithDatabaseName(cfg.Name),
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("registering traced driver: %w", err)
	}

	db, err := sql.Open(driver, cfg.URL())
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := otelsql.RecordStats(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("recording pool stats: %w", err)
	}
	return db, nil
}

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const checkViolation = "23514"

// mapErr turns constraint violations into domain errors.
func mapErr(err error) error {
	var pqerr *pq.Error
	if errors.As(err, &pqerr) && pqerr.Code == checkViolation {
		return fmt.Errorf("%w: %s", slotleads.ErrInvalidInput, pqerr.Constraint)
	}
	return err
}

// maxPingBackoff caps the wait between failed pings.
const maxPingBackoff = time.Second

// StatusCheck waits for db to answer, then reads the slot table so a reachable
// server without the schema still fails.
func StatusCheck(ctx context.Context, db *sql.DB) error {
	if err := waitReady(ctx, db); err != nil {
		return err
	}

	var n int
	return db.QueryRowContext(ctx, `SELECT count(*) FROM urgency_slots`).Scan(&n)
}

// waitReady pings db with a doubling backoff until it answers or ctx ends.
func waitReady(ctx context.Context, db *sql.DB) error {
	backoff := 100 * time.Millisecond
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("waiting for database: %w (last ping: %v)", ctx.Err(), err)
		case <-timer.C:
		}

		if backoff *= 2; backoff > maxPingBackoff {
			backoff = maxPingBackoff
		}
	}
}

// Migrate applies the embedded migrations and returns the resulting schema
// version. A schema left dirty by an interrupted run is reported as an error.
func Migrate(ctx context.Context, db *sql.DB) (uint, error) {
	if err := waitReady(ctx, db); err != nil {
		return 0, err
	}

	source, err := httpfs.New(http.FS(migrations), "migrations")
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}

	target, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("preparing migration target: %w", err)
	}

	m, err := migrate.NewWithInstance("embedded", source, "slotleads", target)
	if err != nil {
		return 0, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
