// Package pg is the Postgres persistence layer for hosts, users,
// memberships and roles. All access goes through database/sql on the
// pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jschappet/heron/internal/host"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) ListHosts(ctx context.Context) ([]host.Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, slug, host_name, display_name, base_url, active
		from hosts
		order by host_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []host.Info
	for rows.Next() {
		var h host.Info
		if err := rows.Scan(&h.ID, &h.Slug, &h.HostName, &h.DisplayName, &h.BaseURL, &h.Active); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (s *Store) ActivateHost(ctx context.Context, id int64) error {
	return s.setHostActive(ctx, id, true)
}

func (s *Store) DeactivateHost(ctx context.Context, id int64) error {
	return s.setHostActive(ctx, id, false)
}

func (s *Store) setHostActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `update hosts set active=$2 where id=$1`, id, active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
