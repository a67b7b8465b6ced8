// Package sqlstore persists settings in a SQL table keyed by (version, name).
// The bundled Open helper uses the pure Go modernc.org/sqlite driver; New
// accepts any *sql.DB whose dialect understands the statements below.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	settings "github.com/goliatone/go-settings"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "settings"

// Config defines SQLite operational parameters for Open.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
	Table        string
}

// DefaultConfig returns the configuration used by Open when none is given.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		Table:        DefaultTable,
	}
}

// Open creates a SQLite pool at path with WAL journaling and the settings
// table in place.
func Open(ctx context.Context, path string, cfg Config) (*Backend, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultConfig().BusyTimeout
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping failed: %w", err)
	}
	b, err := New(ctx, db, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// Backend stores one row per (version, name). Each handle is a dedicated
// connection from the pool.
type Backend struct {
	db    *sql.DB
	table string
	owned bool
}

var _ settings.Backend = (*Backend)(nil)

// New wraps db and creates table when missing. An empty table name selects
// DefaultTable.
func New(ctx context.Context, db *sql.DB, table string) (*Backend, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is required")
	}
	if table == "" {
		table = DefaultTable
	}
	b := &Backend{db: db, table: table}
	if err := b.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Shutdown closes the pool when it was created by Open.
func (b *Backend) Shutdown() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	version TEXT NOT NULL,
	name    TEXT NOT NULL,
	value   TEXT NOT NULL,
	PRIMARY KEY (version, name)
)`, b.table)
	if _, err := b.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlstore: create table: %w", err)
	}
	return nil
}

type conn struct {
	*sql.Conn
	closed bool
}

func (b *Backend) Open(ctx context.Context) (settings.Handle, error) {
	c, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: acquire connection: %w", err)
	}
	return &conn{Conn: c}, nil
}

func (b *Backend) Close(_ context.Context, h settings.Handle) error {
	c, ok := h.(*conn)
	if !ok || c == nil {
		return settings.ErrInvalidHandle
	}
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Conn.Close()
}

func (b *Backend) GetValue(ctx context.Context, h settings.Handle, name string, version settings.Version) (string, bool, error) {
	c, err := connOf(h)
	if err != nil {
		return "", false, err
	}
	query := fmt.Sprintf(`SELECT value FROM %q WHERE version = ? AND name = ?`, b.table)
	var value string
	err = c.QueryRowContext(ctx, query, version.String(), name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *Backend) SetValue(ctx context.Context, h settings.Handle, name string, version settings.Version, value string) error {
	c, err := connOf(h)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %q (version, name, value) VALUES (?, ?, ?)
ON CONFLICT (version, name) DO UPDATE SET value = excluded.value`, b.table)
	_, err = c.ExecContext(ctx, stmt, version.String(), name, value)
	return err
}

func (b *Backend) ListVersions(ctx context.Context, h settings.Handle) ([]settings.Version, error) {
	c, err := connOf(h)
	if err != nil {
		return nil, err
	}
	rows, err := c.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT version FROM %q`, b.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []settings.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		version, err := settings.ParseVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: stored version %q: %w", raw, err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settings.SortVersions(versions), nil
}

func (b *Backend) DeleteForVersion(ctx context.Context, h settings.Handle, version settings.Version) error {
	c, err := connOf(h)
	if err != nil {
		return err
	}
	_, err = c.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE version = ?`, b.table), version.String())
	return err
}

func connOf(h settings.Handle) (*conn, error) {
	c, ok := h.(*conn)
	if !ok || c == nil {
		return nil, settings.ErrInvalidHandle
	}
	if c.closed {
		return nil, settings.ErrClosedHandle
	}
	return c, nil
}
