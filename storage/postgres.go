package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/lib/pq"
	"github.com/ruteri/storage-adapters/interfaces"
)

const defaultPostgresTable = "storage_blobs"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresBackend stores payloads as bytea rows in a single table.
type PostgresBackend struct {
	db    *sql.DB
	table string
	log   *slog.Logger
}

var (
	_ interfaces.StatsBackend = (*PostgresBackend)(nil)
	_ interfaces.RangeBackend = (*PostgresBackend)(nil)
	_ interfaces.InitBackend  = (*PostgresBackend)(nil)
)

// NewPostgresBackend opens a connection pool for databaseURL. The table is
// created by Init.
func NewPostgresBackend(databaseURL, table string, log *slog.Logger) (*PostgresBackend, error) {
	if table == "" {
		table = defaultPostgresTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", interfaces.ErrInvalidLocationURI, table)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresBackend{
		db:    db,
		table: pq.QuoteIdentifier(table),
		log:   log,
	}, nil
}

// Init verifies the connection and creates the blob table.
func (b *PostgresBackend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping database: %v", interfaces.ErrBackendUnavailable, err)
	}

	_, err := b.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, b.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", b.table, err)
	}
	return nil
}

// Put inserts or replaces the row for key. Without Overwrite an existing row
// is left untouched and ErrKeyExists is returned.
func (b *PostgresBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	query := fmt.Sprintf(`INSERT INTO %s (key, data, content_type) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`, b.table)
	if opts.Overwrite {
		query = fmt.Sprintf(`INSERT INTO %s (key, data, content_type) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, content_type = EXCLUDED.content_type, updated_at = now()`, b.table)
	}

	res, err := b.db.ExecContext(ctx, query, key, data, opts.Type)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", fmt.Errorf("%w: %s", interfaces.ErrKeyExists, key)
	}

	b.log.Debug("Stored content in Postgres",
		slog.String("key", key),
		slog.Int("size", len(data)))

	return key, nil
}

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE key = $1`, b.table), key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	return data, nil
}

// GetBytes selects [start, end) with substring, so only the range leaves the
// database. An end at or below zero reads to the end of the payload.
func (b *PostgresBackend) GetBytes(ctx context.Context, key string, start, end int64) ([]byte, error) {
	if start < 0 {
		start = 0
	}

	var (
		row *sql.Row
		// substring positions are 1-based
		from = start + 1
	)
	switch {
	case end <= 0:
		row = b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT substring(data from $2) FROM %s WHERE key = $1`, b.table), key, from)
	case end <= start:
		return []byte{}, nil
	default:
		row = b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT substring(data from $2 for $3) FROM %s WHERE key = $1`, b.table), key, from, end-start)
	}

	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch range of %s: %w", key, err)
	}
	return data, nil
}

// Del deletes the row and reports whether one existed.
func (b *PostgresBackend) Del(ctx context.Context, key string) (bool, error) {
	res, err := b.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, b.table), key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return n > 0, nil
}

func (b *PostgresBackend) Stats(ctx context.Context, key string) (interfaces.ObjectStats, error) {
	var st interfaces.ObjectStats
	err := b.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT octet_length(data), created_at, updated_at FROM %s WHERE key = $1`, b.table), key).
		Scan(&st.Size, &st.CreatedAt, &st.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ObjectStats{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return interfaces.ObjectStats{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return st, nil
}

// Available pings the database.
func (b *PostgresBackend) Available(ctx context.Context) bool {
	if err := b.db.PingContext(ctx); err != nil {
		b.log.Debug("Postgres backend unavailable", "err", err)
		return false
	}
	return true
}

func (b *PostgresBackend) TypeName() string { return "storage.postgres" }

// Close closes the connection pool.
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
