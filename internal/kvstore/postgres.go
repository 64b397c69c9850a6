package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool used by the Postgres store.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresOpener stores each namespace in its own table, named after the
// namespace.
type PostgresOpener struct {
	pool Pool
}

// NewPostgres connects to the database at connString.
func NewPostgres(ctx context.Context, connString string) (*PostgresOpener, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresOpener{pool: pool}, nil
}

// Open creates the namespace table if needed.
func (o *PostgresOpener) Open(ctx context.Context, namespace string) (Store, error) {
	table := pgx.Identifier{namespace}.Sanitize()
	if _, err := o.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS `+table+` (key VARCHAR(255) PRIMARY KEY, value TEXT)`,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: create table %s", namespace)
	}
	return &postgresStore{pool: o.pool, table: table, namespace: namespace}, nil
}

// Close closes the pool.
func (o *PostgresOpener) Close() error {
	o.pool.Close()
	return nil
}

type postgresStore struct {
	pool      Pool
	table     string
	namespace string
}

func (s *postgresStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		defaultNamespace+":"+key, string(data),
	)
	return eris.Wrapf(err, "postgres: set %s/%s", s.namespace, key)
}

func (s *postgresStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM `+s.table+` WHERE key = $1`, defaultNamespace+":"+key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get %s/%s", s.namespace, key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s/%s", s.namespace, key)
	}
	return decode([]byte(data))
}

func (s *postgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table)
	return eris.Wrapf(err, "postgres: clear %s", s.namespace)
}

// Close is a no-op: the pool is shared by every namespace.
func (s *postgresStore) Close() error { return nil }
