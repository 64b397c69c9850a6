package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteOpener stores each namespace in <dir>/<namespace>.sqlite.
type SQLiteOpener struct {
	dir string
}

// NewSQLite returns an opener writing under dir.
func NewSQLite(dir string) *SQLiteOpener {
	return &SQLiteOpener{dir: dir}
}

// Path returns the database file of a namespace.
func (o *SQLiteOpener) Path(namespace string) string {
	return filepath.Join(o.dir, namespace+".sqlite")
}

const sqliteMigration = `CREATE TABLE IF NOT EXISTS keyv (key VARCHAR(255) PRIMARY KEY, value TEXT)`

// Open opens or creates the database of namespace.
func (o *SQLiteOpener) Open(ctx context.Context, namespace string) (Store, error) {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "sqlite: create dir %s", o.dir)
	}

	db, err := sql.Open("sqlite", o.Path(namespace))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; concurrent Set calls queue on the pool.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		sqliteMigration,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", stmt)
		}
	}
	return &sqliteStore{db: db}, nil
}

// Close implements Opener. Databases are closed with their Store.
func (o *SQLiteOpener) Close() error { return nil }

type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO keyv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		defaultNamespace+":"+key, string(data),
	)
	return eris.Wrapf(err, "sqlite: set %s", key)
}

func (s *sqliteStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM keyv WHERE key = ?`, defaultNamespace+":"+key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", key)
	}
	return decode([]byte(data))
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM keyv`)
	return eris.Wrap(err, "sqlite: clear")
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
