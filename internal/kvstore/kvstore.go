// Package kvstore persists published features for point lookups by code.
// Entries use the Keyv layout: keys are prefixed with their Keyv namespace
// and values are wrapped as {"value":...,"expires":null}, so stores written
// here can be read by Keyv clients.
package kvstore

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contours-admin/internal/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = eris.New("kvstore: key not found")

// Store is one key-value namespace, e.g. the communes at 1000 m.
type Store interface {
	// Set stores value under key. An existing value is replaced.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Clear removes every entry of the namespace.
	Clear(ctx context.Context) error
	Close() error
}

// Opener opens namespaces of one backend.
type Opener interface {
	Open(ctx context.Context, namespace string) (Store, error)
	Close() error
}

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// defaultNamespace is the Keyv namespace of stores opened without one.
const defaultNamespace = "keyv"

// New returns the opener configured by cfg.
func New(ctx context.Context, cfg config.StoreConfig) (Opener, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(cfg.Dir), nil
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	case DriverRedis:
		return NewRedis(ctx, cfg.RedisAddr)
	}
	return nil, eris.Errorf("kvstore: unknown driver %q", cfg.Driver)
}

type envelope struct {
	Value   json.RawMessage `json:"value"`
	Expires *int64          `json:"expires"`
}

func encode(value json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(envelope{Value: value})
	if err != nil {
		return nil, eris.Wrap(err, "kvstore: encode")
	}
	return data, nil
}

func decode(data []byte) (json.RawMessage, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, eris.Wrap(err, "kvstore: decode")
	}
	return e.Value, nil
}
