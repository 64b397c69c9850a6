package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisOpener stores namespaces in one Redis database, with keys
// "<namespace>:<code>" and the set "namespace:<namespace>" listing them.
type RedisOpener struct {
	rdb *redis.Client
}

// NewRedis connects to the Redis server at addr.
func NewRedis(ctx context.Context, addr string) (*RedisOpener, error) {
	if addr == "" {
		return nil, eris.New("redis: address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     16,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisOpener{rdb: rdb}, nil
}

// Open implements Opener.
func (o *RedisOpener) Open(_ context.Context, namespace string) (Store, error) {
	return &redisStore{rdb: o.rdb, namespace: namespace}, nil
}

// Close closes the client.
func (o *RedisOpener) Close() error {
	return eris.Wrap(o.rdb.Close(), "redis: close")
}

type redisStore struct {
	rdb       *redis.Client
	namespace string
}

func (s *redisStore) key(code string) string {
	return s.namespace + ":" + code
}

func (s *redisStore) setKey() string {
	return "namespace:" + s.namespace
}

func (s *redisStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(key), data, 0)
		p.SAdd(ctx, s.setKey(), s.key(key))
		return nil
	})
	return eris.Wrapf(err, "redis: set %s", s.key(key))
}

func (s *redisStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, eris.Wrapf(ErrNotFound, "redis: get %s", s.key(key))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get %s", s.key(key))
	}
	return decode(data)
}

func (s *redisStore) Clear(ctx context.Context) error {
	keys, err := s.rdb.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return eris.Wrapf(err, "redis: list %s", s.namespace)
	}
	keys = append(keys, s.setKey())
	return eris.Wrapf(s.rdb.Del(ctx, keys...).Err(), "redis: clear %s", s.namespace)
}

// Close is a no-op: the client is shared by every namespace.
func (s *redisStore) Close() error { return nil }
