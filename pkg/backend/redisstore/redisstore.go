// Package redisstore persists settings in Redis, one hash per version plus a
// set indexing the versions that hold data.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	settings "github.com/goliatone/go-settings"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "settings"

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Backend stores values in <prefix>:v:<version> hashes and records versions in
// the <prefix>:versions set. Each handle pins one pooled connection.
type Backend struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

var _ settings.Backend = (*Backend)(nil)

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: connection failed: %w", err)
	}
	logger.Debug().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to redis settings store")

	b := New(client, cfg.Prefix)
	b.owned = true
	return b, nil
}

// New wraps an existing client. An empty prefix selects DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{client: client, prefix: prefix}
}

// Shutdown closes the client when it was created by Dial.
func (b *Backend) Shutdown() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}

type conn struct {
	*redis.Conn
	closed bool
}

func (b *Backend) Open(ctx context.Context) (settings.Handle, error) {
	client, ok := b.client.(*redis.Client)
	if !ok {
		return nil, errors.New("redisstore: handles need a single-node client")
	}
	c := client.Conn()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redisstore: acquire connection: %w", err)
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
	value, err := c.HGet(ctx, b.versionKey(version), name).Result()
	if errors.Is(err, redis.Nil) {
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
	_, err = c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.versionKey(version), name, value)
		pipe.SAdd(ctx, b.indexKey(), version.String())
		return nil
	})
	return err
}

func (b *Backend) ListVersions(ctx context.Context, h settings.Handle) ([]settings.Version, error) {
	c, err := connOf(h)
	if err != nil {
		return nil, err
	}
	members, err := c.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	versions := make([]settings.Version, 0, len(members))
	for _, raw := range members {
		version, err := settings.ParseVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("redisstore: stored version %q: %w", raw, err)
		}
		versions = append(versions, version)
	}
	return settings.SortVersions(versions), nil
}

func (b *Backend) DeleteForVersion(ctx context.Context, h settings.Handle, version settings.Version) error {
	c, err := connOf(h)
	if err != nil {
		return err
	}
	_, err = c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.versionKey(version))
		pipe.SRem(ctx, b.indexKey(), version.String())
		return nil
	})
	return err
}

func (b *Backend) versionKey(version settings.Version) string {
	return b.prefix + ":v:" + version.String()
}

func (b *Backend) indexKey() string {
	return b.prefix + ":versions"
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
