// Package badgerstore persists settings in an embedded Badger database under
// keys of the form v/<version>/<name>.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	settings "github.com/goliatone/go-settings"
)

const keyPrefix = "v/"

// Backend stores each value as one Badger key. Handles are tokens; every
// operation runs in its own transaction.
type Backend struct {
	db    *badger.DB
	owned bool
}

var _ settings.Backend = (*Backend)(nil)

// Open opens (or creates) a Badger database in dir. An empty dir keeps the
// database in memory.
func Open(dir string) (*Backend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Backend{db: db, owned: true}, nil
}

// New wraps an already open database. Shutdown leaves it open.
func New(db *badger.DB) *Backend {
	return &Backend{db: db}
}

// Shutdown closes the database when it was opened by Open.
func (b *Backend) Shutdown() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

type session struct {
	closed atomic.Bool
}

func (b *Backend) Open(ctx context.Context) (settings.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.db.IsClosed() {
		return nil, errors.New("badgerstore: database is closed")
	}
	return &session{}, nil
}

func (b *Backend) Close(_ context.Context, h settings.Handle) error {
	s, ok := h.(*session)
	if !ok || s == nil {
		return settings.ErrInvalidHandle
	}
	s.closed.Store(true)
	return nil
}

func (b *Backend) GetValue(_ context.Context, h settings.Handle, name string, version settings.Version) (string, bool, error) {
	if _, err := sessionOf(h); err != nil {
		return "", false, err
	}
	var (
		value string
		found bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(valueKey(version, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			found = true
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (b *Backend) SetValue(_ context.Context, h settings.Handle, name string, version settings.Version, value string) error {
	if _, err := sessionOf(h); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(valueKey(version, name), []byte(value))
	})
}

func (b *Backend) ListVersions(_ context.Context, h settings.Handle) ([]settings.Version, error) {
	if _, err := sessionOf(h); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), keyPrefix)
			if idx := strings.IndexByte(rest, '/'); idx > 0 {
				seen[rest[:idx]] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	versions := make([]settings.Version, 0, len(seen))
	for raw := range seen {
		version, err := settings.ParseVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("badgerstore: stored version %q: %w", raw, err)
		}
		versions = append(versions, version)
	}
	return settings.SortVersions(versions), nil
}

func (b *Backend) DeleteForVersion(_ context.Context, h settings.Handle, version settings.Version) error {
	if _, err := sessionOf(h); err != nil {
		return err
	}
	prefix := versionPrefix(version)
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func versionPrefix(version settings.Version) []byte {
	return []byte(keyPrefix + version.String() + "/")
}

func valueKey(version settings.Version, name string) []byte {
	return append(versionPrefix(version), name...)
}

func sessionOf(h settings.Handle) (*session, error) {
	s, ok := h.(*session)
	if !ok || s == nil {
		return nil, settings.ErrInvalidHandle
	}
	if s.closed.Load() {
		return nil, settings.ErrClosedHandle
	}
	return s, nil
}
