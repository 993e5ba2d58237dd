package pebble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eigerco/surety/pkg/db"
)

var _ db.KVStore = (*KVStore)(nil)

// KVStore implements db.KVStore on top of a pebble database.
type KVStore struct {
	db     *pebble.DB
	closed bool
	mu     sync.RWMutex
}

type options struct {
	path     string
	inMemory bool
	cache    int64
}

type Option func(*options)

// WithPath opens the database in the given directory.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithInMemory backs the database by an in-memory filesystem.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithCacheSize sets the block cache size in bytes.
func WithCacheSize(size int64) Option {
	return func(o *options) {
		o.cache = size
	}
}

// NewKVStore opens a pebble database. Without options it is kept in memory,
// which is what tests use.
func NewKVStore(opts ...Option) (*KVStore, error) {
	o := &options{cache: 64 * 1024 * 1024} // 64MB
	for _, opt := range opts {
		opt(o)
	}
	if o.path == "" {
		o.inMemory = true
	}

	cache := pebble.NewCache(o.cache)
	defer cache.Unref()

	pebbleOpts := &pebble.Options{
		Cache:        cache,
		MemTableSize: 32 * 1024 * 1024, // 32MB
	}
	if o.inMemory {
		pebbleOpts.FS = vfs.NewMem()
	}

	pdb, err := pebble.Open(o.path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", o.path, err)
	}

	return &KVStore{db: pdb}, nil
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close() //nolint:errcheck

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *KVStore) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Set(key, value, pebble.Sync)
}

func (p *KVStore) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Delete(key, pebble.Sync)
}

func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
