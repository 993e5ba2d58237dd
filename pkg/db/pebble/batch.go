package pebble

import (
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/surety/pkg/db"
)

type Batch struct {
	batch *pebble.Batch
	done  atomic.Bool
}

// NewBatch starts a write batch. On a closed store the batch
// is returned already done so every call on it reports ErrBatchDone.
func (p *KVStore) NewBatch() db.Batch {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b := &Batch{}
	if p.closed {
		b.done.Store(true)
		return b
	}
	b.batch = p.db.NewBatch()
	return b
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	return b.batch.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	return b.batch.Delete(key, nil)
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return ErrBatchDone
	}
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return err
	}
	b.done.Store(true)
	return nil
}

// Close releases the batch. It is safe to call after Commit and more than once.
func (b *Batch) Close() error {
	if b.batch == nil {
		return nil
	}
	batch := b.batch
	b.batch = nil
	b.done.Store(true)
	return batch.Close()
}
