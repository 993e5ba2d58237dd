package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/db"
	"github.com/eigerco/surety/pkg/db/pebble"
	"github.com/eigerco/surety/pkg/log"
)

var ErrLedgerClosed = errors.New("ledger store is closed")

// Ledger persists ledger records in a key-value store. Each record lives
// under its own prefixed key so a change set rewrites only what it touched.
type Ledger struct {
	db     db.KVStore
	closed atomic.Bool
}

// NewLedger creates a new ledger store using KVStore
func NewLedger(db db.KVStore) *Ledger {
	return &Ledger{db: db}
}

// Commit writes every record of the change set in a single batch. Nothing is
// visible unless the whole batch commits.
func (l *Ledger) Commit(c state.Changes) error {
	if l.closed.Load() {
		return ErrLedgerClosed
	}

	batch := l.db.NewBatch()
	defer batch.Close()

	if c.Operational != nil {
		if err := putJSON(batch, makeKey(prefixOperational), *c.Operational); err != nil {
			return fmt.Errorf("store operational flag: %w", err)
		}
	}
	if c.Height > 0 || c.Rewind {
		if err := batch.Put(makeKey(prefixMeta, keyHeight), binary.BigEndian.AppendUint64(nil, c.Height)); err != nil {
			return fmt.Errorf("store height: %w", err)
		}
	}
	for _, a := range c.Airlines {
		if err := putJSON(batch, airlineKey(a.Address), a); err != nil {
			return fmt.Errorf("store airline %s: %w", a.Address, err)
		}
	}
	for _, f := range c.Flights {
		if err := putJSON(batch, flightKey(f.Key), f); err != nil {
			return fmt.Errorf("store flight %s: %w", f.Key, err)
		}
	}
	for _, o := range c.Oracles {
		if err := putJSON(batch, oracleKey(o.Address), o); err != nil {
			return fmt.Errorf("store oracle %s: %w", o.Address, err)
		}
	}
	for _, r := range c.Requests {
		if err := putJSON(batch, requestKey(r.Key), r); err != nil {
			return fmt.Errorf("store request %s: %w", r.Key, err)
		}
	}
	for _, p := range c.Policies {
		if err := putJSON(batch, policyKey(p.Key()), p); err != nil {
			return fmt.Errorf("store policy %s/%s: %w", p.Passenger, p.Flight, err)
		}
	}
	for _, b := range c.Balances {
		key := makeKey(prefixBalance, b.Passenger[:])
		if b.Amount == 0 {
			if err := batch.Delete(key); err != nil {
				return fmt.Errorf("delete balance %s: %w", b.Passenger, err)
			}
			continue
		}
		if err := batch.Put(key, binary.BigEndian.AppendUint64(nil, uint64(b.Amount))); err != nil {
			return fmt.Errorf("store balance %s: %w", b.Passenger, err)
		}
	}
	for _, cc := range c.Callers {
		key := makeKey(prefixCaller, cc.Caller[:])
		var err error
		if cc.Authorized {
			err = batch.Put(key, []byte{1})
		} else {
			err = batch.Delete(key)
		}
		if err != nil {
			return fmt.Errorf("store caller %s: %w", cc.Caller, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Load rebuilds the full ledger state. An empty store yields state.New().
func (l *Ledger) Load() (*state.State, error) {
	if l.closed.Load() {
		return nil, ErrLedgerClosed
	}

	var c state.Changes

	raw, err := l.db.Get(makeKey(prefixOperational))
	switch {
	case err == nil:
		var on bool
		if err := json.Unmarshal(raw, &on); err != nil {
			return nil, fmt.Errorf("decode operational flag: %w", err)
		}
		c.Operational = &on
	case !errors.Is(err, pebble.ErrNotFound):
		return nil, fmt.Errorf("get operational flag: %w", err)
	}

	raw, err = l.db.Get(makeKey(prefixMeta, keyHeight))
	switch {
	case err == nil:
		if len(raw) != 8 {
			return nil, fmt.Errorf("decode height: want 8 bytes, got %d", len(raw))
		}
		c.Height = binary.BigEndian.Uint64(raw)
	case !errors.Is(err, pebble.ErrNotFound):
		return nil, fmt.Errorf("get height: %w", err)
	}

	if c.Airlines, err = loadJSON[state.Airline](l.db, prefixAirline); err != nil {
		return nil, err
	}
	if c.Flights, err = loadJSON[state.Flight](l.db, prefixFlight); err != nil {
		return nil, err
	}
	if c.Oracles, err = loadJSON[state.Oracle](l.db, prefixOracle); err != nil {
		return nil, err
	}
	if c.Requests, err = loadJSON[state.OracleRequest](l.db, prefixRequest); err != nil {
		return nil, err
	}
	if c.Policies, err = loadJSON[state.Policy](l.db, prefixPolicy); err != nil {
		return nil, err
	}
	slices.SortStableFunc(c.Policies, func(a, b state.Policy) int {
		switch {
		case a.PurchasedAt < b.PurchasedAt:
			return -1
		case a.PurchasedAt > b.PurchasedAt:
			return 1
		}
		return 0
	})

	err = iterate(l.db, prefixBalance, func(key, value []byte) error {
		if len(value) != 8 {
			return fmt.Errorf("want 8 bytes, got %d", len(value))
		}
		var b state.Balance
		copy(b.Passenger[:], key[1:])
		b.Amount = common.Amount(binary.BigEndian.Uint64(value))
		c.Balances = append(c.Balances, b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}

	err = iterate(l.db, prefixCaller, func(key, _ []byte) error {
		var cc state.CallerChange
		copy(cc.Caller[:], key[1:])
		cc.Authorized = true
		c.Callers = append(c.Callers, cc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load callers: %w", err)
	}

	s := state.New()
	s.Apply(c)
	log.Store.Debug().Uint64("height", s.Height).Int("airlines", len(s.Airlines)).
		Int("flights", len(s.Flights)).Int("policies", len(s.Policies)).Msg("ledger state loaded")
	return s, nil
}

// Close closes the ledger store
func (l *Ledger) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.db.Close()
}

func airlineKey(a crypto.Address) []byte { return makeKey(prefixAirline, a[:]) }

func flightKey(k state.FlightKey) []byte { return makeKey(prefixFlight, k[:]) }

func oracleKey(a crypto.Address) []byte { return makeKey(prefixOracle, a[:]) }

func requestKey(k state.RequestKey) []byte {
	return makeKey(prefixRequest, k.Flight[:], []byte{k.Index})
}

func policyKey(k state.PolicyKey) []byte {
	return makeKey(prefixPolicy, k.Flight[:], k.Passenger[:])
}

func putJSON(w db.Writer, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return w.Put(key, b)
}

func loadJSON[T any](kv db.KVStore, prefix byte) ([]T, error) {
	var out []T
	err := iterate(kv, prefix, func(_, value []byte) error {
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s records: %w", PrefixToString(prefix), err)
	}
	return out, nil
}

func iterate(kv db.KVStore, prefix byte, fn func(key, value []byte) error) error {
	iter, err := kv.NewIterator([]byte{prefix}, []byte{prefix + 1})
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}
		if err := fn(iter.Key(), value); err != nil {
			return fmt.Errorf("record %x: %w", iter.Key(), err)
		}
	}
	return nil
}
