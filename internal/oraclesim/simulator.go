// Package oraclesim runs a pool of oracles against the host: it registers
// them, listens for status requests and has every oracle holding the
// requested index answer.
package oraclesim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/events"
	"github.com/eigerco/surety/internal/host"
	"github.com/eigerco/surety/internal/ledger"
	"github.com/eigerco/surety/pkg/log"
)

// Host is the part of host.Host the simulator drives.
type Host interface {
	Submit(ctx context.Context, op host.Operation) (host.Result, error)
	Query(ctx context.Context, fn func(l *ledger.Ledger)) error
}

type Option func(*Simulator)

// WithFee sets the registration fee each oracle pays.
func WithFee(fee common.Amount) Option {
	return func(s *Simulator) { s.fee = fee }
}

// WithWorkers bounds the number of responses in flight.
func WithWorkers(n int) Option {
	return func(s *Simulator) { s.workers = n }
}

// WithRepeats has every oracle send each response n times.
func WithRepeats(n int) Option {
	return func(s *Simulator) { s.repeats = n }
}

// WithQueueSize sets how many requests may wait for Run.
func WithQueueSize(n int) Option {
	return func(s *Simulator) { s.work = make(chan events.StatusRequested, n) }
}

type member struct {
	address crypto.Address
	indices [common.IndicesPerOracle]uint8
}

type Simulator struct {
	host      Host
	responder Responder
	fee       common.Amount
	workers   int
	repeats   int
	work      chan events.StatusRequested

	mu   sync.RWMutex
	pool []member
}

func New(h Host, responder Responder, opts ...Option) *Simulator {
	s := &Simulator{
		host:      h,
		responder: responder,
		fee:       common.OracleRegistrationFee,
		workers:   8,
		repeats:   1,
		work:      make(chan events.StatusRequested, 128),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OracleAddress derives the address of the i-th simulated oracle.
func OracleAddress(i int) crypto.Address {
	h := crypto.HashData([]byte(fmt.Sprintf("surety-oracle-%d", i)))
	var a crypto.Address
	copy(a[:], h[:crypto.AddressSize])
	return a
}

// Register registers oracles 0..n-1. Oracles the ledger already knows, e.g.
// after a restart, join the pool with their recorded indices.
func (s *Simulator) Register(ctx context.Context, n int) error {
	members := make([]member, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			m, err := s.register(gctx, OracleAddress(i))
			if err != nil {
				return fmt.Errorf("oracle %d: %w", i, err)
			}
			members[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.pool = append(s.pool, members...)
	s.mu.Unlock()
	log.Oracle.Info().Int("oracles", n).Msg("oracle pool registered")
	return nil
}

func (s *Simulator) register(ctx context.Context, addr crypto.Address) (member, error) {
	res, err := s.host.Submit(ctx, host.RegisterOracle{Oracle: addr, Fee: s.fee})
	if err == nil {
		return member{address: addr, indices: res.Indices}, nil
	}
	if !errors.Is(err, ledger.ErrOracleAlreadyRegistered) {
		return member{}, err
	}

	var (
		indices [common.IndicesPerOracle]uint8
		known   bool
	)
	if err := s.host.Query(ctx, func(l *ledger.Ledger) { indices, known = l.OracleIndices(addr) }); err != nil {
		return member{}, err
	}
	if !known {
		return member{}, fmt.Errorf("oracle %s vanished", addr)
	}
	return member{address: addr, indices: indices}, nil
}

// Handle is the event bus subscriber. It only queues requests, so it never
// calls back into the ledger while an operation is being applied.
func (s *Simulator) Handle(ev events.Event) {
	req, ok := ev.(events.StatusRequested)
	if !ok {
		return
	}
	select {
	case s.work <- req:
	default:
		log.Oracle.Warn().Stringer("flight", req.Flight).Uint8("index", req.Index).Msg("oracle queue full, request dropped")
	}
}

// Run answers queued requests until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case req := <-s.work:
			for _, m := range s.holders(req.Index) {
				g.Go(func() error {
					s.respond(gctx, m, req)
					return nil
				})
			}
		}
	}
}

func (s *Simulator) holders(index uint8) []member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []member
	for _, m := range s.pool {
		for _, i := range m.indices {
			if i == index {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (s *Simulator) respond(ctx context.Context, m member, req events.StatusRequested) {
	status := s.responder.Respond(m.address, req)
	op := host.SubmitResponse{Oracle: m.address, Index: req.Index, Flight: req.Flight, Status: status}
	for range s.repeats {
		if _, err := s.host.Submit(ctx, op); err != nil {
			log.Oracle.Debug().Err(err).Stringer("oracle", m.address).Msg("response not accepted")
			return
		}
	}
	log.Oracle.Debug().Stringer("oracle", m.address).Stringer("flight", req.Flight).
		Uint8("index", req.Index).Stringer("status", status).Msg("response submitted")
}

// Pool lists the registered oracle addresses.
func (s *Simulator) Pool() []crypto.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crypto.Address, 0, len(s.pool))
	for _, m := range s.pool {
		out = append(out, m.address)
	}
	return out
}
