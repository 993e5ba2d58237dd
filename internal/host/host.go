// Package host puts the ledger's operations in a total order: a single
// goroutine applies them one at a time, in the order they were submitted.
package host

import (
	"context"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/ledger"
	"github.com/eigerco/surety/pkg/log"
)

// Depositor receives the value operations pay into the ledger.
type Depositor interface {
	Deposit(from crypto.Address, amount common.Amount)
}

type Option func(*Host)

// WithDepositor forwards premiums, airline funding and oracle fees.
func WithDepositor(d Depositor) Option {
	return func(h *Host) { h.deposits = d }
}

// WithQueueSize sets how many submissions may wait for the host.
func WithQueueSize(n int) Option {
	return func(h *Host) { h.queue = make(chan call, n) }
}

type reply struct {
	result Result
	err    error
}

type call struct {
	ctx   context.Context
	op    Operation
	reply chan reply
}

// runningKey marks the context of the operation the host is applying.
type runningKey struct{}

type Host struct {
	ledger   *ledger.Ledger
	deposits Depositor
	queue    chan call
	stopped  chan struct{}
}

func New(l *ledger.Ledger, opts ...Option) *Host {
	h := &Host{
		ledger:  l,
		queue:   make(chan call, 64),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run applies submitted operations until ctx is done. It must be called once.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.stopped)
	log.Host.Info().Uint64("height", h.ledger.Height()).Msg("host started")
	for {
		select {
		case <-ctx.Done():
			log.Host.Info().Uint64("height", h.ledger.Height()).Msg("host stopped")
			return ctx.Err()
		case c := <-h.queue:
			res, err := h.apply(c)
			c.reply <- reply{result: res, err: err}
		}
	}
}

func (h *Host) apply(c call) (Result, error) {
	if err := c.ctx.Err(); err != nil {
		return Result{}, err
	}
	res, err := c.op.apply(context.WithValue(c.ctx, runningKey{}, h), h.ledger)
	if err != nil {
		log.Host.Debug().Str("op", c.op.Name()).Interface("args", c.op).Err(err).Msg("operation rejected")
		return res, &OpError{Op: c.op.Name(), Args: c.op, Err: err}
	}
	if d, ok := c.op.(depositor); ok && h.deposits != nil {
		dep := d.deposit()
		h.deposits.Deposit(dep.from, dep.amount)
	}
	if _, ok := c.op.(query); !ok {
		log.Host.Debug().Str("op", c.op.Name()).Uint64("height", h.ledger.Height()).Msg("operation applied")
	}
	return res, nil
}

// Submit queues op and waits until it has been applied. Rejections come back
// as *OpError wrapping the ledger's error. A collaborator called from inside
// an operation, such as a transferer, that submits with the context it was
// handed has its op applied inline rather than queued behind the running
// one.
func (h *Host) Submit(ctx context.Context, op Operation) (Result, error) {
	if running, _ := ctx.Value(runningKey{}).(*Host); running == h {
		return h.apply(call{ctx: ctx, op: op})
	}
	c := call{ctx: ctx, op: op, reply: make(chan reply, 1)}
	select {
	case h.queue <- c:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-h.stopped:
		return Result{}, ErrHostStopped
	}
	select {
	case r := <-c.reply:
		return r.result, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-h.stopped:
		select {
		case r := <-c.reply:
			return r.result, r.err
		default:
			return Result{}, ErrHostStopped
		}
	}
}

// Query runs fn on the host goroutine, between two operations.
func (h *Host) Query(ctx context.Context, fn func(l *ledger.Ledger)) error {
	_, err := h.Submit(ctx, query{fn: fn})
	return err
}
