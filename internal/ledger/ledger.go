// Package ledger is the consensus and escrow core: a single aggregate owning
// the membership, flight, oracle and policy records.
//
// The Ledger holds no locks. Its host must apply one operation at a time.
// Every mutating operation validates fully, builds a state.Changes set,
// persists it and only then applies it in memory, so a failed operation
// leaves the state untouched. Notifications are published after the commit.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/entropy"
	"github.com/eigerco/surety/internal/events"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/log"
)

// Transferer moves value out of the ledger to a passenger. It succeeds or
// fails as a whole and may call back into the ledger before returning. Behind
// a host, call backs must be submitted with ctx or a context derived from it.
type Transferer interface {
	Transfer(ctx context.Context, to crypto.Address, amount common.Amount) error
}

// Committer persists a change set atomically.
type Committer interface {
	Commit(c state.Changes) error
}

// Params are the network-wide constants of the ledger.
type Params struct {
	PremiumCap         common.Amount
	FundingMinimum     common.Amount
	RegistrationFee    common.Amount
	IndexCount         uint8  // Oracle indices are drawn from [0, IndexCount)
	Quorum             int    // Matching responses that finalize a request
	ConsensusThreshold int    // Registered airlines from which admission needs votes
	PayoutPercentage   uint64 // Used when crediting automatically
	AutoCredit         bool   // Credit insurees as soon as a flight resolves to LateAirline
	RequestTTL         uint64 // Heights a status request stays open, 0 keeps it open
}

func DefaultParams() Params {
	return Params{
		PremiumCap:         common.PremiumCap,
		FundingMinimum:     common.FundingMinimum,
		RegistrationFee:    common.OracleRegistrationFee,
		IndexCount:         common.NumberOfOracleIndices,
		Quorum:             common.OracleQuorum,
		ConsensusThreshold: common.ConsensusThreshold,
		PayoutPercentage:   common.DefaultPayoutPercentage,
		AutoCredit:         true,
	}
}

func (p Params) validate() error {
	switch {
	case p.PremiumCap == 0:
		return errors.New("premium cap must be above zero")
	case p.IndexCount < common.IndicesPerOracle:
		return fmt.Errorf("index count must be at least %d", common.IndicesPerOracle)
	case p.Quorum < 1:
		return errors.New("quorum must be at least 1")
	case p.AutoCredit && p.PayoutPercentage == 0:
		return ErrInvalidPayoutPercentage
	}
	return nil
}

type Config struct {
	Administrator  crypto.Address
	GenesisAirline crypto.Address // Registered at construction when the ledger has no airlines
	Params         Params
	Entropy        entropy.Source   // Defaults to a blake2b stream seeded with the administrator
	Publisher      events.Publisher // Optional
	Store          Committer        // Optional, nil keeps the ledger in memory
	Transferer     Transferer
	State          *state.State // Restored state, nil starts empty
}

type Ledger struct {
	admin     crypto.Address
	params    Params
	state     *state.State
	entropy   entropy.Source
	publisher events.Publisher
	store     Committer
	transfer  Transferer
}

func New(cfg Config) (*Ledger, error) {
	if cfg.Administrator.IsZero() {
		return nil, errors.New("administrator is required")
	}
	if cfg.Transferer == nil {
		return nil, errors.New("transferer is required")
	}
	if err := cfg.Params.validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	l := &Ledger{
		admin:     cfg.Administrator,
		params:    cfg.Params,
		state:     cfg.State,
		entropy:   cfg.Entropy,
		publisher: cfg.Publisher,
		store:     cfg.Store,
		transfer:  cfg.Transferer,
	}
	if l.state == nil {
		l.state = state.New()
	}
	if l.entropy == nil {
		l.entropy = entropy.NewBlake2bSource(crypto.HashData(cfg.Administrator[:]))
	}

	if !cfg.GenesisAirline.IsZero() && len(l.state.Airlines) == 0 {
		genesis := state.Airline{Address: cfg.GenesisAirline, Status: state.AirlineRegistered}
		if err := l.persist(state.Changes{Airlines: []state.Airline{genesis}}); err != nil {
			return nil, fmt.Errorf("register genesis airline: %w", err)
		}
		log.Ledger.Info().Stringer("airline", cfg.GenesisAirline).Msg("genesis airline registered")
	}
	return l, nil
}

// commit stamps the change set with the next height, persists and applies it.
func (l *Ledger) commit(c state.Changes) error {
	c.Height = l.state.Height + 1
	return l.persist(c)
}

func (l *Ledger) persist(c state.Changes) error {
	if l.store != nil {
		if err := l.store.Commit(c); err != nil {
			return fmt.Errorf("persist changes: %w", err)
		}
	}
	l.state.Apply(c)
	return nil
}

func (l *Ledger) publish(ev events.Event) {
	if l.publisher != nil {
		l.publisher.Publish(ev)
	}
}

func (l *Ledger) Administrator() crypto.Address {
	return l.admin
}

func (l *Ledger) Params() Params {
	return l.params
}

// Height is the number of mutating operations applied so far.
func (l *Ledger) Height() uint64 {
	return l.state.Height
}

func (l *Ledger) Snapshot() state.Snapshot {
	return l.state.Snapshot()
}

// Dump renders the whole state as indented JSON.
func (l *Ledger) Dump() string {
	return l.state.Dump()
}
