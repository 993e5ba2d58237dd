// Package admission holds the airline membership state machine. Transitions
// are pure: they take the current airline record, an event and the membership
// counts observed at that moment, and return the next record plus the effect
// the caller should report. Nothing here touches the ledger.
package admission

import (
	"errors"
	"fmt"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/safemath"
	"github.com/eigerco/surety/internal/state"
)

var (
	ErrSponsorNotFunded    = errors.New("sponsor airline is not funded")
	ErrVoterNotFunded      = errors.New("voting airline is not funded")
	ErrAlreadyApplied      = errors.New("airline already applied for admission")
	ErrAlreadyAdmitted     = errors.New("airline already registered")
	ErrNotPending          = errors.New("airline has no pending application")
	ErrDuplicateVote       = errors.New("airline already voted for this applicant")
	ErrNotAdmitted         = errors.New("airline is not registered")
	ErrInsufficientFunding = errors.New("funding below minimum")
)

// Membership is what the ledger knows about its airlines when an event is
// processed. Counts are read at event time, never cached from the application.
type Membership struct {
	Registered int // Airlines in Registered or Funded state
	Funded     int // Airlines in Funded state
	Threshold  int // Registered count from which admission requires votes
}

type Event interface {
	isEvent()
}

// Apply asks for the applicant to be admitted, sponsored by an airline.
type Apply struct {
	Sponsor state.Airline
}

// Vote endorses a pending applicant.
type Vote struct {
	Voter state.Airline
}

// Fund deposits Amount; Minimum is the lowest accepted deposit.
type Fund struct {
	Amount  common.Amount
	Minimum common.Amount
}

func (Apply) isEvent() {}
func (Vote) isEvent()  {}
func (Fund) isEvent()  {}

type Effect uint8

const (
	EffectNone     Effect = iota
	EffectPending         // Application opened, votes needed
	EffectVoted           // Vote recorded, quorum not reached
	EffectAdmitted        // Applicant became Registered
	EffectFunded          // Registered airline became Funded
)

func (e Effect) String() string {
	switch e {
	case EffectPending:
		return "pending"
	case EffectVoted:
		return "voted"
	case EffectAdmitted:
		return "admitted"
	case EffectFunded:
		return "funded"
	default:
		return "none"
	}
}

// Transition computes the next airline record. On error the returned record
// is the unchanged current one.
func Transition(current state.Airline, ev Event, m Membership) (state.Airline, Effect, error) {
	switch e := ev.(type) {
	case Apply:
		return apply(current, e, m)
	case Vote:
		return vote(current, e, m)
	case Fund:
		return fund(current, e)
	default:
		return current, EffectNone, fmt.Errorf("unknown admission event %T", ev)
	}
}

func apply(current state.Airline, e Apply, m Membership) (state.Airline, Effect, error) {
	if e.Sponsor.Status != state.AirlineFunded {
		return current, EffectNone, ErrSponsorNotFunded
	}
	switch {
	case current.Status == state.AirlineApplied:
		return current, EffectNone, ErrAlreadyApplied
	case current.IsAdmitted():
		return current, EffectNone, ErrAlreadyAdmitted
	}

	next := current.Clone()
	if m.Registered < m.Threshold {
		next.Status = state.AirlineRegistered
		next.Voters = nil
		return next, EffectAdmitted, nil
	}
	next.Status = state.AirlineApplied
	next.Voters = make(crypto.AddressSet)
	return next, EffectPending, nil
}

func vote(current state.Airline, e Vote, m Membership) (state.Airline, Effect, error) {
	if e.Voter.Status != state.AirlineFunded {
		return current, EffectNone, ErrVoterNotFunded
	}
	if current.Status != state.AirlineApplied {
		return current, EffectNone, ErrNotPending
	}
	if current.Voters.Has(e.Voter.Address) {
		return current, EffectNone, ErrDuplicateVote
	}

	next := current.Clone()
	if next.Voters == nil {
		next.Voters = make(crypto.AddressSet)
	}
	next.Voters.Add(e.Voter.Address)
	if Reached(len(next.Voters), m.Funded) {
		next.Status = state.AirlineRegistered
		next.Voters = nil
		return next, EffectAdmitted, nil
	}
	return next, EffectVoted, nil
}

func fund(current state.Airline, e Fund) (state.Airline, Effect, error) {
	if !current.IsAdmitted() {
		return current, EffectNone, ErrNotAdmitted
	}
	if e.Amount < e.Minimum {
		return current, EffectNone, ErrInsufficientFunding
	}
	total, ok := safemath.Add64(uint64(current.Funds), uint64(e.Amount))
	if !ok {
		return current, EffectNone, fmt.Errorf("airline funds: %w", safemath.ErrOverflow)
	}

	next := current.Clone()
	next.Funds = common.Amount(total)
	if current.Status == state.AirlineFunded {
		return next, EffectNone, nil
	}
	next.Status = state.AirlineFunded
	return next, EffectFunded, nil
}

// Reached reports whether votes make up at least half of the funded airlines.
func Reached(votes, funded int) bool {
	return votes*2 >= funded
}
