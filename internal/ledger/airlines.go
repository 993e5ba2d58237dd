package ledger

import (
	"errors"
	"fmt"

	"github.com/eigerco/surety/internal/admission"
	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/log"
)

// ApplyForAdmission has a funded sponsor put the applicant forward. Below the
// consensus threshold the applicant is registered at once, otherwise it waits
// in Applied for votes. The sponsor's own vote is not implied.
func (l *Ledger) ApplyForAdmission(applicant, sponsor crypto.Address) (state.AirlineStatus, error) {
	if err := l.requireOperational(); err != nil {
		return 0, err
	}
	return l.transition(applicant, admission.Apply{Sponsor: l.state.Airlines[sponsor]})
}

// Vote endorses a pending applicant. The applicant is registered once the
// votes make up half of the airlines funded at the time of this vote.
func (l *Ledger) Vote(applicant, voter crypto.Address) (state.AirlineStatus, error) {
	if err := l.requireOperational(); err != nil {
		return 0, err
	}
	return l.transition(applicant, admission.Vote{Voter: l.state.Airlines[voter]})
}

// Fund deposits amount for a registered airline, making it funded. Further
// deposits only add to its funds.
func (l *Ledger) Fund(airline crypto.Address, amount common.Amount) (state.AirlineStatus, error) {
	if err := l.requireOperational(); err != nil {
		return 0, err
	}
	return l.transition(airline, admission.Fund{Amount: amount, Minimum: l.params.FundingMinimum})
}

func (l *Ledger) transition(addr crypto.Address, ev admission.Event) (state.AirlineStatus, error) {
	current, ok := l.state.Airlines[addr]
	if !ok {
		current = state.Airline{Address: addr}
	}

	next, effect, err := admission.Transition(current, ev, l.membership())
	if err != nil {
		if errors.Is(err, admission.ErrSponsorNotFunded) || errors.Is(err, admission.ErrVoterNotFunded) {
			return current.Status, fmt.Errorf("%w: %w", ErrAirlineNotFunded, err)
		}
		return current.Status, err
	}

	if err := l.commit(state.Changes{Airlines: []state.Airline{next}}); err != nil {
		return current.Status, err
	}

	logger := log.Ledger.With().Stringer("airline", addr).Logger()
	switch effect {
	case admission.EffectAdmitted:
		logger.Info().Int("registered", l.state.RegisteredCount()).Msg("airline registered")
	case admission.EffectPending:
		logger.Info().Msg("airline applied, awaiting votes")
	case admission.EffectVoted:
		logger.Debug().Int("votes", len(next.Voters)).Int("funded", l.state.FundedCount()).Msg("vote recorded")
	case admission.EffectFunded:
		logger.Info().Stringer("funds", next.Funds).Msg("airline funded")
	default:
		logger.Debug().Stringer("funds", next.Funds).Msg("airline funds topped up")
	}
	return next.Status, nil
}

func (l *Ledger) membership() admission.Membership {
	return admission.Membership{
		Registered: l.state.RegisteredCount(),
		Funded:     l.state.FundedCount(),
		Threshold:  l.params.ConsensusThreshold,
	}
}

// Airline returns a copy of the airline's record.
func (l *Ledger) Airline(addr crypto.Address) (state.Airline, bool) {
	a, ok := l.state.Airlines[addr]
	return a.Clone(), ok
}

// IsRegistered reports whether the airline is Registered or Funded.
func (l *Ledger) IsRegistered(addr crypto.Address) bool {
	return l.state.Airlines[addr].IsAdmitted()
}

func (l *Ledger) IsFunded(addr crypto.Address) bool {
	return l.state.Airlines[addr].Status == state.AirlineFunded
}

func (l *Ledger) RegisteredCount() int {
	return l.state.RegisteredCount()
}

func (l *Ledger) FundedCount() int {
	return l.state.FundedCount()
}
