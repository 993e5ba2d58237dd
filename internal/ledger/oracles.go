package ledger

import (
	"fmt"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/entropy"
	"github.com/eigerco/surety/internal/events"
	"github.com/eigerco/surety/internal/quorum"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/log"
)

// RegisterOracle assigns the oracle its indices once it paid the fee.
func (l *Ledger) RegisterOracle(oracle crypto.Address, fee common.Amount) ([common.IndicesPerOracle]uint8, error) {
	var indices [common.IndicesPerOracle]uint8
	if err := l.requireOperational(); err != nil {
		return indices, err
	}
	if fee < l.params.RegistrationFee {
		return indices, ErrInsufficientFee
	}
	if _, ok := l.state.Oracles[oracle]; ok {
		return indices, ErrOracleAlreadyRegistered
	}

	drawn, err := entropy.DrawDistinct(l.entropy, l.params.IndexCount, common.IndicesPerOracle)
	if err != nil {
		return indices, fmt.Errorf("draw oracle indices: %w", err)
	}
	copy(indices[:], drawn)

	o := state.Oracle{Address: oracle, Indices: indices, FeePaid: true}
	if err := l.commit(state.Changes{Oracles: []state.Oracle{o}}); err != nil {
		return [common.IndicesPerOracle]uint8{}, err
	}
	log.Oracle.Info().Stringer("oracle", oracle).Uints8("indices", indices[:]).Msg("oracle registered")
	return indices, nil
}

// OracleIndices returns the indices assigned to a registered oracle.
func (l *Ledger) OracleIndices(oracle crypto.Address) ([common.IndicesPerOracle]uint8, bool) {
	o, ok := l.state.Oracles[oracle]
	return o.Indices, ok
}

// RequestStatus opens a status request for an unresolved flight on a freshly
// drawn index and announces it to the oracles. When a live request already
// exists for the drawn index it is kept and announced again.
func (l *Ledger) RequestStatus(key state.FlightKey, caller crypto.Address) (uint8, error) {
	if err := l.requireOperational(); err != nil {
		return 0, err
	}
	f, ok := l.state.Flights[key]
	if !ok {
		return 0, ErrFlightNotFound
	}
	if f.Resolved {
		return 0, ErrFlightAlreadyResolved
	}

	index := entropy.DrawIndex(l.entropy, l.params.IndexCount)
	rk := state.RequestKey{Index: index, Flight: key}

	existing, ok := l.state.Requests[rk]
	if !ok || existing.Finalized || existing.Expired(l.state.Height, l.params.RequestTTL) {
		req := state.OracleRequest{
			Key:       rk,
			Requester: caller,
			Responses: make(map[crypto.Address]state.FlightStatus),
			OpenedAt:  l.state.Height + 1,
		}
		if err := l.commit(state.Changes{Requests: []state.OracleRequest{req}}); err != nil {
			return 0, err
		}
		log.Oracle.Info().Stringer("flight", key).Uint8("index", index).Msg("status requested")
	} else {
		log.Oracle.Debug().Stringer("flight", key).Uint8("index", index).Msg("status request still open, announcing again")
	}

	l.publish(events.StatusRequested{
		Meta:       events.NewMeta(l.state.Height),
		Index:      index,
		Flight:     key,
		Airline:    f.Airline,
		Designator: f.Designator,
		Timestamp:  f.Timestamp,
		Requester:  caller,
	})
	return index, nil
}

// Request returns a copy of the status request for (index, key).
func (l *Ledger) Request(index uint8, key state.FlightKey) (state.OracleRequest, bool) {
	r, ok := l.state.Requests[state.RequestKey{Index: index, Flight: key}]
	if !ok {
		return state.OracleRequest{}, false
	}
	return r.Clone(), true
}

// SubmitResponse records an oracle's report for a request. Responses to a
// finalized or expired request, or from an oracle not holding the index, are
// ignored whatever code they carry. A later report of the same oracle replaces its earlier one. The
// full response set is recounted on every report, and the first status to
// reach the quorum finalizes the request.
func (l *Ledger) SubmitResponse(oracle crypto.Address, index uint8, key state.FlightKey, code state.FlightStatus) error {
	if err := l.requireOperational(); err != nil {
		return err
	}
	rk := state.RequestKey{Index: index, Flight: key}
	req, ok := l.state.Requests[rk]
	if !ok {
		return ErrRequestNotFound
	}

	logger := log.Oracle.With().Stringer("oracle", oracle).Str("request", rk.String()).Logger()
	if req.Finalized {
		logger.Debug().Msg("late response to finalized request ignored")
		return nil
	}
	if req.Expired(l.state.Height, l.params.RequestTTL) {
		logger.Debug().Msg("response to expired request ignored")
		return nil
	}
	if o, ok := l.state.Oracles[oracle]; !ok || !o.Holds(index) {
		logger.Debug().Msg("response from oracle not holding the index ignored")
		return nil
	}
	if !code.Valid() {
		return ErrInvalidStatusCode
	}
	if prev, ok := req.Responses[oracle]; ok && prev == code {
		return nil
	}

	next := req.Clone()
	next.Responses[oracle] = code
	status, reached := quorum.Decide(next.Responses, l.holdsIndex(index), l.params.Quorum)
	if !reached {
		if err := l.commit(state.Changes{Requests: []state.OracleRequest{next}}); err != nil {
			return err
		}
		logger.Debug().Stringer("status", code).Int("responses", len(next.Responses)).Msg("response recorded")
		return nil
	}

	next.Finalized = true
	changes := state.Changes{Requests: []state.OracleRequest{next}}
	var credited common.Amount
	if status != state.StatusUnknown {
		f := l.state.Flights[key]
		f.Status = status
		f.Resolved = true
		changes.Flights = []state.Flight{f}

		for _, other := range l.state.OpenRequests(key) {
			if other.Key == rk {
				continue
			}
			retired := other.Clone()
			retired.Finalized = true
			changes.Requests = append(changes.Requests, retired)
		}

		if status == state.StatusLateAirline && l.params.AutoCredit {
			policies, balances, total, err := l.creditChanges(key, l.params.PayoutPercentage)
			if err != nil {
				return err
			}
			changes.Policies = policies
			changes.Balances = balances
			credited = total
		}
	}

	if err := l.commit(changes); err != nil {
		return err
	}
	logger.Info().Stringer("flight", key).Stringer("status", status).Stringer("credited", credited).Msg("status resolved")

	l.publish(events.StatusResolved{
		Meta:   events.NewMeta(l.state.Height),
		Index:  index,
		Flight: key,
		Status: status,
	})
	return nil
}

func (l *Ledger) holdsIndex(index uint8) func(crypto.Address) bool {
	return func(a crypto.Address) bool {
		o, ok := l.state.Oracles[a]
		return ok && o.Holds(index)
	}
}
