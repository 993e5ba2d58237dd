package ledger

import (
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/log"
)

// RegisterFlight adds a flight of a funded airline with status Unknown.
func (l *Ledger) RegisterFlight(airline crypto.Address, designator string, timestamp uint64) (state.FlightKey, error) {
	if err := l.requireOperational(); err != nil {
		return state.FlightKey{}, err
	}
	if l.state.Airlines[airline].Status != state.AirlineFunded {
		return state.FlightKey{}, ErrAirlineNotFunded
	}
	if designator == "" {
		return state.FlightKey{}, ErrInvalidDesignator
	}

	key := state.NewFlightKey(airline, designator, timestamp)
	if _, ok := l.state.Flights[key]; ok {
		return state.FlightKey{}, ErrDuplicateFlight
	}

	f := state.Flight{
		Key:        key,
		Airline:    airline,
		Designator: designator,
		Timestamp:  timestamp,
		Status:     state.StatusUnknown,
	}
	if err := l.commit(state.Changes{Flights: []state.Flight{f}}); err != nil {
		return state.FlightKey{}, err
	}
	log.Ledger.Info().Stringer("flight", key).Stringer("airline", airline).
		Str("designator", designator).Uint64("timestamp", timestamp).Msg("flight registered")
	return key, nil
}

func (l *Ledger) Flight(key state.FlightKey) (state.Flight, bool) {
	f, ok := l.state.Flights[key]
	return f, ok
}
