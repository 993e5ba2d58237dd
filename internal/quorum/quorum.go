// Package quorum counts oracle responses for a status request.
package quorum

import (
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
)

// Tally groups the current responses by reported status. Only responses for
// which eligible returns true are counted; a nil eligible counts all.
func Tally(responses map[crypto.Address]state.FlightStatus, eligible func(crypto.Address) bool) map[state.FlightStatus]int {
	counts := make(map[state.FlightStatus]int)
	for oracle, status := range responses {
		if eligible != nil && !eligible(oracle) {
			continue
		}
		counts[status]++
	}
	return counts
}

// Decide recounts the full response set and returns the status that reached
// the quorum. Should several statuses qualify, the first one in
// state.StatusCodes order wins so the outcome never depends on map order.
func Decide(responses map[crypto.Address]state.FlightStatus, eligible func(crypto.Address) bool, quorum int) (state.FlightStatus, bool) {
	counts := Tally(responses, eligible)
	for _, status := range state.StatusCodes {
		if counts[status] >= quorum {
			return status, true
		}
	}
	return state.StatusUnknown, false
}
