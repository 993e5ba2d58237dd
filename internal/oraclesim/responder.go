package oraclesim

import (
	"sync"

	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/entropy"
	"github.com/eigerco/surety/internal/events"
	"github.com/eigerco/surety/internal/state"
)

// Responder decides what an oracle reports for a request. It is called from
// several goroutines at once.
type Responder interface {
	Respond(oracle crypto.Address, req events.StatusRequested) state.FlightStatus
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(oracle crypto.Address, req events.StatusRequested) state.FlightStatus

func (f ResponderFunc) Respond(oracle crypto.Address, req events.StatusRequested) state.FlightStatus {
	return f(oracle, req)
}

// Fixed reports the same status for every request.
func Fixed(status state.FlightStatus) Responder {
	return ResponderFunc(func(crypto.Address, events.StatusRequested) state.FlightStatus { return status })
}

// Random picks one of the status codes for every response.
type Random struct {
	mu  sync.Mutex
	src entropy.Source
}

func NewRandom(src entropy.Source) *Random {
	return &Random{src: src}
}

func (r *Random) Respond(crypto.Address, events.StatusRequested) state.FlightStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return state.StatusCodes[entropy.DrawIndex(r.src, uint8(len(state.StatusCodes)))]
}
