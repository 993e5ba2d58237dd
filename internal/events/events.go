// Package events carries the ledger's notifications. Publishing is
// synchronous: subscribers run inside the operation that emitted the event,
// after its changes were committed, and must not call back into the ledger.
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
)

type Kind string

const (
	KindStatusRequested Kind = "status_requested"
	KindStatusResolved  Kind = "status_resolved"
)

type Event interface {
	Kind() Kind
	Header() Meta
}

// Meta identifies an event and the ledger height it was emitted at.
type Meta struct {
	ID     uuid.UUID `json:"id"`
	Height uint64    `json:"height"`
}

func NewMeta(height uint64) Meta {
	return Meta{ID: uuid.New(), Height: height}
}

func (m Meta) Header() Meta { return m }

// StatusRequested asks every oracle holding Index to report the flight status.
type StatusRequested struct {
	Meta
	Index      uint8           `json:"index"`
	Flight     state.FlightKey `json:"flight"`
	Airline    crypto.Address  `json:"airline"`
	Designator string          `json:"designator"`
	Timestamp  uint64          `json:"timestamp"`
	Requester  crypto.Address  `json:"requester"`
}

func (StatusRequested) Kind() Kind { return KindStatusRequested }

// StatusResolved reports that oracles holding Index agreed on Status.
type StatusResolved struct {
	Meta
	Index  uint8              `json:"index"`
	Flight state.FlightKey    `json:"flight"`
	Status state.FlightStatus `json:"status"`
}

func (StatusResolved) Kind() Kind { return KindStatusResolved }

type Publisher interface {
	Publish(ev Event)
}

type Handler func(ev Event)

// Bus delivers events to its subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	order  []int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
		for i, o := range b.order {
			if o == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Recorder keeps every published event so callers can inspect what an
// operation emitted.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
