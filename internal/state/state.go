package state

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
)

// State is the complete ledger state. It is owned by a single ledger and only
// changed through Apply.
type State struct {
	Operational       bool                             // Gate for every mutating operation
	Height            uint64                           // Number of applied mutating operations
	Airlines          map[crypto.Address]Airline       // Membership ledger
	Flights           map[FlightKey]Flight             // Flight registry
	Oracles           map[crypto.Address]Oracle        // Registered oracles and their indices
	Requests          map[RequestKey]OracleRequest     // Status requests, open and finalized
	Policies          map[PolicyKey]Policy             // Insurance policies
	Balances          map[crypto.Address]common.Amount // Withdrawable passenger balances
	AuthorizedCallers crypto.AddressSet                // Identities allowed to withdraw on behalf of passengers

	policiesByFlight map[FlightKey][]crypto.Address
}

func New() *State {
	return &State{
		Operational:       true,
		Airlines:          make(map[crypto.Address]Airline),
		Flights:           make(map[FlightKey]Flight),
		Oracles:           make(map[crypto.Address]Oracle),
		Requests:          make(map[RequestKey]OracleRequest),
		Policies:          make(map[PolicyKey]Policy),
		Balances:          make(map[crypto.Address]common.Amount),
		AuthorizedCallers: make(crypto.AddressSet),
		policiesByFlight:  make(map[FlightKey][]crypto.Address),
	}
}

// Changes is the full write set of one operation. Records replace the stored
// ones wholesale.
type Changes struct {
	Operational *bool
	Height      uint64
	Rewind      bool // Height replaces the current one even when lower
	Airlines    []Airline
	Flights     []Flight
	Oracles     []Oracle
	Requests    []OracleRequest
	Policies    []Policy
	Balances    []Balance
	Callers     []CallerChange
}

func (c Changes) IsEmpty() bool {
	return c.Operational == nil && len(c.Airlines) == 0 && len(c.Flights) == 0 &&
		len(c.Oracles) == 0 && len(c.Requests) == 0 && len(c.Policies) == 0 &&
		len(c.Balances) == 0 && len(c.Callers) == 0
}

// Apply writes the change set into the state.
func (s *State) Apply(c Changes) {
	if c.Operational != nil {
		s.Operational = *c.Operational
	}
	if c.Height > s.Height || c.Rewind {
		s.Height = c.Height
	}
	for _, a := range c.Airlines {
		s.Airlines[a.Address] = a
	}
	for _, f := range c.Flights {
		s.Flights[f.Key] = f
	}
	for _, o := range c.Oracles {
		s.Oracles[o.Address] = o
	}
	for _, r := range c.Requests {
		s.Requests[r.Key] = r
	}
	for _, p := range c.Policies {
		if _, known := s.Policies[p.Key()]; !known {
			s.policiesByFlight[p.Flight] = append(s.policiesByFlight[p.Flight], p.Passenger)
		}
		s.Policies[p.Key()] = p
	}
	for _, b := range c.Balances {
		if b.Amount == 0 {
			delete(s.Balances, b.Passenger)
			continue
		}
		s.Balances[b.Passenger] = b.Amount
	}
	for _, cc := range c.Callers {
		if cc.Authorized {
			s.AuthorizedCallers.Add(cc.Caller)
		} else {
			delete(s.AuthorizedCallers, cc.Caller)
		}
	}
}

// RegisteredCount counts airlines that are Registered or Funded.
func (s *State) RegisteredCount() int {
	n := 0
	for _, a := range s.Airlines {
		if a.IsAdmitted() {
			n++
		}
	}
	return n
}

func (s *State) FundedCount() int {
	n := 0
	for _, a := range s.Airlines {
		if a.Status == AirlineFunded {
			n++
		}
	}
	return n
}

// FlightPolicies returns the policies bought for a flight in purchase order.
func (s *State) FlightPolicies(key FlightKey) []Policy {
	passengers := s.policiesByFlight[key]
	out := make([]Policy, 0, len(passengers))
	for _, p := range passengers {
		out = append(out, s.Policies[PolicyKey{Passenger: p, Flight: key}])
	}
	return out
}

// OpenRequests returns the unfinalized requests of a flight ordered by index.
func (s *State) OpenRequests(key FlightKey) []OracleRequest {
	var out []OracleRequest
	for k, r := range s.Requests {
		if k.Flight == key && !r.Finalized {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b OracleRequest) int {
		return int(a.Key.Index) - int(b.Key.Index)
	})
	return out
}

// Snapshot is a deterministic, ordered view of the state used for dumps.
type Snapshot struct {
	Operational       bool             `json:"operational"`
	Height            uint64           `json:"height"`
	Airlines          []Airline        `json:"airlines"`
	Flights           []Flight         `json:"flights"`
	Oracles           []Oracle         `json:"oracles"`
	Requests          []OracleRequest  `json:"requests"`
	Policies          []Policy         `json:"policies"`
	Balances          []Balance        `json:"balances"`
	AuthorizedCallers []crypto.Address `json:"authorized_callers"`
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Operational:       s.Operational,
		Height:            s.Height,
		AuthorizedCallers: s.AuthorizedCallers.Sorted(),
	}
	for _, a := range s.Airlines {
		snap.Airlines = append(snap.Airlines, a)
	}
	slices.SortFunc(snap.Airlines, func(a, b Airline) int { return bytes.Compare(a.Address[:], b.Address[:]) })
	for _, f := range s.Flights {
		snap.Flights = append(snap.Flights, f)
	}
	slices.SortFunc(snap.Flights, func(a, b Flight) int { return bytes.Compare(a.Key[:], b.Key[:]) })
	for _, o := range s.Oracles {
		snap.Oracles = append(snap.Oracles, o)
	}
	slices.SortFunc(snap.Oracles, func(a, b Oracle) int { return bytes.Compare(a.Address[:], b.Address[:]) })
	for _, r := range s.Requests {
		snap.Requests = append(snap.Requests, r)
	}
	slices.SortFunc(snap.Requests, func(a, b OracleRequest) int {
		if c := bytes.Compare(a.Key.Flight[:], b.Key.Flight[:]); c != 0 {
			return c
		}
		return int(a.Key.Index) - int(b.Key.Index)
	})
	for _, p := range s.Policies {
		snap.Policies = append(snap.Policies, p)
	}
	slices.SortFunc(snap.Policies, func(a, b Policy) int {
		if c := bytes.Compare(a.Flight[:], b.Flight[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.Passenger[:], b.Passenger[:])
	})
	for p, amount := range s.Balances {
		snap.Balances = append(snap.Balances, Balance{Passenger: p, Amount: amount})
	}
	slices.SortFunc(snap.Balances, func(a, b Balance) int { return bytes.Compare(a.Passenger[:], b.Passenger[:]) })
	return snap
}

// Dump renders the snapshot as indented JSON.
func (s *State) Dump() string {
	b, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}
