package state

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
)

// AirlineStatus is the admission stage of an airline. The zero value means
// the airline is unknown to the ledger.
type AirlineStatus uint8

const (
	AirlineApplied    AirlineStatus = iota + 1 // Waiting for votes from funded airlines
	AirlineRegistered                          // Admitted, not yet funded
	AirlineFunded                              // Admitted and funded; may sponsor, vote and register flights
)

func (s AirlineStatus) String() string {
	switch s {
	case AirlineApplied:
		return "applied"
	case AirlineRegistered:
		return "registered"
	case AirlineFunded:
		return "funded"
	default:
		return "unknown"
	}
}

type Airline struct {
	Address crypto.Address
	Status  AirlineStatus
	Voters  crypto.AddressSet // Funded airlines that endorsed the application, only kept while Applied
	Funds   common.Amount     // Total deposited through fund
}

// IsAdmitted reports whether the airline counts towards the registered
// membership, i.e. it is Registered or Funded.
func (a Airline) IsAdmitted() bool {
	return a.Status == AirlineRegistered || a.Status == AirlineFunded
}

func (a Airline) Clone() Airline {
	c := a
	if a.Voters != nil {
		c.Voters = a.Voters.Clone()
	}
	return c
}

// FlightStatus codes match the ones oracles report.
type FlightStatus uint8

const (
	StatusUnknown       FlightStatus = 0
	StatusOnTime        FlightStatus = 10
	StatusLateAirline   FlightStatus = 20
	StatusLateWeather   FlightStatus = 30
	StatusLateTechnical FlightStatus = 40
	StatusLateOther     FlightStatus = 50
)

// StatusCodes lists every code an oracle may report.
var StatusCodes = []FlightStatus{
	StatusUnknown, StatusOnTime, StatusLateAirline, StatusLateWeather, StatusLateTechnical, StatusLateOther,
}

func (s FlightStatus) Valid() bool {
	switch s {
	case StatusUnknown, StatusOnTime, StatusLateAirline, StatusLateWeather, StatusLateTechnical, StatusLateOther:
		return true
	}
	return false
}

func (s FlightStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusOnTime:
		return "on-time"
	case StatusLateAirline:
		return "late-airline"
	case StatusLateWeather:
		return "late-weather"
	case StatusLateTechnical:
		return "late-technical"
	case StatusLateOther:
		return "late-other"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ParseFlightStatus accepts a status name as printed by String or its
// numeric code.
func ParseFlightStatus(s string) (FlightStatus, error) {
	for _, code := range StatusCodes {
		if s == code.String() || s == strconv.Itoa(int(code)) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown flight status %q", s)
}

// FlightKey identifies a flight: keccak256(airline ‖ designator ‖ BE64(timestamp)).
type FlightKey crypto.Hash

func NewFlightKey(airline crypto.Address, designator string, timestamp uint64) FlightKey {
	buf := make([]byte, 0, crypto.AddressSize+len(designator)+8)
	buf = append(buf, airline[:]...)
	buf = append(buf, designator...)
	buf = binary.BigEndian.AppendUint64(buf, timestamp)
	return FlightKey(crypto.KeccakData(buf))
}

func (k FlightKey) String() string {
	return crypto.Hash(k).String()
}

func (k FlightKey) MarshalText() ([]byte, error) {
	return crypto.Hash(k).MarshalText()
}

func (k *FlightKey) UnmarshalText(text []byte) error {
	return (*crypto.Hash)(k).UnmarshalText(text)
}

type Flight struct {
	Key        FlightKey
	Airline    crypto.Address
	Designator string
	Timestamp  uint64 // Scheduled departure, unix seconds
	Status     FlightStatus
	Resolved   bool // Set once oracles agreed on a status other than Unknown
}

type Oracle struct {
	Address crypto.Address
	Indices [common.IndicesPerOracle]uint8
	FeePaid bool
}

func (o Oracle) Holds(index uint8) bool {
	for _, i := range o.Indices {
		if i == index {
			return true
		}
	}
	return false
}

type RequestKey struct {
	Index  uint8
	Flight FlightKey
}

func (k RequestKey) String() string {
	return fmt.Sprintf("%d/%s", k.Index, k.Flight)
}

type OracleRequest struct {
	Key       RequestKey
	Requester crypto.Address
	Responses map[crypto.Address]FlightStatus // One entry per oracle, later submissions overwrite
	Finalized bool
	OpenedAt  uint64 // Ledger height the request was opened at
}

func (r OracleRequest) Clone() OracleRequest {
	c := r
	c.Responses = make(map[crypto.Address]FlightStatus, len(r.Responses))
	for a, s := range r.Responses {
		c.Responses[a] = s
	}
	return c
}

// Expired reports whether the request outlived ttl heights at height now.
// A zero ttl never expires.
func (r OracleRequest) Expired(now, ttl uint64) bool {
	return ttl > 0 && now >= r.OpenedAt+ttl
}

type PolicyKey struct {
	Passenger crypto.Address
	Flight    FlightKey
}

type Policy struct {
	Passenger   crypto.Address
	Flight      FlightKey
	Premium     common.Amount
	Credited    common.Amount
	IsCredited  bool
	PurchasedAt uint64 // Ledger height of the purchase, orders the flight's policies
}

func (p Policy) Key() PolicyKey {
	return PolicyKey{Passenger: p.Passenger, Flight: p.Flight}
}

type Balance struct {
	Passenger crypto.Address
	Amount    common.Amount
}

type CallerChange struct {
	Caller     crypto.Address
	Authorized bool
}
