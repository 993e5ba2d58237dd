package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
)

func TestApply(t *testing.T) {
	s := New()
	key := NewFlightKey(crypto.Address{1}, "SU1", 100)
	passenger := crypto.Address{9}
	off := false

	s.Apply(Changes{
		Operational: &off,
		Height:      3,
		Airlines:    []Airline{{Address: crypto.Address{1}, Status: AirlineFunded}},
		Flights:     []Flight{{Key: key, Airline: crypto.Address{1}, Designator: "SU1", Timestamp: 100}},
		Policies:    []Policy{{Passenger: passenger, Flight: key, Premium: common.Unit}},
		Balances:    []Balance{{Passenger: passenger, Amount: 5}},
		Callers:     []CallerChange{{Caller: crypto.Address{7}, Authorized: true}},
	})

	assert.False(t, s.Operational)
	assert.Equal(t, uint64(3), s.Height)
	assert.Equal(t, 1, s.FundedCount())
	assert.Contains(t, s.Flights, key)
	assert.Equal(t, common.Amount(5), s.Balances[passenger])
	assert.True(t, s.AuthorizedCallers.Has(crypto.Address{7}))

	t.Run("zero balance removes the entry", func(t *testing.T) {
		s.Apply(Changes{Balances: []Balance{{Passenger: passenger}}})
		assert.NotContains(t, s.Balances, passenger)
	})
	t.Run("height never goes back", func(t *testing.T) {
		s.Apply(Changes{Height: 1})
		assert.Equal(t, uint64(3), s.Height)
	})
	t.Run("deauthorize", func(t *testing.T) {
		s.Apply(Changes{Callers: []CallerChange{{Caller: crypto.Address{7}}}})
		assert.False(t, s.AuthorizedCallers.Has(crypto.Address{7}))
	})
	t.Run("rewriting a policy keeps one index entry", func(t *testing.T) {
		p := s.Policies[PolicyKey{Passenger: passenger, Flight: key}]
		p.IsCredited = true
		s.Apply(Changes{Policies: []Policy{p}})
		policies := s.FlightPolicies(key)
		require.Len(t, policies, 1)
		assert.True(t, policies[0].IsCredited)
	})
}

func TestCounts(t *testing.T) {
	s := New()
	s.Apply(Changes{Airlines: []Airline{
		{Address: crypto.Address{1}, Status: AirlineApplied},
		{Address: crypto.Address{2}, Status: AirlineRegistered},
		{Address: crypto.Address{3}, Status: AirlineFunded},
		{Address: crypto.Address{4}, Status: AirlineFunded},
	}})
	assert.Equal(t, 3, s.RegisteredCount())
	assert.Equal(t, 2, s.FundedCount())
}

func TestFlightPoliciesPurchaseOrder(t *testing.T) {
	s := New()
	key := NewFlightKey(crypto.Address{1}, "SU2", 1)
	other := NewFlightKey(crypto.Address{1}, "SU3", 1)
	order := []crypto.Address{{0xf0}, {0x01}, {0x7f}}
	for _, p := range order {
		s.Apply(Changes{Policies: []Policy{{Passenger: p, Flight: key, Premium: 1}}})
	}
	s.Apply(Changes{Policies: []Policy{{Passenger: crypto.Address{0x02}, Flight: other, Premium: 1}}})

	policies := s.FlightPolicies(key)
	require.Len(t, policies, 3)
	for i, p := range policies {
		assert.Equal(t, order[i], p.Passenger)
	}
	assert.Empty(t, s.FlightPolicies(NewFlightKey(crypto.Address{2}, "none", 0)))
}

func TestOpenRequests(t *testing.T) {
	s := New()
	key := NewFlightKey(crypto.Address{1}, "SU4", 1)
	s.Apply(Changes{Requests: []OracleRequest{
		{Key: RequestKey{Index: 8, Flight: key}},
		{Key: RequestKey{Index: 2, Flight: key}},
		{Key: RequestKey{Index: 5, Flight: key}, Finalized: true},
		{Key: RequestKey{Index: 1, Flight: NewFlightKey(crypto.Address{1}, "SU5", 1)}},
	}})

	open := s.OpenRequests(key)
	require.Len(t, open, 2)
	assert.Equal(t, uint8(2), open[0].Key.Index)
	assert.Equal(t, uint8(8), open[1].Key.Index)
}

func TestSnapshotDeterministic(t *testing.T) {
	build := func(addrs []crypto.Address) *State {
		s := New()
		for _, a := range addrs {
			s.Apply(Changes{
				Airlines: []Airline{{Address: a, Status: AirlineRegistered}},
				Balances: []Balance{{Passenger: a, Amount: 1}},
			})
		}
		return s
	}
	a := build([]crypto.Address{{3}, {1}, {2}})
	b := build([]crypto.Address{{2}, {3}, {1}})
	assert.Equal(t, a.Dump(), b.Dump())

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(a.Dump()), &snap))
	require.Len(t, snap.Airlines, 3)
	assert.Equal(t, crypto.Address{1}, snap.Airlines[0].Address)
}

func TestFlightKey(t *testing.T) {
	a := NewFlightKey(crypto.Address{1}, "SU100", 1_700_000_000)
	assert.Equal(t, a, NewFlightKey(crypto.Address{1}, "SU100", 1_700_000_000))
	assert.NotEqual(t, a, NewFlightKey(crypto.Address{1}, "SU100", 1_700_000_001))
	assert.NotEqual(t, a, NewFlightKey(crypto.Address{2}, "SU100", 1_700_000_000))
	assert.NotEqual(t, a, NewFlightKey(crypto.Address{1}, "SU101", 1_700_000_000))

	text, err := a.MarshalText()
	require.NoError(t, err)
	var back FlightKey
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, a, back)
}

func TestRequestExpired(t *testing.T) {
	r := OracleRequest{OpenedAt: 10}
	tests := []struct {
		name    string
		now     uint64
		ttl     uint64
		expired bool
	}{
		{"no ttl", 1_000, 0, false},
		{"within ttl", 14, 5, false},
		{"at ttl", 15, 5, true},
		{"past ttl", 30, 5, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expired, r.Expired(tc.now, tc.ttl))
		})
	}
}

func TestStatusCodes(t *testing.T) {
	for _, s := range StatusCodes {
		assert.True(t, s.Valid(), s.String())
	}
	assert.False(t, FlightStatus(15).Valid())
	assert.Equal(t, "late-airline", StatusLateAirline.String())
	assert.Equal(t, "status(15)", FlightStatus(15).String())
}

func TestParseFlightStatus(t *testing.T) {
	for _, s := range StatusCodes {
		got, err := ParseFlightStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseFlightStatus("20")
	require.NoError(t, err)
	assert.Equal(t, StatusLateAirline, got)

	_, err = ParseFlightStatus("delayed")
	assert.Error(t, err)
}
