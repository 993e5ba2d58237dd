package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/db/pebble"
)

func newStore(t *testing.T) *Ledger {
	t.Helper()
	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	l := NewLedger(kv)
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleChanges() state.Changes {
	airline := crypto.Address{0xa1}
	applicant := crypto.Address{0xa2}
	passenger := crypto.Address{0xb1}
	key := state.NewFlightKey(airline, "SU100", 1_700_000_000)
	off := false

	return state.Changes{
		Operational: &off,
		Height:      7,
		Airlines: []state.Airline{
			{Address: airline, Status: state.AirlineFunded, Funds: 10 * common.Unit},
			{Address: applicant, Status: state.AirlineApplied, Voters: crypto.AddressSet{airline: {}}},
		},
		Flights: []state.Flight{
			{Key: key, Airline: airline, Designator: "SU100", Timestamp: 1_700_000_000, Status: state.StatusLateAirline, Resolved: true},
		},
		Oracles: []state.Oracle{
			{Address: crypto.Address{0xc1}, Indices: [3]uint8{1, 4, 7}, FeePaid: true},
		},
		Requests: []state.OracleRequest{{
			Key:       state.RequestKey{Index: 4, Flight: key},
			Requester: passenger,
			Responses: map[crypto.Address]state.FlightStatus{{0xc1}: state.StatusLateAirline},
			Finalized: true,
			OpenedAt:  5,
		}},
		Policies: []state.Policy{
			{Passenger: passenger, Flight: key, Premium: common.Unit / 2, Credited: 3 * common.Unit / 4, IsCredited: true, PurchasedAt: 4},
		},
		Balances: []state.Balance{{Passenger: passenger, Amount: 3 * common.Unit / 4}},
		Callers:  []state.CallerChange{{Caller: crypto.Address{0xd1}, Authorized: true}},
	}
}

func TestCommitLoadRoundTrip(t *testing.T) {
	l := newStore(t)
	c := sampleChanges()
	require.NoError(t, l.Commit(c))

	want := state.New()
	want.Apply(c)

	got, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, want.Dump(), got.Dump())
	assert.Equal(t, want.FlightPolicies(c.Flights[0].Key), got.FlightPolicies(c.Flights[0].Key))
}

func TestCommitRewindsHeight(t *testing.T) {
	l := newStore(t)
	require.NoError(t, l.Commit(state.Changes{Height: 5}))
	require.NoError(t, l.Commit(state.Changes{Height: 3}))

	got, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Height, "the stored height is overwritten")

	s := state.New()
	s.Apply(state.Changes{Height: 5})
	s.Apply(state.Changes{Height: 3})
	assert.Equal(t, uint64(5), s.Height, "in memory the height only grows")
	s.Apply(state.Changes{Height: 3, Rewind: true})
	assert.Equal(t, uint64(3), s.Height)
}

func TestLoadEmpty(t *testing.T) {
	l := newStore(t)
	got, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, state.New().Dump(), got.Dump())
	assert.True(t, got.Operational)
}

func TestZeroBalanceAndDeauthorizationDelete(t *testing.T) {
	l := newStore(t)
	c := sampleChanges()
	require.NoError(t, l.Commit(c))

	passenger := c.Balances[0].Passenger
	require.NoError(t, l.Commit(state.Changes{
		Height:   8,
		Balances: []state.Balance{{Passenger: passenger}},
		Callers:  []state.CallerChange{{Caller: crypto.Address{0xd1}, Authorized: false}},
	}))

	got, err := l.Load()
	require.NoError(t, err)
	assert.NotContains(t, got.Balances, passenger)
	assert.Empty(t, got.AuthorizedCallers)
	assert.Equal(t, uint64(8), got.Height)
}

func TestPoliciesKeepPurchaseOrder(t *testing.T) {
	l := newStore(t)
	key := state.NewFlightKey(crypto.Address{0xa1}, "SU7", 1)

	// Later buyers sort first by address, purchase order must win.
	buyers := []crypto.Address{{0xff}, {0x10}, {0x80}}
	for i, p := range buyers {
		require.NoError(t, l.Commit(state.Changes{
			Height:   uint64(i + 1),
			Policies: []state.Policy{{Passenger: p, Flight: key, Premium: 1, PurchasedAt: uint64(i + 1)}},
		}))
	}

	got, err := l.Load()
	require.NoError(t, err)
	policies := got.FlightPolicies(key)
	require.Len(t, policies, len(buyers))
	for i, p := range policies {
		assert.Equal(t, buyers[i], p.Passenger)
	}
}

func TestLedgerClosed(t *testing.T) {
	l := newStore(t)
	require.NoError(t, l.Close())
	// Closing twice has no effect
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.Commit(sampleChanges()), ErrLedgerClosed)
	_, err := l.Load()
	assert.ErrorIs(t, err, ErrLedgerClosed)
}

func TestPrefixToString(t *testing.T) {
	assert.Equal(t, "airline", PrefixToString(prefixAirline))
	assert.Equal(t, "meta", PrefixToString(prefixMeta))
	assert.Equal(t, "unknown", PrefixToString(0xff))
}
