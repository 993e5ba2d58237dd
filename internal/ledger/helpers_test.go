package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/events"
	"github.com/eigerco/surety/internal/state"
)

var (
	admin     = crypto.Address{0xad}
	passenger = crypto.Address{0xb0, 0x01}
	flightDay = uint64(1_700_000_000)
)

func airline(n byte) crypto.Address { return crypto.Address{0xa0, n} }

func oracle(n byte) crypto.Address { return crypto.Address{0xc0, n} }

// queueSource hands out pushed values in order and zero once drained. Oracles
// registered from an empty queue hold indices {0, 9, 8}, requests target 0.
type queueSource struct {
	vals []uint32
}

func (q *queueSource) push(v ...uint32) { q.vals = append(q.vals, v...) }

func (q *queueSource) Uint32() uint32 {
	if len(q.vals) == 0 {
		return 0
	}
	v := q.vals[0]
	q.vals = q.vals[1:]
	return v
}

type transfer struct {
	to     crypto.Address
	amount common.Amount
}

type fakeTransferer struct {
	transfers []transfer
	err       error
	// hook runs inside Transfer, before it returns
	hook func(to crypto.Address, amount common.Amount)
}

func (w *fakeTransferer) Transfer(_ context.Context, to crypto.Address, amount common.Amount) error {
	if w.hook != nil {
		w.hook(to, amount)
	}
	if w.err != nil {
		return w.err
	}
	w.transfers = append(w.transfers, transfer{to: to, amount: amount})
	return nil
}

type failingStore struct {
	err error
}

func (s failingStore) Commit(state.Changes) error { return s.err }

type fixture struct {
	t      *testing.T
	l      *Ledger
	src    *queueSource
	events *events.Recorder
	wallet *fakeTransferer
}

func newFixture(t *testing.T, configure ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{t: t, src: &queueSource{}, events: &events.Recorder{}, wallet: &fakeTransferer{}}
	cfg := Config{
		Administrator:  admin,
		GenesisAirline: airline(1),
		Params:         DefaultParams(),
		Entropy:        f.src,
		Publisher:      f.events,
		Transferer:     f.wallet,
	}
	for _, c := range configure {
		c(&cfg)
	}
	l, err := New(cfg)
	require.NoError(t, err)
	f.l = l
	return f
}

// fundAirlines funds the genesis airline and admits and funds airlines 2..n,
// collecting votes from every funded airline where admission needs them.
func (f *fixture) fundAirlines(n int) []crypto.Address {
	f.t.Helper()
	out := []crypto.Address{airline(1)}
	_, err := f.l.Fund(airline(1), common.FundingMinimum)
	require.NoError(f.t, err)

	for i := 2; i <= n; i++ {
		a := airline(byte(i))
		status, err := f.l.ApplyForAdmission(a, airline(1))
		require.NoError(f.t, err)
		for _, voter := range out {
			if status != state.AirlineApplied {
				break
			}
			status, err = f.l.Vote(a, voter)
			require.NoError(f.t, err)
		}
		require.Equal(f.t, state.AirlineRegistered, status)
		_, err = f.l.Fund(a, common.FundingMinimum)
		require.NoError(f.t, err)
		out = append(out, a)
	}
	return out
}

func (f *fixture) registerFlight(designator string) state.FlightKey {
	f.t.Helper()
	if !f.l.IsFunded(airline(1)) {
		f.fundAirlines(1)
	}
	key, err := f.l.RegisterFlight(airline(1), designator, flightDay)
	require.NoError(f.t, err)
	return key
}

// registerOracles registers oracles 1..n, all holding indices {0, 9, 8}.
func (f *fixture) registerOracles(n int) []crypto.Address {
	f.t.Helper()
	var out []crypto.Address
	for i := 1; i <= n; i++ {
		o := oracle(byte(i))
		_, err := f.l.RegisterOracle(o, common.OracleRegistrationFee)
		require.NoError(f.t, err)
		out = append(out, o)
	}
	return out
}

// resolve opens a request on index 0 and has three oracles report status.
func (f *fixture) resolve(key state.FlightKey, status state.FlightStatus) {
	f.t.Helper()
	oracles := f.registerOracles(3)
	index, err := f.l.RequestStatus(key, passenger)
	require.NoError(f.t, err)
	require.Equal(f.t, uint8(0), index)
	for _, o := range oracles {
		require.NoError(f.t, f.l.SubmitResponse(o, index, key, status))
	}
}

// requireSameDump fails with a unified diff when the two dumps differ.
func requireSameDump(t *testing.T, expected, actual string) {
	t.Helper()
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	if diff != "" {
		t.Fatalf("State mismatch:\n%s", diff)
	}
}

var errBoom = errors.New("boom")
