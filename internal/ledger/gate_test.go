package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
)

func TestSetOperational(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.l.SetOperational(false, airline(1)), ErrAuthorization)
	assert.True(t, f.l.IsOperational())

	require.NoError(t, f.l.SetOperational(false, admin))
	assert.False(t, f.l.IsOperational())

	height := f.l.Height()
	require.NoError(t, f.l.SetOperational(false, admin))
	assert.Equal(t, height, f.l.Height(), "setting the same value is not a change")

	require.NoError(t, f.l.SetOperational(true, admin))
	assert.True(t, f.l.IsOperational())
}

func TestNotOperationalLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.fundAirlines(5)
	key := f.registerFlight("SU100")
	f.registerOracles(3)
	index, err := f.l.RequestStatus(key, passenger)
	require.NoError(t, err)
	require.NoError(t, f.l.Buy(passenger, key, common.Unit/2))

	// An applicant waiting for votes, so vote has something to act on.
	_, err = f.l.ApplyForAdmission(airline(6), airline(1))
	require.NoError(t, err)

	require.NoError(t, f.l.SetOperational(false, admin))
	before := f.l.Dump()
	f.events.Reset()

	ops := map[string]func() error{
		"applyForAdmission": func() error { _, err := f.l.ApplyForAdmission(airline(7), airline(1)); return err },
		"vote":              func() error { _, err := f.l.Vote(airline(6), airline(2)); return err },
		"fund":              func() error { _, err := f.l.Fund(airline(6), common.FundingMinimum); return err },
		"registerFlight":    func() error { _, err := f.l.RegisterFlight(airline(1), "SU200", flightDay); return err },
		"registerOracle":    func() error { _, err := f.l.RegisterOracle(oracle(9), common.OracleRegistrationFee); return err },
		"requestStatus":     func() error { _, err := f.l.RequestStatus(key, passenger); return err },
		"submitResponse": func() error {
			return f.l.SubmitResponse(oracle(1), index, key, state.StatusLateAirline)
		},
		"buy":               func() error { return f.l.Buy(crypto.Address{0xb2}, key, common.Unit) },
		"creditInsurees":    func() error { _, err := f.l.CreditInsurees(key, 150); return err },
		"withdraw":          func() error { _, err := f.l.Withdraw(context.Background(), passenger, admin); return err },
		"authorizeCaller":   func() error { return f.l.AuthorizeCaller(crypto.Address{0xee}, admin) },
		"deauthorizeCaller": func() error { return f.l.DeauthorizeCaller(crypto.Address{0xee}, admin) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, op(), ErrNotOperational)
			requireSameDump(t, before, f.l.Dump())
		})
	}
	assert.Empty(t, f.events.Events())
	assert.Empty(t, f.wallet.transfers)
}

func TestNotOperationalCheckedFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.SetOperational(false, admin))

	// Every other check would fail too; the gate must be what reports.
	_, err := f.l.RegisterOracle(oracle(1), 0)
	assert.ErrorIs(t, err, ErrNotOperational)
	_, err = f.l.RegisterFlight(crypto.Address{0x99}, "", 0)
	assert.ErrorIs(t, err, ErrNotOperational)
	assert.ErrorIs(t, f.l.AuthorizeCaller(crypto.Address{0xee}, crypto.Address{0x99}), ErrNotOperational)
}

func TestAuthorizeCaller(t *testing.T) {
	f := newFixture(t)
	caller := crypto.Address{0xee}

	require.ErrorIs(t, f.l.AuthorizeCaller(caller, airline(1)), ErrAuthorization)
	assert.False(t, f.l.IsAuthorizedCaller(caller))

	require.NoError(t, f.l.AuthorizeCaller(caller, admin))
	assert.True(t, f.l.IsAuthorizedCaller(caller))

	require.ErrorIs(t, f.l.DeauthorizeCaller(caller, caller), ErrAuthorization)
	require.NoError(t, f.l.DeauthorizeCaller(caller, admin))
	assert.False(t, f.l.IsAuthorizedCaller(caller))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*Config)
	}{
		{"no administrator", func(c *Config) { c.Administrator = crypto.Address{} }},
		{"no transferer", func(c *Config) { c.Transferer = nil }},
		{"zero premium cap", func(c *Config) { c.Params.PremiumCap = 0 }},
		{"zero quorum", func(c *Config) { c.Params.Quorum = 0 }},
		{"too few indices", func(c *Config) { c.Params.IndexCount = 2 }},
		{"auto credit without percentage", func(c *Config) { c.Params.PayoutPercentage = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				Administrator: admin,
				Params:        DefaultParams(),
				Transferer:    &fakeTransferer{},
			}
			tc.configure(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestGenesisAirline(t *testing.T) {
	f := newFixture(t)

	a, ok := f.l.Airline(airline(1))
	require.True(t, ok)
	assert.Equal(t, state.AirlineRegistered, a.Status)
	assert.Equal(t, uint64(0), f.l.Height(), "genesis is not an operation")
	assert.Equal(t, 1, f.l.RegisteredCount())
	assert.Equal(t, 0, f.l.FundedCount())

	t.Run("not registered again on a restored state", func(t *testing.T) {
		restored := state.New()
		restored.Apply(state.Changes{Airlines: []state.Airline{{Address: airline(3), Status: state.AirlineFunded}}})
		g := newFixture(t, func(c *Config) { c.State = restored })
		_, ok := g.l.Airline(airline(1))
		assert.False(t, ok)
	})
}

func TestStoreFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.fundAirlines(1)
	before := f.l.Dump()

	f.l.store = failingStore{err: errBoom}
	_, err := f.l.RegisterFlight(airline(1), "SU100", flightDay)
	require.ErrorIs(t, err, errBoom)
	requireSameDump(t, before, f.l.Dump())
}
