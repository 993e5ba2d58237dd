package ledger

import (
	"context"
	"fmt"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/safemath"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/log"
)

// Buy insures the passenger on a flight that has no status yet.
func (l *Ledger) Buy(passenger crypto.Address, key state.FlightKey, premium common.Amount) error {
	if err := l.requireOperational(); err != nil {
		return err
	}
	f, ok := l.state.Flights[key]
	if !ok {
		return ErrFlightNotFound
	}
	if f.Resolved || f.Status != state.StatusUnknown {
		return ErrFlightAlreadyResolved
	}
	if premium == 0 || premium > l.params.PremiumCap {
		return ErrPremiumCapExceeded
	}
	p := state.Policy{Passenger: passenger, Flight: key, Premium: premium}
	if _, ok := l.state.Policies[p.Key()]; ok {
		return ErrDuplicatePolicy
	}

	p.PurchasedAt = l.state.Height + 1
	if err := l.commit(state.Changes{Policies: []state.Policy{p}}); err != nil {
		return err
	}
	log.Ledger.Info().Stringer("passenger", passenger).Stringer("flight", key).
		Stringer("premium", premium).Msg("policy bought")
	return nil
}

// CreditInsurees credits every policy of a flight delayed by its airline
// that was not credited yet with premium*payoutPercentage/100. It returns the
// amount credited by this call; policies credited earlier keep their amount.
func (l *Ledger) CreditInsurees(key state.FlightKey, payoutPercentage uint64) (common.Amount, error) {
	if err := l.requireOperational(); err != nil {
		return 0, err
	}
	f, ok := l.state.Flights[key]
	if !ok {
		return 0, ErrFlightNotFound
	}
	if f.Status != state.StatusLateAirline {
		return 0, ErrFlightNotDelayedByAirline
	}
	if payoutPercentage == 0 {
		return 0, ErrInvalidPayoutPercentage
	}

	policies, balances, total, err := l.creditChanges(key, payoutPercentage)
	if err != nil {
		return 0, err
	}
	if len(policies) == 0 {
		return 0, nil
	}
	if err := l.commit(state.Changes{Policies: policies, Balances: balances}); err != nil {
		return 0, err
	}
	log.Ledger.Info().Stringer("flight", key).Int("policies", len(policies)).
		Uint64("percentage", payoutPercentage).Stringer("total", total).Msg("insurees credited")
	return total, nil
}

// creditChanges computes the policy and balance records crediting every
// uncredited policy of the flight. Nothing is applied.
func (l *Ledger) creditChanges(key state.FlightKey, payoutPercentage uint64) ([]state.Policy, []state.Balance, common.Amount, error) {
	var (
		policies []state.Policy
		total    common.Amount
		order    []crypto.Address
	)
	balances := make(map[crypto.Address]common.Amount)

	for _, p := range l.state.FlightPolicies(key) {
		if p.IsCredited {
			continue
		}
		amount, ok := safemath.MulDiv64(uint64(p.Premium), payoutPercentage, 100)
		if !ok {
			return nil, nil, 0, fmt.Errorf("credit for %s: %w", p.Passenger, safemath.ErrOverflow)
		}

		current, seen := balances[p.Passenger]
		if !seen {
			current = l.state.Balances[p.Passenger]
			order = append(order, p.Passenger)
		}
		next, ok := safemath.Add64(uint64(current), amount)
		if !ok {
			return nil, nil, 0, fmt.Errorf("balance of %s: %w", p.Passenger, safemath.ErrOverflow)
		}
		sum, ok := safemath.Add64(uint64(total), amount)
		if !ok {
			return nil, nil, 0, fmt.Errorf("credit total: %w", safemath.ErrOverflow)
		}

		balances[p.Passenger] = common.Amount(next)
		total = common.Amount(sum)
		p.Credited = common.Amount(amount)
		p.IsCredited = true
		policies = append(policies, p)
	}

	out := make([]state.Balance, 0, len(order))
	for _, passenger := range order {
		out = append(out, state.Balance{Passenger: passenger, Amount: balances[passenger]})
	}
	return policies, out, total, nil
}

// Withdraw pays out the passenger's whole balance. The zeroed balance is
// committed before the transfer is issued, so a transfer calling back into
// the ledger finds nothing left to withdraw. When the transfer fails the
// amount is put back and ErrTransferFailed is returned.
func (l *Ledger) Withdraw(ctx context.Context, passenger, caller crypto.Address) (common.Amount, error) {
	if err := l.requireOperational(); err != nil {
		return 0, err
	}
	if !l.mayActFor(passenger, caller) {
		return 0, ErrAuthorization
	}
	amount := l.state.Balances[passenger]
	if amount == 0 {
		return 0, ErrNothingToWithdraw
	}

	before := l.state.Height
	if err := l.commit(state.Changes{Balances: []state.Balance{{Passenger: passenger}}}); err != nil {
		return 0, err
	}

	if err := l.transfer.Transfer(ctx, passenger, amount); err != nil {
		if rerr := l.restore(passenger, amount, before); rerr != nil {
			log.Ledger.Error().Err(rerr).Stringer("passenger", passenger).Stringer("amount", amount).
				Msg("restore balance after failed transfer")
		}
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	log.Ledger.Info().Stringer("passenger", passenger).Stringer("caller", caller).
		Stringer("amount", amount).Msg("balance withdrawn")
	return amount, nil
}

// restore adds amount back to the passenger's current balance, which the
// transfer may have changed in the meantime. When nothing else was applied
// during the transfer the height is rewound to before, leaving the state as
// it was before the withdrawal.
func (l *Ledger) restore(passenger crypto.Address, amount common.Amount, before uint64) error {
	sum, ok := safemath.Add64(uint64(l.state.Balances[passenger]), uint64(amount))
	if !ok {
		return safemath.ErrOverflow
	}
	c := state.Changes{Balances: []state.Balance{{Passenger: passenger, Amount: common.Amount(sum)}}}
	if l.state.Height != before+1 {
		return l.commit(c)
	}
	c.Height, c.Rewind = before, true
	return l.persist(c)
}

// Policy returns the passenger's policy on a flight.
func (l *Ledger) Policy(passenger crypto.Address, key state.FlightKey) (state.Policy, bool) {
	p, ok := l.state.Policies[state.PolicyKey{Passenger: passenger, Flight: key}]
	return p, ok
}

// Balance is the passenger's withdrawable amount.
func (l *Ledger) Balance(passenger crypto.Address) common.Amount {
	return l.state.Balances[passenger]
}
