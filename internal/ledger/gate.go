package ledger

import (
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/log"
)

// requireOperational runs before any other check of a mutating operation.
func (l *Ledger) requireOperational() error {
	if !l.state.Operational {
		return ErrNotOperational
	}
	return nil
}

func (l *Ledger) requireAdministrator(caller crypto.Address) error {
	if caller != l.admin {
		return ErrAuthorization
	}
	return nil
}

// SetOperational toggles the gate. It is not gated itself so the
// administrator can always switch the ledger back on.
func (l *Ledger) SetOperational(on bool, caller crypto.Address) error {
	if err := l.requireAdministrator(caller); err != nil {
		return err
	}
	if l.state.Operational == on {
		return nil
	}
	if err := l.commit(state.Changes{Operational: &on}); err != nil {
		return err
	}
	log.Ledger.Info().Bool("operational", on).Msg("operational flag changed")
	return nil
}

// AuthorizeCaller lets target withdraw on behalf of passengers.
func (l *Ledger) AuthorizeCaller(target, caller crypto.Address) error {
	return l.setCaller(target, caller, true)
}

func (l *Ledger) DeauthorizeCaller(target, caller crypto.Address) error {
	return l.setCaller(target, caller, false)
}

func (l *Ledger) setCaller(target, caller crypto.Address, authorized bool) error {
	if err := l.requireOperational(); err != nil {
		return err
	}
	if err := l.requireAdministrator(caller); err != nil {
		return err
	}
	if l.state.AuthorizedCallers.Has(target) == authorized {
		return nil
	}
	c := state.Changes{Callers: []state.CallerChange{{Caller: target, Authorized: authorized}}}
	if err := l.commit(c); err != nil {
		return err
	}
	log.Ledger.Info().Stringer("caller", target).Bool("authorized", authorized).Msg("caller authorization changed")
	return nil
}

func (l *Ledger) IsOperational() bool {
	return l.state.Operational
}

func (l *Ledger) IsAuthorizedCaller(addr crypto.Address) bool {
	return l.state.AuthorizedCallers.Has(addr)
}

// mayActFor reports whether caller may move the passenger's funds.
func (l *Ledger) mayActFor(passenger, caller crypto.Address) bool {
	return caller == passenger || caller == l.admin || l.state.AuthorizedCallers.Has(caller)
}
