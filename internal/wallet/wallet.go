// Package wallet is an in-memory value store standing in for the external
// wallet: it holds the escrow reserve and pays passengers out of it.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/safemath"
	"github.com/eigerco/surety/pkg/log"
)

var ErrInsufficientReserve = errors.New("escrow reserve too low")

type Transfer struct {
	To     crypto.Address
	Amount common.Amount
}

// Wallet keeps the reserve collected from premiums, airline funding and
// oracle fees, and the amounts paid out to each identity.
type Wallet struct {
	mu       sync.Mutex
	reserve  common.Amount
	paid     map[crypto.Address]common.Amount
	received map[crypto.Address]common.Amount
	history  []Transfer
}

func New(reserve common.Amount) *Wallet {
	return &Wallet{
		reserve:  reserve,
		paid:     make(map[crypto.Address]common.Amount),
		received: make(map[crypto.Address]common.Amount),
	}
}

// Deposit adds value paid into the ledger by from.
func (w *Wallet) Deposit(from crypto.Address, amount common.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total, ok := safemath.Add64(uint64(w.reserve), uint64(amount))
	if !ok {
		log.Host.Error().Stringer("from", from).Stringer("amount", amount).Msg("wallet reserve overflow, deposit dropped")
		return
	}
	w.reserve = common.Amount(total)
	w.received[from] += amount
}

// Transfer pays amount out of the reserve. It fails without side effects when
// the reserve cannot cover it or ctx is done.
func (w *Wallet) Transfer(ctx context.Context, to crypto.Address, amount common.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if amount > w.reserve {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientReserve, amount, w.reserve)
	}
	w.reserve -= amount
	w.paid[to] += amount
	w.history = append(w.history, Transfer{To: to, Amount: amount})
	log.Host.Debug().Stringer("to", to).Stringer("amount", amount).Stringer("reserve", w.reserve).Msg("transfer paid")
	return nil
}

func (w *Wallet) Reserve() common.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reserve
}

// Paid is the total transferred to an identity.
func (w *Wallet) Paid(to crypto.Address) common.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paid[to]
}

// Received is the total deposited by an identity.
func (w *Wallet) Received(from crypto.Address) common.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.received[from]
}

func (w *Wallet) History() []Transfer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Transfer(nil), w.history...)
}
