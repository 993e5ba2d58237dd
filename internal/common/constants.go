package common

import (
	"fmt"
	"strconv"
	"strings"
)

// Amount is a value in nano units; Unit nano units make one unit.
type Amount uint64

const Unit Amount = 1_000_000_000

const (
	PremiumCap              = 1 * Unit  // Upper bound of a single policy's premium
	FundingMinimum          = 10 * Unit // Deposit that turns a registered airline into a funded one
	OracleRegistrationFee   = 1 * Unit  // Fee an oracle pays to be assigned indices
	NumberOfOracleIndices   = 10        // (N) indices are drawn from [0, N)
	IndicesPerOracle        = 3         // Distinct indices held by each oracle
	OracleQuorum            = 3         // Matching responses needed to resolve a flight
	ConsensusThreshold      = 4         // Registered airlines from which admission needs votes
	DefaultPayoutPercentage = 150       // Credit paid on an airline-caused delay, in percent of the premium
)

// String renders the amount in units with up to nine decimals, e.g. "1.05".
func (a Amount) String() string {
	whole := uint64(a / Unit)
	frac := uint64(a % Unit)
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return strconv.FormatUint(whole, 10) + "." + f
}

// ParseAmount parses a decimal amount in units ("0.7", "10") into nano units.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && !hasFrac {
		return 0, fmt.Errorf("parse amount %q: empty", s)
	}
	var w uint64
	if whole != "" {
		var err error
		w, err = strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", s, err)
		}
	}
	if w > uint64(^Amount(0)/Unit) {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}
	var f uint64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 9 {
			return 0, fmt.Errorf("parse amount %q: want 1 to 9 decimals", s)
		}
		var err error
		f, err = strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", s, err)
		}
	}
	total := Amount(w)*Unit + Amount(f)
	if total < Amount(w)*Unit {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}
	return total, nil
}
