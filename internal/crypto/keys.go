package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies a participant of the ledger: the administrator,
// airlines, passengers and oracles.
type Address [AddressSize]byte

// AddressFromHex parses a 0x-prefixed or bare hex address.
func AddressFromHex(s string) (Address, error) {
	b, err := decodeHex(s, AddressSize)
	if err != nil {
		return Address{}, err
	}
	return Address(b), nil
}

// MustAddress is AddressFromHex for constants and tests.
func MustAddress(s string) Address {
	a, err := AddressFromHex(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromHex(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func decodeHex(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex %q: %w", s, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("decode hex %q: want %d bytes, got %d", s, size, len(b))
	}
	return b, nil
}
