package crypto

import (
	"bytes"
	"slices"
)

type AddressSet map[Address]struct{}

func (set AddressSet) Add(a Address) {
	set[a] = struct{}{}
}

func (set AddressSet) Has(a Address) bool {
	_, ok := set[a]
	return ok
}

// Clone returns an independent copy; a nil set clones to an empty one.
func (set AddressSet) Clone() AddressSet {
	c := make(AddressSet, len(set))
	for a := range set {
		c[a] = struct{}{}
	}
	return c
}

// Sorted lists the members in byte order, for deterministic encoding.
func (set AddressSet) Sorted() []Address {
	out := make([]Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y Address) int {
		return bytes.Compare(x[:], y[:])
	})
	return out
}
