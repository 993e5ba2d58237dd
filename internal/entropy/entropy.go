// Package entropy supplies the randomness behind oracle index assignment and
// request targeting. Every draw goes through a Source so hosts and tests can
// decide how reproducible the ledger is.
package entropy

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/surety/internal/crypto"
)

var ErrTooManyIndices = errors.New("cannot draw more distinct indices than the range holds")

// Source yields a stream of pseudo-random 32-bit values.
type Source interface {
	Uint32() uint32
}

// Blake2bSource expands a seed into a stream: value i is read from
// blake2b(seed ‖ LE32(i/8)) at byte offset 4*(i mod 8).
type Blake2bSource struct {
	seed  crypto.Hash
	i     uint32
	block [32]byte
}

func NewBlake2bSource(seed crypto.Hash) *Blake2bSource {
	return &Blake2bSource{seed: seed}
}

func (s *Blake2bSource) Uint32() uint32 {
	if s.i%8 == 0 {
		var k [4]byte
		binary.LittleEndian.PutUint32(k[:], s.i/8)
		s.block = blake2b.Sum256(append(s.seed[:], k[:]...))
	}
	p := (4 * s.i) % 32
	s.i++
	return binary.LittleEndian.Uint32(s.block[p : p+4])
}

// Sequence replays a fixed list of values, wrapping around at the end.
type Sequence struct {
	values []uint32
	pos    int
}

func NewSequence(values ...uint32) *Sequence {
	if len(values) == 0 {
		values = []uint32{0}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Uint32() uint32 {
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

// DrawIndex draws one index from [0, n).
func DrawIndex(src Source, n uint8) uint8 {
	return uint8(src.Uint32() % uint32(n))
}

// DrawDistinct draws k distinct indices from [0, n). Each pick consumes one
// value and removes the picked slot by moving the last remaining slot into
// it, so the result never needs a retry.
func DrawDistinct(src Source, n uint8, k int) ([]uint8, error) {
	if k > int(n) {
		return nil, ErrTooManyIndices
	}
	slots := make([]uint8, n)
	for i := range slots {
		slots[i] = uint8(i)
	}

	picked := make([]uint8, 0, k)
	for j := 0; j < k; j++ {
		l := uint32(len(slots))
		idx := src.Uint32() % l
		picked = append(picked, slots[idx])
		slots[idx] = slots[l-1]
		slots = slots[:l-1]
	}
	return picked, nil
}
