// Package filter implements a Bloom filter sized from a target
// false-positive rate and an expected element count, as used by a Run
// to short-circuit point lookups for keys it does not contain.
package filter

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"math/rand"

	"github.com/aalhour/lsmkv/internal/checksum"
)

const (
	minProbes = 2
	maxProbes = 200
)

// Filter is a probabilistic set-membership structure over int32 keys.
// A zero Filter is not usable; construct one with NewWithRate.
type Filter struct {
	seeds []uint64
	bits  []byte
	nbits uint64
}

// NewWithRate constructs a filter sized for an expected element count n
// and a target false-positive rate fpr in (0, 1). seed drives the
// deterministic derivation of the k probe seeds, so the same (fpr, n,
// seed) triple always yields bit-identical filters.
func NewWithRate(fpr float64, n int, seed uint64) *Filter {
	if n < 1 {
		n = 1
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = 0.01
	}

	nbits := uint64(math.Ceil(float64(n) * math.Log(1/fpr) / (math.Ln2 * math.Ln2)))
	if nbits < 64 {
		nbits = 64
	}
	// Round up to a whole number of bytes.
	nbytes := (nbits + 7) / 8
	nbits = nbytes * 8

	k := int(math.Round(float64(nbits) / float64(n) * math.Ln2))
	k = clamp(k, minProbes, maxProbes)

	rng := rand.New(rand.NewSource(int64(seed)))
	seeds := make([]uint64, k)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	return &Filter{
		seeds: seeds,
		bits:  make([]byte, nbytes),
		nbits: nbits,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Insert adds a key to the filter.
func (f *Filter) Insert(key int32) {
	enc := encodeKey(key)
	for _, seed := range f.seeds {
		pos := f.position(seed, enc)
		f.bits[pos/8] |= 1 << (pos % 8)
	}
}

// Contains reports whether key may be in the set. A false return
// means the key is definitely absent; a true return may be a false
// positive.
func (f *Filter) Contains(key int32) bool {
	enc := encodeKey(key)
	for _, seed := range f.seeds {
		pos := f.position(seed, enc)
		if f.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

func (f *Filter) position(seed uint64, enc [4]byte) uint64 {
	h := checksum.Hash64Seed(seed, enc[:])
	// Lemire's fastrange: maps a uniformly distributed 64-bit hash into
	// [0, nbits) without a division's bias towards small moduli.
	hi, _ := bits.Mul64(h, f.nbits)
	return hi
}

func encodeKey(key int32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(key))
	return b
}

// NumSeeds returns k, the number of hash probes per key.
func (f *Filter) NumSeeds() int { return len(f.seeds) }

// SizeBytes returns the size of the bit vector in bytes (excludes the
// seed table).
func (f *Filter) SizeBytes() int { return len(f.bits) }

// Marshal serializes the filter: k, the seed table, the bit-vector
// length, then the bit vector itself.
func (f *Filter) Marshal() []byte {
	out := make([]byte, 0, 4+8*len(f.seeds)+8+len(f.bits))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(f.seeds)))
	for _, s := range f.seeds {
		out = binary.LittleEndian.AppendUint64(out, s)
	}
	out = binary.LittleEndian.AppendUint64(out, f.nbits)
	out = append(out, f.bits...)
	return out
}

// Unmarshal deserializes a filter previously produced by Marshal.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("filter: truncated header")
	}
	k := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if len(data) < 8*k+8 {
		return nil, fmt.Errorf("filter: truncated seed table")
	}
	seeds := make([]uint64, k)
	for i := range seeds {
		seeds[i] = binary.LittleEndian.Uint64(data)
		data = data[8:]
	}
	nbits := binary.LittleEndian.Uint64(data)
	data = data[8:]
	nbytes := int((nbits + 7) / 8)
	if len(data) < nbytes {
		return nil, fmt.Errorf("filter: truncated bit vector")
	}
	bits := make([]byte, nbytes)
	copy(bits, data[:nbytes])
	return &Filter{seeds: seeds, bits: bits, nbits: nbits}, nil
}
