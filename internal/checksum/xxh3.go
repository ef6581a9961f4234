// Package checksum provides the hash function used for Bloom filter
// probes.
package checksum

import "github.com/zeebo/xxh3"

// Hash64 returns the 64-bit XXH3 hash of data.
func Hash64(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Hash64Seed returns the 64-bit XXH3 hash of data computed with seed
// as the XXH3 seed, so that distinct seeds produce independent-looking
// hash streams over the same key.
func Hash64Seed(seed uint64, data []byte) uint64 {
	return xxh3.HashSeed(data, seed)
}
