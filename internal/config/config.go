// Package config defines the store's tunable parameters and their
// validation.
package config

import "fmt"

// Config holds the tunables for an open store. The zero Config is not
// valid; use Default and override individual fields.
type Config struct {
	// Directory is where run files and their trailers are written.
	// Required.
	Directory string

	// MemoryMapBudget is the approximate byte size, per memtable, that
	// triggers a flush to disk once exceeded.
	// Default: 100 MiB
	MemoryMapBudget int64

	// BloomFilterBudget is an advisory total byte budget for Bloom
	// filters across all runs. It does not change filter sizing
	// directly; filters are sized per run from the target false
	// positive rate and the run's element count.
	// Default: 10 MiB
	BloomFilterBudget int64

	// SizeRatio (T) is the number of runs a level may hold before they
	// are compacted into the next level. Must be >= 2.
	// Default: 4
	SizeRatio int

	// K is the number of levels eagerly prepared ahead of demand. It is
	// accepted and echoed back by the store but is not currently
	// enforced against level growth.
	// Default: 1
	K int

	// Z is the number of runs a level may hold at level 0 specifically,
	// before applying SizeRatio to deeper levels. Like K, it is
	// accepted and echoed back but not currently enforced.
	// Default: 1
	Z int

	// BlockSize is the target size, in bytes, of a compressed on-disk
	// block.
	// Default: 4 KiB
	BlockSize int

	// FilterFalsePositiveRate is the target false-positive rate used to
	// size each run's Bloom filter.
	// Default: 0.01
	FilterFalsePositiveRate float64
}

const (
	defaultMemoryMapBudget   = 100 << 20
	defaultBloomFilterBudget = 10 << 20
	defaultSizeRatio         = 4
	defaultK                 = 1
	defaultZ                 = 1
	defaultBlockSize         = 4 << 10
	defaultFilterFPR         = 0.01
)

// Default returns a Config with every field set to its default value
// except Directory, which the caller must still provide.
func Default(directory string) Config {
	return Config{
		Directory:               directory,
		MemoryMapBudget:         defaultMemoryMapBudget,
		BloomFilterBudget:       defaultBloomFilterBudget,
		SizeRatio:               defaultSizeRatio,
		K:                       defaultK,
		Z:                       defaultZ,
		BlockSize:               defaultBlockSize,
		FilterFalsePositiveRate: defaultFilterFPR,
	}
}

// ErrConfig is the sentinel wrapped by every validation failure
// returned from Validate. Use errors.Is(err, ErrConfig) to detect them.
var ErrConfig = fmt.Errorf("invalid configuration")

// Validate reports whether c is usable, wrapping ErrConfig with the
// specific field that failed.
func (c Config) Validate() error {
	switch {
	case c.Directory == "":
		return fmt.Errorf("%w: directory must not be empty", ErrConfig)
	case c.MemoryMapBudget <= 0:
		return fmt.Errorf("%w: memory map budget must be positive, got %d", ErrConfig, c.MemoryMapBudget)
	case c.BloomFilterBudget <= 0:
		return fmt.Errorf("%w: bloom filter budget must be positive, got %d", ErrConfig, c.BloomFilterBudget)
	case c.SizeRatio < 2:
		return fmt.Errorf("%w: size ratio must be >= 2, got %d", ErrConfig, c.SizeRatio)
	case c.BlockSize < 256:
		return fmt.Errorf("%w: block size must be >= 256 bytes, got %d", ErrConfig, c.BlockSize)
	case c.FilterFalsePositiveRate <= 0 || c.FilterFalsePositiveRate >= 1:
		return fmt.Errorf("%w: filter false positive rate must be in (0, 1), got %f", ErrConfig, c.FilterFalsePositiveRate)
	}
	return nil
}
