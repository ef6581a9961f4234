// Package lsmkv is an embedded, single-node, log-structured-merge
// key-value store for 32-bit signed integer keys and opaque byte-string
// values.
//
// A Store buffers writes in memory, periodically flushing them to
// immutable, block-compressed, Bloom-filtered run files, and merges
// those runs together in the background as they accumulate. There is
// no write-ahead log: only writes that have made it into a completed
// flush survive a restart.
package lsmkv

import (
	"github.com/aalhour/lsmkv/internal/config"
	"github.com/aalhour/lsmkv/internal/engine"
	"github.com/aalhour/lsmkv/internal/logging"
)

// Config is the store's tunable configuration. See config.Config for
// field documentation; Default populates every field but Directory.
type Config = config.Config

// Logger is the logging interface a Store reports through. Discard is
// a no-op Logger suitable for benchmarks.
type Logger = logging.Logger

// Discard is a Logger that drops every message.
var Discard = logging.Discard

// DefaultConfig returns a Config with default tunables for a store
// rooted at directory.
func DefaultConfig(directory string) Config {
	return config.Default(directory)
}

// ErrClosed is returned by Put, Delete and Get once Close has been
// called. A second Close returns nil.
var ErrClosed = engine.ErrClosed

// Store is an open key-value store.
type Store struct {
	e *engine.Engine
}

// Open opens or creates a store per cfg, recovering any run files
// already present in cfg.Directory and starting its background run
// manager. Pass a nil logger to discard log output.
func Open(cfg Config, logger Logger) (*Store, error) {
	e, err := engine.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Store{e: e}, nil
}

// Put installs value for key, replacing any existing entry.
func (s *Store) Put(key int32, value []byte) error {
	return s.e.Put(key, value)
}

// Delete removes key, if present. Get on a deleted key reports found =
// false until the key is put again.
func (s *Store) Delete(key int32) error {
	return s.e.Delete(key)
}

// Get returns the current value for key and whether it was found.
func (s *Store) Get(key int32) (value []byte, found bool, err error) {
	return s.e.Get(key)
}

// Close flushes any buffered writes and releases all open run files.
// The store must not be used afterwards.
func (s *Store) Close() error {
	return s.e.Close()
}
