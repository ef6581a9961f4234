// Package engine wires the memtables, the run hierarchy, and the
// background run manager into a single embedded store.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalhour/lsmkv/internal/config"
	"github.com/aalhour/lsmkv/internal/level"
	"github.com/aalhour/lsmkv/internal/logging"
	"github.com/aalhour/lsmkv/internal/memtable"
	"github.com/aalhour/lsmkv/internal/run"
)

// ErrClosed is returned by Put, Delete and Get once Close has been
// called. A second Close returns nil.
var ErrClosed = errors.New("engine: store is closed")

// Engine is an open, embedded LSM store.
//
// Invariants maintained across Put/Delete/Get and the background run
// manager:
//
//   - The active memtable is only ever written to by callers of
//     Put/Delete; the run manager never mutates it, only swaps it out.
//   - A run is appended to a level only once its file has been fully
//     written, synced, and closed.
//   - A compaction's output becomes visible (appended to the next
//     level) only after it has been fully written; the runs it replaces
//     are cleared from their level only afterwards.
type Engine struct {
	cfg    config.Config
	logger logging.Logger

	active   atomic.Pointer[memtable.MemTable]
	flushing atomic.Pointer[memtable.MemTable]

	levelsMu sync.RWMutex
	levels   []*level.Level

	fileSeq atomic.Int64
	seed    uint64

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	// fatal is set by the logger's FatalHandler when a background flush
	// or compaction hits an unrecoverable I/O inconsistency (data
	// written to disk but unreadable back); once set, further writes
	// are rejected and the run manager stops attempting new work.
	fatal atomic.Bool
}

// Open opens or creates a store rooted at cfg.Directory, recovering any
// run files already present there, and starts its background run
// manager.
func Open(cfg config.Config, logger logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create directory %s: %w", cfg.Directory, err)
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		seed:   uint64(time.Now().UnixNano()),
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	e.active.Store(memtable.New())
	e.fileSeq.Store(time.Now().UnixMilli())

	if dl, ok := logger.(*logging.DefaultLogger); ok {
		dl.SetFatalHandler(func(msg string) { e.fatal.Store(true) })
	}

	if err := e.recover(); err != nil {
		return nil, err
	}

	e.wg.Add(1)
	go e.runManagerLoop()
	return e, nil
}

// recover scans cfg.Directory for existing run files and rebuilds the
// level hierarchy from them. With no write-ahead log, any writes still
// sitting in a memtable at the time of a previous, unclean shutdown are
// lost; only completed flushes survive.
func (e *Engine) recover() error {
	entries, err := os.ReadDir(e.cfg.Directory)
	if err != nil {
		return fmt.Errorf("engine: read directory %s: %w", e.cfg.Directory, err)
	}

	type found struct {
		level int
		gen   int64
		path  string
	}
	var files []found
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".run") {
			continue
		}
		lvl, gen, ok := parseRunFileName(ent.Name())
		if !ok {
			e.logger.Warnf("%sskipping unrecognized file %s", logging.NSEngine, ent.Name())
			continue
		}
		files = append(files, found{level: lvl, gen: gen, path: filepath.Join(e.cfg.Directory, ent.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].gen < files[j].gen })

	for _, f := range files {
		r, err := run.Open(f.path)
		if err != nil {
			return fmt.Errorf("engine: recover %s: %w", f.path, err)
		}
		e.levelAt(f.level).Append(r)
		if e.fileSeq.Load() <= f.gen {
			e.fileSeq.Store(f.gen + 1)
		}
	}
	return nil
}

func parseRunFileName(name string) (lvl int, gen int64, ok bool) {
	base := strings.TrimSuffix(name, ".run")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	l, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	g, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return l, g, true
}

// levelAt returns the Level at index i, creating it and any missing
// levels before it if necessary.
func (e *Engine) levelAt(i int) *level.Level {
	e.levelsMu.RLock()
	if i < len(e.levels) {
		l := e.levels[i]
		e.levelsMu.RUnlock()
		return l
	}
	e.levelsMu.RUnlock()

	e.levelsMu.Lock()
	defer e.levelsMu.Unlock()
	for len(e.levels) <= i {
		e.levels = append(e.levels, level.New())
	}
	return e.levels[i]
}

func (e *Engine) levelCount() int {
	e.levelsMu.RLock()
	defer e.levelsMu.RUnlock()
	return len(e.levels)
}

func (e *Engine) nextFileName(lvl int) string {
	return run.FileName(lvl, e.fileSeq.Add(1))
}

// Put installs value for key, replacing any existing entry.
func (e *Engine) Put(key int32, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.fatal.Load() {
		return fmt.Errorf("engine: %w", logging.ErrFatal)
	}
	e.active.Load().Put(key, value)
	e.nudge()
	return nil
}

// Delete installs a tombstone for key.
func (e *Engine) Delete(key int32) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.fatal.Load() {
		return fmt.Errorf("engine: %w", logging.ErrFatal)
	}
	e.active.Load().Delete(key)
	e.nudge()
	return nil
}

// Get looks up key across the active memtable, the memtable currently
// being flushed (if any), and then the levels from newest to oldest,
// within a level from its newest run to its oldest.
func (e *Engine) Get(key int32) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrClosed
	}

	if val, tomb, found := e.active.Load().Get(key); found {
		if tomb {
			return nil, false, nil
		}
		return val, true, nil
	}
	if fl := e.flushing.Load(); fl != nil {
		if val, tomb, found := fl.Get(key); found {
			if tomb {
				return nil, false, nil
			}
			return val, true, nil
		}
	}

	e.levelsMu.RLock()
	levels := append([]*level.Level(nil), e.levels...)
	e.levelsMu.RUnlock()

	for _, lvl := range levels {
		for _, r := range lvl.Runs() {
			val, tomb, found, err := r.Get(key)
			if err != nil {
				// A corrupted or unreadable block in one run must not take
				// the whole store offline: the same key may still live in
				// an older run or a lower level, so treat this run as a
				// miss and keep walking instead of failing the read.
				e.logger.Warnf("%s%s: lookup of key %d failed, treating as miss: %v", logging.NSRun, r.Path(), key, err)
				continue
			}
			if found {
				if tomb {
					return nil, false, nil
				}
				return val, true, nil
			}
		}
	}
	return nil, false, nil
}

// nudge wakes the background run manager without blocking the caller.
func (e *Engine) nudge() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// Close stops the background run manager, flushing the active memtable
// first so its contents are not lost, and releases every open run.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopCh)
	e.wg.Wait()

	// A previous flush may have failed and left its memtable parked in
	// flushing; flush it before the active memtable so no buffered
	// writes are dropped on a clean shutdown.
	if pending := e.flushing.Load(); pending != nil && pending.Count() > 0 {
		if err := e.flushMemtable(pending); err != nil {
			return fmt.Errorf("engine: final flush of pending memtable: %w", err)
		}
	}
	if active := e.active.Load(); active != nil && active.Count() > 0 {
		if err := e.flushMemtable(active); err != nil {
			return fmt.Errorf("engine: final flush: %w", err)
		}
	}

	e.levelsMu.RLock()
	defer e.levelsMu.RUnlock()
	var firstErr error
	for _, lvl := range e.levels {
		for _, r := range lvl.Runs() {
			if err := r.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
