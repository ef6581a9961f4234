package engine

import (
	"fmt"
	"path/filepath"

	"github.com/aalhour/lsmkv/internal/logging"
	"github.com/aalhour/lsmkv/internal/memtable"
	"github.com/aalhour/lsmkv/internal/run"
)

// maybeFlush swaps out the active memtable for a fresh one and flushes
// the old one to a level-0 run, if it has grown past the configured
// memory map budget. The active memtable is never touched directly by
// this path; Put/Delete only ever see the new one once it is installed.
func (e *Engine) maybeFlush() error {
	if e.fatal.Load() {
		return nil
	}

	// A previous flush attempt may have failed after the swap already
	// happened, leaving its memtable parked in flushing. Retry that one
	// before considering whether the current active memtable also needs
	// flushing; flushing must only be cleared once its flush succeeds,
	// or the memtable's writes would become unreachable from both
	// pointers and be lost.
	if pending := e.flushing.Load(); pending != nil {
		if err := e.flushMemtable(pending); err != nil {
			return err
		}
		e.flushing.Store(nil)
	}

	active := e.active.Load()
	if active.ApproxBytes() <= e.cfg.MemoryMapBudget {
		return nil
	}
	// flushing must become visible before active is swapped out, so a
	// concurrent Get never sees a window where the old memtable's data
	// is reachable from neither pointer.
	e.flushing.Store(active)
	if !e.active.CompareAndSwap(active, memtable.New()) {
		// Another goroutine already swapped it out.
		e.flushing.Store(nil)
		return nil
	}
	if err := e.flushMemtable(active); err != nil {
		return err
	}
	e.flushing.Store(nil)
	return nil
}

// flushMemtable writes m's contents to a new level-0 run file.
func (e *Engine) flushMemtable(m *memtable.MemTable) error {
	if m.Count() == 0 {
		return nil
	}
	name := e.nextFileName(0)
	path := filepath.Join(e.cfg.Directory, name)

	meta, err := run.Write(path, 0, m.NewIterator(), int(m.Count()), e.cfg.FilterFalsePositiveRate, e.seed, e.cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("engine: flush memtable to %s: %w", path, err)
	}

	r, err := run.Open(path)
	if err != nil {
		// The run was just written successfully but cannot be read
		// back; retrying the same flush would only produce another
		// unreadable file, so this is treated as fatal rather than
		// transient.
		e.logger.Fatalf("%sflushed run %s but could not reopen it, store entering fatal state: %v", logging.NSFlush, path, err)
		return fmt.Errorf("engine: reopen flushed run %s: %w", path, err)
	}
	e.levelAt(0).Append(r)
	e.logger.Infof("%sflushed %d entries into %s (%d blocks)", logging.NSFlush, meta.ElementCount, name, meta.BlockCount)
	return nil
}
