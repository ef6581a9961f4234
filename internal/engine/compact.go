package engine

import (
	"fmt"
	"path/filepath"

	"github.com/aalhour/lsmkv/internal/blockcodec"
	"github.com/aalhour/lsmkv/internal/logging"
	"github.com/aalhour/lsmkv/internal/mergeiter"
	"github.com/aalhour/lsmkv/internal/run"
)

// maybeCompact cascades size-ratio compaction down through the levels:
// whenever a level holds at least SizeRatio runs, all of its runs are
// merged into a single new run appended to the next level, and the
// check repeats one level deeper.
func (e *Engine) maybeCompact() error {
	if e.fatal.Load() {
		return nil
	}
	for i := 0; i < e.levelCount(); i++ {
		lvl := e.levelAt(i)
		if lvl.Len() < e.cfg.SizeRatio {
			continue
		}
		if err := e.compactLevel(i); err != nil {
			return fmt.Errorf("engine: compact level %d: %w", i, err)
		}
	}
	return nil
}

// compactLevel merges every run currently in level i into one new run
// appended to level i+1, then removes the level-i runs it consumed.
func (e *Engine) compactLevel(i int) error {
	src := e.levelAt(i)
	runs := src.Runs() // newest first: rank 0 is the most recent run.
	if len(runs) == 0 {
		return nil
	}

	destIdx := i + 1
	dest := e.levelAt(destIdx)
	destRunsBefore := dest.Len()
	// A tombstone is safe to drop only if no older copy of its key can
	// possibly remain anywhere: destIdx must be the deepest level that
	// exists, and dest must not already hold runs of its own, since
	// those runs are not part of this merge and could still carry an
	// older live value for the same key. levelAt always grows the
	// level vector to include destIdx, so levelCount()-1 == destIdx
	// whenever no strictly deeper level has been created yet; without
	// the destRunsBefore==0 check that makes isLastDest true on every
	// compaction into a fresh deepest level even when dest already has
	// older runs sitting in it.
	isLastDest := destIdx >= e.levelCount()-1 && destRunsBefore == 0

	sources := make([]mergeiter.ItemSource, len(runs))
	for rank, r := range runs {
		sources[rank] = r.NewIterator()
	}
	merged := mergeiter.New(sources)

	var items []blockcodec.Item
	for {
		it, ok := merged.Next()
		if !ok {
			break
		}
		if it.Tombstone && isLastDest {
			continue
		}
		items = append(items, it)
	}

	if len(items) > 0 {
		name := e.nextFileName(destIdx)
		path := filepath.Join(e.cfg.Directory, name)
		meta, err := run.Write(path, destIdx, &materializedSource{items: items}, len(items), e.cfg.FilterFalsePositiveRate, e.seed, e.cfg.BlockSize)
		if err != nil {
			return fmt.Errorf("write compacted run %s: %w", path, err)
		}
		r, err := run.Open(path)
		if err != nil {
			// Same reasoning as the flush path: the file was just
			// written successfully but can't be read back, which no
			// amount of retrying this merge will fix.
			e.logger.Fatalf("%scompacted run %s but could not reopen it, store entering fatal state: %v", logging.NSCompact, path, err)
			return fmt.Errorf("reopen compacted run %s: %w", path, err)
		}
		dest.Append(r)
		e.logger.Infof("%scompacted %d runs from level %d into %s (%d entries)",
			logging.NSCompact, len(runs), i, name, meta.ElementCount)
	}

	old := src.Clear()
	for _, r := range old {
		if err := r.DeleteFile(); err != nil {
			return fmt.Errorf("delete superseded run %s: %w", r.Path(), err)
		}
	}
	return nil
}

// materializedSource replays a fully-drained, deduplicated item slice
// as an ItemSource; compaction must know the final element count
// before writing the trailer's Bloom filter, so the merge iterator's
// output is collected ahead of time rather than streamed directly.
type materializedSource struct {
	items []blockcodec.Item
	pos   int
}

func (s *materializedSource) Next() (blockcodec.Item, bool) {
	if s.pos >= len(s.items) {
		return blockcodec.Item{}, false
	}
	it := s.items[s.pos]
	s.pos++
	return it, true
}
