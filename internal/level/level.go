// Package level implements one level of the run hierarchy: an ordered
// list of runs, newest first, mutated by flush and compaction under a
// mutex scoped beneath the engine's level-vector lock.
package level

import (
	"sync"

	"github.com/aalhour/lsmkv/internal/run"
)

// Level holds the runs belonging to one tier of the hierarchy, ordered
// from most to least recently written. A point lookup scans runs in
// this order so the first match found is the most recent one.
type Level struct {
	mu   sync.Mutex
	runs []*run.Run
}

// New returns an empty Level.
func New() *Level {
	return &Level{}
}

// Append adds r as the newest run in the level.
func (l *Level) Append(r *run.Run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append([]*run.Run{r}, l.runs...)
}

// Runs returns a snapshot of the level's runs, newest first. The
// returned slice is safe to read without holding the level's lock but
// may be stale relative to a concurrent Append or Replace.
func (l *Level) Runs() []*run.Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*run.Run, len(l.runs))
	copy(out, l.runs)
	return out
}

// Len returns the number of runs currently in the level.
func (l *Level) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.runs)
}

// Replace atomically swaps the level's entire run list for newRuns.
func (l *Level) Replace(newRuns []*run.Run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = newRuns
}

// Clear empties the level, returning the runs it held so the caller
// can close or delete them.
func (l *Level) Clear() []*run.Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.runs
	l.runs = nil
	return old
}
