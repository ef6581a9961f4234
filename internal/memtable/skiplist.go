// Package memtable implements the in-memory write buffer: a lock-free-read
// skip list over int32 keys with update-in-place (overwrite) semantics.
package memtable

import (
	"math/rand/v2"
	"sync/atomic"
)

const (
	maxHeight = 12
	pValue    = 0.25
)

// entry is the current value or tombstone stored for a key. Puts and
// deletes both install a fresh *entry atomically; readers never see a
// partially written value.
type entry struct {
	value     []byte
	tombstone bool
}

type node struct {
	key  int32
	e    atomic.Pointer[entry]
	next []atomic.Pointer[node]
}

func newNode(key int32, height int) *node {
	return &node{key: key, next: make([]atomic.Pointer[node], height)}
}

func (n *node) loadNext(level int) *node {
	return n.next[level].Load()
}

func (n *node) storeNext(level int, v *node) {
	n.next[level].Store(v)
}

// casNext performs a compare-and-swap on the forward pointer at level,
// allowing lock-free insertion races to be resolved without a mutex.
func (n *node) casNext(level int, old, v *node) bool {
	return n.next[level].CompareAndSwap(old, v)
}

// skiplist is the ordered index over int32 keys. Reads never take a
// lock; concurrent writers race on casNext and retry on failure.
type skiplist struct {
	head      *node
	maxHeight atomic.Int32
}

func newSkiplist() *skiplist {
	s := &skiplist{head: newNode(0, maxHeight)}
	s.maxHeight.Store(1)
	return s
}

func randomHeight() int {
	h := 1
	for h < maxHeight && rand.Float64() < pValue {
		h++
	}
	return h
}

// findGreaterOrEqual returns the first node with key >= target, and
// (when prev is non-nil) records, per level, the last node visited
// before that point — the predecessor an insertion at that level would
// splice after.
func (s *skiplist) findGreaterOrEqual(target int32, prev []*node) *node {
	x := s.head
	level := int(s.maxHeight.Load()) - 1
	for {
		next := x.loadNext(level)
		if next != nil && next.key < target {
			x = next
			continue
		}
		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return next
		}
		level--
	}
}

// get returns the node with the given key, or nil if absent.
func (s *skiplist) get(key int32) *node {
	n := s.findGreaterOrEqual(key, nil)
	if n != nil && n.key == key {
		return n
	}
	return nil
}

// getOrInsert returns the existing node for key if present; otherwise
// it inserts a new, empty node and returns it. Safe for concurrent use.
func (s *skiplist) getOrInsert(key int32) *node {
	var prev [maxHeight]*node
	for {
		next := s.findGreaterOrEqual(key, prev[:])
		if next != nil && next.key == key {
			return next
		}

		height := randomHeight()
		if height > int(s.maxHeight.Load()) {
			for i := int(s.maxHeight.Load()); i < height; i++ {
				prev[i] = s.head
			}
			s.maxHeight.Store(int32(height))
		}

		n := newNode(key, height)
		for i := 0; i < height; i++ {
			n.next[i].Store(prev[i].loadNext(i))
		}
		if prev[0].casNext(0, next, n) {
			// Level 0 linked in; splice the remaining levels. A
			// concurrent insert of a different key cannot change
			// what we observed at levels > 0 in a way that breaks
			// correctness: at worst another goroutine's node ends up
			// before or after n at a higher level, which the search
			// still resolves correctly via level 0.
			for i := 1; i < height; i++ {
				for {
					p := prev[i]
					nx := p.loadNext(i)
					n.next[i].Store(nx)
					if p.casNext(i, nx, n) {
						break
					}
					s.findGreaterOrEqual(key, prev[:])
				}
			}
			return n
		}
		// Lost the race at level 0; retry the whole insertion.
	}
}

// iterator walks the skip list from its head in ascending key order.
type iterator struct {
	cur *node
}

func (s *skiplist) newIterator() *iterator {
	return &iterator{cur: s.head}
}

// next advances to and returns the next node, or nil at the end.
func (it *iterator) next() *node {
	it.cur = it.cur.loadNext(0)
	return it.cur
}
