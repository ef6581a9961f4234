package memtable

import (
	"sync/atomic"

	"github.com/aalhour/lsmkv/internal/blockcodec"
)

// MemTable is the in-memory write buffer for one generation of writes.
// Puts and deletes overwrite any prior entry for the same key in
// place; ApproxBytes is a monotonically increasing estimate of memory
// used, not corrected when an overwrite makes an older contribution
// obsolete.
type MemTable struct {
	list        *skiplist
	approxBytes atomic.Int64
	count       atomic.Int64
}

// New returns an empty MemTable.
func New() *MemTable {
	return &MemTable{list: newSkiplist()}
}

// Put installs value for key, replacing any existing entry.
func (m *MemTable) Put(key int32, value []byte) {
	n := m.list.getOrInsert(key)
	if n.e.Load() == nil {
		m.count.Add(1)
	}
	n.e.Store(&entry{value: value})
	m.approxBytes.Add(int64(4 + len(value)))
}

// Delete installs a tombstone for key, replacing any existing entry.
func (m *MemTable) Delete(key int32) {
	n := m.list.getOrInsert(key)
	if n.e.Load() == nil {
		m.count.Add(1)
	}
	n.e.Store(&entry{tombstone: true})
	m.approxBytes.Add(4)
}

// Get returns the current value or tombstone state for key.
func (m *MemTable) Get(key int32) (value []byte, tombstone bool, found bool) {
	n := m.list.get(key)
	if n == nil {
		return nil, false, false
	}
	e := n.e.Load()
	if e == nil {
		return nil, false, false
	}
	return e.value, e.tombstone, true
}

// ApproxBytes returns the running estimate of bytes held by this
// memtable's entries.
func (m *MemTable) ApproxBytes() int64 { return m.approxBytes.Load() }

// Count returns the number of distinct keys ever inserted into this
// memtable (including keys now holding a tombstone).
func (m *MemTable) Count() int64 { return m.count.Load() }

// Iterator streams a MemTable's entries in ascending key order as of
// the moment each node is visited.
type Iterator struct {
	it *iterator
}

// NewIterator returns an Iterator over m, implementing the ItemSource
// contract used by the merge iterator and the run writer.
func (m *MemTable) NewIterator() *Iterator {
	return &Iterator{it: m.list.newIterator()}
}

// Next returns the next item, skipping any node whose entry has not
// yet been installed (a skip-list node can briefly exist with a nil
// entry during getOrInsert races, but by the time a flush iterates the
// memtable is no longer being written to).
func (it *Iterator) Next() (blockcodec.Item, bool) {
	for {
		n := it.it.next()
		if n == nil {
			return blockcodec.Item{}, false
		}
		e := n.e.Load()
		if e == nil {
			continue
		}
		return blockcodec.Item{Key: n.key, Tombstone: e.tombstone, Value: e.value}, true
	}
}
