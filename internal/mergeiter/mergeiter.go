// Package mergeiter implements a k-way merging iterator over ordered
// item sources, resolving duplicate keys by recency: the source that
// was registered first is treated as the newest and wins any tie.
package mergeiter

import (
	"container/heap"

	"github.com/aalhour/lsmkv/internal/blockcodec"
)

// ItemSource yields items in strictly ascending key order.
type ItemSource interface {
	Next() (blockcodec.Item, bool)
}

// MergeIterator merges a fixed set of ItemSources into a single
// ascending stream, dropping older duplicates of any key that appears
// in more than one source.
type MergeIterator struct {
	sources []ItemSource
	h       entryHeap
}

type entry struct {
	item blockcodec.Item
	rank int
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].item.Key != h[j].item.Key {
		return h[i].item.Key < h[j].item.Key
	}
	// Lower rank means a newer source; it must sort first so it is
	// popped before, and thus shadows, any older duplicate.
	return h[i].rank < h[j].rank
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// New returns a MergeIterator over sources, ordered from newest (index
// 0) to oldest (last index). The recency ordering determines which
// source wins when the same key appears in more than one of them.
func New(sources []ItemSource) *MergeIterator {
	m := &MergeIterator{sources: sources}
	for rank, s := range sources {
		if it, ok := s.Next(); ok {
			heap.Push(&m.h, entry{item: it, rank: rank})
		}
	}
	return m
}

// Next returns the next item in ascending key order across all
// sources. Only the newest copy of any duplicated key is returned;
// older copies, including their values and tombstone markers, are
// silently dropped.
func (m *MergeIterator) Next() (blockcodec.Item, bool) {
	if len(m.h) == 0 {
		return blockcodec.Item{}, false
	}
	top := heap.Pop(&m.h).(entry)
	result := top.item
	m.refill(top.rank)

	for len(m.h) > 0 && m.h[0].item.Key == result.Key {
		dup := heap.Pop(&m.h).(entry)
		m.refill(dup.rank)
	}
	return result, true
}

func (m *MergeIterator) refill(rank int) {
	if it, ok := m.sources[rank].Next(); ok {
		heap.Push(&m.h, entry{item: it, rank: rank})
	}
}
