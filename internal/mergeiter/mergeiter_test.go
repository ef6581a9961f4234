package mergeiter

import (
	"testing"

	"github.com/aalhour/lsmkv/internal/blockcodec"
)

type sliceSource struct {
	items []blockcodec.Item
	pos   int
}

func (s *sliceSource) Next() (blockcodec.Item, bool) {
	if s.pos >= len(s.items) {
		return blockcodec.Item{}, false
	}
	it := s.items[s.pos]
	s.pos++
	return it, true
}

func src(pairs ...blockcodec.Item) *sliceSource {
	return &sliceSource{items: pairs}
}

func drain(m *MergeIterator) []blockcodec.Item {
	var out []blockcodec.Item
	for {
		it, ok := m.Next()
		if !ok {
			break
		}
		out = append(out, it)
	}
	return out
}

func TestMergeOrdersDisjointSources(t *testing.T) {
	a := src(blockcodec.Item{Key: 1}, blockcodec.Item{Key: 4})
	b := src(blockcodec.Item{Key: 2}, blockcodec.Item{Key: 3})
	got := drain(New([]ItemSource{a, b}))

	wantKeys := []int32{1, 2, 3, 4}
	if len(got) != len(wantKeys) {
		t.Fatalf("got %d items, want %d", len(got), len(wantKeys))
	}
	for i, k := range wantKeys {
		if got[i].Key != k {
			t.Fatalf("item %d key = %d, want %d", i, got[i].Key, k)
		}
	}
}

func TestMergeNewestSourceWinsOnTie(t *testing.T) {
	newest := src(blockcodec.Item{Key: 5, Value: []byte("new")})
	middle := src(blockcodec.Item{Key: 5, Value: []byte("mid")})
	oldest := src(blockcodec.Item{Key: 5, Value: []byte("old")})

	got := drain(New([]ItemSource{newest, middle, oldest}))
	if len(got) != 1 {
		t.Fatalf("expected exactly one surviving item, got %d", len(got))
	}
	if string(got[0].Value) != "new" {
		t.Fatalf("value = %q, want %q", got[0].Value, "new")
	}
}

func TestMergeNewestTombstoneShadowsOlderValue(t *testing.T) {
	newest := src(blockcodec.Item{Key: 9, Tombstone: true})
	oldest := src(blockcodec.Item{Key: 9, Value: []byte("old")})

	got := drain(New([]ItemSource{newest, oldest}))
	if len(got) != 1 {
		t.Fatalf("expected exactly one surviving item, got %d", len(got))
	}
	if !got[0].Tombstone {
		t.Fatal("expected the tombstone to shadow the older value")
	}
}

func TestMergeEmptySources(t *testing.T) {
	got := drain(New([]ItemSource{src(), src()}))
	if len(got) != 0 {
		t.Fatalf("expected no items, got %d", len(got))
	}
}
