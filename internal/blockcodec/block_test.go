package blockcodec

import (
	"bytes"
	"testing"
)

func TestWriterSingleBlockRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 4096)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	items := []Item{
		{Key: 1, Value: []byte("a")},
		{Key: 2, Value: []byte("bb")},
		{Key: 3, Tombstone: true},
	}
	for _, it := range items {
		if info, err := w.Add(it); err != nil {
			t.Fatalf("Add: %v", err)
		} else if info != nil {
			t.Fatalf("unexpected early block close")
		}
	}
	info, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if info == nil {
		t.Fatal("expected a finalized block")
	}
	if info.Fence.Low != 1 || info.Fence.High != 3 {
		t.Fatalf("fence = %v, want [1,3]", info.Fence)
	}
	if int(info.Length) != buf.Len() {
		t.Fatalf("block length %d != written bytes %d", info.Length, buf.Len())
	}

	got, err := ReadBlock(bytes.NewReader(buf.Bytes()), 0, int64(info.Length))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i, it := range got {
		if it.Key != items[i].Key || it.Tombstone != items[i].Tombstone || !bytes.Equal(it.Value, items[i].Value) {
			t.Fatalf("item %d = %+v, want %+v", i, it, items[i])
		}
	}
}

func TestWriterSplitsOversizedInput(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 128)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	var blocks []*BlockInfo
	for i := int32(0); i < 200; i++ {
		it := Item{Key: i, Value: bytes.Repeat([]byte{byte(i)}, 20)}
		if info, err := w.Add(it); err != nil {
			t.Fatalf("Add: %v", err)
		} else if info != nil {
			blocks = append(blocks, info)
		}
	}
	last, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if last != nil {
		blocks = append(blocks, last)
	}
	if len(blocks) < 2 {
		t.Fatalf("expected multiple blocks, got %d", len(blocks))
	}

	var total int
	for i, b := range blocks {
		if i > 0 && blocks[i-1].Fence.High >= b.Fence.Low {
			t.Fatalf("fence pointers out of order between blocks %d and %d", i-1, i)
		}
		total += int(b.Length)
	}
	if total != buf.Len() {
		t.Fatalf("sum of block lengths %d != buffer length %d", total, buf.Len())
	}
}

func TestWriterNoItemsProducesNoBlock(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 4096)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	info, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if info != nil {
		t.Fatal("expected nil BlockInfo for an empty writer")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no bytes written, got %d", buf.Len())
	}
}
