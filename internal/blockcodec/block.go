package blockcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/aalhour/lsmkv/internal/fence"
)

// SafetyMargin is the minimum slack the writer reserves against the
// configured block size before appending an item, to account for the
// encoder's own framing overhead.
const SafetyMargin = 16

// filler is the padding byte written after a block's compressed bytes
// to bring it up to the configured block size.
const filler = 0x00

// BlockInfo describes one finalized, on-disk block.
type BlockInfo struct {
	Offset uint64
	Length uint32
	Fence  fence.Pointer
}

// Writer assembles a stream of items into fixed-size, DEFLATE-compressed
// blocks. Each call to Add may finalize the block currently being built,
// in which case it returns that block's BlockInfo; Finish must be called
// once at the end to flush the last, possibly partial, block.
type Writer struct {
	out       io.Writer
	blockSize int

	offset uint64 // byte offset of the block currently being built

	buf  bytes.Buffer
	comp *flate.Writer

	pending    int // uncompressed bytes fed to comp for the current block
	minKey     int32
	maxKey     int32
	haveItem   bool
	blockEmpty bool
}

// NewWriter returns a Writer that appends compressed blocks to out,
// targeting blockSize bytes per block.
func NewWriter(out io.Writer, blockSize int) (*Writer, error) {
	w := &Writer{out: out, blockSize: blockSize, blockEmpty: true}
	comp, err := flate.NewWriter(&w.buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("blockcodec: new flate writer: %w", err)
	}
	w.comp = comp
	return w, nil
}

// Add encodes and appends one item. If adding the item would overflow
// the current block, the current block is finalized first and its
// BlockInfo is returned; info is nil when no block was closed.
func (w *Writer) Add(it Item) (info *BlockInfo, err error) {
	itemLen := EncodedLen(it)

	if !w.blockEmpty && w.pending+itemLen+SafetyMargin > w.blockSize {
		closed, err := w.closeBlock()
		if err != nil {
			return nil, err
		}
		info = closed
	}

	if w.blockEmpty {
		w.minKey = it.Key
		w.maxKey = it.Key
		w.blockEmpty = false
	} else {
		if it.Key < w.minKey {
			w.minKey = it.Key
		}
		if it.Key > w.maxKey {
			w.maxKey = it.Key
		}
	}
	w.haveItem = true

	var buf [64]byte
	encoded := encodeItem(buf[:0], it)
	if _, err := w.comp.Write(encoded); err != nil {
		return info, fmt.Errorf("blockcodec: write item: %w", err)
	}
	w.pending += len(encoded)
	return info, nil
}

// Finish flushes the last, possibly partial, block. It returns nil if
// no items were ever added.
func (w *Writer) Finish() (*BlockInfo, error) {
	if !w.haveItem || w.blockEmpty {
		return nil, nil
	}
	return w.closeBlock()
}

func (w *Writer) closeBlock() (*BlockInfo, error) {
	if err := w.comp.Close(); err != nil {
		return nil, fmt.Errorf("blockcodec: close flate stream: %w", err)
	}
	compressed := w.buf.Bytes()
	length := len(compressed)

	if _, err := w.out.Write(compressed); err != nil {
		return nil, fmt.Errorf("blockcodec: write block: %w", err)
	}
	if length < w.blockSize {
		pad := make([]byte, w.blockSize-length)
		for i := range pad {
			pad[i] = filler
		}
		if _, err := w.out.Write(pad); err != nil {
			return nil, fmt.Errorf("blockcodec: pad block: %w", err)
		}
		length = w.blockSize
	}

	fp, err := fence.New(w.minKey, w.maxKey)
	if err != nil {
		return nil, fmt.Errorf("blockcodec: build fence pointer: %w", err)
	}
	info := &BlockInfo{Offset: w.offset, Length: uint32(length), Fence: fp}

	w.offset += uint64(length)
	w.buf.Reset()
	w.comp.Reset(&w.buf)
	w.pending = 0
	w.blockEmpty = true
	w.haveItem = false
	return info, nil
}

// ReadBlock decompresses the block at [offset, offset+length) of r and
// returns its items in on-disk order. length is the on-disk (padded)
// size; trailing filler bytes are naturally ignored once the DEFLATE
// stream reports end-of-stream.
func ReadBlock(r io.ReaderAt, offset int64, length int64) ([]Item, error) {
	raw := make([]byte, length)
	if _, err := r.ReadAt(raw, offset); err != nil {
		return nil, fmt.Errorf("blockcodec: read block: %w", err)
	}

	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	decompressed, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("blockcodec: inflate block: %w", err)
	}

	var items []Item
	pos := 0
	for pos < len(decompressed) {
		it, n, err := decodeItem(decompressed[pos:])
		if err != nil {
			return nil, fmt.Errorf("blockcodec: corrupt block at byte %d: %w", pos, err)
		}
		items = append(items, it)
		pos += n
	}
	return items, nil
}
