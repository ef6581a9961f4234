// Package run implements the on-disk run: an immutable, sorted,
// block-compressed, Bloom-filtered, fence-pointer-indexed file produced
// by a memtable flush or a compaction.
package run

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/aalhour/lsmkv/internal/blockcodec"
	"github.com/aalhour/lsmkv/internal/fence"
	"github.com/aalhour/lsmkv/internal/filter"
)

// ItemSource yields items in strictly ascending key order with
// duplicates already resolved; it is implemented by a memtable iterator
// and by the merge iterator.
type ItemSource interface {
	Next() (blockcodec.Item, bool)
}

// DefaultFilterFPR is the target Bloom filter false-positive rate used
// when a caller does not need a different rate.
const DefaultFilterFPR = 0.01

// trailerMagic guards against opening a file that isn't a run.
const trailerMagic = uint32(0x4c534d4b) // "LSMK"

// footerLength is the fixed-width footer at the very end of the file
// that records how many bytes the trailer occupies, so a reader can
// locate it by seeking from the end of the file.
const footerLength = 8

// Meta describes a run's on-disk layout, as read back from its trailer.
type Meta struct {
	Path         string
	Level        int
	BlockSize    int
	BlockCount   int
	ElementCount int
	Blocks       []blockcodec.BlockInfo
	Filter       *filter.Filter
}

// FileName returns the on-disk file name for a run at the given level
// created at unixMillis.
func FileName(level int, unixMillis int64) string {
	return fmt.Sprintf("%d_%d.run", level, unixMillis)
}

// Write drains src (exactly n items) into a new run file at path,
// emitting compressed blocks of blockSize bytes and a Bloom filter
// sized for n items at the given false-positive rate.
func Write(path string, level int, src ItemSource, n int, filterFPR float64, filterSeed uint64, blockSize int) (*Meta, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("run: create %s: %w", path, err)
	}
	defer f.Close()

	bw, err := blockcodec.NewWriter(f, blockSize)
	if err != nil {
		return nil, fmt.Errorf("run: new block writer: %w", err)
	}
	bloom := filter.NewWithRate(filterFPR, n, filterSeed)

	var blocks []blockcodec.BlockInfo
	count := 0
	for {
		it, ok := src.Next()
		if !ok {
			break
		}
		bloom.Insert(it.Key)
		count++
		info, err := bw.Add(it)
		if err != nil {
			return nil, fmt.Errorf("run: add item: %w", err)
		}
		if info != nil {
			blocks = append(blocks, *info)
		}
	}
	last, err := bw.Finish()
	if err != nil {
		return nil, fmt.Errorf("run: finish blocks: %w", err)
	}
	if last != nil {
		blocks = append(blocks, *last)
	}

	meta := &Meta{
		Path:         path,
		Level:        level,
		BlockSize:    blockSize,
		BlockCount:   len(blocks),
		ElementCount: count,
		Blocks:       blocks,
		Filter:       bloom,
	}
	trailer := encodeTrailer(meta)
	if _, err := f.Write(trailer); err != nil {
		return nil, fmt.Errorf("run: write trailer: %w", err)
	}
	var footer [footerLength]byte
	binary.LittleEndian.PutUint64(footer[:], uint64(len(trailer)))
	if _, err := f.Write(footer[:]); err != nil {
		return nil, fmt.Errorf("run: write footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("run: sync %s: %w", path, err)
	}
	return meta, nil
}

func encodeTrailer(m *Meta) []byte {
	var buf bytes.Buffer
	var hdr [4 + 4 + 4 + 4 + 4]byte
	binary.LittleEndian.PutUint32(hdr[0:4], trailerMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(m.Level))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(m.BlockSize))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(m.BlockCount))
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(m.ElementCount))
	buf.Write(hdr[:])

	for _, b := range m.Blocks {
		var rec [8 + 4 + 4 + 4]byte
		binary.LittleEndian.PutUint64(rec[0:8], b.Offset)
		binary.LittleEndian.PutUint32(rec[8:12], b.Length)
		binary.LittleEndian.PutUint32(rec[12:16], uint32(b.Fence.Low))
		binary.LittleEndian.PutUint32(rec[16:20], uint32(b.Fence.High))
		buf.Write(rec[:])
	}

	filterBytes := m.Filter.Marshal()
	var flen [4]byte
	binary.LittleEndian.PutUint32(flen[:], uint32(len(filterBytes)))
	buf.Write(flen[:])
	buf.Write(filterBytes)

	return buf.Bytes()
}

func decodeTrailer(path string, data []byte) (*Meta, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("run: %s: truncated trailer header", path)
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != trailerMagic {
		return nil, fmt.Errorf("run: %s: bad trailer magic", path)
	}
	level := int(binary.LittleEndian.Uint32(data[4:8]))
	blockSize := int(binary.LittleEndian.Uint32(data[8:12]))
	blockCount := int(binary.LittleEndian.Uint32(data[12:16]))
	elementCount := int(binary.LittleEndian.Uint32(data[16:20]))
	pos := 20

	blocks := make([]blockcodec.BlockInfo, 0, blockCount)
	for i := 0; i < blockCount; i++ {
		if pos+20 > len(data) {
			return nil, fmt.Errorf("run: %s: truncated block record %d", path, i)
		}
		rec := data[pos : pos+20]
		off := binary.LittleEndian.Uint64(rec[0:8])
		length := binary.LittleEndian.Uint32(rec[8:12])
		low := int32(binary.LittleEndian.Uint32(rec[12:16]))
		high := int32(binary.LittleEndian.Uint32(rec[16:20]))
		fp, err := fence.New(low, high)
		if err != nil {
			return nil, fmt.Errorf("run: %s: bad fence pointer in block %d: %w", path, i, err)
		}
		blocks = append(blocks, blockcodec.BlockInfo{Offset: off, Length: length, Fence: fp})
		pos += 20
	}

	if pos+4 > len(data) {
		return nil, fmt.Errorf("run: %s: truncated filter length", path)
	}
	flen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+flen > len(data) {
		return nil, fmt.Errorf("run: %s: truncated filter bytes", path)
	}
	bloom, err := filter.Unmarshal(data[pos : pos+flen])
	if err != nil {
		return nil, fmt.Errorf("run: %s: decode filter: %w", path, err)
	}

	return &Meta{
		Path:         path,
		Level:        level,
		BlockSize:    blockSize,
		BlockCount:   blockCount,
		ElementCount: elementCount,
		Blocks:       blocks,
		Filter:       bloom,
	}, nil
}

// Run is an opened, immutable on-disk run ready for point lookups and
// full iteration.
type Run struct {
	meta *Meta
	file *os.File
}

// Open opens the run at path, reading and validating its trailer.
func Open(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("run: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("run: stat %s: %w", path, err)
	}
	if info.Size() < footerLength {
		f.Close()
		return nil, fmt.Errorf("run: %s: file too small to contain a footer", path)
	}

	var footer [footerLength]byte
	if _, err := f.ReadAt(footer[:], info.Size()-footerLength); err != nil {
		f.Close()
		return nil, fmt.Errorf("run: %s: read footer: %w", path, err)
	}
	trailerLen := binary.LittleEndian.Uint64(footer[:])
	trailerStart := info.Size() - footerLength - int64(trailerLen)
	if trailerStart < 0 {
		f.Close()
		return nil, fmt.Errorf("run: %s: footer reports impossible trailer length", path)
	}

	trailer := make([]byte, trailerLen)
	if _, err := f.ReadAt(trailer, trailerStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("run: %s: read trailer: %w", path, err)
	}
	meta, err := decodeTrailer(path, trailer)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Run{meta: meta, file: f}, nil
}

// Meta returns the run's trailer metadata.
func (r *Run) Meta() *Meta { return r.meta }

// Level returns the level this run belongs to.
func (r *Run) Level() int { return r.meta.Level }

// Path returns the run's file path.
func (r *Run) Path() string { return r.meta.Path }

// Close closes the underlying file handle.
func (r *Run) Close() error {
	return r.file.Close()
}

// DeleteFile closes the run and removes its backing file. The run must
// not be used afterwards.
func (r *Run) DeleteFile() error {
	path := r.meta.Path
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("run: close %s before delete: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("run: remove %s: %w", path, err)
	}
	return nil
}

// Get looks up key, consulting the Bloom filter before doing a
// fence-pointer binary search and a block scan.
func (r *Run) Get(key int32) (value []byte, tombstone bool, found bool, err error) {
	if !r.meta.Filter.Contains(key) {
		return nil, false, false, nil
	}

	idx := r.findBlock(key)
	if idx < 0 {
		return nil, false, false, nil
	}
	b := r.meta.Blocks[idx]
	items, err := blockcodec.ReadBlock(r.file, int64(b.Offset), int64(b.Length))
	if err != nil {
		return nil, false, false, fmt.Errorf("run: %s: %w", r.meta.Path, err)
	}
	for _, it := range items {
		if it.Key == key {
			return it.Value, it.Tombstone, true, nil
		}
	}
	return nil, false, false, nil
}

// findBlock returns the index of the block whose fence pointer covers
// key, or -1 if no block does.
func (r *Run) findBlock(key int32) int {
	blocks := r.meta.Blocks
	lo, hi := 0, len(blocks)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		fp := blocks[mid].Fence
		switch {
		case key < fp.Low:
			hi = mid - 1
		case key > fp.High:
			lo = mid + 1
		default:
			return mid
		}
	}
	return -1
}

// Iterator streams every item in the run in ascending key order.
type Iterator struct {
	run   *Run
	block int
	items []blockcodec.Item
	pos   int
	err   error
}

// NewIterator returns an Iterator over the whole run.
func (r *Run) NewIterator() *Iterator {
	return &Iterator{run: r, block: 0}
}

// Next returns the next item, or (_, false) once the run is exhausted
// or a read error occurred; check Err afterwards.
func (it *Iterator) Next() (blockcodec.Item, bool) {
	for {
		if it.pos < len(it.items) {
			item := it.items[it.pos]
			it.pos++
			return item, true
		}
		if it.err != nil || it.block >= len(it.run.meta.Blocks) {
			return blockcodec.Item{}, false
		}
		b := it.run.meta.Blocks[it.block]
		items, err := blockcodec.ReadBlock(it.run.file, int64(b.Offset), int64(b.Length))
		if err != nil {
			it.err = fmt.Errorf("run: %s: iterate block %d: %w", it.run.meta.Path, it.block, err)
			return blockcodec.Item{}, false
		}
		it.items = items
		it.pos = 0
		it.block++
	}
}

// Err returns the first error encountered while iterating, if any.
func (it *Iterator) Err() error { return it.err }
