// Package blockcodec implements the block-level serialization used by
// a run: items are encoded with a small self-describing variable-length
// format, streamed into a DEFLATE compressor, and the compressed output
// is padded out to a fixed block size.
package blockcodec

import (
	"fmt"

	"github.com/aalhour/lsmkv/internal/encoding"
)

// Item is one (key, value-or-tombstone) pair as stored in a block.
type Item struct {
	Key       int32
	Tombstone bool
	Value     []byte
}

// MinItemFramingBytes is the minimum number of bytes a live item's
// framing (key, tombstone flag, value-length varint) can occupy. A
// tombstone's framing is one byte shorter, having no value length. The
// writer's fit check does not use this constant; it uses EncodedLen
// plus SafetyMargin.
const MinItemFramingBytes = 4 + 1 + 1

// encodeItem appends the wire form of an item to dst and returns the
// extended slice.
//
// Format: [4-byte LE key][1-byte tombstone flag][varint32 value length][value]
// A tombstone ends after the flag byte: it has no value length or value.
func encodeItem(dst []byte, it Item) []byte {
	dst = encoding.AppendFixed32(dst, uint32(it.Key))
	if it.Tombstone {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	if it.Tombstone {
		return dst
	}
	dst = encoding.AppendVarint32(dst, uint32(len(it.Value)))
	dst = append(dst, it.Value...)
	return dst
}

// EncodedLen returns the number of bytes encodeItem would append for it,
// without performing the encoding.
func EncodedLen(it Item) int {
	n := 4 + 1
	if it.Tombstone {
		return n
	}
	return n + encoding.VarintLength(uint64(len(it.Value))) + len(it.Value)
}

// decodeItem decodes one item from the front of src, returning the item
// and the number of bytes consumed.
func decodeItem(src []byte) (Item, int, error) {
	if len(src) < 5 {
		return Item{}, 0, fmt.Errorf("blockcodec: truncated item header")
	}
	key := int32(encoding.DecodeFixed32(src))
	pos := 4
	tombstone := src[pos] != 0
	pos++
	if tombstone {
		return Item{Key: key, Tombstone: true}, pos, nil
	}
	valLen, n, err := encoding.DecodeVarint32(src[pos:])
	if err != nil {
		return Item{}, 0, fmt.Errorf("blockcodec: decode value length: %w", err)
	}
	pos += n
	if pos+int(valLen) > len(src) {
		return Item{}, 0, fmt.Errorf("blockcodec: truncated item value")
	}
	value := append([]byte(nil), src[pos:pos+int(valLen)]...)
	pos += int(valLen)
	return Item{Key: key, Tombstone: false, Value: value}, pos, nil
}
