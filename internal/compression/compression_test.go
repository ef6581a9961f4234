package compression

import (
	"bytes"
	"strings"
	"testing"
)

func sampleData() []byte {
	return bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 64)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := sampleData()
	for _, ctype := range []Type{NoCompression, SnappyCompression, ZlibCompression, LZ4Compression, LZ4HCCompression, ZstdCompression} {
		t.Run(ctype.String(), func(t *testing.T) {
			compressed, err := Compress(ctype, data)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			decoded, err := DecompressWithSize(ctype, compressed, len(data))
			if err != nil {
				t.Fatalf("DecompressWithSize: %v", err)
			}
			if !bytes.Equal(decoded, data) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(decoded), len(data))
			}
		})
	}
}

func TestCompressEmptyData(t *testing.T) {
	for _, ctype := range []Type{NoCompression, SnappyCompression, ZlibCompression, LZ4Compression, ZstdCompression} {
		compressed, err := Compress(ctype, nil)
		if err != nil {
			t.Fatalf("Compress(%s, nil): %v", ctype, err)
		}
		decoded, err := DecompressWithSize(ctype, compressed, 0)
		if err != nil {
			t.Fatalf("DecompressWithSize(%s): %v", ctype, err)
		}
		if len(decoded) != 0 {
			t.Fatalf("Decompress(%s) of empty input = %d bytes, want 0", ctype, len(decoded))
		}
	}
}

func TestCompressUnsupportedType(t *testing.T) {
	if _, err := Compress(BZip2Compression, []byte("x")); err == nil {
		t.Fatal("Compress(BZip2Compression) expected an error, got nil")
	}
}

func TestZlibDecompressGarbageData(t *testing.T) {
	if _, err := DecompressWithSize(ZlibCompression, []byte{0xff, 0xfe, 0xfd, 0xfc}, 0); err == nil {
		t.Fatal("Decompress(garbage zlib data) expected an error, got nil")
	}
}

func TestCompressionTypeString(t *testing.T) {
	cases := map[Type]string{
		NoCompression:    "NoCompression",
		SnappyCompression: "Snappy",
		ZlibCompression:  "Zlib",
		LZ4Compression:   "LZ4",
		LZ4HCCompression: "LZ4HC",
		ZstdCompression:  "ZSTD",
	}
	for ctype, want := range cases {
		if got := ctype.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", ctype, got, want)
		}
	}
	if got := Type(0xEE).String(); !strings.Contains(got, "Unknown") {
		t.Errorf("unknown Type.String() = %q, want it to mention Unknown", got)
	}
}

func TestIsSupported(t *testing.T) {
	supported := []Type{NoCompression, SnappyCompression, ZlibCompression, LZ4Compression, LZ4HCCompression, ZstdCompression}
	for _, ctype := range supported {
		if !ctype.IsSupported() {
			t.Errorf("%v.IsSupported() = false, want true", ctype)
		}
	}
	if BZip2Compression.IsSupported() {
		t.Error("BZip2Compression.IsSupported() = true, want false")
	}
}
