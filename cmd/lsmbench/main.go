// lsmbench drives a store with a synthetic workload and reports the
// operation counts, elapsed time and overall throughput.
//
// Usage: go run ./cmd/lsmbench [flags]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aalhour/lsmkv"
	"github.com/aalhour/lsmkv/internal/compression"
	"github.com/aalhour/lsmkv/internal/workload"
)

func main() {
	var (
		dir           = flag.String("dir", "", "store directory (default: a temp directory)")
		numPuts       = flag.Uint("puts", 100000, "number of put operations")
		numGets       = flag.Uint("gets", 100000, "number of get operations")
		numDeletes    = flag.Uint("deletes", 1000, "number of delete operations")
		getsSkew      = flag.Float64("gets-skew", 0.3, "probability a get reuses a prior get key")
		getsMissRatio = flag.Float64("gets-miss-ratio", 0.2, "probability a fresh get key is an independent draw")
		valueSize     = flag.Int("value-size", 128, "bytes per generated value")
		memoryBudget  = flag.Int64("memory-map-budget", 4<<20, "bytes per memtable before it is flushed")
		sizeRatio     = flag.Int("size-ratio", 4, "runs per level before compaction")
		blockSize     = flag.Int("block-size", 4<<10, "on-disk block size in bytes")
		seedFlag      = flag.Uint64("seed", 1, "workload PRNG seed")
		altCodec      = flag.String("alt-codec", "", "report the whole-buffer compression ratio for values under none|snappy|zlib|lz4|lz4hc|zstd, in addition to running the benchmark")
	)
	flag.Parse()

	if *dir == "" {
		tmp, err := os.MkdirTemp("", "lsmbench-*")
		if err != nil {
			log.Fatalf("create temp dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		*dir = tmp
	}

	cfg := lsmkv.DefaultConfig(*dir)
	cfg.MemoryMapBudget = *memoryBudget
	cfg.SizeRatio = *sizeRatio
	cfg.BlockSize = *blockSize

	store, err := lsmkv.Open(cfg, lsmkv.Discard)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	var seed [32]byte
	seed[0] = byte(*seedFlag)
	seed[1] = byte(*seedFlag >> 8)
	params, err := workload.NewParams(uint32(*numPuts), uint32(*numGets), uint32(*numDeletes), *getsSkew, *getsMissRatio, *valueSize, seed)
	if err != nil {
		log.Fatalf("build workload params: %v", err)
	}
	gen := workload.New(params)

	if *altCodec != "" {
		reportCompressionRatio(*altCodec, *valueSize)
	}

	start := time.Now()
	var puts, gets, deletes, hits int
	for {
		req, ok := gen.Next()
		if !ok {
			break
		}
		switch req.Type {
		case workload.Put:
			if err := store.Put(req.Key, req.Value); err != nil {
				log.Fatalf("put: %v", err)
			}
			puts++
		case workload.Get:
			if _, found, err := store.Get(req.Key); err != nil {
				log.Fatalf("get: %v", err)
			} else if found {
				hits++
			}
			gets++
		case workload.Delete:
			if err := store.Delete(req.Key); err != nil {
				log.Fatalf("delete: %v", err)
			}
			deletes++
		}
	}
	elapsed := time.Since(start)

	total := puts + gets + deletes
	fmt.Printf("ops=%d puts=%d gets=%d (hits=%d) deletes=%d elapsed=%s throughput=%.0f ops/sec\n",
		total, puts, gets, hits, deletes, elapsed, float64(total)/elapsed.Seconds())
}

func reportCompressionRatio(name string, valueSize int) {
	var ctype compression.Type
	switch name {
	case "none":
		ctype = compression.NoCompression
	case "snappy":
		ctype = compression.SnappyCompression
	case "zlib":
		ctype = compression.ZlibCompression
	case "lz4":
		ctype = compression.LZ4Compression
	case "lz4hc":
		ctype = compression.LZ4HCCompression
	case "zstd":
		ctype = compression.ZstdCompression
	default:
		log.Fatalf("unknown -alt-codec %q", name)
	}

	sample := make([]byte, valueSize*64)
	for i := range sample {
		sample[i] = byte(i % 251)
	}
	compressed, err := compression.Compress(ctype, sample)
	if err != nil {
		log.Fatalf("compress with %s: %v", ctype, err)
	}
	fmt.Printf("alt-codec=%s ratio=%.3f (%d -> %d bytes)\n",
		ctype, float64(len(compressed))/float64(len(sample)), len(sample), len(compressed))
}
