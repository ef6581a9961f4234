package filter

import (
	"math/rand"
	"testing"
)

func TestInsertedKeysAlwaysContained(t *testing.T) {
	keys := make([]int32, 2000)
	r := rand.New(rand.NewSource(1))
	for i := range keys {
		keys[i] = r.Int31()
	}

	f := NewWithRate(0.01, len(keys), 42)
	for _, k := range keys {
		f.Insert(k)
	}
	for _, k := range keys {
		if !f.Contains(k) {
			t.Fatalf("inserted key %d reported absent", k)
		}
	}
}

func TestFalsePositiveRateBounded(t *testing.T) {
	const n = 5000
	r := rand.New(rand.NewSource(7))
	inserted := make(map[int32]bool, n)
	f := NewWithRate(0.01, n, 99)
	for len(inserted) < n {
		k := r.Int31()
		if !inserted[k] {
			inserted[k] = true
			f.Insert(k)
		}
	}

	trials := 20000
	falsePositives := 0
	for i := 0; i < trials; i++ {
		k := r.Int31()
		if inserted[k] {
			continue
		}
		if f.Contains(k) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(trials)
	if rate > 0.05 {
		t.Fatalf("false positive rate too high: %f", rate)
	}
}

func TestNumSeedsClamped(t *testing.T) {
	f := NewWithRate(1e-12, 10, 1)
	if f.NumSeeds() > 200 {
		t.Fatalf("expected clamp at 200 probes, got %d", f.NumSeeds())
	}
	if f.NumSeeds() < 2 {
		t.Fatalf("expected at least 2 probes, got %d", f.NumSeeds())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	f := NewWithRate(0.02, 500, 5)
	for i := int32(0); i < 500; i++ {
		f.Insert(i * 7)
	}

	data := f.Marshal()
	g, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if g.NumSeeds() != f.NumSeeds() || g.SizeBytes() != f.SizeBytes() {
		t.Fatalf("round trip changed filter shape")
	}
	for i := int32(0); i < 500; i++ {
		if !g.Contains(i * 7) {
			t.Fatalf("round-tripped filter lost key %d", i*7)
		}
	}
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	f := NewWithRate(0.02, 100, 3)
	data := f.Marshal()
	if _, err := Unmarshal(data[:2]); err == nil {
		t.Fatal("expected error for truncated header")
	}
}
