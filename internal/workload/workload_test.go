package workload

import "testing"

func TestNewParamsRejectsGetsWithoutPuts(t *testing.T) {
	if _, err := NewParams(0, 10, 0, 0.3, 0.4, 16, [32]byte{}); err == nil {
		t.Fatal("expected error for gets with zero puts")
	}
}

func TestGeneratorProducesExactCounts(t *testing.T) {
	params, err := NewParams(100, 50, 10, 0.3, 0.4, 16, [32]byte{1})
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	g := New(params)

	var gets, puts, deletes int
	for {
		req, ok := g.Next()
		if !ok {
			break
		}
		switch req.Type {
		case Get:
			gets++
			if req.Value != nil {
				t.Fatal("Get request should not carry a value")
			}
		case Put:
			puts++
			if len(req.Value) != 16 {
				t.Fatalf("Put value length = %d, want 16", len(req.Value))
			}
		case Delete:
			deletes++
		}
	}
	if gets != 50 || puts != 100 || deletes != 10 {
		t.Fatalf("got gets=%d puts=%d deletes=%d, want 50/100/10", gets, puts, deletes)
	}
}

func TestGeneratorIsDeterministicForAFixedSeed(t *testing.T) {
	params, err := NewParams(50, 50, 5, 0.3, 0.4, 8, [32]byte{42})
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	drain := func() []Request {
		g := New(params)
		var reqs []Request
		for {
			r, ok := g.Next()
			if !ok {
				break
			}
			reqs = append(reqs, r)
		}
		return reqs
	}

	a, b := drain(), drain()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Key != b[i].Key || a[i].Type != b[i].Type {
			t.Fatalf("request %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPutOnlyWorkloadNeverEmitsGetsOrDeletes(t *testing.T) {
	params, err := NewParams(20, 0, 0, 0, 0, 16, [32]byte{7})
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	g := New(params)
	count := 0
	for {
		req, ok := g.Next()
		if !ok {
			break
		}
		if req.Type != Put {
			t.Fatalf("unexpected request type %v in a put-only workload", req.Type)
		}
		count++
	}
	if count != 20 {
		t.Fatalf("got %d puts, want 20", count)
	}
}
