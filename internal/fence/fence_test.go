package fence

import "testing"

func TestInRange(t *testing.T) {
	p, err := New(10, 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		key  int32
		want bool
	}{
		{9, false},
		{10, true},
		{15, true},
		{20, true},
		{21, false},
	}
	for _, c := range cases {
		if got := p.InRange(c.key); got != c.want {
			t.Errorf("InRange(%d) = %v, want %v", c.key, got, c.want)
		}
	}
}

func TestNewRejectsInverted(t *testing.T) {
	if _, err := New(5, 4); err == nil {
		t.Fatal("expected error for low > high")
	}
}

func TestNewAllowsSingleton(t *testing.T) {
	p, err := New(7, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.InRange(7) {
		t.Fatal("singleton range should contain its only key")
	}
}
