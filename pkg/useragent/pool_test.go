package useragent

import (
	"sync"
	"testing"
)

func TestPool_Next(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool(nil)
	if len(p.All()) != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), len(p.All()))
	}
	if got := p.Next(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestPool_CopiesInput(t *testing.T) {
	in := []string{"A"}
	p := NewPool(in)
	in[0] = "mutated"
	if got := p.Next(); got != "A" {
		t.Errorf("expected pool to be isolated from caller slice, got %s", got)
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got := p.Random()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}

	if !seen["A"] || !seen["B"] {
		t.Errorf("expected to see both A and B randomly, got %v", seen)
	}
}

func TestPool_Concurrent(t *testing.T) {
	uas := []string{"X", "Y", "Z"}
	p := NewPool(uas)

	const routines = 50
	const iterations = 300

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[string]int{}
			for j := 0; j < iterations; j++ {
				local[p.Next()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// routines*iterations is divisible by 3, so round-robin is exact.
	want := routines * iterations / len(uas)
	for _, ua := range uas {
		if counts[ua] != want {
			t.Errorf("expected %d hits for %s, got %d", want, ua, counts[ua])
		}
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{}

	if got := p.Next(); got != "" {
		t.Errorf("expected empty string on empty pool, got %s", got)
	}
	if got := p.Random(); got != "" {
		t.Errorf("expected empty string on empty pool, got %s", got)
	}
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		ua   string
		want Family
	}{
		{DefaultPool[0], FamilyChrome},
		{DefaultPool[3], FamilyFirefox},
		{DefaultPool[5], FamilySafari},
		{"curl/8.0", FamilyOther},
	}
	for _, tt := range tests {
		if got := FamilyOf(tt.ua); got != tt.want {
			t.Errorf("FamilyOf(%q) = %s, want %s", tt.ua, got, tt.want)
		}
	}
}
