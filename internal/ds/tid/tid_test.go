package tid

import (
	"sync"
	"testing"
)

func TestCurrentStableWithinGoroutine(t *testing.T) {
	defer Release()
	first := Current()
	second := Current()
	if first != second {
		t.Fatalf("Current() changed within the same goroutine: %d then %d", first, second)
	}
}

func TestReleaseThenReassign(t *testing.T) {
	id := Current()
	Release()
	next := Current()
	defer Release()
	_ = id
	_ = next // a released id may or may not be reused immediately; no assertion beyond no-panic
}

func TestDistinctGoroutinesGetDistinctIDs(t *testing.T) {
	const n = 16
	ids := make([]ID, n)
	var wg, held sync.WaitGroup
	held.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer Release()
			ids[i] = Current()
			// Hold the id until every goroutine has one, so all n are live
			// at the same time.
			held.Done()
			held.Wait()
		}(i)
	}
	wg.Wait()

	seen := make(map[ID]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("id %d assigned to more than one concurrently-live goroutine", id)
		}
		seen[id] = true
	}
}

func TestParseGID(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"goroutine 1 [running]:\n", 1},
		{"goroutine 4242 [running]:\n", 4242},
		{"not a goroutine dump", 0},
	}
	for _, c := range cases {
		if got := parseGID([]byte(c.in)); got != c.want {
			t.Errorf("parseGID(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
