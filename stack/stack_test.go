package stack

import (
	"sort"
	"sync"
	"testing"

	"github.com/kolkov/lockfree/internal/debugcount"
	"github.com/kolkov/lockfree/internal/ds/tid"
	"github.com/kolkov/lockfree/internal/pool"
)

func newIntStack() *Stack[int] {
	return New(pool.NewNodePool[node[int], *node[int]]())
}

// TestSingleThreadOrder: push 3, 4, 2; pops must
// yield 2, 4, 3; the fourth pop returns false.
func TestSingleThreadOrder(t *testing.T) {
	s := newIntStack()
	s.Push(3)
	s.Push(4)
	s.Push(2)

	want := []int{2, 4, 3}
	for i, w := range want {
		got, ok := s.Pop()
		if !ok {
			t.Fatalf("pop %d: ok = false, want true", i)
		}
		if got != w {
			t.Errorf("pop %d = %d, want %d", i, got, w)
		}
	}

	if _, ok := s.Pop(); ok {
		t.Error("pop on empty stack returned ok = true")
	}
	tid.Release()
}

// TestHostAllocatorMode checks the same LIFO contract with node
// allocations routed through the Go heap instead of the page cache.
func TestHostAllocatorMode(t *testing.T) {
	s := New(pool.NewNodePool[node[int], *node[int]](pool.WithHostAllocator()))
	s.Push(1)
	s.Push(2)

	for _, want := range []int{2, 1} {
		got, ok := s.Pop()
		if !ok || got != want {
			t.Fatalf("pop = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := s.Pop(); ok {
		t.Error("pop on empty stack returned ok = true")
	}
}

// TestMultiThreadPushOnly: 32 goroutines each push
// 1000 distinct integers; the drained contents equal the full set.
func TestMultiThreadPushOnly(t *testing.T) {
	s := newIntStack()
	const goroutines = 32
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for k := 0; k < goroutines; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			defer tid.Release()
			base := k * perGoroutine
			for v := base; v < base+perGoroutine; v++ {
				s.Push(v)
			}
		}(k)
	}
	wg.Wait()

	seen := make(map[int]bool, goroutines*perGoroutine)
	for {
		v, ok := s.Pop()
		if !ok {
			break
		}
		if seen[v] {
			t.Fatalf("value %d popped twice", v)
		}
		seen[v] = true
	}

	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("drained %d values, want %d", len(seen), goroutines*perGoroutine)
	}
	tid.Release()
}

// TestMultiThreadPushPop: concurrent
// producers and consumers must preserve the pushed multiset exactly, with
// the live-node counter returning to zero.
func TestMultiThreadPushPop(t *testing.T) {
	debugcount.Enable()
	defer debugcount.Disable()

	s := newIntStack()
	const producers = 8
	const perProducer = 2000
	total := producers * perProducer

	var wg sync.WaitGroup
	for k := 0; k < producers; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			defer tid.Release()
			base := k * perProducer
			for v := base; v < base+perProducer; v++ {
				s.Push(v)
			}
		}(k)
	}
	wg.Wait()

	var mu sync.Mutex
	var popped []int
	var cwg sync.WaitGroup
	for k := 0; k < producers; k++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			defer tid.Release()
			for {
				v, ok := s.Pop()
				if !ok {
					return
				}
				mu.Lock()
				popped = append(popped, v)
				mu.Unlock()
			}
		}()
	}
	cwg.Wait()

	if len(popped) != total {
		t.Fatalf("popped %d values, want %d", len(popped), total)
	}
	sort.Ints(popped)
	for i, v := range popped {
		if v != i {
			t.Fatalf("popped[%d] = %d, want %d (multiset mismatch)", i, v, i)
		}
	}

	if alive := debugcount.Alive(); alive != 0 {
		t.Errorf("live-node counter = %d, want 0", alive)
	}
	tid.Release()
}
