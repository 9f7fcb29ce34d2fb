package queue

import (
	"sort"
	"sync"
	"testing"

	"github.com/kolkov/lockfree/internal/debugcount"
	"github.com/kolkov/lockfree/internal/ds/tid"
	"github.com/kolkov/lockfree/internal/pool"
)

func newIntSPSC() *SPSC[int] {
	return NewSPSC(pool.NewNodePool[spscNode[int], *spscNode[int]]())
}

func newIntMPMC() *MPMC[int] {
	return NewMPMC(pool.NewNodePool[mpmcNode[int], *mpmcNode[int]]())
}

// TestSPSCSingleThreadOrder: push 3, 4, 2; pops must
// yield 3, 4, 2 in that order; the fourth pop returns false.
func TestSPSCSingleThreadOrder(t *testing.T) {
	q := newIntSPSC()
	q.Push(3)
	q.Push(4)
	q.Push(2)

	want := []int{3, 4, 2}
	for i, w := range want {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: ok = false, want true", i)
		}
		if got != w {
			t.Errorf("pop %d = %d, want %d", i, got, w)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue returned ok = true")
	}
	tid.Release()
}

// TestSPSCProducerConsumer runs a single producer and single consumer
// concurrently and checks FIFO order end to end.
func TestSPSCProducerConsumer(t *testing.T) {
	debugcount.Enable()
	defer debugcount.Disable()

	q := newIntSPSC()
	const n = 200_000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer tid.Release()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		defer tid.Release()
		for len(got) < n {
			v, ok := q.Pop()
			if !ok {
				continue
			}
			got = append(got, v)
		}
	}()
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d (FIFO order violated)", i, v, i)
		}
	}
	q.Close()
	if alive := debugcount.Alive(); alive != 0 {
		t.Errorf("live-node counter = %d, want 0", alive)
	}
	tid.Release()
}

// TestCloseIsIdempotent checks that closing an already-closed queue is a
// no-op rather than a double free.
func TestCloseIsIdempotent(t *testing.T) {
	debugcount.Enable()
	defer debugcount.Disable()

	q := newIntSPSC()
	q.Close()
	q.Close()
	if alive := debugcount.Alive(); alive != 0 {
		t.Errorf("live-node counter = %d, want 0 after double SPSC Close", alive)
	}

	m := newIntMPMC()
	m.Close()
	m.Close()
	if alive := debugcount.Alive(); alive != 0 {
		t.Errorf("live-node counter = %d, want 0 after double MPMC Close", alive)
	}
	tid.Release()
}

// TestMPMCSingleThreadOrder checks FIFO order in the SPSC-configuration
// case, the single-thread baseline of the producer/consumer runs below.
func TestMPMCSingleThreadOrder(t *testing.T) {
	q := newIntMPMC()
	q.Push(3)
	q.Push(4)
	q.Push(2)

	want := []int{3, 4, 2}
	for i, w := range want {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: ok = false, want true", i)
		}
		if got != w {
			t.Errorf("pop %d = %d, want %d", i, got, w)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue returned ok = true")
	}
	tid.Release()
}

// TestMPMCConcurrent: P producers and
// C consumers must preserve the pushed multiset exactly, with the live
// -node counter returning to zero.
func TestMPMCConcurrent(t *testing.T) {
	debugcount.Enable()
	defer debugcount.Disable()

	q := newIntMPMC()
	const producers = 8
	const perProducer = 5000
	total := producers * perProducer

	var wg sync.WaitGroup
	for k := 0; k < producers; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			defer tid.Release()
			base := k * perProducer
			for v := base; v < base+perProducer; v++ {
				q.Push(v)
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
				v, ok := q.Pop()
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
	q.Close()
	if alive := debugcount.Alive(); alive != 0 {
		t.Errorf("live-node counter = %d, want 0", alive)
	}
	tid.Release()
}

// TestMPMCConcurrentOverlapping pushes and pops concurrently, rather than
// draining all pushes before any pop starts, past more than one pool page
// so that a node freed by a consumer gets recycled as a future tail
// successor while producers are still running. This is the steady-state
// shape a long-running queue actually sees, and it is the case where a
// recycled node's stale bookkeeping from its previous life would otherwise
// leak through.
func TestMPMCConcurrentOverlapping(t *testing.T) {
	debugcount.Enable()
	defer debugcount.Disable()

	q := newIntMPMC()
	const producers = 4
	const consumers = 4
	const perProducer = 4000 // > one pool page per producer, forcing reuse
	total := producers * perProducer

	var pwg sync.WaitGroup
	for k := 0; k < producers; k++ {
		pwg.Add(1)
		go func(k int) {
			defer pwg.Done()
			defer tid.Release()
			base := k * perProducer
			for v := base; v < base+perProducer; v++ {
				q.Push(v)
			}
		}(k)
	}

	var mu sync.Mutex
	var popped []int
	var cwg sync.WaitGroup
	for k := 0; k < consumers; k++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			defer tid.Release()
			for {
				mu.Lock()
				have := len(popped)
				mu.Unlock()
				if have >= total {
					return
				}
				v, ok := q.Pop()
				if !ok {
					continue
				}
				mu.Lock()
				popped = append(popped, v)
				mu.Unlock()
			}
		}()
	}

	pwg.Wait()
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
	q.Close()
	if alive := debugcount.Alive(); alive != 0 {
		t.Errorf("live-node counter = %d, want 0", alive)
	}
	tid.Release()
}
