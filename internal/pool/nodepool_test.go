package pool

import (
	"sync"
	"testing"

	"github.com/kolkov/lockfree/internal/ds/tid"
)

type testNode struct {
	value  int
	handle Handle
}

func (n *testNode) SetHandle(h Handle) { n.handle = h }
func (n *testNode) GetHandle() Handle  { return n.handle }

func TestNodePoolAllocateDistinctSlots(t *testing.T) {
	np := NewNodePool[testNode, *testNode]()
	defer np.ReleaseThread()
	defer tid.Release()

	a := np.Allocate()
	b := np.Allocate()
	if a == b {
		t.Fatal("Allocate returned the same node twice without a Free in between")
	}
	a.value = 1
	b.value = 2
	if a.value == b.value {
		t.Fatal("nodes alias the same backing slot")
	}
}

func TestNodePoolFreeThenReallocateSameThreadReusesSlot(t *testing.T) {
	np := NewNodePool[testNode, *testNode]()
	defer np.ReleaseThread()
	defer tid.Release()

	a := np.Allocate()
	h := a.GetHandle()
	np.Free(a)
	b := np.Allocate()
	if b.GetHandle() != h {
		t.Fatal("local free-then-allocate did not reuse the freed slot")
	}
}

func TestNodePoolCrossThreadFreeThenCollect(t *testing.T) {
	np := NewNodePool[testNode, *testNode]()
	defer np.ReleaseThread()
	defer tid.Release()

	n := np.Allocate()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer tid.Release()
		np.Free(n)
	}()
	wg.Wait()

	np.Collect()
	np.Collect()
}

func TestNodePoolHostAllocatorBypassesPages(t *testing.T) {
	np := NewNodePool[testNode, *testNode](WithHostAllocator())
	defer np.ReleaseThread()
	defer tid.Release()

	a := np.Allocate()
	if a.GetHandle().page != hostPage {
		t.Fatalf("handle.page = %d, want the host-allocator marker", a.GetHandle().page)
	}
	np.Free(a) // no-op; the garbage collector owns host nodes
	b := np.Allocate()
	if b == a {
		t.Fatal("host-allocator mode returned a recycled node")
	}
}

func TestNodePoolAllocateManyAcrossPageBoundary(t *testing.T) {
	np := NewNodePool[testNode, *testNode]()
	defer np.ReleaseThread()
	defer tid.Release()

	const n = nodePageCapacity + 10
	nodes := make([]*testNode, n)
	for i := range nodes {
		nodes[i] = np.Allocate()
		nodes[i].value = i
	}
	for i, node := range nodes {
		if node.value != i {
			t.Fatalf("nodes[%d].value = %d, want %d", i, node.value, i)
		}
	}
}
