package pool

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/lockfree/internal/ds/tid"
	"github.com/kolkov/lockfree/internal/spinlock"
	"golang.org/x/sys/cpu"
)

// Handle identifies one slot within one node page: which page (by index
// into the pool's page table) and which slot within that page. Embedding a
// Handle directly in a node, instead of recovering it by masking the node's
// address the way BytePool does, is what lets NodePool serve a typed []T
// page — an arbitrary T may not be page-size-aligned in memory the way a
// fixed byte block is, so there is no address to mask. See DESIGN.md.
type Handle struct {
	page uint32
	slot uint32
}

// Handled is implemented, with a pointer receiver, by node types that want
// NodePool-backed allocation: the node carries its own Handle so Free needs
// no lookup table. NodePool is parameterized over both T (the struct stored
// in-place inside the page, so the garbage collector traces pointer fields
// inside it directly) and PT (the *T pointer type that actually satisfies
// Handled), the standard pattern for expressing "pointer-receiver methods
// of the element type" in a generic container.
type Handled interface {
	SetHandle(Handle)
	GetHandle() Handle
}

const nodePageCapacity = 1024

// hostPage is the Handle.page marker for nodes served by the host
// allocator instead of a page; such nodes are reclaimed by the garbage
// collector, never by Free.
const hostPage = ^uint32(0)

// NodeOption configures a NodePool.
type NodeOption func(*nodeConfig)

type nodeConfig struct {
	hostAlloc bool
}

// WithHostAllocator routes every node through the Go heap instead of the
// page cache: Allocate returns a fresh heap node and Free is a no-op,
// leaving reclamation to the garbage collector. This trades the pool's
// memory reuse for zero bookkeeping, the mode to measure against when
// judging what the pool buys under a given workload.
func WithHostAllocator() NodeOption {
	return func(c *nodeConfig) { c.hostAlloc = true }
}

// nodePage is a typed arena: a []T slice so the garbage collector traces
// pointers inside T normally, plus the same local-free/pending-free/bump
// bookkeeping bytePage uses, kept as ordinary Go fields since nothing here
// needs address masking.
type nodePage[T any] struct {
	slots     []T
	allocated int32
	bumpNext  uint32
	freeHead  uint32 // 1-based; 0 means empty
	freeLinks []uint32
	pending   atomic.Uint32 // 1-based CAS stack of freed slots, cross-thread
	listNext  *nodePage[T]
	owner     atomic.Uint32 // tid.ID; re-stamped when an exited thread's page is adopted
	index     uint32
}

func newNodePage[T any](owner tid.ID, index uint32) *nodePage[T] {
	p := &nodePage[T]{
		slots:     make([]T, nodePageCapacity),
		freeLinks: make([]uint32, nodePageCapacity),
		index:     index,
	}
	p.owner.Store(uint32(owner))
	return p
}

func (p *nodePage[T]) takeSlotLocal() (uint32, bool) {
	if p.freeHead != 0 {
		idx := p.freeHead - 1
		p.freeHead = p.freeLinks[idx]
		p.allocated++
		return idx, true
	}
	if p.bumpNext >= nodePageCapacity {
		return 0, false
	}
	idx := p.bumpNext
	p.bumpNext++
	p.allocated++
	return idx, true
}

func (p *nodePage[T]) hasSpaceLocal() bool {
	return p.freeHead != 0 || p.bumpNext < nodePageCapacity
}

func (p *nodePage[T]) localFree(idx uint32) {
	p.freeLinks[idx] = p.freeHead
	p.freeHead = idx + 1
	p.allocated--
}

func (p *nodePage[T]) pendingPush(idx uint32) {
	for {
		head := p.pending.Load()
		p.freeLinks[idx] = head
		if p.pending.CompareAndSwap(head, idx+1) {
			return
		}
	}
}

func (p *nodePage[T]) collectPending() (drained int) {
	var head uint32
	for {
		head = p.pending.Load()
		if head == 0 {
			return 0
		}
		if p.pending.CompareAndSwap(head, 0) {
			break
		}
	}
	cur := head
	for cur != 0 {
		idx := cur - 1
		next := p.freeLinks[idx]
		p.freeLinks[idx] = p.freeHead
		p.freeHead = idx + 1
		p.allocated--
		drained++
		cur = next
	}
	return drained
}

type nodeThreadCache[T any] struct {
	free      *nodePage[T]
	filled    *nodePage[T]
	heartbeat uint32
}

// NodePool is the GC-safe counterpart to BytePool, serving nodes of one
// fixed generic type T instead of a family of byte-size classes. Stack and
// queue nodes are allocated and freed through a NodePool so that pointer
// fields inside T — the payload value, or a next-node pointer — stay
// visible to the garbage collector; see bytepage.go and DESIGN.md for why
// a raw []byte arena cannot serve this role for arbitrary T.
//
// T is the node struct stored in-place in the page; PT is *T, constrained
// to implement Handled. Callers instantiate as NodePool[myNode, *myNode].
type NodePool[T any, PT interface {
	*T
	Handled
}] struct {
	_         cpu.CacheLinePad
	regMu     spinlock.Mutex
	global    *nodePage[T]
	pages     sync.Map // uint32 page index -> *nodePage[T]
	nextID    atomic.Uint32
	caches    sync.Map // tid.ID -> *nodeThreadCache[T]
	hostAlloc bool
	_         cpu.CacheLinePad
}

// NewNodePool creates an empty NodePool for node type T.
func NewNodePool[T any, PT interface {
	*T
	Handled
}](opts ...NodeOption) *NodePool[T, PT] {
	var c nodeConfig
	for _, opt := range opts {
		opt(&c)
	}
	np := &NodePool[T, PT]{hostAlloc: c.hostAlloc}
	register(np)
	return np
}

func (np *NodePool[T, PT]) cacheFor(owner tid.ID) *nodeThreadCache[T] {
	if v, ok := np.caches.Load(owner); ok {
		return v.(*nodeThreadCache[T])
	}
	tc := &nodeThreadCache[T]{}
	actual, _ := np.caches.LoadOrStore(owner, tc)
	return actual.(*nodeThreadCache[T])
}

func (np *NodePool[T, PT]) registerPage(pg *nodePage[T]) {
	np.pages.Store(pg.index, pg)
}

func (np *NodePool[T, PT]) pageByIndex(idx uint32) *nodePage[T] {
	v, _ := np.pages.Load(idx)
	return v.(*nodePage[T])
}

// Allocate serves a zero-value *T with its Handle already set, ready for
// the caller to populate and publish.
func (np *NodePool[T, PT]) Allocate() PT {
	if np.hostAlloc {
		node := PT(new(T))
		node.SetHandle(Handle{page: hostPage})
		return node
	}

	owner := tid.Current()
	tc := np.cacheFor(owner)
	tc.heartbeat++

	pg := tc.free
	if pg == nil {
		if tc.heartbeat >= HeartbeatThreshold {
			np.collectClass(tc)
			tc.heartbeat = 0
			pg = tc.free
		}
		if pg == nil {
			pg = np.adoptGlobal(owner, tc)
		}
		if pg == nil {
			pg = newNodePage[T](owner, np.nextID.Add(1)-1)
			np.registerPage(pg)
			pg.listNext = tc.free
			tc.free = pg
		}
	}

	slot, ok := pg.takeSlotLocal()
	if !ok {
		panic("lockfree/pool: node page on the free list reported no space")
	}
	if !pg.hasSpaceLocal() {
		tc.free = pg.listNext
		pg.listNext = tc.filled
		tc.filled = pg
	}

	node := PT(&pg.slots[slot])
	node.SetHandle(Handle{page: pg.index, slot: slot})
	return node
}

// Free releases a node previously returned by Allocate. The node's own
// Handle names its page and slot, so no address masking or lookup table is
// needed — only the page index is used, through the pool's page table.
func (np *NodePool[T, PT]) Free(node PT) {
	h := node.GetHandle()
	if h.page == hostPage {
		return
	}
	pg := np.pageByIndex(h.page)

	caller := tid.Current()
	if caller == tid.ID(pg.owner.Load()) {
		wasFull := !pg.hasSpaceLocal()
		pg.localFree(h.slot)
		if wasFull {
			// The page just went from full back to has-space; put it where
			// Allocate will find it again.
			np.promoteFilled(caller, pg)
		}
		return
	}
	pg.pendingPush(h.slot)
}

// promoteFilled moves pg from the caller's filled list back to its free
// list.
func (np *NodePool[T, PT]) promoteFilled(owner tid.ID, pg *nodePage[T]) {
	tc := np.cacheFor(owner)
	var prev *nodePage[T]
	for cur := tc.filled; cur != nil; cur = cur.listNext {
		if cur != pg {
			prev = cur
			continue
		}
		if prev == nil {
			tc.filled = cur.listNext
		} else {
			prev.listNext = cur.listNext
		}
		cur.listNext = tc.free
		tc.free = cur
		return
	}
}

// Collect drains the cross-thread pending-free list of every page on the
// calling thread's filled list, moving any page that has space afterwards
// to the free list. Pages on the free list are not visited.
func (np *NodePool[T, PT]) Collect() {
	owner := tid.Current()
	tc := np.cacheFor(owner)
	np.collectClass(tc)
	tc.heartbeat = 0
}

func (np *NodePool[T, PT]) collectClass(tc *nodeThreadCache[T]) {
	var prev *nodePage[T]
	pg := tc.filled
	for pg != nil {
		next := pg.listNext
		pg.collectPending()
		if pg.hasSpaceLocal() {
			if prev == nil {
				tc.filled = next
			} else {
				prev.listNext = next
			}
			pg.listNext = tc.free
			tc.free = pg
		} else {
			prev = pg
		}
		pg = next
	}
}

// adoptGlobal re-owns pages released to the global free pool by exited
// threads, popping until one with space turns up. Full pages go to the
// caller's filled list for a later collect.
func (np *NodePool[T, PT]) adoptGlobal(owner tid.ID, tc *nodeThreadCache[T]) *nodePage[T] {
	np.regMu.Lock()
	defer np.regMu.Unlock()
	for {
		pg := np.global
		if pg == nil {
			return nil
		}
		np.global = pg.listNext
		pg.owner.Store(uint32(owner))
		pg.collectPending()
		if pg.hasSpaceLocal() {
			pg.listNext = tc.free
			tc.free = pg
			return pg
		}
		pg.listNext = tc.filled
		tc.filled = pg
	}
}

// ReleaseThread returns the calling thread's cached pages to the
// process-global free pool. Go has no goroutine-exit hook, so callers done
// using the pool on a given goroutine must call this explicitly.
func (np *NodePool[T, PT]) ReleaseThread() {
	owner := tid.Current()
	v, ok := np.caches.LoadAndDelete(owner)
	if !ok {
		return
	}
	tc := v.(*nodeThreadCache[T])

	np.regMu.Lock()
	defer np.regMu.Unlock()
	np.appendGlobal(tc.free)
	np.appendGlobal(tc.filled)
}

func (np *NodePool[T, PT]) appendGlobal(list *nodePage[T]) {
	if list == nil {
		return
	}
	tail := list
	tail.owner.Store(uint32(tid.None))
	for tail.listNext != nil {
		tail = tail.listNext
		tail.owner.Store(uint32(tid.None))
	}
	tail.listNext = np.global
	np.global = list
}
