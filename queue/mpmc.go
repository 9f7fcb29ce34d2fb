package queue

import (
	"sync/atomic"

	"github.com/kolkov/lockfree/internal/debugcount"
	"github.com/kolkov/lockfree/internal/ds/refcount"
	"github.com/kolkov/lockfree/internal/ds/tagged"
	"github.com/kolkov/lockfree/internal/pool"
	"github.com/kolkov/lockfree/internal/spinlock"
)

// mpmcNode is one queue slot. published gates which single producer wins
// the right to fill this node's slot and retire it from tail duty —
// ownership of a tail slot is decided by this flag, the claim counter in
// the tail link only tracks how many producers transiently hold the node.
//
// rc starts at external 2: one residue for the tail slot advertising the
// node now, one for the head slot that will advertise it later. Each role
// is retired exactly once, by the producer that fills the slot and by the
// consumer that unlinks it; every transient claim either side takes is
// folded through the internal half. The node is freed by whichever
// participant lands rc on zero, which cannot happen while any claim is
// outstanding — that is what makes reading a claimed node's fields safe
// even after losing the subsequent CAS.
type mpmcNode[T any] struct {
	value     T
	next      atomic.Uintptr
	published atomic.Bool
	rc        refcount.Count
	handle    pool.Handle
}

func (n *mpmcNode[T]) SetHandle(h pool.Handle) { n.handle = h }
func (n *mpmcNode[T]) GetHandle() pool.Handle  { return n.handle }

// MPMC is a lock-free queue for any number of concurrent producers and
// consumers.
//
// The head and tail links carry per-occupancy claim counts instead of
// monotonic tags: every CASReset that installs a new node address restarts
// the counter at zero, so the counter value at the moment a node leaves a
// slot is exactly the number of claims that landed on it there. The ABA
// protection a monotonic tag would provide comes from the reference count
// instead — a claimed node cannot be freed, so an address can never be
// recycled back into a slot while anyone still holds a stale view of it.
type MPMC[T any] struct {
	head  tagged.Link
	tail  tagged.Link
	nodes *pool.NodePool[mpmcNode[T], *mpmcNode[T]]
}

// MPMCNodePool is the node pool type an MPMC[T] needs. Since the queue's
// node type is unexported, external callers name this alias instead of the
// underlying pool.NodePool instantiation directly.
type MPMCNodePool[T any] = pool.NodePool[mpmcNode[T], *mpmcNode[T]]

// NewMPMCNodePool creates the node pool an MPMC[T] needs. Pass
// pool.WithHostAllocator to bypass the page cache and let the garbage
// collector reclaim nodes instead.
func NewMPMCNodePool[T any](opts ...pool.NodeOption) *MPMCNodePool[T] {
	return pool.NewNodePool[mpmcNode[T], *mpmcNode[T]](opts...)
}

// NewMPMC creates an empty queue, seeded with one sentinel node advertised
// by both head and tail, backed by the given node pool.
func NewMPMC[T any](nodes *pool.NodePool[mpmcNode[T], *mpmcNode[T]]) *MPMC[T] {
	sentinel := nodes.Allocate()
	sentinel.next.Store(0)
	sentinel.published.Store(false)
	sentinel.rc.Init(2)
	addr := tagged.AddrOf(sentinel)
	q := &MPMC[T]{nodes: nodes}
	q.head.StoreRelease(addr, 0)
	q.tail.StoreRelease(addr, 0)
	debugcount.Constructed()
	return q
}

// Push enqueues value. Any number of goroutines may call Push concurrently.
func (q *MPMC[T]) Push(value T) {
	successor := q.nodes.Allocate()
	// Allocate hands back a recycled slot's memory untouched except for its
	// Handle; everything the node's next life depends on is reset here,
	// before the tail exchange below makes it visible.
	successor.next.Store(0)
	successor.published.Store(false)
	successor.rc.Init(2)

	var bo spinlock.Backoff
	for {
		tailAddr, tailTag := q.tail.Load()
		if _, claimed := q.tail.CASTag(tailAddr, tailTag); !claimed {
			bo.Spin()
			continue
		}

		n := tagged.PointerFrom[mpmcNode[T]](tailAddr)
		if !n.published.CompareAndSwap(false, true) {
			// Some other producer owns this slot. Drop the transient claim,
			// then wait for the owner's tail exchange: no attempt on this
			// node can succeed again, so re-claiming it before the address
			// changes would only burn claim-counter space.
			if n.rc.AddInternal(-1) {
				q.reclaim(n)
			}
			for {
				cur, _ := q.tail.Load()
				if cur != tailAddr {
					break
				}
				bo.Spin()
			}
			continue
		}

		// Unique owner of the slot: fill it, link the fresh sentinel, then
		// exchange tail. Only claim counters move the tail word between
		// here and the exchange, so the loop below contends with tag bumps,
		// never with another address change.
		n.value = value
		n.next.Store(tagged.AddrOf(successor))
		var claims uint64
		for {
			curAddr, curTag := q.tail.Load()
			if q.tail.CASReset(curAddr, curTag, tagged.AddrOf(successor)) {
				claims = curTag
				break
			}
		}
		debugcount.Constructed()

		// claims counts every producer claim this occupancy saw, ours
		// included. The losers each fold -1; folding claims-1 plus the
		// tail-role retirement settles our side of the ledger.
		if n.rc.AddInternal(int32(claims) - 1) {
			q.reclaim(n)
		}
		if n.rc.AddExternal(-1) {
			q.reclaim(n)
		}
		return
	}
}

// Pop dequeues the oldest value, or reports false if the queue is empty.
// Any number of goroutines may call Pop concurrently.
func (q *MPMC[T]) Pop() (value T, ok bool) {
	var bo spinlock.Backoff
	for {
		headAddr, headTag := q.head.Load()
		tailAddr, _ := q.tail.Load()
		if headAddr == tailAddr {
			// Empty, checked before claiming: an idle consumer polling here
			// must not bump the claim counter — a counter's worth of empty
			// polls on one occupancy would wrap the claim arithmetic. Head
			// never overtakes tail, so if head is still unchanged the queue
			// really was empty when tail was read.
			if a, t := q.head.Load(); a == headAddr && t == headTag {
				var zero T
				return zero, false
			}
			bo.Spin()
			continue
		}

		claimedTag, claimed := q.head.CASTag(headAddr, headTag)
		if !claimed {
			bo.Spin()
			continue
		}

		n := tagged.PointerFrom[mpmcNode[T]](headAddr)
		nextAddr := n.next.Load()
		if nextAddr == 0 {
			// A node head has reached was filled before the tail moved past
			// it, so its next link is always set; an unset link means the
			// claim landed on a recycled incarnation. Back out and retry.
			if n.rc.AddInternal(-1) {
				q.reclaim(n)
			}
			bo.Spin()
			continue
		}
		if q.head.CASReset(headAddr, claimedTag, nextAddr) {
			value = n.value
			// Our claim was the occupancy's last: claimedTag counts them
			// all. Fold the losers back out, then retire the head role.
			if n.rc.AddInternal(int32(claimedTag) - 1) {
				q.reclaim(n)
			}
			if n.rc.AddExternal(-1) {
				q.reclaim(n)
			}
			return value, true
		}

		if n.rc.AddInternal(-1) {
			q.reclaim(n)
		}
		bo.Spin()
	}
}

// Close frees the queue's remaining sentinel node. The queue must be
// drained and quiescent: no Push or Pop may run concurrently with Close,
// and the queue is unusable afterwards.
func (q *MPMC[T]) Close() {
	headAddr, _ := q.head.Load()
	if headAddr == 0 {
		return
	}
	q.reclaim(tagged.PointerFrom[mpmcNode[T]](headAddr))
	q.head.StoreRelease(0, 0)
	q.tail.StoreRelease(0, 0)
}

func (q *MPMC[T]) reclaim(n *mpmcNode[T]) {
	debugcount.Destructed()
	q.nodes.Free(n)
}
