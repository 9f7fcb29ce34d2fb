// Package queue implements the lock-free FIFO queues:
// SPSC, a single-producer/single-consumer sentinel-linked queue, and MPMC,
// its multi-producer/multi-consumer counterpart.
package queue

import (
	"github.com/kolkov/lockfree/internal/debugcount"
	"github.com/kolkov/lockfree/internal/ds/tagged"
	"github.com/kolkov/lockfree/internal/pool"
	"github.com/kolkov/lockfree/internal/spinlock"
)

// spscNode holds one queue slot. Under the sentinel discipline, the
// node currently at tail is "the slot a producer will fill next" — its
// value field is written by Push before the node stops being tail.
type spscNode[T any] struct {
	value  T
	next   uintptr
	handle pool.Handle
}

func (n *spscNode[T]) SetHandle(h pool.Handle) { n.handle = h }
func (n *spscNode[T]) GetHandle() pool.Handle  { return n.handle }

// SPSC is a lock-free queue for exactly one producer goroutine and exactly
// one consumer goroutine; concurrent callers on the same side are
// undefined behavior.
type SPSC[T any] struct {
	head  tagged.Link
	tail  tagged.Link
	nodes *pool.NodePool[spscNode[T], *spscNode[T]]
}

// SPSCNodePool is the node pool type an SPSC[T] needs. Since the queue's
// node type is unexported, external callers name this alias instead of the
// underlying pool.NodePool instantiation directly.
type SPSCNodePool[T any] = pool.NodePool[spscNode[T], *spscNode[T]]

// NewSPSCNodePool creates the node pool an SPSC[T] needs. Pass
// pool.WithHostAllocator to bypass the page cache and let the garbage
// collector reclaim nodes instead.
func NewSPSCNodePool[T any](opts ...pool.NodeOption) *SPSCNodePool[T] {
	return pool.NewNodePool[spscNode[T], *spscNode[T]](opts...)
}

// NewSPSC creates an empty queue, seeded with one sentinel node, backed by
// the given node pool.
func NewSPSC[T any](nodes *pool.NodePool[spscNode[T], *spscNode[T]]) *SPSC[T] {
	sentinel := nodes.Allocate()
	addr := tagged.AddrOf(sentinel)
	q := &SPSC[T]{nodes: nodes}
	q.head.StoreRelease(addr, 0)
	q.tail.StoreRelease(addr, 0)
	debugcount.Constructed()
	return q
}

// Push enqueues value.
func (q *SPSC[T]) Push(value T) {
	successor := q.nodes.Allocate()
	tailAddr, tailTag := q.tail.Load()
	tailNode := tagged.PointerFrom[spscNode[T]](tailAddr)
	tailNode.value = value
	tailNode.next = tagged.AddrOf(successor)
	q.tail.StoreRelease(tagged.AddrOf(successor), tailTag+1)
	debugcount.Constructed()
}

// Close frees the queue's remaining sentinel node. The queue must be
// drained and quiescent: no Push or Pop may run concurrently with Close,
// and the queue is unusable afterwards. A drained queue still holds one
// sentinel, so callers that check the live-node counter must Close before
// reading it.
func (q *SPSC[T]) Close() {
	headAddr, _ := q.head.Load()
	if headAddr == 0 {
		return
	}
	q.nodes.Free(tagged.PointerFrom[spscNode[T]](headAddr))
	debugcount.Destructed()
	q.head.StoreRelease(0, 0)
	q.tail.StoreRelease(0, 0)
}

// Pop dequeues the oldest value, or reports false if the queue is empty.
func (q *SPSC[T]) Pop() (value T, ok bool) {
	var bo spinlock.Backoff
	for {
		headAddr, headTag := q.head.Load()
		tailAddr, _ := q.tail.Load()
		if headAddr == tailAddr {
			var zero T
			return zero, false
		}

		headNode := tagged.PointerFrom[spscNode[T]](headAddr)
		nextAddr := headNode.next
		if q.head.CASAdvance(headAddr, headTag, nextAddr) {
			value = headNode.value
			q.nodes.Free(headNode)
			debugcount.Destructed()
			return value, true
		}
		bo.Spin()
	}
}
