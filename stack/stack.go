// Package stack implements a lock-free, multi-producer/multi-consumer LIFO
// stack over tagged head pointers, with split-reference reclamation so a
// popped node is never freed while another pop is mid-claim.
package stack

import (
	"github.com/kolkov/lockfree/internal/debugcount"
	"github.com/kolkov/lockfree/internal/ds/refcount"
	"github.com/kolkov/lockfree/internal/ds/tagged"
	"github.com/kolkov/lockfree/internal/pool"
	"github.com/kolkov/lockfree/internal/spinlock"
)

// node is one stack element. next is written once, before the node is
// published by Push, and is read-only thereafter — only the head tagged
// pointer and rc ever mutate after that. pubTag records the head counter
// value this node was published with, so a later claim can recover how many
// concurrent claims have landed on this node since: the quantity folded
// into rc on a winning unlink is that claim count, not the raw (and
// node-independent) head counter value.
//
// rc never uses its external half here — a stack node has exactly one
// advertising slot (the head pointer) for its whole life, unlike an mpmc
// node's two independently-retired roles — so Init always starts at 0 and
// every fold goes through AddInternal.
type node[T any] struct {
	value  T
	next   uintptr
	pubTag uint64
	rc     refcount.Count
	handle pool.Handle
}

func (n *node[T]) SetHandle(h pool.Handle) { n.handle = h }
func (n *node[T]) GetHandle() pool.Handle  { return n.handle }

// Stack is a lock-free LIFO stack of T. The zero value is not usable; build
// one with New.
type Stack[T any] struct {
	head  tagged.Link
	nodes *pool.NodePool[node[T], *node[T]]
}

// New creates an empty stack whose nodes are served by the given node pool
// (construct one with NewNodePool[T]()). Sharing a NodePool across stacks of
// the same element type amortizes page overhead.
func New[T any](nodes *pool.NodePool[node[T], *node[T]]) *Stack[T] {
	return &Stack[T]{nodes: nodes}
}

// NodePool is the node pool type a Stack[T] needs. Since the stack's node
// type is unexported, external callers name this alias instead of the
// underlying pool.NodePool instantiation directly.
type NodePool[T any] = pool.NodePool[node[T], *node[T]]

// NewNodePool creates the node pool a Stack[T] needs. Pass
// pool.WithHostAllocator to bypass the page cache and let the garbage
// collector reclaim nodes instead.
func NewNodePool[T any](opts ...pool.NodeOption) *NodePool[T] {
	return pool.NewNodePool[node[T], *node[T]](opts...)
}

// Push publishes value onto the top of the stack.
func (s *Stack[T]) Push(value T) {
	n := s.nodes.Allocate()
	n.value = value

	var bo spinlock.Backoff
	for {
		addr, tagCounter := s.head.Load()
		n.next = addr
		// pubTag and rc must be in place before the CAS makes the node
		// claimable: a consumer can land on it the instant the publish
		// succeeds. Baseline 0: every losing claimant folds -1 and the
		// winner folds (claims-1), which only sums to zero once every claim
		// on this node — the winner's included — has folded. See DESIGN.md
		// for the worked reclaim arithmetic.
		n.pubTag = tagCounter + 1
		n.rc.Init(0)
		if s.head.CASPublish(addr, tagCounter, tagged.AddrOf(n)) {
			debugcount.Constructed()
			return
		}
		bo.Spin()
	}
}

// Pop removes and returns the top value, or reports false if the stack is
// empty.
func (s *Stack[T]) Pop() (value T, ok bool) {
	var bo spinlock.Backoff
	for {
		addr, headTag := s.head.Load()
		claimedTag, claimed := s.head.CASTag(addr, headTag)
		if !claimed {
			bo.Spin()
			continue
		}
		if addr == 0 {
			var zero T
			return zero, false
		}

		n := tagged.PointerFrom[node[T]](addr)
		claims := (claimedTag - n.pubTag) & tagged.CounterMask
		nextAddr := n.next

		if s.head.CASAdvance(addr, claimedTag, nextAddr) {
			value = n.value
			if n.rc.AddInternal(int32(claims) - 1) {
				s.reclaim(n)
			}
			bo.Reset()
			return value, true
		}

		if n.rc.AddInternal(-1) {
			s.reclaim(n)
		}
		bo.Spin()
	}
}

func (s *Stack[T]) reclaim(n *node[T]) {
	debugcount.Destructed()
	s.nodes.Free(n)
}
