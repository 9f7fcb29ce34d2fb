package lockfree

import (
	"github.com/kolkov/lockfree/internal/debugcount"
	"github.com/kolkov/lockfree/internal/ds/tid"
	"github.com/kolkov/lockfree/internal/pool"
	"github.com/kolkov/lockfree/internal/spinlock"
	"github.com/kolkov/lockfree/queue"
	"github.com/kolkov/lockfree/stack"
)

// NodePoolOption configures a node pool built by one of the New*NodePool
// constructors.
type NodePoolOption = pool.NodeOption

// WithHostAllocator routes node allocations through the Go heap instead of
// the page-cached memory pool: Free becomes a no-op and the garbage
// collector reclaims nodes. The default (no option) is the memory pool.
func WithHostAllocator() NodePoolOption {
	return pool.WithHostAllocator()
}

// Stack is a lock-free multi-producer/multi-consumer LIFO stack.
type Stack[T any] = stack.Stack[T]

// StackNodePool is the node pool type a Stack[T] needs.
type StackNodePool[T any] = stack.NodePool[T]

// NewStackNodePool creates the node pool a Stack[T] needs.
func NewStackNodePool[T any](opts ...NodePoolOption) *StackNodePool[T] {
	return stack.NewNodePool[T](opts...)
}

// NewStack creates an empty Stack[T] backed by nodes, built with
// NewStackNodePool[T]().
func NewStack[T any](nodes *stack.NodePool[T]) *Stack[T] {
	return stack.New(nodes)
}

// Queue is a lock-free single-producer/single-consumer FIFO queue.
type Queue[T any] = queue.SPSC[T]

// QueueNodePool is the node pool type a Queue[T] needs.
type QueueNodePool[T any] = queue.SPSCNodePool[T]

// NewQueueNodePool creates the node pool a Queue[T] needs.
func NewQueueNodePool[T any](opts ...NodePoolOption) *QueueNodePool[T] {
	return queue.NewSPSCNodePool[T](opts...)
}

// NewQueue creates an empty Queue[T] backed by nodes, built with
// NewQueueNodePool[T]().
func NewQueue[T any](nodes *queue.SPSCNodePool[T]) *Queue[T] {
	return queue.NewSPSC(nodes)
}

// MPMCQueue is a lock-free multi-producer/multi-consumer FIFO queue.
type MPMCQueue[T any] = queue.MPMC[T]

// MPMCQueueNodePool is the node pool type an MPMCQueue[T] needs.
type MPMCQueueNodePool[T any] = queue.MPMCNodePool[T]

// NewMPMCQueueNodePool creates the node pool an MPMCQueue[T] needs.
func NewMPMCQueueNodePool[T any](opts ...NodePoolOption) *MPMCQueueNodePool[T] {
	return queue.NewMPMCNodePool[T](opts...)
}

// NewMPMCQueue creates an empty MPMCQueue[T] backed by nodes, built with
// NewMPMCQueueNodePool[T]().
func NewMPMCQueue[T any](nodes *queue.MPMCNodePool[T]) *MPMCQueue[T] {
	return queue.NewMPMC(nodes)
}

// Mutex is a non-reentrant spin mutex.
type Mutex = spinlock.Mutex

// NewMutex creates a Mutex with the default spin budget.
func NewMutex() *Mutex { return spinlock.New() }

// NewMutexWithBudget creates a Mutex that spins the given number of times
// before retesting its flag in the outer loop.
func NewMutexWithBudget(budget int) *Mutex { return spinlock.NewWithBudget(budget) }

// CriticalSection is a reentrant spin lock.
type CriticalSection = spinlock.CriticalSection

// NewCriticalSection creates a CriticalSection with the default spin
// budget.
func NewCriticalSection() *CriticalSection { return spinlock.NewCriticalSection() }

// ReleaseThread returns the calling goroutine's thread identity and all of
// its pool-cached pages for reuse: every node pool in the process hands
// the goroutine's cached pages back to its spinlock-guarded global free
// list, and the thread identity goes back to the id free list. Go has no
// goroutine-exit hook, so callers that are done using any lock-free
// structure on a given goroutine should call this before it exits.
func ReleaseThread() {
	pool.ReleaseCurrentThread()
	tid.Release()
}

// EnableDebugAliveNodeCount turns on the alive-node counting facility:
// every node constructed by a Stack, Queue, or MPMCQueue
// increments a process-wide counter, and every node reclaimed decrements
// it. Disabled by default, since normal operation should not pay for a
// counter nobody reads.
func EnableDebugAliveNodeCount() {
	debugcount.Enable()
}

// DisableDebugAliveNodeCount turns the counter off and resets it to zero.
func DisableDebugAliveNodeCount() {
	debugcount.Disable()
}

// AliveNodeCount returns the current live-node count. Meaningful only
// while EnableDebugAliveNodeCount is in effect.
func AliveNodeCount() int64 {
	return debugcount.Alive()
}
