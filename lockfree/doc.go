// Package lockfree provides lock-free concurrent data structures for
// high-contention in-process workloads without CGO dependency.
//
// The structures are built from three shared primitives: a tagged (ABA
// -resistant) pointer, a split reference count, and a block-fixed
// thread-local memory pool. Every container allocates and frees its nodes
// through a pool instead of the runtime allocator directly, so repeated
// push/pop or enqueue/dequeue cycles under contention reuse memory instead
// of paying garbage-collector pressure on every operation.
//
// # Quick Start
//
//	package main
//
//	import "github.com/kolkov/lockfree/lockfree"
//
//	func main() {
//		nodes := lockfree.NewStackNodePool[int]()
//		s := lockfree.NewStack(nodes)
//
//		s.Push(1)
//		s.Push(2)
//		v, ok := s.Pop() // v == 2, ok == true
//		_ = v
//		_ = ok
//	}
//
// # API Overview
//
// The package provides:
//   - A LIFO stack: [NewStack], [Stack]
//   - A single-producer/single-consumer FIFO queue: [NewQueue], [Queue]
//   - A multi-producer/multi-consumer FIFO queue: [NewMPMCQueue], [MPMCQueue]
//   - A spin mutex and reentrant critical section: [NewMutex], [Mutex],
//     [NewCriticalSection], [CriticalSection]
//   - Version information: [GetInfo], [Version]
//
// # Thread Lifecycle
//
// Go has no goroutine-exit hook, so a goroutine that is done using these
// structures' backing pools should call [ReleaseThread] before it exits,
// the same way it would call a destructor in a language with deterministic
// cleanup. Skipping this is not unsafe — it only delays reuse of that
// goroutine's per-thread pool cache until the process exits.
//
// The queues always hold one sentinel node; a drained, quiescent queue
// that should release its last node (for example, before checking
// [AliveNodeCount]) must be closed with its Close method.
//
// # Compatibility
//
// Platform support:
//   - Operating systems: Linux, macOS, Windows
//   - Go version: 1.24 or later (the go directive in go.mod)
//   - CGO requirement: None
//   - Architecture: amd64, arm64 (tagged pointer packing assumes a 52-bit
//     usable virtual address space; see tools/calc_tagged_layout.go)
package lockfree
