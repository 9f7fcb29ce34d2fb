package pool

import "github.com/kolkov/lockfree/internal/spinlock"

// threadReleaser is the per-pool thread-exit hook: both BytePool and every
// NodePool instantiation return the calling thread's cached pages to their
// global free pool through it.
type threadReleaser interface {
	ReleaseThread()
}

// The process-wide pool registry. Every pool registers itself at
// construction so that a single ReleaseCurrentThread call at goroutine
// exit reaches all of them, without the caller having to keep every pool
// it ever touched in scope. Guarded by the spinlock; touched only at pool
// construction and thread exit, never on an allocation path.
var (
	registryMu spinlock.Mutex
	registry   []threadReleaser
)

func register(r threadReleaser) {
	registryMu.Lock()
	registry = append(registry, r)
	registryMu.Unlock()
}

// ReleaseCurrentThread returns the calling goroutine's cached pages, in
// every pool in the process, to the pools' global free lists. A pool the
// goroutine never allocated from is a cheap no-op. Callers release their
// thread identity separately (tid.Release), after this.
func ReleaseCurrentThread() {
	registryMu.Lock()
	pools := make([]threadReleaser, len(registry))
	copy(pools, registry)
	registryMu.Unlock()

	for _, p := range pools {
		p.ReleaseThread()
	}
}
