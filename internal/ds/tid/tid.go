// Package tid is the thread identity service: a process-wide monotonic id,
// assigned lazily on first reference, that the memory pool reads on every
// allocate/free to select a caller's owning cache.
//
// Go has no portable thread-local storage and no goroutine-exit hook.
// Since this module's pool correctness (not just its statistics)
// depends on ids being returned to the free list, every caller that obtains
// an id via Current is required to call Release when it is done with the
// pool — typically once per goroutine lifetime, deferred right after the
// first Current call.
package tid

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ID is an opaque, small, densely-reused thread identity.
type ID uint32

// None is a reserved identity that Current never assigns. The pool stamps
// it onto pages whose owning thread has exited, so an ownership test
// against any live caller fails and the free takes the cross-thread path.
const None = ^ID(0)

var (
	mu       sync.Mutex
	freeList []ID
	next     atomic.Uint32

	assigned sync.Map // goroutine id (int64) -> ID
)

// Current returns the calling goroutine's identity, assigning one lazily on
// first reference. Subsequent calls from the same goroutine return the same
// value until Release is called.
func Current() ID {
	gid := goroutineID()
	if v, ok := assigned.Load(gid); ok {
		return v.(ID)
	}

	id := allocate()
	assigned.Store(gid, id)
	return id
}

// Release returns the calling goroutine's identity to the free list. After
// Release, a subsequent Current call on the same goroutine allocates a
// fresh (possibly reused) id.
func Release() {
	gid := goroutineID()
	v, ok := assigned.LoadAndDelete(gid)
	if !ok {
		return
	}
	free(v.(ID))
}

// allocate pops a reusable id off the free list, or mints a new one.
func allocate() ID {
	mu.Lock()
	if n := len(freeList); n > 0 {
		id := freeList[n-1]
		freeList = freeList[:n-1]
		mu.Unlock()
		return id
	}
	mu.Unlock()
	return ID(next.Add(1) - 1)
}

// free pushes id back onto the free list for reuse.
func free(id ID) {
	mu.Lock()
	freeList = append(freeList, id)
	mu.Unlock()
}

// goroutineID extracts a cheap, stable-for-the-goroutine's-lifetime key used
// only to index the lazy-assignment cache; it is not the identity exposed
// to callers (ID is).
func goroutineID() int64 {
	return stackGoroutineID()
}

// stackGoroutineID parses the goroutine id out of a runtime.Stack dump.
//
// This is the portable, architecture-independent path. It runs on every
// Current call, and the pool calls Current on every Allocate and Free, so
// each of those pays one runtime.Stack dump and parse.
func stackGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the numeric goroutine id from a "goroutine 123
// [running]:..." stack dump prefix.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var gid int64
	for i := len(prefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
