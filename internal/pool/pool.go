// Package pool implements the block-fixed thread-local memory pool that
// backs node allocations for the stack and queue containers.
//
// BytePool is the byte-level allocator: size-classed, page-backed,
// address-masked, with a thread-local free/filled page cache and a
// cross-thread CAS pending-free list drained on a heartbeat. NodePool[T]
// (see nodepool.go) implements the identical algorithm over a GC-tracked
// typed slice instead of a raw byte arena, so generic element types
// containing pointers stay visible to the garbage collector — see
// DESIGN.md for why BytePool's raw-byte technique cannot be generalized to
// arbitrary T.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/lockfree/internal/ds/tid"
	"github.com/kolkov/lockfree/internal/spinlock"
	"golang.org/x/sys/cpu"
)

// Option configures a BytePool.
type Option func(*config)

type config struct {
	pageSize uint32
}

// WithPageSize sets the page size, one of {16,32,64,128,256,512,1024,2048,
// 4096} KiB. Panics on an unrecognized value, since this is a programming
// error, not a runtime condition.
func WithPageSize(kib int) Option {
	return func(c *config) {
		bytes := uint32(kib) * 1024
		if !validPageSize(bytes) {
			panic("lockfree/pool: page size must be one of 16,32,64,128,256,512,1024,2048,4096 KiB")
		}
		c.pageSize = bytes
	}
}

// byteThreadCache is the per-thread, per-size-class pair of page lists:
// "free" (has at least one available block) and "filled" (currently
// full), plus the heartbeat counter that gates cross-thread collection.
type byteThreadCache struct {
	free      [NumClasses]*bytePage
	filled    [NumClasses]*bytePage
	heartbeat uint32
}

// BytePool is a process-wide pool of fixed-size-class pages, each owned by
// exactly one goroutine at a time.
type BytePool struct {
	_        cpu.CacheLinePad
	pageSize uint32
	regMu    spinlock.Mutex // guards the global free-cache registry
	global   [NumClasses]*bytePage
	caches   sync.Map // tid.ID -> *byteThreadCache
	_        cpu.CacheLinePad
}

// New creates a BytePool with the default 512 KiB page size, or the page
// size given by WithPageSize.
func New(opts ...Option) *BytePool {
	c := config{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&c)
	}
	bp := &BytePool{pageSize: c.pageSize}
	register(bp)
	return bp
}

func (bp *BytePool) cacheFor(owner tid.ID) *byteThreadCache {
	if v, ok := bp.caches.Load(owner); ok {
		return v.(*byteThreadCache)
	}
	tc := &byteThreadCache{}
	actual, _ := bp.caches.LoadOrStore(owner, tc)
	return actual.(*byteThreadCache)
}

// Allocate serves a block of at least size bytes. Requests above
// MaxBlockSize fall back to the host allocator.
func (bp *BytePool) Allocate(size int) []byte {
	idx, blockSize, ok := classFor(size)
	if !ok {
		return make([]byte, size)
	}

	owner := tid.Current()
	tc := bp.cacheFor(owner)
	tc.heartbeat++

	pg := tc.free[idx]
	if pg == nil {
		if tc.heartbeat >= HeartbeatThreshold {
			bp.collectClass(tc, idx)
			tc.heartbeat = 0
			pg = tc.free[idx]
		}
		if pg == nil {
			pg = bp.adoptGlobal(owner, tc, idx)
		}
		if pg == nil {
			pg = newBytePage(owner, idx, bp.pageSize)
			pg.listNext = tc.free[idx]
			tc.free[idx] = pg
		}
	}

	slot, ok := pg.takeSlotLocal()
	if !ok {
		panic("lockfree/pool: page on the free list reported no space")
	}
	if !pg.hasSpaceLocal() {
		tc.free[idx] = pg.listNext
		pg.listNext = tc.filled[idx]
		tc.filled[idx] = pg
	}

	ptr := pg.blockAt(slot)
	return unsafeSlice(ptr, int(blockSize))
}

// Free releases a block previously returned by Allocate. Masks the pointer
// to its page base to decide whether the caller is the owning thread
// (direct push onto the local free list) or a foreign thread (CAS push onto
// the page's pending list).
//
// Freeing a pointer not obtained from Allocate, or double-freeing one, is
// undefined behavior.
func (bp *BytePool) Free(block []byte) {
	if cap(block) == 0 {
		return
	}
	ptr := pointerOf(block)
	base := baseOf(ptr, bp.pageSize)
	ownerID := tid.ID(atomic.LoadUint32(fieldAt(base, offOwner)))
	blockSize := atomic.LoadUint32(fieldAt(base, offBlockSize))
	idx := uint32((uintptr(ptr) - base - headerSize) / uintptr(blockSize))

	caller := tid.Current()
	if caller == ownerID {
		wasFull := *fieldAt(base, offFreeHead) == 0 &&
			*fieldAt(base, offBumpNext) >= *fieldAt(base, offCapacity)
		localFreeAt(base, idx)
		if wasFull {
			// The page just went from full back to has-space; put it where
			// Allocate will find it again.
			bp.promoteFilled(caller, int(atomic.LoadUint32(fieldAt(base, offClass))), base)
		}
		return
	}
	pendingPushAt(base, idx)
}

// promoteFilled moves the page at base from the caller's filled list back
// to its free list.
func (bp *BytePool) promoteFilled(owner tid.ID, class int, base uintptr) {
	tc := bp.cacheFor(owner)
	var prev *bytePage
	for pg := tc.filled[class]; pg != nil; pg = pg.listNext {
		if pg.base != base {
			prev = pg
			continue
		}
		if prev == nil {
			tc.filled[class] = pg.listNext
		} else {
			prev.listNext = pg.listNext
		}
		pg.listNext = tc.free[class]
		tc.free[class] = pg
		return
	}
}

// Collect drains the cross-thread pending-free list of every page on the
// calling thread's filled lists into that page's local free list, moving
// any page that has space afterwards from filled to free. Pages on the
// free lists are not visited. Idempotent: a no-op when nothing is
// pending.
func (bp *BytePool) Collect() {
	owner := tid.Current()
	tc := bp.cacheFor(owner)
	for idx := range tc.filled {
		bp.collectClass(tc, idx)
	}
	tc.heartbeat = 0
}

func (bp *BytePool) collectClass(tc *byteThreadCache, idx int) {
	var prev *bytePage
	pg := tc.filled[idx]
	for pg != nil {
		next := pg.listNext
		pg.collectPending()
		if pg.hasSpaceLocal() {
			if prev == nil {
				tc.filled[idx] = next
			} else {
				prev.listNext = next
			}
			pg.listNext = tc.free[idx]
			tc.free[idx] = pg
		} else {
			prev = pg
		}
		pg = next
	}
}

// adoptGlobal re-owns pages released to the global free pool by exited
// threads, popping until one with space turns up. Full pages go to the
// caller's filled list for a later collect.
func (bp *BytePool) adoptGlobal(owner tid.ID, tc *byteThreadCache, idx int) *bytePage {
	bp.regMu.Lock()
	defer bp.regMu.Unlock()
	for {
		pg := bp.global[idx]
		if pg == nil {
			return nil
		}
		bp.global[idx] = pg.listNext
		atomic.StoreUint32(pg.field(offOwner), uint32(owner))
		pg.collectPending()
		if pg.hasSpaceLocal() {
			pg.listNext = tc.free[idx]
			tc.free[idx] = pg
			return pg
		}
		pg.listNext = tc.filled[idx]
		tc.filled[idx] = pg
	}
}

// ReleaseThread returns the calling thread's cached pages to the
// process-global free pool, guarded by the spinlock. Besides thread exit,
// the global pool is touched by Allocate when the calling thread has no
// page with space for the requested class (adoptGlobal); an Allocate
// served from a cached page never takes the spinlock. Go
// has no goroutine-exit hook, so callers that finish using the pool on a
// given goroutine must call this explicitly, mirroring tid.Release.
func (bp *BytePool) ReleaseThread() {
	owner := tid.Current()
	v, ok := bp.caches.LoadAndDelete(owner)
	if !ok {
		return
	}
	tc := v.(*byteThreadCache)

	bp.regMu.Lock()
	defer bp.regMu.Unlock()
	for idx := range tc.free {
		disownAll(tc.free[idx])
		disownAll(tc.filled[idx])
		appendGlobal(&bp.global[idx], tc.free[idx])
		appendGlobal(&bp.global[idx], tc.filled[idx])
	}
}

// disownAll stamps the reserved no-owner identity onto every page in list,
// so that frees arriving while the pages sit in the global pool always take
// the cross-thread pending path.
func disownAll(list *bytePage) {
	for pg := list; pg != nil; pg = pg.listNext {
		atomic.StoreUint32(pg.field(offOwner), uint32(tid.None))
	}
}

func appendGlobal(head **bytePage, list *bytePage) {
	if list == nil {
		return
	}
	tail := list
	for tail.listNext != nil {
		tail = tail.listNext
	}
	tail.listNext = *head
	*head = list
}
