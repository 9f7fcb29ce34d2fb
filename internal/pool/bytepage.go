package pool

import (
	"sync/atomic"
	"unsafe"

	"github.com/kolkov/lockfree/internal/ds/tid"
)

// Header field offsets within a page's low bytes. All fields are plain
// uint32s, not Go pointers — a page
// is backed by an untyped []byte arena, so nothing stored inside it can be
// a heap pointer the garbage collector would need to trace.
//
// offAllocated, offBumpNext and offFreeHead are touched only by the owning
// thread and are read/written as plain memory — single-threaded
// allocation has no atomics. offOwner/offClass
// /offBlockSize/offCapacity are written before the page is published;
// offClass, offBlockSize and offCapacity never change again, while offOwner
// is re-stamped when the page is released to the global pool or adopted
// from it. Free reads offOwner, offClass and offBlockSize through
// sync/atomic. offPending is the one field mutated cross-thread and is
// always touched through sync/atomic.
const (
	offOwner     = 0
	offClass     = 4
	offBlockSize = 8
	offCapacity  = 12
	offAllocated = 16
	offBumpNext  = 20
	offFreeHead  = 24
	offPending   = 28
	headerSize   = 64 // cache-line sized, so header traffic never false-shares with block 0
)

// bytePage is the Go-side handle for one page: it keeps the backing arena
// alive (GC reachability flows through raw, an unsafe.Pointer-compatible
// slice) and links into a thread-local free/filled list. Every other piece
// of page state lives inside the arena itself, addressed by masking.
type bytePage struct {
	raw      []byte // backing allocation: 2x pageSize, to guarantee an aligned page-size window
	base     uintptr
	listNext *bytePage // free/filled list linkage; touched only by the owning thread
}

func newBytePage(owner tid.ID, class int, pageSize uint32) *bytePage {
	raw := make([]byte, int(pageSize)*2)
	rawAddr := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (rawAddr + uintptr(pageSize) - 1) &^ (uintptr(pageSize) - 1)

	p := &bytePage{raw: raw, base: aligned}
	blockSize := sizeClasses[class]
	capacity := (pageSize - headerSize) / blockSize

	atomic.StoreUint32(p.field(offOwner), uint32(owner))
	atomic.StoreUint32(p.field(offClass), uint32(class))
	atomic.StoreUint32(p.field(offBlockSize), blockSize)
	atomic.StoreUint32(p.field(offCapacity), capacity)
	atomic.StoreUint32(p.field(offAllocated), 0)
	atomic.StoreUint32(p.field(offBumpNext), 0)
	atomic.StoreUint32(p.field(offFreeHead), 0)
	atomic.StoreUint32(p.field(offPending), 0)
	return p
}

// fieldAt, blockAtBase and nextFreeLinkAt are expressed purely in terms of
// a page base address so that Free (which only has a masked address, never
// a *bytePage) and the bytePage methods below share one implementation.

func fieldAt(base uintptr, off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(base + off))
}

func blockAtBase(base uintptr, idx uint32, blockSize uint32) unsafe.Pointer {
	return unsafe.Pointer(base + uintptr(headerSize) + uintptr(idx)*uintptr(blockSize))
}

// nextFreeLinkAt reinterprets the first 4 bytes of a free block as an
// intrusive next-index link. A block is on exactly one of the local free
// list or the cross-thread pending list at a time, so reusing the same
// storage for both is safe — the same discipline as a node body that
// carries both a live-value payload and a pending-free linkage.
func nextFreeLinkAt(base uintptr, idx uint32, blockSize uint32) *uint32 {
	return (*uint32)(blockAtBase(base, idx, blockSize))
}

func (p *bytePage) field(off uintptr) *uint32 {
	return fieldAt(p.base, off)
}

func (p *bytePage) blockSize() uint32 {
	return atomic.LoadUint32(p.field(offBlockSize))
}

func (p *bytePage) owner() tid.ID {
	return tid.ID(atomic.LoadUint32(p.field(offOwner)))
}

func (p *bytePage) blockAt(idx uint32) unsafe.Pointer {
	return blockAtBase(p.base, idx, p.blockSize())
}

func (p *bytePage) nextFreeLink(idx uint32) *uint32 {
	return nextFreeLinkAt(p.base, idx, p.blockSize())
}

// takeSlotLocal serves one block from the page: first from the local free
// list, then from the bump pointer. Owner-thread only, no atomics.
func (p *bytePage) takeSlotLocal() (idx uint32, ok bool) {
	freeHeadPtr := p.field(offFreeHead)
	if freeHead := *freeHeadPtr; freeHead != 0 {
		idx = freeHead - 1
		*freeHeadPtr = *p.nextFreeLink(idx)
		*p.field(offAllocated)++
		return idx, true
	}
	bumpPtr := p.field(offBumpNext)
	capacity := *p.field(offCapacity)
	if *bumpPtr >= capacity {
		return 0, false
	}
	idx = *bumpPtr
	*bumpPtr++
	*p.field(offAllocated)++
	return idx, true
}

// hasSpaceLocal reports whether takeSlotLocal can currently serve a block.
// Owner-thread only.
func (p *bytePage) hasSpaceLocal() bool {
	return *p.field(offFreeHead) != 0 || *p.field(offBumpNext) < *p.field(offCapacity)
}

// localFreeAt returns a block to a page's local free list, addressed
// purely by base (used by Free, which has no *bytePage in hand). Must only
// be called by the page's owning thread.
func localFreeAt(base uintptr, idx uint32) {
	blockSize := atomic.LoadUint32(fieldAt(base, offBlockSize))
	freeHeadPtr := fieldAt(base, offFreeHead)
	*nextFreeLinkAt(base, idx, blockSize) = *freeHeadPtr
	*freeHeadPtr = idx + 1
	*fieldAt(base, offAllocated)--
}

// pendingPushAt CAS-pushes a block onto a page's cross-thread pending-free
// list, addressed purely by base. Safe from any thread.
func pendingPushAt(base uintptr, idx uint32) {
	blockSize := atomic.LoadUint32(fieldAt(base, offBlockSize))
	pendingPtr := fieldAt(base, offPending)
	link := nextFreeLinkAt(base, idx, blockSize)
	for {
		head := atomic.LoadUint32(pendingPtr)
		*link = head
		if atomic.CompareAndSwapUint32(pendingPtr, head, idx+1) {
			return
		}
	}
}

// collectPending atomically detaches the whole cross-thread pending list
// and splices it onto the local free list. Owner-thread only. Idempotent:
// a no-op if nothing is pending.
func (p *bytePage) collectPending() (drained int) {
	pendingPtr := p.field(offPending)
	var head uint32
	for {
		head = atomic.LoadUint32(pendingPtr)
		if head == 0 {
			return 0
		}
		if atomic.CompareAndSwapUint32(pendingPtr, head, 0) {
			break
		}
	}
	freeHeadPtr := p.field(offFreeHead)
	allocatedPtr := p.field(offAllocated)
	blockSize := p.blockSize()
	cur := head
	for cur != 0 {
		idx := cur - 1
		next := *nextFreeLinkAt(p.base, idx, blockSize)
		*nextFreeLinkAt(p.base, idx, blockSize) = *freeHeadPtr
		*freeHeadPtr = idx + 1
		*allocatedPtr--
		drained++
		cur = next
	}
	return drained
}

// baseOf masks a block address down to its page base. Because pages are
// aligned to their own size, this is the page's owning thread-id/size-class
// lookup without a hash table.
func baseOf(ptr unsafe.Pointer, pageSize uint32) uintptr {
	addr := uintptr(ptr)
	return addr &^ (uintptr(pageSize) - 1)
}
