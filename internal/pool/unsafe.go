package pool

import "unsafe"

// unsafeSlice reinterprets a raw arena pointer as a []byte of the given
// length. The returned slice aliases arena memory directly; callers must
// not retain it past a Free of the same block.
func unsafeSlice(ptr unsafe.Pointer, length int) []byte {
	return unsafe.Slice((*byte)(ptr), length)
}

// pointerOf recovers the arena address backing a block previously returned
// by unsafeSlice, so Free can mask it down to a page base.
func pointerOf(block []byte) unsafe.Pointer {
	return unsafe.Pointer(&block[0])
}
