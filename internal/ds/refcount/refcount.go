// Package refcount implements the split reference count used by the MPMC
// queue and the stack to decide when a popped/dequeued node may be
// reclaimed without a use-after-free race against a concurrent reader.
//
// A Count is one 32-bit atomic word split into two fields: a signed
// "internal" counter (30 bits) collecting deltas contributed when readers
// drop a transient claim, and an "external" residue (2 bits) counting the
// number of distinct head/tail tagged-pointer slots currently advertising
// the node. A node is reclaimable exactly when both fields are zero.
//
// Both fields live in one word so that the reclaim decision is a single
// atomic add: the caller whose add lands the word on the terminal value is
// the unique reclaimer. Two separate atomics cannot give that guarantee —
// an internal fold and an external decrement racing to zero could each
// read the other field after both adds landed and both report reclaim.
//
// The internal field is stored biased by half its range, so that the
// logical counter can swing negative (a release landing before the
// matching winner's fold) without the field-local subtraction borrowing
// into the external bits.
package refcount

import "sync/atomic"

const (
	internalBits = 30
	internalMask = uint32(1)<<internalBits - 1

	// bias keeps the stored internal field positive across the logical
	// counter's full swing.
	bias = uint32(1) << (internalBits - 1)

	externalShift = internalBits

	// terminal is the word value at internal == 0 && external == 0.
	terminal = bias
)

// Count is the split reference count attached to a node.
type Count struct {
	word atomic.Uint32
}

// Init sets the external residue (2 for an MPMC queue node, which will be
// advertised by the tail slot and later the head slot; 0 for a stack node,
// whose single advertising slot is accounted in the internal half) and
// zeroes the internal counter. Must be called before the node is
// published; a recycled node's word still holds its previous life's
// terminal value.
func (c *Count) Init(external int32) {
	c.word.Store(uint32(external)<<externalShift | bias)
}

// AddInternal folds delta into the internal counter and reports whether
// the node is now reclaimable. At most one call across the node's
// lifetime returns true, because the word only reaches the terminal value
// once every claim has been released (see the containers for the
// conservation argument).
func (c *Count) AddInternal(delta int32) (reclaim bool) {
	return c.word.Add(uint32(delta)) == terminal
}

// AddExternal folds delta into the external residue and reports whether
// the node is now reclaimable.
func (c *Count) AddExternal(delta int32) (reclaim bool) {
	return c.word.Add(uint32(delta)<<externalShift) == terminal
}

// Internal returns the logical internal counter, for debugging and tests.
func (c *Count) Internal() int32 {
	return int32(c.word.Load()&internalMask) - int32(bias)
}

// External returns the external residue, for debugging and tests.
func (c *Count) External() int32 {
	return int32(c.word.Load() >> externalShift)
}

// Sum returns a point-in-time internal+external snapshot, for debugging
// and tests only.
func (c *Count) Sum() int32 {
	v := c.word.Load()
	return int32(v&internalMask) - int32(bias) + int32(v>>externalShift)
}
