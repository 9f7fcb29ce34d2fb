// Package debugcount implements the alive-node counting facility:
// a process-wide atomic counter that node constructors and
// destructors increment and decrement, active only when Enable has been
// called. Disabled by default so normal operation pays no cost for it.
package debugcount

import "sync/atomic"

var (
	enabled atomic.Bool
	alive   atomic.Int64
)

// Enable turns the counter on. Intended for tests and cmd/lfctl's
// leak-check scenario, not for production use.
func Enable() {
	enabled.Store(true)
}

// Disable turns the counter off and resets it to zero.
func Disable() {
	enabled.Store(false)
	alive.Store(0)
}

// Enabled reports whether counting is active.
func Enabled() bool {
	return enabled.Load()
}

// Constructed records one node coming alive. Queue sentinel nodes call
// this too, the same as any other node.
func Constructed() {
	if enabled.Load() {
		alive.Add(1)
	}
}

// Destructed records one node going away.
func Destructed() {
	if enabled.Load() {
		alive.Add(-1)
	}
}

// Alive returns the current live-node count. Meaningful only while
// Enabled.
func Alive() int64 {
	return alive.Load()
}
