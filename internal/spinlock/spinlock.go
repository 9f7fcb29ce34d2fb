// Package spinlock implements a non-reentrant spin mutex and a reentrant
// spin-based critical section, the thin blocking facility used only by the
// memory pool's cross-thread bookkeeping and by callers that need mutual
// exclusion cheaper than an OS-suspending sync.Mutex for very short
// critical sections.
//
// Neither primitive is fair and neither detects misuse: double-unlock and
// unlock-by-non-owner are undefined behavior.
package spinlock

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// DefaultSpinBudget is the number of yielding spin attempts before a caller
// retests the flag one more time.
const DefaultSpinBudget = 512

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// Mutex is a single-flag spin lock. Not reentrant: re-locking from the
// owner goroutine deadlocks, the same as sync.Mutex.
//
// The flag and spin budget are cache-line padded on both sides so
// contended spinning on flag doesn't false-share with whatever the caller
// places next to a Mutex value.
type Mutex struct {
	_          cpu.CacheLinePad
	flag       atomic.Uint32
	spinBudget int
	_          cpu.CacheLinePad
}

// New creates a Mutex with the default spin budget.
func New() *Mutex {
	return &Mutex{spinBudget: DefaultSpinBudget}
}

// NewWithBudget creates a Mutex that spins budget times, yielding to the
// scheduler between attempts, before retesting the flag.
func NewWithBudget(budget int) *Mutex {
	if budget <= 0 {
		budget = DefaultSpinBudget
	}
	return &Mutex{spinBudget: budget}
}

// Lock blocks until the flag is acquired. Both the fast compare-and-swap
// and the spin-retest use the sequentially-consistent ordering of
// sync/atomic.
func (m *Mutex) Lock() {
	if m.flag.CompareAndSwap(unlocked, locked) {
		return
	}
	budget := m.spinBudget
	if budget <= 0 {
		budget = DefaultSpinBudget
	}
	for {
		for i := 0; i < budget; i++ {
			if m.flag.Load() == unlocked && m.flag.CompareAndSwap(unlocked, locked) {
				return
			}
			runtime.Gosched()
		}
		// Budget exhausted this round; fall through and try again. The
		// caller has already yielded `budget` times, so a long-held lock
		// just keeps costing Gosched calls rather than ever blocking the
		// OS thread.
	}
}

// TryLock attempts to acquire the lock without spinning.
func (m *Mutex) TryLock() bool {
	return m.flag.CompareAndSwap(unlocked, locked)
}

// Unlock releases the lock. Unlocking an unheld Mutex, or unlocking from a
// goroutine other than the one that locked it, is undefined behavior.
func (m *Mutex) Unlock() {
	m.flag.Store(unlocked)
}

// IsLocked reports whether the lock is currently held. Racy by nature; for
// diagnostics only.
func (m *Mutex) IsLocked() bool {
	return m.flag.Load() == locked
}
