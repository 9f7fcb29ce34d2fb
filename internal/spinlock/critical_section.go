package spinlock

import (
	"runtime"
	"sync/atomic"

	"github.com/kolkov/lockfree/internal/ds/tid"
	"golang.org/x/sys/cpu"
)

// CriticalSection is a reentrant spin lock: re-entry by the current owner
// increments an entry counter and returns without re-acquiring the flag;
// Unlock decrements and only clears the flag when the counter reaches
// zero.
type CriticalSection struct {
	_       cpu.CacheLinePad
	flag    atomic.Uint32
	owner   atomic.Uint32 // tid.ID of the current owner, valid only while flag is held
	entries int           // entry count, touched only by the owner while holding flag
	budget  int
	_       cpu.CacheLinePad
}

// NewCriticalSection creates a reentrant critical section with the default
// spin budget.
func NewCriticalSection() *CriticalSection {
	c := &CriticalSection{budget: DefaultSpinBudget}
	// tid 0 is a real identity, so "no owner" needs the reserved id — a
	// zero owner word would read as owned by whichever goroutine holds
	// tid 0.
	c.owner.Store(uint32(tid.None))
	return c
}

// Lock acquires the section, or re-enters it if the calling goroutine
// already owns it.
//
// The owning thread id is written only after acquisition and cleared
// before release, so a racing reader of owner never observes a stale
// owner while the flag is clear.
func (c *CriticalSection) Lock() {
	self := uint32(tid.Current())

	if c.flag.Load() == locked && c.owner.Load() == self {
		c.entries++
		return
	}

	budget := c.budget
	if budget <= 0 {
		budget = DefaultSpinBudget
	}
	for !c.flag.CompareAndSwap(unlocked, locked) {
		if c.owner.Load() == self && c.flag.Load() == locked {
			c.entries++
			return
		}
		spinWait(budget)
	}
	c.owner.Store(self)
	c.entries = 1
}

// Unlock releases one level of re-entry. The flag is cleared only when the
// entry count reaches zero. Unlocking by a non-owner, or past the matching
// number of Lock calls, is undefined behavior.
func (c *CriticalSection) Unlock() {
	c.entries--
	if c.entries > 0 {
		return
	}
	c.owner.Store(uint32(tid.None))
	c.flag.Store(unlocked)
}

func spinWait(budget int) {
	for i := 0; i < budget; i++ {
		runtime.Gosched()
	}
}
