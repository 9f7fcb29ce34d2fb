package spinlock

import "runtime"

// Backoff is a small contention-aware retry helper shared by the stack and
// queue CAS loops. It is not a lock: it has no state that needs protecting,
// only a counter that grows the yield between attempts as contention
// persists.
type Backoff struct {
	attempts int
}

// Spin yields to the scheduler, backing off (via extra Gosched calls) the
// longer contention persists. Call once per failed CAS iteration.
func (b *Backoff) Spin() {
	b.attempts++
	n := b.attempts
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		runtime.Gosched()
	}
}

// Reset clears the backoff state after a successful operation.
func (b *Backoff) Reset() {
	b.attempts = 0
}
