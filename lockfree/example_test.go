package lockfree_test

import (
	"fmt"

	"github.com/kolkov/lockfree/lockfree"
)

// Example demonstrates basic usage of the lock-free stack.
func Example() {
	defer lockfree.ReleaseThread()

	pool := lockfree.NewStackNodePool[int]()
	s := lockfree.NewStack(pool)

	s.Push(1)
	s.Push(2)
	s.Push(3)

	for {
		v, ok := s.Pop()
		if !ok {
			break
		}
		fmt.Println(v)
	}

	// Output:
	// 3
	// 2
	// 1
}

// Example_mutex demonstrates protecting a shared counter with the spin
// mutex instead of sync.Mutex.
func Example_mutex() {
	defer lockfree.ReleaseThread()

	mu := lockfree.NewMutex()
	counter := 0

	mu.Lock()
	counter++
	mu.Unlock()

	fmt.Println(counter)

	// Output:
	// 1
}
