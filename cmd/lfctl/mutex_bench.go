package main

import (
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/kolkov/lockfree/lockfree"
)

// mutexBenchCommand runs N goroutines each incrementing a shared counter
// under the spin mutex; the final value must equal goroutines*increments
// exactly.
func mutexBenchCommand(args []string) {
	fs := flag.NewFlagSet("mutex-bench", flag.ExitOnError)
	goroutines := fs.Int("goroutines", 4, "number of concurrent goroutines")
	increments := fs.Int("increments", 1_000_000, "increments per goroutine")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	mu := lockfree.NewMutex()
	var counter uint64

	var wg sync.WaitGroup
	for i := 0; i < *goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < *increments; j++ {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	want := uint64(*goroutines) * uint64(*increments)
	fmt.Printf("mutex-bench: goroutines=%d increments=%d final=%d want=%d\n",
		*goroutines, *increments, counter, want)
	if counter != want {
		os.Exit(1)
	}
}
