package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/kolkov/lockfree/lockfree"
	"golang.org/x/sync/errgroup"
)

// stackBenchCommand runs one round of producer and consumer goroutines
// pushing and popping concurrently; the sorted pop log must equal the
// sorted push log with the live-node counter back at zero afterward.
func stackBenchCommand(args []string) {
	fs := flag.NewFlagSet("stack-bench", flag.ExitOnError)
	producers := fs.Int("producers", 32, "number of concurrently pushing goroutines")
	consumers := fs.Int("consumers", 32, "number of concurrently popping goroutines")
	per := fs.Int("per", 1_000_000, "distinct values each producer pushes (each consumer pops producers*per/consumers)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	lockfree.EnableDebugAliveNodeCount()
	defer lockfree.DisableDebugAliveNodeCount()

	nodes := lockfree.NewStackNodePool[int]()
	s := lockfree.NewStack(nodes)

	total := *producers * *per
	if *consumers <= 0 || total%(*consumers) != 0 {
		fmt.Fprintln(os.Stderr, "lfctl: producers*per must be divisible by consumers")
		os.Exit(1)
	}
	m := total / *consumers

	var g errgroup.Group
	for k := 0; k < *producers; k++ {
		k := k
		g.Go(func() error {
			defer lockfree.ReleaseThread()
			base := k * *per
			for i := 0; i < *per; i++ {
				s.Push(base + i)
			}
			return nil
		})
	}

	var mu sync.Mutex
	popped := make([]int, 0, total)
	for c := 0; c < *consumers; c++ {
		g.Go(func() error {
			defer lockfree.ReleaseThread()
			local := make([]int, 0, m)
			remaining := m
			for remaining > 0 {
				v, ok := s.Pop()
				if !ok {
					continue
				}
				local = append(local, v)
				remaining--
			}
			mu.Lock()
			popped = append(popped, local...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "lfctl: stack-bench failed: %v\n", err)
		os.Exit(1)
	}

	sort.Ints(popped)
	ok := len(popped) == total
	for i := 0; ok && i < total; i++ {
		if popped[i] != i {
			ok = false
		}
	}
	alive := lockfree.AliveNodeCount()

	fmt.Printf("stack-bench: producers=%d consumers=%d total=%d\n", *producers, *consumers, total)
	fmt.Printf("  multiset match: %v\n", ok)
	fmt.Printf("  live nodes after drain: %d\n", alive)
	if !ok || alive != 0 {
		os.Exit(1)
	}
}
