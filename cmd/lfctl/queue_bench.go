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

// queueBenchCommand runs repeated SPSC/MPMC rounds that must each validate
// multiset equality with zero live nodes left over.
func queueBenchCommand(args []string) {
	fs := flag.NewFlagSet("queue-bench", flag.ExitOnError)
	mode := fs.String("mode", "spsc", "spsc or mpmc")
	producers := fs.Int("producers", 1, "number of producer goroutines (mpmc only; spsc is always 1)")
	consumers := fs.Int("consumers", 1, "number of consumer goroutines (mpmc only; spsc is always 1)")
	per := fs.Int("per", 5_000_000, "distinct values each producer pushes")
	repeat := fs.Int("repeat", 20, "number of repetitions")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	lockfree.EnableDebugAliveNodeCount()
	defer lockfree.DisableDebugAliveNodeCount()

	for r := 0; r < *repeat; r++ {
		var ok bool
		var alive int64
		switch *mode {
		case "spsc":
			ok, alive = runSPSCRound(*per)
		case "mpmc":
			ok, alive = runMPMCRound(*producers, *consumers, *per)
		default:
			fmt.Fprintf(os.Stderr, "lfctl: unknown mode %q\n", *mode)
			os.Exit(1)
		}
		fmt.Printf("queue-bench[%d/%d] mode=%s multiset-match=%v live-nodes=%d\n",
			r+1, *repeat, *mode, ok, alive)
		if !ok || alive != 0 {
			os.Exit(1)
		}
	}
}

func runSPSCRound(per int) (ok bool, alive int64) {
	nodes := lockfree.NewQueueNodePool[int]()
	q := lockfree.NewQueue(nodes)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer lockfree.ReleaseThread()
		for i := 0; i < per; i++ {
			q.Push(i)
		}
	}()

	popped := make([]int, 0, per)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer lockfree.ReleaseThread()
		remaining := per
		for remaining > 0 {
			v, ok := q.Pop()
			if !ok {
				continue
			}
			popped = append(popped, v)
			remaining--
		}
	}()
	wg.Wait()

	ok = len(popped) == per
	for i := 0; ok && i < per; i++ {
		if popped[i] != i {
			ok = false
		}
	}
	q.Close()
	return ok, lockfree.AliveNodeCount()
}

func runMPMCRound(producers, consumers, per int) (ok bool, alive int64) {
	nodes := lockfree.NewMPMCQueueNodePool[int]()
	q := lockfree.NewMPMCQueue(nodes)

	total := producers * per
	if consumers <= 0 || total%consumers != 0 {
		fmt.Fprintln(os.Stderr, "lfctl: producers*per must be divisible by consumers")
		os.Exit(1)
	}
	m := total / consumers

	var g errgroup.Group
	for k := 0; k < producers; k++ {
		k := k
		g.Go(func() error {
			defer lockfree.ReleaseThread()
			base := k * per
			for i := 0; i < per; i++ {
				q.Push(base + i)
			}
			return nil
		})
	}

	var mu sync.Mutex
	popped := make([]int, 0, total)
	for c := 0; c < consumers; c++ {
		g.Go(func() error {
			defer lockfree.ReleaseThread()
			local := make([]int, 0, m)
			remaining := m
			for remaining > 0 {
				v, ok := q.Pop()
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
	_ = g.Wait()

	sort.Ints(popped)
	ok = len(popped) == total
	for i := 0; ok && i < total; i++ {
		if popped[i] != i {
			ok = false
		}
	}
	q.Close()
	return ok, lockfree.AliveNodeCount()
}
