package main

import (
	"testing"

	"github.com/kolkov/lockfree/lockfree"
)

func TestRunSPSCRound(t *testing.T) {
	lockfree.EnableDebugAliveNodeCount()
	defer lockfree.DisableDebugAliveNodeCount()

	ok, alive := runSPSCRound(1000)
	if !ok {
		t.Fatalf("runSPSCRound: multiset mismatch")
	}
	if alive != 0 {
		t.Fatalf("runSPSCRound: live nodes = %d, want 0", alive)
	}
}

func TestRunMPMCRound(t *testing.T) {
	lockfree.EnableDebugAliveNodeCount()
	defer lockfree.DisableDebugAliveNodeCount()

	ok, alive := runMPMCRound(4, 4, 1000)
	if !ok {
		t.Fatalf("runMPMCRound: multiset mismatch")
	}
	if alive != 0 {
		t.Fatalf("runMPMCRound: live nodes = %d, want 0", alive)
	}
}
