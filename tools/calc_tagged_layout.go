//go:build ignore
// +build ignore

// This tool prints the bit layout of tagged.Link and refcount.Count, the
// two packed atomic words the lock-free containers depend on. Run with:
//
//	go run tools/calc_tagged_layout.go
//
// A target with a wider virtual address space than the 52 bits assumed
// here needs the address field widened and the counter
// field narrowed accordingly; this tool exists so that arithmetic is
// worked out once, on paper, rather than re-derived by hand each time.
package main

import "fmt"

const (
	addrBits    = 52
	counterBits = 64 - addrBits
	addrMask    = uint64(1)<<addrBits - 1
	counterMask = uint64(1)<<counterBits - 1

	internalBits = 30
	externalBits = 2
)

func main() {
	fmt.Println("tagged.Link layout (uint64):")
	fmt.Printf("  address bits:    %d (mask 0x%x)\n", addrBits, addrMask)
	fmt.Printf("  counter bits:    %d (mask 0x%x, wraps mod %d)\n",
		counterBits, counterMask, counterMask+1)
	fmt.Printf("  max addressable: 0x%x (%d PiB)\n", addrMask, (addrMask+1)>>50)
	fmt.Println()

	fmt.Println("refcount.Count layout (one uint32 word, internal field biased):")
	fmt.Printf("  internal: %d bits (delta accumulator, bias 0x%x)\n",
		internalBits, uint32(1)<<(internalBits-1))
	fmt.Printf("  external: %d bits (tagged-pointer slot residue)\n", externalBits)
	fmt.Println()

	fmt.Println("Porting to a wider address space: widen addrBits past 52,")
	fmt.Println("narrow counterBits by the same amount, and recheck that")
	fmt.Println("counterMask+1 still comfortably exceeds the maximum number")
	fmt.Println("of concurrent claimants a single node can see between one")
	fmt.Println("thread's Load and its CAS.")
}
