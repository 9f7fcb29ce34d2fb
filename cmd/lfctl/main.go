// Package main implements lfctl, a CLI that drives concrete concurrency
// stress scenarios for this module's containers end to end and reports
// pass/fail.
//
// Usage:
//
//	lfctl stack-bench [-producers N] [-per N]
//	lfctl queue-bench [-mode spsc|mpmc] [-producers N] [-consumers N] [-per N] [-repeat N]
//	lfctl mutex-bench [-goroutines N] [-increments N]
//	lfctl modinfo <path-to-go.mod>
//
// lfctl is a scenario runner scoped to this module's own containers: it
// does not build, instrument, or run an arbitrary target program, only
// exercises the stack, queues, and mutex under load.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "stack-bench":
		stackBenchCommand(os.Args[2:])
	case "queue-bench":
		queueBenchCommand(os.Args[2:])
	case "mutex-bench":
		mutexBenchCommand(os.Args[2:])
	case "modinfo":
		modinfoCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("lfctl version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`lfctl - lock-free container scenario runner

USAGE:
    lfctl <command> [arguments]

COMMANDS:
    stack-bench    Drive the stack push/pop stress scenario
    queue-bench    Drive the SPSC/MPMC queue stress scenario
    mutex-bench    Drive the mutex-protected-counter scenario
    modinfo        Print a target module's declared Go version
    version        Show version information
    help           Show this help message

EXAMPLES:
    lfctl stack-bench -producers 32 -per 1000000
    lfctl queue-bench -mode mpmc -producers 1 -consumers 1 -per 5000000 -repeat 20
    lfctl mutex-bench -goroutines 4 -increments 1000000
    lfctl modinfo ./go.mod

ABOUT:
    lfctl exercises this module's own lock-free stack, lock-free queues, and
    spinlock mutex under concurrent load, validating the push/pop multiset
    and live-node-count invariants each scenario cares about.
`)
}
