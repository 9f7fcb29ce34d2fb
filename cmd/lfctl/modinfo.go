package main

import (
	"fmt"
	"os"

	"golang.org/x/mod/modfile"
)

// modinfoCommand reads a target module's go.mod with golang.org/x/mod's
// modfile parser and prints its declared module path, Go version and
// number of require entries. The scenario commands do not read go.mod.
func modinfoCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: lfctl modinfo <path-to-go.mod>")
		os.Exit(1)
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lfctl: reading %s: %v\n", path, err)
		os.Exit(1)
	}

	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lfctl: parsing %s: %v\n", path, err)
		os.Exit(1)
	}

	modulePath := "(unknown)"
	if f.Module != nil {
		modulePath = f.Module.Mod.Path
	}
	goVersion := "(unspecified)"
	if f.Go != nil {
		goVersion = f.Go.Version
	}

	fmt.Printf("module:     %s\n", modulePath)
	fmt.Printf("go version: %s\n", goVersion)
	fmt.Printf("requires:   %d direct/indirect dependencies\n", len(f.Require))
}
