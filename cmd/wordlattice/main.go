// Package main provides the wordlattice CLI.
//
// Usage:
//
//	wordlattice [flags] <command> [args]
//
// Commands:
//
//	decode   - decode feature files and print the best sentences
//	grammar  - write a grammar as Graphviz DOT or HTK SLF
//	lattice  - inspect lattices kept in a lattice store
package main

import (
	"fmt"
	"os"

	"github.com/ieee0824/wordlattice/cmd/wordlattice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
