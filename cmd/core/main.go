// Package main is the platform-agnostic entry point for the SyncLedger
// sync core: it opens the local store, wires the engine, and exposes the
// sync operations as a small CLI for desktop and headless use.
package main

import (
	"fmt"
	"os"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
