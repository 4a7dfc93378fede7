// Package main provides the tiercache CLI for inspecting and exercising a
// tiered cache from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
