// Command cycle runs cycle-driven pipelines over audio files.
package main

import (
	"fmt"
	"os"
)

const (
	successExitCode = 0
	errorExitCode   = 1
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
		os.Exit(errorExitCode)
	}
	os.Exit(successExitCode)
}
