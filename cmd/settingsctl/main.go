// Command settingsctl inspects and maintains a versioned settings store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(rootOptions{Stdout: os.Stdout, Stderr: os.Stderr}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
