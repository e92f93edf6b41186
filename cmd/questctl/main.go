// Command questctl runs maintenance tasks against the quest engine using the
// same configuration as the API server.
package main

import (
	"fmt"
	"os"
)

var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
