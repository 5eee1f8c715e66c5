// Command docsync runs and operates the sync job engine: the worker pool
// and HTTP API, schema migrations, type definitions, enqueue and cancel.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
