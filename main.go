// ./main.go
package main

import (
	"github.com/kestrel-ux/kestrel/cmd"
)

// main is the entry point for the kestrel CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
