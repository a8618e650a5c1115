// The main package for the favcrawl executable.
package main

import (
	"github.com/okabe/favcrawl/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
