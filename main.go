// The main package for the shortscout executable.
package main

import (
	"github.com/jkmedia/shortscout/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
