// The main package for the match-crawler executable.
package main

import (
	"github.com/JakeFAU/match-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
