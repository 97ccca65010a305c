// The main package for the mixtape-crawler executable.
package main

import (
	"github.com/JakeFAU/mixtape-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
