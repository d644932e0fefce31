// The main package for the bbbscraper executable.
package main

import (
	"github.com/miguelmontanez/bbb-roofing-business-scraper/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
