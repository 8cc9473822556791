package main

import (
	"fmt"
	"os"

	"github.com/samestrin/dirindex/internal/semantic"
	"github.com/samestrin/dirindex/internal/semantic/commands"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.SetVersion(fmt.Sprintf("%s (%s)", version, commit))
	if err := commands.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", semantic.FormatError(err))
		os.Exit(1)
	}
}
