// Command raglab is the entry point for the RAG lab: ingestion, retrieval
// augmented answers with conversation memory, agentic dataset routing and an
// HTTP API, all driven through a Cobra CLI.
package main

import (
	"errors"
	"os"

	"github.com/fatih/color"

	"github.com/54b3r/raglab-go/cmd/raglab/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, commands.ErrReported) {
			color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
