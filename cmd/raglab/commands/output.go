package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/54b3r/raglab-go/internal/pipeline"
)

// ErrReported is returned by commands whose failure has already been
// written to the user. The caller should exit non-zero without printing it.
var ErrReported = errors.New("failure already reported")

var (
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	labelColor = color.New(color.FgCyan, color.Bold)
	dimColor   = color.New(color.Faint)
)

// printResult writes a pipeline result: warnings and errors go to errw,
// the answer to w. verbose adds the routing decision, retrieval status, the
// composed prompt and the underlying cause of a failure.
func printResult(w, errw io.Writer, res pipeline.Result, verbose bool) {
	if verbose && res.Decision != nil {
		labelColor.Fprint(errw, "route: ")
		fmt.Fprintf(errw, "%s (%s) %q\n", res.Decision.Dataset, res.Decision.Locale, res.Decision.Query)
	}
	for _, warning := range res.Warnings {
		warnColor.Fprintln(errw, "warning:", warning)
	}
	if verbose {
		labelColor.Fprint(errw, "retrieval: ")
		fmt.Fprintf(errw, "%s, %d chunk(s), ~%d prompt tokens\n", res.Retrieval.Status, len(res.Retrieval.Documents), res.PromptTokens)
		if res.Prompt != "" {
			labelColor.Fprintln(errw, "prompt:")
			dimColor.Fprintln(errw, strings.TrimRight(res.Prompt, "\n"))
		}
	}
	if !res.OK() {
		errColor.Fprintln(errw, res.Response)
		if verbose {
			dimColor.Fprintf(errw, "cause: %v\n", res.Err)
		}
		return
	}
	fmt.Fprintln(w, strings.TrimRight(res.Response, "\n"))
}
