package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fxarchive/pkg/models"
)

// Banner printed at startup
const Banner = `
    ┌───────────────────────────────────────────┐
    │  f x a r c h i v e                        │
    │  ImageFX history downloader               │
    └───────────────────────────────────────────┘
`

// Out is where the Print helpers write.
var Out io.Writer = os.Stdout

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the banner with color
func PrintBanner() {
	fmt.Fprint(Out, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Out, Magenta(msg))
}

// maxListedFailures bounds the failed ids echoed to the terminal; the full
// list is always in the log.
const maxListedFailures = 20

// PrintCrawlStats summarizes a discovery pass.
func PrintCrawlStats(stats models.CrawlStats) {
	PrintInfo("Pages fetched", fmt.Sprintf("%d", stats.Pages))
	PrintInfo("Items found", fmt.Sprintf("%d", stats.Items))
	if stats.EmptyPages > 0 || stats.MissingListPages > 0 {
		PrintInfo("Sparse pages", fmt.Sprintf("%d empty, %d without a list", stats.EmptyPages, stats.MissingListPages))
	}
	if stats.CapReached {
		PrintWarning("Stopped at the configured item cap")
	}
	if stats.HaltReason != nil {
		PrintError("Discovery halted early", stats.HaltReason)
	}
}

// PrintSummary prints the outcome of a download batch.
func PrintSummary(result models.DispatchResult) {
	fmt.Fprintln(Out)
	PrintHighlight("[DOWNLOAD COMPLETE]")
	PrintInfo("Downloaded", fmt.Sprintf("%d/%d", result.SuccessCount, result.Submitted))
	PrintInfo("Elapsed", result.Duration.Round(time.Millisecond).String())

	if result.Failed == 0 {
		PrintSuccess("All items saved")
		return
	}

	PrintWarning(fmt.Sprintf("%d item(s) failed", result.Failed))
	for i, id := range result.FailedIDs {
		if i == maxListedFailures {
			fmt.Fprintln(Out, Dim(fmt.Sprintf("  ... and %d more (see log)", len(result.FailedIDs)-i)))
			break
		}
		fmt.Fprintln(Out, Dim("  - "+id))
	}
}

// Confirm asks a yes/no question on out and reads the answer from in.
// Anything other than y or yes counts as no.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s %s ", question, Dim("[y/N]"))

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
