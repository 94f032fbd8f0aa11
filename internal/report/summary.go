package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/fatih/color"
)

// Summary is what the console summary needs from a finished run.
type Summary struct {
	Passed     bool
	Builder    *Builder
	ReportPath string
	// Command is the argv prefix suggested to re-baseline failing suites,
	// e.g. ["viz", "baseline", "./ui"].
	Command []string
}

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
)

// Print writes a per-case listing of failures followed by the verdict.
func Print(w io.Writer, s Summary) {
	var failingSuites []string
	total, failed := 0, 0
	if s.Builder != nil {
		for _, suite := range s.Builder.Suites() {
			for _, c := range suite.Cases {
				total++
				if !c.Failed() {
					continue
				}
				failed++
				name := c.Name
				if c.ClassName != "" {
					name = c.ClassName + " " + c.Name
				}
				line := fmt.Sprintf("  %s %s", failLabel("FAIL"), name)
				if c.Message() != "" {
					line += dim(" (" + c.Message() + ")")
				}
				fmt.Fprintln(w, line)

				if suite.Name == ScreenshotSuite {
					test, _, _ := strings.Cut(c.ClassName, "/")
					if !slices.Contains(failingSuites, test) {
						failingSuites = append(failingSuites, test)
					}
				}
			}
		}
	}

	if s.Passed {
		fmt.Fprintf(w, "%s %d checks passed\n", passLabel("PASS"), total)
	} else {
		fmt.Fprintf(w, "%s %d of %d checks failed\n", failLabel("FAIL"), failed, total)
	}
	if s.ReportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", s.ReportPath)
	}
	if len(failingSuites) > 0 && len(s.Command) > 0 {
		fmt.Fprintf(w, "To accept the new screenshots, run:\n  %s\n", AcceptCommand(s.Command, failingSuites))
	}
}

// AcceptCommand renders a shell-safe baseline command for suites.
func AcceptCommand(prefix []string, suites []string) string {
	parts := make([]string, 0, len(prefix)+2*len(suites))
	for _, p := range prefix {
		parts = append(parts, shellescape.Quote(p))
	}
	for _, s := range suites {
		parts = append(parts, "--suite", shellescape.Quote(s))
	}
	return strings.Join(parts, " ")
}
