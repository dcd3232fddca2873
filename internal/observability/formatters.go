// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/report-retriever/internal/jobs"
)

// boxWidth is the default width for formatted output boxes
const boxWidth = 60

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// stateMarks render step states as compact list markers.
var stateMarks = map[jobs.StepState]string{
	jobs.StepPending: "[ ]",
	jobs.StepActive:  "[>]",
	jobs.StepDone:    "[x]",
	jobs.StepError:   "[!]",
}

// PrintStep outputs a single step transition as it happens.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStep(stepID int, label string, state jobs.StepState) {
	fmt.Fprintf(p.out, "%s step %2d  %s\n", stateMarks[state], stepID, label)
}

// PrintRecord outputs a human-readable summary of a finished job record.
func (p *Printer) PrintRecord(rec *jobs.Record) {
	if rec == nil {
		return
	}

	var sb strings.Builder
	for _, step := range rec.Steps {
		sb.WriteString(fmt.Sprintf("%s %2d  %s\n", stateMarks[step.State], step.ID, step.Label))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Progress: %d%%\n", rec.Percent))

	switch {
	case rec.Error != "":
		sb.WriteString(fmt.Sprintf("Failed:   %s", rec.Error))
	case rec.ResultReady && rec.Result != nil:
		sb.WriteString(fmt.Sprintf("Saved:    %s", rec.Result.FileName))
	default:
		sb.WriteString("Status:   still running")
	}

	p.printBox(fmt.Sprintf("Job %s", rec.ID), sb.String())
}
