// Package observability provides formatted terminal output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/content-guard/internal/db"
	"github.com/jonathan/content-guard/internal/generation"
	"github.com/jonathan/content-guard/internal/originality"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
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
		line = truncate(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %s%s │\n", line, strings.Repeat(" ", boxWidth-4-runeLen(line)))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress writes one line per controller event.
//
//nolint:errcheck
func (p *Printer) PrintProgress(event generation.ProgressEvent) {
	switch event.Step {
	case generation.StepAttemptStarted:
		fmt.Fprintf(p.out, "→ Attempt %d: generating content...\n", event.Attempt)
	case generation.StepAttemptScored:
		fmt.Fprintf(p.out, "  Plagiarism score: %.2f%%\n", event.Score)
	case generation.StepRejected:
		fmt.Fprintln(p.out, "  High plagiarism score, regenerating content...")
	case generation.StepPersistFailed:
		fmt.Fprintf(p.out, "  ⚠ %s\n", event.Message)
	}
}

// PrintReport outputs the originality breakdown of one text.
func (p *Printer) PrintReport(report *originality.Report) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score:        %.2f%%\n", report.Score))
	sb.WriteString(fmt.Sprintf("Fragments:    %d (%d checked)\n", report.Total, report.Checked))
	sb.WriteString(fmt.Sprintf("Plagiarized:  %d\n", report.Plagiarized))
	if report.SearchFailures > 0 {
		sb.WriteString(fmt.Sprintf("Search errors: %d (treated as original)\n", report.SearchFailures))
	}

	flagged := make([]originality.FragmentResult, 0, report.Plagiarized)
	for _, f := range report.Fragments {
		if f.Plagiarized {
			flagged = append(flagged, f)
		}
	}
	if len(flagged) > 0 {
		sb.WriteString("\nFlagged fragments:\n")
		count := min(len(flagged), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", strings.TrimSpace(flagged[i].Text)))
			sb.WriteString(fmt.Sprintf("    ratio %.2f\n", flagged[i].BestRatio))
		}
		if len(flagged) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(flagged)-maxItemsToShow))
		}
	}

	p.printBox("ORIGINALITY REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunStart announces a generation run and its acceptance rule.
//
//nolint:errcheck
func (p *Printer) PrintRunStart(req generation.Request, maxAttempts int, threshold float64) {
	fmt.Fprintf(p.out, "Generating %s about %q, around %d words\n", req.ContentType.Label(), req.Topic, req.TargetLength)
	fmt.Fprintf(p.out, "Up to %d attempts, accepting a plagiarism score of %.2f%% or less\n\n", maxAttempts, threshold)
}

// PrintCheckStart announces a standalone originality check.
//
//nolint:errcheck
func (p *Printer) PrintCheckStart(threshold float64) {
	fmt.Fprintf(p.out, "Checking sentences against web search (match above %.2f similarity)\n\n", threshold)
}

// PrintResult outputs the outcome of a run. Accepted content is printed in full
// below the summary box.
//
//nolint:errcheck
func (p *Printer) PrintResult(result *generation.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Topic:    %s\n", result.Request.Topic))
	sb.WriteString(fmt.Sprintf("Type:     %s\n", result.Request.ContentType.Label()))
	sb.WriteString(fmt.Sprintf("Attempts: %d\n", len(result.Attempts)))
	for _, a := range result.Attempts {
		sb.WriteString(fmt.Sprintf("  #%d  %.2f%%\n", a.Index, a.Score))
	}

	if result.Accepted == nil {
		sb.WriteString("\nCould not generate clean content within attempts limit.")
		p.printBox("NO CONTENT ACCEPTED", sb.String())
		return
	}

	sb.WriteString(fmt.Sprintf("\nFinal score: %.2f%%", result.Accepted.Score))
	if result.PersistError != nil {
		sb.WriteString("\nNot saved: " + result.PersistError.Error())
	}
	p.printBox("FINAL CONTENT", sb.String())

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, result.Accepted.Content)
}

// PrintHistory outputs previously generated content, newest first.
func (p *Printer) PrintHistory(records []db.ContentRecord) {
	if len(records) == 0 {
		p.printBox("CONTENT HISTORY", "No content generated yet.")
		return
	}

	var sb strings.Builder
	for i, rec := range records {
		sb.WriteString(fmt.Sprintf("%s  %s\n", rec.GeneratedAt.Local().Format("2006-01-02 15:04"), rec.ContentType))
		sb.WriteString(fmt.Sprintf("  Topic: %s\n", rec.Topic))
		sb.WriteString(fmt.Sprintf("  Words: %d  Score: %.2f%%\n", rec.WordLength, rec.PlagiarismScore))
		sb.WriteString(fmt.Sprintf("  %s\n", firstLine(rec.Content)))
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("CONTENT HISTORY (%d)", len(records)), strings.TrimSuffix(sb.String(), "\n"))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func runeLen(s string) int {
	return len([]rune(s))
}
