// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

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

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintResearchBrief outputs a human-readable summary of the research brief.
func (p *Printer) PrintResearchBrief(brief *types.ResearchBrief) {
	if brief == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Keyword:   %s\n", brief.Keyword))
	sb.WriteString(fmt.Sprintf("Intent:    %s\n", brief.SearchIntent))
	sb.WriteString(fmt.Sprintf("Audience:  %s\n", brief.TargetAudience))
	sb.WriteString(fmt.Sprintf("Target:    %d words\n", brief.WordCountTarget))

	if len(brief.SuggestedOutline) > 0 {
		sb.WriteString("\nOutline:\n")
		count := min(len(brief.SuggestedOutline), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", brief.SuggestedOutline[i]))
		}
		if len(brief.SuggestedOutline) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(brief.SuggestedOutline)-maxItemsToShow))
		}
	}

	if len(brief.RelatedKeywords) > 0 {
		related := strings.Join(brief.RelatedKeywords, ", ")
		if len(related) > 50 {
			related = related[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("\nRelated: %s", related))
	}

	p.printBox("RESEARCH BRIEF", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDraft outputs a summary of the current article draft.
func (p *Printer) PrintDraft(draft *types.ArticleDraft, iteration int) {
	if draft == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:  %s\n", draft.Title))
	sb.WriteString(fmt.Sprintf("Slug:   %s\n", draft.Slug))
	sb.WriteString(fmt.Sprintf("Words:  %d\n", draft.WordCount))
	if draft.RevisionNotes != "" {
		notes := draft.RevisionNotes
		if len(notes) > 50 {
			notes = notes[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("Notes:  %s\n", notes))
	}

	p.printBox(fmt.Sprintf("DRAFT (ITERATION %d)", iteration), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSEOReport outputs the SEO annotations and analysis.
func (p *Printer) PrintSEOReport(report *types.SEOReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Meta title:  %s\n", report.MetaTitle))
	sb.WriteString(fmt.Sprintf("Score:       %d/100\n", report.OptimizationScore))
	sb.WriteString(fmt.Sprintf("Headings:    %d\n", len(report.Headings)))

	if len(report.KeywordDensities) > 0 {
		sb.WriteString("\nKeyword densities:\n")
		count := min(len(report.KeywordDensities), maxItemsToShow)
		for i := 0; i < count; i++ {
			kd := report.KeywordDensities[i]
			sb.WriteString(fmt.Sprintf("  %s: %d (%.1f%%)\n", kd.Keyword, kd.Count, kd.Density))
		}
	}

	if len(report.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		count := min(len(report.Recommendations), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", report.Recommendations[i]))
		}
		if len(report.Recommendations) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Recommendations)-3))
		}
	}

	p.printBox("SEO REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQAReport outputs the quality verdict for an iteration.
func (p *Printer) PrintQAReport(report *types.QAReport, iteration int) {
	if report == nil {
		return
	}

	var sb strings.Builder
	verdict := "FAIL"
	if report.Passed {
		verdict = "PASS"
	}
	sb.WriteString(fmt.Sprintf("Verdict:      %s (%d/100)\n\n", verdict, report.OverallScore))
	sb.WriteString(fmt.Sprintf("Readability:  %d\n", report.Scores.Readability))
	sb.WriteString(fmt.Sprintf("SEO:          %d\n", report.Scores.SEO))
	sb.WriteString(fmt.Sprintf("Accuracy:     %d\n", report.Scores.Accuracy))
	sb.WriteString(fmt.Sprintf("Engagement:   %d\n", report.Scores.Engagement))
	sb.WriteString(fmt.Sprintf("Brand voice:  %d\n", report.Scores.BrandVoice))

	if len(report.Issues) > 0 {
		sb.WriteString("\nIssues:\n")
		count := min(len(report.Issues), 3)
		for i := 0; i < count; i++ {
			issue := report.Issues[i]
			desc := issue.Description
			if len(desc) > 40 {
				desc = desc[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf("  [%s] %s\n", issue.Severity, desc))
		}
		if len(report.Issues) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Issues)-3))
		}
	}

	p.printBox(fmt.Sprintf("QA REPORT (ITERATION %d)", iteration), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobSummary outputs the final run totals.
func (p *Printer) PrintJobSummary(job *types.Job) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:      %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("Iterations:  %d\n", job.CurrentIteration))
	sb.WriteString(fmt.Sprintf("Tokens:      %d\n", job.TokensUsed))
	sb.WriteString(fmt.Sprintf("Est. cost:   $%.4f\n", job.EstimatedCost))
	if job.FinalOutput != nil {
		sb.WriteString(fmt.Sprintf("\nTitle: %s\n", job.FinalOutput.Title))
		sb.WriteString(fmt.Sprintf("Slug:  %s\n", job.FinalOutput.Slug))
		sb.WriteString(fmt.Sprintf("Words: %d", job.FinalOutput.WordCount))
	}
	if job.LastError != nil {
		msg := *job.LastError
		if len(msg) > 50 {
			msg = msg[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("\nError: %s", msg))
	}

	p.printBox("JOB SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}
