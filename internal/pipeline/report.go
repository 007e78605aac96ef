package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/timeline"
)

// FormatReport renders a human-readable markdown report of res.
func FormatReport(res Result) string {
	var b strings.Builder

	name := res.FileName
	if name == "" {
		name = "report"
	}
	fmt.Fprintf(&b, "# Re-aging Analysis: %s\n", name)
	fmt.Fprintf(&b, "Bureau: %s\n", res.Bureau)
	fmt.Fprintf(&b, "Analyzed: %s\n", res.AnalyzedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Accounts: %d\n\n", len(res.Accounts))

	for _, acc := range res.Accounts {
		formatAccount(&b, acc)
	}
	return b.String()
}

func formatAccount(b *strings.Builder, acc Account) {
	fmt.Fprintf(b, "## Account %d\n", acc.Index+1)

	// Risk summary.
	p := acc.Risk
	fmt.Fprintf(b, "- Risk: %s (%d/100)\n", p.RiskLevel, p.OverallScore)
	fmt.Fprintf(b, "- Dispute strength: %s\n", p.DisputeStrength)
	if p.LitigationPotential {
		b.WriteString("- Litigation potential: yes\n")
	}
	fmt.Fprintf(b, "- %s\n\n", p.Summary)

	b.WriteString("### Extracted Fields\n")
	if len(acc.Extracted) == 0 {
		b.WriteString("No fields extracted.\n\n")
	} else {
		b.WriteString("| Field | Value | Confidence |\n|---|---|---|\n")
		for _, f := range acc.Extracted.Names() {
			ef := acc.Extracted[f]
			fmt.Fprintf(b, "| %s | %s | %s |\n", f.Label(), cell(ef.Value), ef.Confidence)
		}
		b.WriteString("\n")
	}

	if len(acc.Warnings) > 0 {
		b.WriteString("### Warnings\n")
		for _, w := range acc.Warnings {
			fmt.Fprintf(b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	b.WriteString("### Violations\n")
	if len(acc.Flags) == 0 {
		b.WriteString("None detected.\n\n")
	}
	for _, f := range acc.Flags {
		fmt.Fprintf(b, "#### [%s] %s (%s)\n", strings.ToUpper(string(f.Severity)), f.RuleName, f.RuleID)
		fmt.Fprintf(b, "%s\n", f.Explanation)
		if len(f.LegalCitations) > 0 {
			fmt.Fprintf(b, "- Citations: %s\n", strings.Join(f.LegalCitations, "; "))
		}
		if len(f.SuggestedEvidence) > 0 {
			fmt.Fprintf(b, "- Evidence to request: %s\n", strings.Join(f.SuggestedEvidence, "; "))
		}
		fmt.Fprintf(b, "- Estimated dispute success: %d%%\n\n", f.SuccessProbability)
	}

	formatTimeline(b, acc)

	if len(acc.Series) > 0 {
		b.WriteString("### Changes Since Earlier Reports\n")
		for _, s := range acc.Series {
			fmt.Fprintf(b, "- **%s** (%s): %s\n", s.Title, s.Severity, s.Summary)
			for _, e := range s.Evidence {
				fmt.Fprintf(b, "  - %s\n", e)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(b, "### Recommended Approach\n%s\n\n", p.RecommendedApproach)
}

func formatTimeline(b *strings.Builder, acc Account) {
	tl := acc.Timeline
	b.WriteString("### Timeline\n")
	if tl.Insufficient {
		b.WriteString("Not enough dated events to build a timeline.\n\n")
		return
	}
	for _, e := range tl.Events {
		mark := ""
		if e.Flagged {
			mark = " ⚠"
		}
		fmt.Fprintf(b, "- %s: %s%s\n", e.Date, e.Label, mark)
	}
	fmt.Fprintf(b, "\nIntegrity score: %d/100\n", tl.IntegrityScore)
	fmt.Fprintf(b, "- Opened to DOFD: %s\n", timeline.FormatInterval(tl.Intervals.OpenToDofd))
	fmt.Fprintf(b, "- DOFD to charge-off: %s\n", timeline.FormatInterval(tl.Intervals.DofdToChargeoff))
	fmt.Fprintf(b, "- Charge-off to removal: %s\n", timeline.FormatInterval(tl.Intervals.ChargeoffToRemoval))
	fmt.Fprintf(b, "- Last payment to removal: %s\n", timeline.FormatInterval(tl.Intervals.PaymentToRemoval))
	if tl.ExpectedRemoval != "" {
		fmt.Fprintf(b, "- Expected removal: %s", tl.ExpectedRemoval)
		if tl.RemovalDeltaDays != nil && *tl.RemovalDeltaDays > 0 {
			fmt.Fprintf(b, " (reported removal is %d days late)", *tl.RemovalDeltaDays)
		}
		b.WriteString("\n")
	}
	if w := acc.Window; w != nil {
		if w.IsExpired {
			fmt.Fprintf(b, "- Reporting window closed on %s\n", dates.Format(w.EndDate))
		} else {
			fmt.Fprintf(b, "- Reporting window: %d days remaining until %s\n", w.DaysRemaining, dates.Format(w.EndDate))
		}
	}
	b.WriteString("\n")
}

// cell escapes pipes so values cannot break the markdown table.
func cell(s string) string { return strings.ReplaceAll(s, "|", `\|`) }
