package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/reage-cli/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active rule registry",
	Long:  "Lists every enabled rule after config overrides and disables are applied.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		an, err := initAnalyzer()
		if err != nil {
			return err
		}
		formatRules(cmd.OutOrStdout(), an.Engine().Rules())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

// formatRules writes a tabular list of rules to w.
func formatRules(out io.Writer, rs []rules.Rule) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tSEVERITY\tSUCCESS\tNAME")
	for _, r := range rs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n", r.ID, r.Category, r.Severity, r.Probability, r.Name)
	}
	_ = w.Flush()
}
