package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/pipeline"
	"github.com/sells-group/reage-cli/internal/timeline"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved analyses",
	Long:  "Commands for listing, viewing, tagging, and deleting saved analyses.",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		tag, _ := cmd.Flags().GetString("tag")
		records = filterByTag(records, tag)
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		formatHistoryList(cmd.OutOrStdout(), records)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history show")
		}
		if rec == nil {
			return eris.Errorf("analysis %s not found", args[0])
		}

		view := recordView{AnalysisRecord: *rec}
		if withTimeline, _ := cmd.Flags().GetBool("timeline"); withTimeline {
			tl := pipeline.RecordTimeline(*rec)
			view.Timeline = &tl
		}
		if withSeries, _ := cmd.Flags().GetBool("series"); withSeries {
			all, err := st.List(ctx)
			if err != nil {
				return eris.Wrap(err, "history show: load history")
			}
			view.Series = pipeline.RecordSeries(*rec, all)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

// -- history delete --

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ok, err := st.Delete(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history delete")
		}
		if !ok {
			return eris.Errorf("analysis %s not found", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

// -- history clear --

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved analysis",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return eris.New("refusing to clear history without --yes")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Clear(ctx); err != nil {
			return eris.Wrap(err, "history clear")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	},
}

// -- history tag --

var historyTagCmd = &cobra.Command{
	Use:   "tag <id> [tag...]",
	Short: "Replace the tags of a saved analysis",
	Long:  "Replaces the tags of a saved analysis. With no tags, removes them all.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tags := normalizeTags(args[1:])
		if err := st.UpdateTags(ctx, args[0], tags); err != nil {
			return eris.Wrap(err, "history tag")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s: %s\n", args[0], strings.Join(tags, ", "))
		return nil
	},
}

func init() {
	historyListCmd.Flags().String("tag", "", "only show analyses with this tag")
	historyShowCmd.Flags().Bool("timeline", false, "include the rebuilt timeline")
	historyShowCmd.Flags().Bool("series", false, "include changes against earlier analyses of the same account")
	historyClearCmd.Flags().Bool("yes", false, "confirm deleting every analysis")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyTagCmd)
	rootCmd.AddCommand(historyCmd)
}

// recordView is a stored analysis plus derived views.
type recordView struct {
	model.AnalysisRecord
	Timeline *timeline.Timeline    `json:"timeline,omitempty"`
	Series   []model.SeriesInsight `json:"series,omitempty"`
}

// normalizeTags trims, drops empties and de-duplicates while keeping order.
func normalizeTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func filterByTag(records []model.AnalysisRecord, tag string) []model.AnalysisRecord {
	if tag == "" {
		return records
	}
	var out []model.AnalysisRecord
	for _, r := range records {
		for _, t := range r.Tags {
			if t == tag {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// formatHistoryList writes a tabular list of analyses to w.
func formatHistoryList(out io.Writer, records []model.AnalysisRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSAVED\tACCOUNT\tSCORE\tLEVEL\tFLAGS\tTAGS")
	for _, r := range records {
		account := "-"
		if name, ok := r.Fields.Get(model.FieldOriginalCreditor); ok {
			account = name
		} else if name, ok := r.Fields.Get(model.FieldFurnisherOrCollector); ok {
			account = name
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			r.ID,
			r.Timestamp.UTC().Format("2006-01-02 15:04"),
			truncate(account, 32),
			r.RiskProfile.OverallScore,
			r.RiskProfile.RiskLevel,
			len(r.Flags),
			strings.Join(r.Tags, ","),
		)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
