package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reage-cli/internal/config"
	"github.com/sells-group/reage-cli/internal/pipeline"
	"github.com/sells-group/reage-cli/internal/store"
)

var (
	analyzeBureau  string
	analyzeSave    bool
	analyzeCompare bool
	analyzeTags    []string
	analyzeFormat  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Analyze credit report text files for re-aging violations",
	Long:  "Analyzes one or more credit report text files. Use - to read from stdin.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if analyzeBureau != "" && !config.ValidBureau(analyzeBureau) {
			return eris.Errorf("unknown bureau %q (want one of %s)", analyzeBureau, strings.Join(config.Bureaus, ", "))
		}
		if analyzeFormat != "json" && analyzeFormat != "markdown" {
			return eris.Errorf("unknown format %q (want json or markdown)", analyzeFormat)
		}

		an, err := initAnalyzer()
		if err != nil {
			return err
		}

		inputs, err := readInputs(args, cmd.InOrStdin(), analyzeBureau)
		if err != nil {
			return err
		}
		results, err := analyzeAll(ctx, an, inputs, cfg.Batch.MaxConcurrentFiles)
		if err != nil {
			return err
		}

		if analyzeSave || analyzeCompare {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := persistResults(ctx, st, results, analyzeCompare, analyzeSave, analyzeTags); err != nil {
				return err
			}
		}

		return writeResults(cmd.OutOrStdout(), results, analyzeFormat)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeBureau, "bureau", "", "bureau hint: experian, equifax, transunion or unspecified (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "save each account analysis to the store")
	analyzeCmd.Flags().BoolVar(&analyzeCompare, "compare", false, "compare accounts against stored history")
	analyzeCmd.Flags().StringSliceVar(&analyzeTags, "tag", nil, "tag saved analyses (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json or markdown")
	rootCmd.AddCommand(analyzeCmd)
}

// readInputs loads every path; "-" reads stdin once.
func readInputs(paths []string, stdin io.Reader, bureau string) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(paths))
	usedStdin := false
	for _, p := range paths {
		var (
			b   []byte
			err error
		)
		name := filepath.Base(p)
		if p == "-" {
			if usedStdin {
				return nil, eris.New("stdin can only be read once")
			}
			usedStdin = true
			name = "stdin"
			b, err = io.ReadAll(stdin)
		} else {
			b, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", p)
		}
		inputs = append(inputs, pipeline.Input{Text: string(b), Bureau: bureau, FileName: name})
	}
	return inputs, nil
}

// analyzeAll runs the analyzer over inputs with bounded concurrency.
// Results keep input order. A cancelled ctx returns no results, so
// unfinished slots are never reported or saved.
func analyzeAll(ctx context.Context, an *pipeline.Analyzer, inputs []pipeline.Input, concurrency int) ([]pipeline.Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	zap.L().Info("analyzing files",
		zap.Int("files", len(inputs)),
		zap.Int("concurrency", concurrency),
	)

	results := make([]pipeline.Result, len(inputs))
	var accounts atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = an.Analyze(in)
			accounts.Add(int64(len(results[i].Accounts)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		zap.L().Warn("analysis interrupted",
			zap.Int64("accounts", accounts.Load()),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "analyze files")
	}

	zap.L().Info("analysis complete",
		zap.Int("files", len(inputs)),
		zap.Int64("accounts", accounts.Load()),
	)
	return results, nil
}

// persistResults compares against history before saving so a report is
// never compared with itself.
func persistResults(ctx context.Context, st store.Store, results []pipeline.Result, compare, save bool, tags []string) error {
	if compare {
		prior, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "load history")
		}
		for i := range results {
			pipeline.CompareSeries(&results[i], prior)
		}
	}
	if !save {
		return nil
	}
	for _, res := range results {
		if _, err := saveAccounts(ctx, st, res, tags); err != nil {
			return err
		}
	}
	return nil
}

// saveAccounts stores every identifiable account of res and returns the
// new IDs. On error the IDs saved before the failure are still returned.
func saveAccounts(ctx context.Context, st store.Store, res pipeline.Result, tags []string) ([]string, error) {
	var ids []string
	for _, acc := range res.Accounts {
		if !acc.Identifiable() {
			zap.L().Info("skipping unidentified account",
				zap.String("file", res.FileName),
				zap.Int("account", acc.Index),
			)
			continue
		}
		id, err := st.Save(ctx, store.FromRecord(acc.Record(res.FileName, tags)))
		if err != nil {
			return ids, eris.Wrapf(err, "save account %d of %s", acc.Index, res.FileName)
		}
		ids = append(ids, id)
		zap.L().Info("saved analysis",
			zap.String("id", id),
			zap.String("file", res.FileName),
			zap.Int("account", acc.Index),
		)
	}
	return ids, nil
}

func writeResults(w io.Writer, results []pipeline.Result, format string) error {
	if format == "markdown" {
		reports := make([]string, len(results))
		for i, res := range results {
			reports[i] = pipeline.FormatReport(res)
		}
		_, err := fmt.Fprintln(w, strings.Join(reports, "\n---\n\n"))
		return eris.Wrap(err, "write report")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(results), "encode results")
}
