package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reage-cli/internal/config"
	"github.com/sells-group/reage-cli/internal/pipeline"
	"github.com/sells-group/reage-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reage",
	Short: "Credit report re-aging analyzer",
	Long:  "Extracts tradeline fields from credit report text, flags FCRA/FDCPA re-aging violations, scores dispute strength, and tracks accounts across reports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}

// initAnalyzer builds the analysis pipeline from config.
func initAnalyzer() (*pipeline.Analyzer, error) {
	if err := cfg.Validate("analyze"); err != nil {
		return nil, err
	}
	return pipeline.New(cfg.Analysis, cfg.Rules, time.Now)
}
