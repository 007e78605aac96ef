package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reage-cli/internal/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved analyses to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "export: list analyses")
		}
		if err := export.WriteFile(exportOutput, records); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("records", len(records)),
			zap.String("output", exportOutput),
		)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import analyses from an XLSX workbook",
	Long:  "Imports analyses written by export. Records with an existing id are replaced.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reqs, err := export.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "import: read workbook")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.Import(ctx, reqs)
		if err != nil {
			return eris.Wrap(err, "import: write analyses")
		}

		zap.L().Info("import complete",
			zap.Int("imported", n),
			zap.String("file", args[0]),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "path of the XLSX file to write (required)")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
