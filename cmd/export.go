package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemajeli/schemajeli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog",
	Long: `
Export every non-deleted server, database, table and element, plus the
abbreviation glossary, to a single file.
Supported formats: json (default), yaml, csv (one row per element)

Examples:
  schemajeli export
  schemajeli export --format yaml
  schemajeli export --format csv --out ./dictionary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(mustString(cmd, "format"))
		if err != nil {
			return err
		}

		ctx := context.Background()
		rt, err := openRuntime(ctx, "export")
		if err != nil {
			return err
		}
		defer rt.close()

		dir := rt.cfg.ExportPath
		if out := mustString(cmd, "out"); out != "" {
			dir = out
		}

		path, err := export.PerformExport(ctx, rt.catalog, dir, format, Version)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		color.Green("✅ Catalog exported to %s", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("format", "json", "Output format: json, yaml or csv")
	exportCmd.Flags().StringP("out", "o", "", "Output directory (default from export_path)")
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
