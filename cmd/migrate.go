package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemajeli/schemajeli/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the catalog schema",
	Long: `Apply every pending catalog migration to the configured database.
Migrations are idempotent, so running this against an up-to-date database
does nothing.

With --print the DDL for the configured provider is written to stdout
instead, for review or for a DBA to apply by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
			dialect, err := database.ParseDialect(cfg.Provider())
			if err != nil {
				return err
			}
			fmt.Print(database.Script(dialect))
			return nil
		}

		ctx := context.Background()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		applied, err := store.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}

		if len(applied) == 0 {
			color.Green("✅ Catalog schema is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Printf("  ✅ %s\n", name)
		}
		color.Green("Applied %d migration(s)", len(applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("print", false, "Print the DDL instead of applying it")
}
