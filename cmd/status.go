package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog migration status",
	Long: `Show the current status of every catalog migration including:
- Total number of migrations
- Number of applied and pending migrations
- Each migration with its checksum and when it was applied`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		migrations, err := store.MigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}

		applied := 0
		for _, m := range migrations {
			if m.Applied {
				applied++
			}
		}

		fmt.Printf("Provider:   %s\n", store.Dialect())
		fmt.Printf("Migrations: %d total, %d applied, %d pending\n\n", len(migrations), applied, len(migrations)-applied)
		for _, m := range migrations {
			if m.Applied {
				color.Green("  ✅ %-32s %s  %s", m.Name, m.Checksum[:12], m.AppliedAt.Format("2006-01-02 15:04:05"))
			} else {
				color.Yellow("  ⏳ %-32s %s  pending", m.Name, m.Checksum[:12])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
