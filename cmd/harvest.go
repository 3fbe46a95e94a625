package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemajeli/schemajeli/internal/harvest"
	"github.com/schemajeli/schemajeli/internal/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Import tables and columns from a live database",
	Long: `
Connect to a live database, read its tables and columns, and record them
in the catalog under an existing server. Tables already in the catalog are
kept and only gain the columns they are missing.

Examples:
  schemajeli harvest --server <id> --provider postgres --url "postgres://ro:pw@db:5432/sales"
  schemajeli harvest --server <id> --provider sqlite --url ./legacy.db --database legacy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID := mustString(cmd, "server")
		url := mustString(cmd, "url")
		if serverID == "" || url == "" {
			return fmt.Errorf("--server and --url are required")
		}

		ctx := context.Background()
		rt, err := openRuntime(ctx, "harvest")
		if err != nil {
			return err
		}
		defer rt.close()

		actor := types.Actor{Username: "harvest"}
		if username := mustString(cmd, "user"); username != "" {
			u, err := rt.catalog.FindUserForLogin(ctx, username)
			if err != nil {
				return err
			}
			actor = types.Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
		}

		src, err := harvest.Open(ctx, mustString(cmd, "provider"), url)
		if err != nil {
			return err
		}
		defer src.Close()

		fmt.Printf("📊 Harvesting from %s\n", maskDBURL(url))
		res, err := harvest.NewImporter(rt.catalog, rt.log).Run(ctx, actor, src, harvest.Options{
			ServerID:     serverID,
			DatabaseName: mustString(cmd, "database"),
		})
		if err != nil {
			return err
		}

		status := "existing"
		if res.DatabaseCreated {
			status = "new"
		}
		color.Green("✅ Harvested %s (%s database %s)", res.DatabaseName, status, res.DatabaseID)
		fmt.Printf("   Tables:   %d created, %d already catalogued\n", res.TablesCreated, res.TablesSkipped)
		fmt.Printf("   Elements: %d created, %d already catalogued\n", res.ElementsCreated, res.ElementsExisting)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	harvestCmd.Flags().String("server", "", "Catalog server id to import under")
	harvestCmd.Flags().String("provider", "postgres", "Source database provider: postgres, mysql or sqlite")
	harvestCmd.Flags().String("url", "", "Source database URL")
	harvestCmd.Flags().String("database", "", "Catalog database name (default: the source's own name)")
	harvestCmd.Flags().String("user", "", "Record changes as this catalog user")
}
