package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schemajeli/schemajeli/template"
)

const configFileName = "schemajeli.config.yaml"

var (
	sqliteFlag     bool
	postgresqlFlag bool
	mysqlFlag      bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a SchemaJeli configuration",
	Long:  `Write a starter schemajeli.config.yaml and add DATABASE_URL to .env.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbType := template.PostgreSQL
		flagCount := 0

		if sqliteFlag {
			dbType = template.SQLite
			flagCount++
		}
		if postgresqlFlag {
			dbType = template.PostgreSQL
			flagCount++
		}
		if mysqlFlag {
			dbType = template.MySQL
			flagCount++
		}

		if flagCount > 1 {
			return fmt.Errorf("please specify only one database type (--sqlite, --postgresql, or --mysql)")
		}

		force, _ := cmd.Flags().GetBool("force")
		return initializeProject(dbType, force)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&sqliteFlag, "sqlite", false, "Use SQLite for the catalog store")
	initCmd.Flags().BoolVar(&postgresqlFlag, "postgresql", false, "Use PostgreSQL for the catalog store")
	initCmd.Flags().BoolVar(&mysqlFlag, "mysql", false, "Use MySQL for the catalog store")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file")
}

func initializeProject(dbType template.DatabaseType, force bool) error {
	if _, err := os.Stat(configFileName); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configFileName)
	}

	tmpl := template.NewProjectTemplate(dbType)
	content, err := tmpl.GetConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFileName, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create file %s: %w", configFileName, err)
	}

	if err := handleEnvFile(tmpl.GetEnvTemplate()); err != nil {
		return fmt.Errorf("failed to handle .env file: %w", err)
	}

	fmt.Printf("✅ Initialized SchemaJeli with %s as the catalog store\n", dbType)
	fmt.Println()
	fmt.Println("📝 Configuration file created:")
	fmt.Printf("   %s\n", configFileName)

	if os.Getenv("DATABASE_URL") != "" {
		fmt.Println()
		fmt.Println("ℹ️  Using existing DATABASE_URL from environment")
	}

	fmt.Println()
	fmt.Printf("🚀 Next steps:\n")
	fmt.Printf("   schemajeli migrate                      # Create the catalog tables\n")
	fmt.Printf("   schemajeli user add admin --role ADMIN  # Bootstrap an administrator\n")
	fmt.Printf("   schemajeli serve                        # Start the API\n")
	return nil
}

// handleEnvFile creates .env, or appends DATABASE_URL to an existing one
// that lacks it.
func handleEnvFile(defaultEnvContent string) error {
	envPath := ".env"

	existingContent, err := os.ReadFile(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(envPath, []byte(defaultEnvContent), 0644)
		}
		return err
	}

	existingStr := string(existingContent)
	if strings.Contains(existingStr, "DATABASE_URL") {
		return nil
	}

	if len(existingStr) > 0 && !strings.HasSuffix(existingStr, "\n") {
		existingStr += "\n"
	}
	existingStr += "\n# Added by SchemaJeli\n" + defaultEnvContent

	return os.WriteFile(envPath, []byte(existingStr), 0644)
}
