package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	Version = "1.0.0"
)

func showBanner() {
	greenColor := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔══════════════════════════════════════════════╗",
		"║               S c h e m a J e l i            ║",
		"║      metadata catalog for your databases     ║",
		"╚══════════════════════════════════════════════╝",
	}
	for _, line := range banner {
		greenColor.Println(line)
	}

	fmt.Print("              ")
	color.New(color.FgCyan, color.Bold).Print("Version: ")
	color.New(color.FgYellow, color.Bold).Printf("%s\n", Version)
}

var envKeys = []string{
	"server.host", "server.port", "server.environment",
	"database.provider", "database.url",
	"search.enabled", "search.policy", "cache.enabled", "cache.redis_addr", "cache.policy",
	"log.level", "log.color",
}

var rootCmd = &cobra.Command{
	Use:   "schemajeli",
	Short: "A metadata catalog for servers, databases, tables and columns",
	Long: `
SchemaJeli records what lives where across your database estate:
servers, their databases, the tables inside them and every column,
plus an abbreviation glossary for naming standards.

It serves the catalog over a REST API, keeps an audit trail of every
change, and can harvest structure straight from a live database.

Database Support (catalog store and harvest):
- PostgreSQL
- MySQL
- SQLite`,
	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("SchemaJeli version %s\n", Version)
			os.Exit(0)
		}

		if len(args) == 0 {
			showBanner()
			fmt.Println()
			cmd.Help()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./schemajeli.config.yaml)")
	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
	}
	godotenv.Load(".env.local")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("schemajeli.config")
	}

	viper.SetEnvPrefix("SCHEMAJELI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about.
	for _, key := range envKeys {
		viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, color.YellowString("Warning: %v", err))
		}
	}
}
