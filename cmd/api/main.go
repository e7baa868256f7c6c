package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "opsledger",
	Short: "Allocation ledger and approval workflow service",
	Long: `opsledger tracks budget allocations, the postings recorded against
them, and the approval requests that gate spending. Running it without a
subcommand starts the HTTP API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		path, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to load env file", "path", path, "error", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
