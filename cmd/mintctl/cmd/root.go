package cmd

import (
	"fmt"
	"os"

	"hero-mint-service/config"
	"hero-mint-service/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd is the base command; it only groups the subcommands.
var rootCmd = &cobra.Command{
	Use:   "mintctl",
	Short: "Operator tool for the hero mint service",
	Long: `mintctl manages the hero mint service database schema, runs ledger
reconciliation on demand and issues bearer tokens for local testing.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yaml or ./config/config.yaml)")
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(cfg.Log.Level, true), nil
}
