package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"hero-mint-service/internal/bootstrap"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check every wallet against its ledger journal once",
	Long: `reconcile recomputes each wallet's available and locked balance from
the ledger journal and prints the wallets that disagree. It exits non-zero
when drift is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer app.Close() //nolint:errcheck

		report, err := app.Reconciler.Run(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if len(report.Drifted) > 0 {
			return fmt.Errorf("%d of %d wallets drifted", len(report.Drifted), report.Checked)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
