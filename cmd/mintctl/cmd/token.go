package cmd

import (
	"errors"
	"fmt"
	"time"

	"hero-mint-service/internal/service"

	"github.com/spf13/cobra"
)

var tokenExpiry time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token signed with the configured JWT secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return errors.New("jwt.secret is not configured")
		}
		expiry := cfg.JWT.Expiry
		if tokenExpiry > 0 {
			expiry = tokenExpiry
		}
		tok, exp, err := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer).Generate(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 0, "token lifetime (default jwt.expiry)")
	rootCmd.AddCommand(tokenCmd)
}
