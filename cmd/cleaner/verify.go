package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-cleaner/internal/collector"
	"github.com/qepting91/reddit-cleaner/internal/config"
	"github.com/qepting91/reddit-cleaner/internal/domain"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the configured credentials",
	Long:  `Authenticate with the configured credentials and print the account name. Nothing is modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		src, err := collector.NewCollector(cfg)
		if err != nil {
			return err
		}
		v, ok := src.(domain.Verifier)
		if !ok {
			return fmt.Errorf("mode %q has no credentials to verify", cfg.Mode)
		}
		name, err := v.Verify(cmd.Context())
		if err != nil {
			return fmt.Errorf("could not authenticate with the provided credentials: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as u/%s\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
