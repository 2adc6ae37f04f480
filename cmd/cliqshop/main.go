package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cliqshop/shop/internal/config"
)

// Build info - injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cliqshop",
	Short: "CliQShop e-commerce backend",
	Long:  `CliQShop serves the storefront and admin REST API, Stripe payments and product update streams.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if _, err := config.Load(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
