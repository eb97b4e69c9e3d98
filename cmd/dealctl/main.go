// Command dealctl is the operator CLI for dealflow: it validates filter-set
// files, seeds the deal catalog and previews opportunity views offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dealctl",
		Short:         "dealctl - operator tooling for the dealflow matching service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(validateCmd())
	cmd.AddCommand(seedCmd())
	cmd.AddCommand(viewCmd())

	return cmd
}
