// Command attemptctl is the operator CLI for the attempt service: override
// passwords, personal codes, staff tokens and cache maintenance.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-attempt/internal/config"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "attemptctl",
		Short:        "Operate the ExStem quiz attempt service",
		SilenceUsage: true,
	}

	cmd.AddCommand(newSetAdminOverrideCmd(cfg))
	cmd.AddCommand(newPersonalCodeCmd())
	cmd.AddCommand(newStaffTokenCmd(cfg))
	cmd.AddCommand(newFlushCacheCmd(cfg))
	return cmd
}
