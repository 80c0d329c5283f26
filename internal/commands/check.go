package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/foldercrypt/internal/config"
	"github.com/idelchi/foldercrypt/internal/logic"
)

// NewCheckCommand creates a new cobra command for the check subcommand.
func NewCheckCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [flags] SRC",
		Short: "Verify the password for an encrypted folder and list or match its entries",
		Long: `Authenticates the manifest of the encrypted folder SRC without writing anything.
Without --select the entries are listed. With --select every pattern must
match at least one entry.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: preRun(cfg, config.Check),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return logic.Run(cmd.Context(), cfg)
		},
	}

	addSelectFlags(cmd)

	return cmd
}
