package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/foldercrypt/internal/config"
	"github.com/idelchi/foldercrypt/internal/logic"
)

// NewEncryptCommand creates a new cobra command for the encrypt subcommand.
func NewEncryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "encrypt [flags] SRC DST",
		Aliases: []string{"enc"},
		Short:   "Encrypt the folder SRC into DST",
		Args:    cobra.ExactArgs(2), //nolint:mnd
		PreRunE: preRun(cfg, config.Encrypt),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return logic.Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Write into DST even if it already exists")
	cmd.Flags().Bool("skip-password-check", false, "Accept passwords shorter than 8 characters")

	return cmd
}
