package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/foldercrypt/internal/config"
	"github.com/idelchi/foldercrypt/internal/logic"
)

// NewDecryptCommand creates a new cobra command for the decrypt subcommand.
func NewDecryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decrypt [flags] SRC DST",
		Aliases: []string{"dec"},
		Short:   "Decrypt the encrypted folder SRC into DST",
		Args:    cobra.ExactArgs(2), //nolint:mnd
		PreRunE: preRun(cfg, config.Decrypt),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return logic.Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Write into DST even if it already exists")
	addSelectFlags(cmd)

	return cmd
}

func addSelectFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("select", "s", nil, "Only handle entries matching these find -path patterns")
	cmd.Flags().String("select-from", "", "Path to a JSONC file with an array of select patterns")
}
