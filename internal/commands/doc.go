// Package commands provides the command-line interface for the foldercrypt tool.
//
// It implements commands for:
//   - encryption of a folder tree
//   - decryption, optionally restricted to selected entries
//   - checking an encrypted folder without writing anything
//
// The package handles command-line parsing, configuration validation,
// and environment variable binding through cobra and viper.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/gogen/pkg/cobraext"
	"github.com/idelchi/foldercrypt/internal/config"
)

// preRun returns a PreRunE handler that records the mode and positional
// arguments in cfg and validates the configuration.
func preRun(cfg *config.Config, mode config.Mode) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg.Mode = mode
		cfg.Source = args[0]

		if len(args) > 1 {
			cfg.Destination = args[1]
		}

		cfg.PasswordFromFlag = cmd.Flags().Changed("password")

		return cobraext.Validate(cfg, cfg)
	}
}
