package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/gogen/pkg/cobraext"
	"github.com/idelchi/foldercrypt/internal/config"
	"github.com/idelchi/foldercrypt/internal/processor"
)

// NewRootCommand creates the root command with common configuration.
// It sets up environment variable binding and flag handling.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	root := cobraext.NewDefaultRootCommand(version)

	root.Use = "foldercrypt [flags] command [flags]"
	root.Short = "Folder encryption utility"
	root.Long = `Encrypts and decrypts whole directory trees under a single password.
Every file is encrypted in authenticated chunks, and the folder structure is
kept in an encrypted manifest next to a random salt.

Flags can also be set through FOLDERCRYPT_* environment variables,
for example FOLDERCRYPT_PASSWORD or FOLDERCRYPT_ALGORITHM.`

	flags := root.PersistentFlags()

	flags.StringP("password", "p", "", "Password (visible to other users, prefer --password-file)")
	flags.String("password-file", "", "Path to a file holding the password")
	flags.StringP("algorithm", "a", "pbkdf2", "Key derivation algorithm, pbkdf2 or argon2id; must match at decryption")
	flags.String("suffix", processor.DefaultSuffix, "Suffix of encrypted files")
	flags.BoolP("verbose", "v", false, "Show debug output")
	flags.BoolP("quiet", "q", false, "Suppress non-error output")
	flags.Bool("no-progress", false, "Do not print per-file progress")
	flags.Bool("stats", false, "Print statistics when done")
	flags.BoolP("show", "S", false, "Show the configuration and exit")

	root.AddCommand(NewEncryptCommand(cfg), NewDecryptCommand(cfg), NewCheckCommand(cfg))

	return root
}
