// Command foldercrypt encrypts and decrypts directory trees under a single password.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/idelchi/gogen/pkg/cobraext"
	"github.com/idelchi/foldercrypt/internal/commands"
	"github.com/idelchi/foldercrypt/internal/config"
)

// version is stamped at build time.
var version = "dev" //nolint:gochecknoglobals

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg := &config.Config{}

	err := commands.NewRootCommand(cfg, version).ExecuteContext(ctx)

	stop()

	if errors.Is(err, cobraext.ErrExitGracefully) {
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)

		if hint := commands.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "%s %s\n", color.CyanString("→"), hint)
		}

		os.Exit(1)
	}
}
