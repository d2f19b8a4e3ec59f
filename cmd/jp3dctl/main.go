// Command jp3dctl is the CLI surface over the encode, decode, and
// JPIP streaming packages.
//
// Grounded on the cmd/ctl main.go convention: a signal-aware root
// context, slog.SetDefault before the command tree runs, and a thin
// main that just builds and executes the root cobra.Command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cocosip/go-jp3d/cmd/jp3dctl/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cmd.NewRoot(ctx)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(cmd.ExitCodeFor(err))
	}
}
