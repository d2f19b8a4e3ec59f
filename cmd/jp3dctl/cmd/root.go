package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-jp3d"
)

// NewRoot builds the jp3dctl command tree: encode, decode, and serve.
func NewRoot(ctx context.Context) *cobra.Command {
	root := &cobra.Command{
		Use:   "jp3dctl",
		Short: "encode, decode, and serve JP3D volumetric codestreams",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")

	root.AddCommand(
		NewEncodeCmd(ctx),
		NewDecodeCmd(ctx),
		NewServeCmd(ctx),
	)
	return root
}

// ExitCodeFor maps an error returned from a subcommand to its process
// exit code: 0 success, 2 usage, 3 parse error, 4 I/O error, 5 cancelled.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var jerr *jp3d.Error
	if errors.As(err, &jerr) {
		switch jerr.Kind {
		case jp3d.KindParseError, jp3d.KindTruncated, jp3d.KindCorrupted:
			return 3
		case jp3d.KindIO:
			return 4
		case jp3d.KindCancelled:
			return 5
		default:
			return 2
		}
	}
	return 2
}
