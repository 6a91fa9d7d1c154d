// Command release bumps the version of mutools, commits it and creates a
// signed tag.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/mutools/internal/fsutil"
	"github.com/banshee-data/mutools/internal/monitoring"
	"github.com/banshee-data/mutools/internal/release"
	"github.com/banshee-data/mutools/internal/runner"
)

func newReleaseCmd() *cobra.Command {
	var (
		dryRun bool
		dir    string
		debug  bool
	)
	cmd := &cobra.Command{
		Use:   "release VERSION",
		Short: "Release a new version of mutools",
		Long: "Release checks that the work tree is clean, writes VERSION into\n" +
			release.DefaultDescriptor + ", commits it and creates the signed tag vVERSION.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			monitoring.Init("release", monitoring.Options{Out: cmd.ErrOrStderr(), Debug: debug})
			exec := runner.NewExecutor(false)
			exec.Out = cmd.OutOrStdout()
			r := &release.Releaser{
				Dir:    dir,
				FS:     fsutil.OSFileSystem{},
				Runner: exec,
				Out:    cmd.OutOrStdout(),
				DryRun: dryRun,
			}
			return r.Release(cmd.Context(), args[0])
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the commands without running them")
	cmd.Flags().StringVar(&dir, "dir", ".", "repository root")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newReleaseCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
