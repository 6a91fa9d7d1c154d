// Package cli wires the mutools subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/mutools/internal/cache"
	"github.com/banshee-data/mutools/internal/config"
	"github.com/banshee-data/mutools/internal/fsutil"
	"github.com/banshee-data/mutools/internal/h5"
	"github.com/banshee-data/mutools/internal/monitoring"
	"github.com/banshee-data/mutools/internal/music"
	"github.com/banshee-data/mutools/internal/postfile"
	"github.com/banshee-data/mutools/internal/runner"
)

// Execute runs the mutools command line and exits 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app carries the state shared by the subcommands. The openers and the
// command builder are swapped in tests.
type app struct {
	cfgPath string
	debug   bool
	quiet   bool
	cfg     *config.Config

	openPost func(path string) (*postfile.File, error)
	createH5 func(path string) (h5.Writer, error)
	builder  runner.Builder
}

func newApp() *app {
	return &app{
		openPost: postfile.Open,
		createH5: h5.Create,
		builder:  runner.ExecBuilder{},
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mutools",
		Short:        "Post-processing tools for MUSIC runs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			monitoring.Init("mutools", monitoring.Options{
				Out:   cmd.ErrOrStderr(),
				Debug: a.debug,
				Quiet: a.quiet,
			})
			cfg, err := config.LoadOptional(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "TOML config file (default ./"+config.DefaultConfigPath+" when present)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "disable logging")

	cmd.AddCommand(
		fieldCmd(a),
		tseriesCmd(a),
		profCmd(a),
		infoCmd(a),
		igwCmd(a),
		movieCmd(a),
		pendepthCmd(a),
		fieldPPCmd(a),
		contourPPCmd(a),
		rprofPPCmd(a),
		rprofTavePPCmd(a),
		lmaxCmd(a),
		lscaleCmd(a),
		mesa1dCmd(a),
		fgongCmd(a),
		restartCmd(a),
		renumberCmd(a),
		cacheCmd(a),
		versionCmd(),
	)
	return cmd
}

// override copies a flag value into the config when the flag was set on
// the command line.
func override[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

// validated re-checks the config after flag overrides.
func (a *app) validated() (*config.Config, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return a.cfg, nil
}

// openCache opens the reductions cache, or returns nil when it is disabled.
func (a *app) openCache() (*cache.Cache, error) {
	if a.cfg.Cache.Disable {
		return nil, nil
	}
	path := a.cfg.Cache.Path
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			monitoring.Logf("cache disabled: %v", err)
			return nil, nil
		}
		path = filepath.Join(dir, "mutools", "cache.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return cache.Open(path)
}

// openRun opens the run of core.path with the cache attached. The returned
// function closes the cache.
func (a *app) openRun() (*music.Run, func(), error) {
	c, err := a.openCache()
	if err != nil {
		return nil, nil, err
	}
	opts := []music.Option{music.WithWorkers(a.cfg.Core.Workers)}
	closeFn := func() {}
	if c != nil {
		opts = append(opts, music.WithCache(c))
		closeFn = func() {
			if err := c.Close(); err != nil {
				monitoring.Logf("close cache: %v", err)
			}
		}
	}
	run, err := music.Open(a.cfg.Core.Path, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	monitoring.Debugf("opened run %s (prefix %q)", run.Parfile, run.Prefix)
	return run, closeFn, nil
}

// openPostFile opens fort_pp.postfile.
func (a *app) openPostFile() (*postfile.File, error) {
	f, err := a.openPost(a.cfg.FortPP.Postfile)
	if err != nil {
		return nil, fmt.Errorf("open post file %s: %w", a.cfg.FortPP.Postfile, err)
	}
	return f, nil
}

// executor runs external commands with logging through monitoring.
func (a *app) executor(out io.Writer) *runner.Executor {
	e := runner.NewExecutor(false)
	e.Builder = a.builder
	e.Out = out
	return e
}

// figure returns the path of an output file under core.figdir.
func (a *app) figure(name string) string {
	return filepath.Join(a.cfg.Core.Figdir, fsutil.SanitizeFilename(name))
}
