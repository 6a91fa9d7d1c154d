package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/mutools/internal/cache"
	"github.com/banshee-data/mutools/internal/fsutil"
	"github.com/banshee-data/mutools/internal/monitoring"
	"github.com/banshee-data/mutools/internal/renumber"
	"github.com/banshee-data/mutools/internal/restart"
	"github.com/banshee-data/mutools/internal/version"
)

func restartCmd(a *app) *cobra.Command {
	var (
		batch []string
		dir   string
	)
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart batch jobs from their last dump",
		Long: "Restart rewrites the parameter file and batch script of each job so that\n" +
			"it continues from the last dump, then submits it with sbatch after\n" +
			"confirmation. Without --batch every batch* file of the run directory is used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd, "batch", &a.cfg.Restart.Batch, batch)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			r := &restart.Restarter{
				Dir:    dir,
				FS:     fsutil.OSFileSystem{},
				Runner: a.executor(cmd.OutOrStdout()),
				Prompt: restart.NewLinePrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
				Out:    cmd.OutOrStdout(),
			}
			files, err := r.BatchFiles(cfg.Restart.Batch)
			if err != nil {
				return err
			}
			for _, b := range files {
				err := r.Restart(cmd.Context(), b)
				if errors.Is(err, restart.ErrAborted) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: aborted\n", b)
					continue
				}
				if err != nil {
					return fmt.Errorf("%s: %w", b, err)
				}
				monitoring.Logf("submitted %s", b)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&batch, "batch", "b", nil, "batch files to restart (default batch* in the run directory)")
	cmd.Flags().StringVar(&dir, "dir", ".", "run directory")
	return cmd
}

func renumberCmd(a *app) *cobra.Command {
	var pathIn, pathOut string
	cmd := &cobra.Command{
		Use:   "renumber",
		Short: "Move the dumps of a folder into a new folder, numbered from 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd, "path-in", &a.cfg.Renumber.PathIn, pathIn)
			override(cmd, "path-out", &a.cfg.Renumber.PathOut, pathOut)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			moved, err := renumber.Move(fsutil.OSFileSystem{}, cfg.Renumber.PathIn, cfg.Renumber.PathOut)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d dumps to %s\n", len(moved), cfg.Renumber.PathOut)
			return nil
		},
	}
	cmd.Flags().StringVar(&pathIn, "path-in", "", "folder holding the dumps (default .)")
	cmd.Flags().StringVar(&pathOut, "path-out", "", "new folder, must not exist (default renumbered)")
	return cmd
}

func cacheCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the reductions cache",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			override(cmd, "cache-path", &a.cfg.Cache.Path, path)
			if a.cfg.Cache.Disable {
				return errors.New("the cache is disabled in the configuration")
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&path, "cache-path", "", "cache database (default in the user cache directory)")
	cmd.AddCommand(cacheStatsCmd(a), cachePurgeCmd(a))
	return cmd
}

// openRequiredCache is openCache for the commands that need a cache.
func (a *app) openRequiredCache() (*cache.Cache, error) {
	c, err := a.openCache()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("no cache available: set cache.path")
	}
	return c, nil
}

func cacheStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.openRequiredCache()
			if err != nil {
				return err
			}
			defer c.Close()
			st, err := c.Stats()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(st); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func cachePurgeCmd(a *app) *cobra.Command {
	var (
		parfile string
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove the cached reductions of a run, or of every run with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.openRequiredCache()
			if err != nil {
				return err
			}
			defer c.Close()
			runID := ""
			if !all {
				if parfile == "" {
					parfile = a.cfg.Core.Path
				}
				if runID, err = c.RunID(parfile); err != nil {
					return err
				}
			}
			n, err := c.Purge(runID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d reductions\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&parfile, "path", "p", "", "parameter file of the run (default params.nml)")
	cmd.Flags().BoolVar(&all, "all", false, "purge every run")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// The version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
