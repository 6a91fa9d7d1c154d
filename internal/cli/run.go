package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
	"github.com/banshee-data/mutools/internal/monitoring"
	"github.com/banshee-data/mutools/internal/movie"
	"github.com/banshee-data/mutools/internal/music"
	"github.com/banshee-data/mutools/internal/plots"
	"github.com/banshee-data/mutools/internal/spectrum"
)

// coreFlags registers the flags of the core section.
type coreFlags struct {
	path    string
	dumps   string
	figdir  string
	workers int
}

func (f *coreFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "path", "p", "", "parameter file of the run (default params.nml)")
	cmd.Flags().StringVarP(&f.dumps, "dumps", "d", "", `dump selection, e.g. "0:10:2,-1" (default all)`)
	cmd.Flags().StringVar(&f.figdir, "figdir", "", "output directory for figures (default figures)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "dumps processed concurrently (default number of CPUs)")
}

func (f *coreFlags) apply(cmd *cobra.Command, a *app) {
	override(cmd, "path", &a.cfg.Core.Path, f.path)
	override(cmd, "dumps", &a.cfg.Core.Dumps, f.dumps)
	override(cmd, "figdir", &a.cfg.Core.Figdir, f.figdir)
	override(cmd, "workers", &a.cfg.Core.Workers, f.workers)
}

// selectDumps opens the run and resolves core.dumps.
func (a *app) selectDumps() (*music.Run, []int, func(), error) {
	run, closeFn, err := a.openRun()
	if err != nil {
		return nil, nil, nil, err
	}
	dumps, err := run.Select(a.cfg.Core.Dumps)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	if len(dumps) == 0 {
		closeFn()
		return nil, nil, nil, fmt.Errorf("no dump selected by %q in %s", a.cfg.Core.Dumps, run.Dir())
	}
	monitoring.Debugf("selected %d dumps", len(dumps))
	return run, dumps, closeFn, nil
}

// snapFigure plots field name of a snapshot, with velocity arrows when
// arrows is set and the run is spherical.
func snapFigure(s *music.Snap, name string, arrows bool) (*plots.Figure, error) {
	values, err := fields.Get(s, name)
	if err != nil {
		return nil, err
	}
	g := s.Grid()
	ps := []plots.Plotter{plots.Scalar(g, name, values)}
	if arrows {
		if g.Geometry != grid.Spherical {
			monitoring.Logf("velocity arrows are only drawn on spherical runs")
		} else {
			vr, err := fields.Get(s, "vel_1")
			if err != nil {
				return nil, err
			}
			vt, err := fields.Get(s, "vel_2")
			if err != nil {
				return nil, err
			}
			ps = append(ps, plots.VectorArrows{
				RCenters: g.X1.CellCenters(),
				TCenters: g.X2.CellCenters(),
				VR:       vr,
				VT:       vt,
				Stride:   plots.DefaultArrowStride,
			})
		}
	}
	return plots.SameAxes(false, ps...).WithTitle(fmt.Sprintf("t=%.2f", s.Time())), nil
}

func fieldCmd(a *app) *cobra.Command {
	var (
		core     coreFlags
		plot     string
		velarrow bool
	)
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Plot a field of the selected dumps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core.apply(cmd, a)
			override(cmd, "plot", &a.cfg.Field.Plot, plot)
			override(cmd, "velarrow", &a.cfg.Field.Velarrow, velarrow)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			run, dumps, closeFn, err := a.selectDumps()
			if err != nil {
				return err
			}
			defer closeFn()

			return run.ForEach(cmd.Context(), dumps, func(_ context.Context, s *music.Snap) error {
				fig, err := snapFigure(s, cfg.Field.Plot, cfg.Field.Velarrow)
				if err != nil {
					return fmt.Errorf("dump %d: %w", s.IDump, err)
				}
				out := a.figure(fmt.Sprintf("%s_%08d.png", cfg.Field.Plot, s.IDump))
				if err := fig.Save(out); err != nil {
					return err
				}
				monitoring.Logf("wrote %s", out)
				return nil
			})
		},
	}
	core.register(cmd)
	cmd.Flags().StringVar(&plot, "plot", "", "field to plot (default vel_ampl)")
	cmd.Flags().BoolVar(&velarrow, "velarrow", false, "draw velocity arrows")
	return cmd
}

func tseriesCmd(a *app) *cobra.Command {
	var (
		core coreFlags
		plot string
	)
	cmd := &cobra.Command{
		Use:   "tseries",
		Short: "Plot the time series of a volume-averaged quantity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core.apply(cmd, a)
			override(cmd, "plot", &a.cfg.Tseries.Plot, plot)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			run, dumps, closeFn, err := a.selectDumps()
			if err != nil {
				return err
			}
			defer closeFn()

			ts, err := run.Tseries(cmd.Context(), cfg.Tseries.Plot, dumps)
			if err != nil {
				return err
			}
			out := a.figure(fmt.Sprintf("tseries_%s.pdf", cfg.Tseries.Plot))
			fig := plots.SinglePlot(plots.Series{Label: cfg.Tseries.Plot, Time: ts.Time, Values: ts.Values})
			if err := fig.Save(out); err != nil {
				return err
			}
			monitoring.Logf("wrote %s", out)
			return nil
		},
	}
	core.register(cmd)
	cmd.Flags().StringVar(&plot, "plot", "", "quantity to plot (default ekin)")
	return cmd
}

func profCmd(a *app) *cobra.Command {
	var (
		core        coreFlags
		plot        string
		markers     []float64
		lengthScale float64
	)
	cmd := &cobra.Command{
		Use:   "prof",
		Short: "Plot the time-averaged radial profile of a quantity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core.apply(cmd, a)
			override(cmd, "plot", &a.cfg.Prof.Plot, plot)
			override(cmd, "markers", &a.cfg.Prof.Markers, markers)
			override(cmd, "length-scale", &a.cfg.Prof.LengthScale, lengthScale)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			run, dumps, closeFn, err := a.selectDumps()
			if err != nil {
				return err
			}
			defer closeFn()

			radius, prof, err := run.RprofAvg(cmd.Context(), cfg.Prof.Plot, dumps)
			if err != nil {
				return err
			}
			out := a.figure(fmt.Sprintf("prof_%s.pdf", cfg.Prof.Plot))
			fig := plots.SinglePlot(plots.Prof{
				Label:       cfg.Prof.Plot,
				Radius:      radius,
				Values:      prof,
				Markers:     cfg.Prof.Markers,
				LengthScale: cfg.Prof.LengthScale,
			})
			if err := fig.Save(out); err != nil {
				return err
			}
			monitoring.Logf("wrote %s", out)
			return nil
		},
	}
	core.register(cmd)
	cmd.Flags().StringVar(&plot, "plot", "", "quantity to plot (default vel_ampl)")
	cmd.Flags().Float64SliceVar(&markers, "markers", nil, "radii marked with dashed lines")
	cmd.Flags().Float64Var(&lengthScale, "length-scale", 0, "divide radii by this length")
	return cmd
}

// runInfo is the report printed by the info command.
type runInfo struct {
	Parfile string   `yaml:"parfile"`
	Prefix  string   `yaml:"prefix"`
	Dumps   int      `yaml:"dumps"`
	Tconv   *float64 `yaml:"tconv,omitempty"`
}

func writeInfo(w io.Writer, info runInfo, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	}
	fmt.Fprintf(w, "Run:    %s\n", info.Parfile)
	fmt.Fprintf(w, "Prefix: %s\n", info.Prefix)
	fmt.Fprintf(w, "Dumps:  %d\n", info.Dumps)
	if info.Tconv != nil {
		fmt.Fprintf(w, "Tconv:  %g\n", *info.Tconv)
	}
	return nil
}

func infoCmd(a *app) *cobra.Command {
	var (
		core   coreFlags
		tconv  bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print information about a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core.apply(cmd, a)
			override(cmd, "tconv", &a.cfg.Info.Tconv, tconv)
			override(cmd, "format", &a.cfg.Info.Format, format)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			run, closeFn, err := a.openRun()
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := run.Len()
			if err != nil {
				return err
			}
			info := runInfo{Parfile: run.Parfile, Prefix: run.Prefix, Dumps: n}
			if cfg.Info.Tconv {
				dumps, err := run.Select(cfg.Core.Dumps)
				if err != nil {
					return err
				}
				tc, err := run.TauConv(cmd.Context(), dumps)
				if err != nil {
					return err
				}
				info.Tconv = &tc
			}
			return writeInfo(cmd.OutOrStdout(), info, cfg.Info.Format)
		},
	}
	core.register(cmd)
	cmd.Flags().BoolVar(&tconv, "tconv", false, "compute the convective time scale")
	cmd.Flags().StringVar(&format, "format", "", "output format: text|yaml (default text)")
	return cmd
}

func igwCmd(a *app) *cobra.Command {
	var (
		core       coreFlags
		field      string
		ells       []int
		spacingTol float64
		shtTol     float64
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "igw",
		Short: "Compute the power spectrum of internal gravity waves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core.apply(cmd, a)
			override(cmd, "field", &a.cfg.IGW.Field, field)
			override(cmd, "ells", &a.cfg.IGW.Ells, ells)
			override(cmd, "spacing-tol", &a.cfg.IGW.SpacingTol, spacingTol)
			override(cmd, "sht-tol", &a.cfg.IGW.SHTTol, shtTol)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			run, dumps, closeFn, err := a.selectDumps()
			if err != nil {
				return err
			}
			defer closeFn()

			ps, err := spectrum.FromRun(cmd.Context(), run, cfg.IGW.Field, dumps, cfg.IGW.Ells, spectrum.Options{
				SpacingTol: cfg.IGW.SpacingTol,
				SHTTol:     cfg.IGW.SHTTol,
			})
			if err != nil {
				return err
			}
			start, stop, step := dumpRange(dumps)
			out := filepath.Join(outDir, spectrum.OutputName(cfg.IGW.Field, cfg.IGW.Ells, start, stop, step))
			w, err := a.createH5(out)
			if err != nil {
				return err
			}
			if err := ps.Write(w); err != nil {
				_ = w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			monitoring.Logf("wrote %s", out)
			return nil
		},
	}
	core.register(cmd)
	cmd.Flags().StringVar(&field, "field", "", "field to transform (default vel_1)")
	cmd.Flags().IntSliceVar(&ells, "ells", nil, "spherical harmonic degrees (default 1,2,3,4,5)")
	cmd.Flags().Float64Var(&spacingTol, "spacing-tol", 0, "relative tolerance on the dump time spacing")
	cmd.Flags().Float64Var(&shtTol, "sht-tol", 0, "tolerance of the spherical harmonic transform")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	return cmd
}

// dumpRange describes a dump list as start:stop:step for file names.
func dumpRange(dumps []int) (start, stop, step int) {
	start, stop, step = dumps[0], dumps[len(dumps)-1]+1, 1
	if len(dumps) > 1 {
		step = dumps[1] - dumps[0]
	}
	return start, stop, step
}

func movieCmd(a *app) *cobra.Command {
	var (
		core      coreFlags
		plot      string
		framerate int
		framesDir string
	)
	cmd := &cobra.Command{
		Use:   "movie",
		Short: "Render a field of the selected dumps as an mp4 movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core.apply(cmd, a)
			override(cmd, "plot", &a.cfg.Movie.Plot, plot)
			override(cmd, "framerate", &a.cfg.Movie.Framerate, framerate)
			override(cmd, "frames-dir", &a.cfg.Movie.FramesDir, framesDir)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			run, dumps, closeFn, err := a.selectDumps()
			if err != nil {
				return err
			}
			defer closeFn()

			frames := cfg.Movie.FramesDir
			if frames == "" {
				frames = a.figure("frames_" + cfg.Movie.Plot)
			}
			m := &movie.Movie{
				FramesDir: frames,
				Runner:    a.executor(cmd.OutOrStdout()),
				Framerate: cfg.Movie.Framerate,
				Workers:   cfg.Core.Workers,
			}
			out := a.figure(cfg.Movie.Plot + ".mp4")
			err = m.Render(cmd.Context(), out, len(dumps), func(_ context.Context, i int) (*plots.Figure, error) {
				s, err := run.Snap(dumps[i])
				if err != nil {
					return nil, err
				}
				return snapFigure(s, cfg.Movie.Plot, false)
			})
			if err != nil {
				return err
			}
			monitoring.Logf("wrote %s", out)
			return nil
		},
	}
	core.register(cmd)
	cmd.Flags().StringVar(&plot, "plot", "", "field to render (default vel_ampl)")
	cmd.Flags().IntVar(&framerate, "framerate", 0, "frames per second (default 5)")
	cmd.Flags().StringVar(&framesDir, "frames-dir", "", "directory of the frames (default <figdir>/frames_<plot>)")
	return cmd
}
