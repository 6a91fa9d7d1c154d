package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mutools/internal/h5"
	"github.com/banshee-data/mutools/internal/monitoring"
	"github.com/banshee-data/mutools/internal/plots"
	"github.com/banshee-data/mutools/internal/postfile"
)

// rmarkPoints is the number of points of a constant-radius contour.
const rmarkPoints = 100

// postFlags registers the flags of the fort_pp and plotting sections.
type postFlags struct {
	postfile string
	idump    int
	figdir   string
	rmarks   []float64
	log      bool
}

func (f *postFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.postfile, "postfile", "", "post_par HDF5 file (default post.h5)")
	cmd.Flags().IntVarP(&f.idump, "idump", "i", 0, "checkpoint number (default 1)")
	cmd.Flags().StringVar(&f.figdir, "figdir", "", "output directory for figures (default figures)")
	cmd.Flags().Float64SliceVar(&f.rmarks, "rmarks", nil, "radii to mark")
	cmd.Flags().BoolVar(&f.log, "log", false, "logarithmic vertical axis")
}

func (f *postFlags) apply(cmd *cobra.Command, a *app) {
	override(cmd, "postfile", &a.cfg.FortPP.Postfile, f.postfile)
	override(cmd, "idump", &a.cfg.FortPP.Idump, f.idump)
	override(cmd, "figdir", &a.cfg.Core.Figdir, f.figdir)
	override(cmd, "rmarks", &a.cfg.Plotting.Rmarks, f.rmarks)
	override(cmd, "log", &a.cfg.Plotting.Log, f.log)
}

// withPost is the common prologue of the post-file commands: apply flags,
// validate, open the file, run fn and close the file.
func (a *app) withPost(cmd *cobra.Command, flags *postFlags, fn func(f *postfile.File) error) error {
	flags.apply(cmd, a)
	if _, err := a.validated(); err != nil {
		return err
	}
	f, err := a.openPostFile()
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			monitoring.Logf("close post file: %v", err)
		}
	}()
	return fn(f)
}

func (a *app) save(fig *plots.Figure, name string) error {
	out := a.figure(name)
	if err := fig.Save(out); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", out)
	return nil
}

func checkpointTitle(chk postfile.Checkpoint) string {
	t, err := chk.Time()
	if err != nil {
		return fmt.Sprintf("checkpoint %d", chk.IDump)
	}
	return fmt.Sprintf("t=%.2f", t)
}

func pendepthCmd(a *app) *cobra.Command {
	var flags postFlags
	cmd := &cobra.Command{
		Use:   "pendepth",
		Short: "Plot the penetration depth contours of a checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPost(cmd, &flags, func(f *postfile.File) error {
				chk := f.Checkpoint(a.cfg.FortPP.Idump)
				var ps []plots.Plotter
				for _, name := range postfile.PenDepthVars {
					c, err := chk.ContourField(name)
					if errors.Is(err, h5.ErrNotFound) {
						monitoring.Debugf("checkpoint %d has no %s", chk.IDump, name)
						continue
					}
					if err != nil {
						return err
					}
					ps = append(ps, plots.Contour{Label: c.Name, Radius: c.Radius, Theta: c.Theta})
				}
				if len(ps) == 0 {
					return fmt.Errorf("checkpoint %d has no penetration depth", chk.IDump)
				}
				return a.save(plots.SameAxes(true, ps...).WithTitle(checkpointTitle(chk)), "pendepth.pdf")
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// fieldPlotter reads a post-file field as a spherical colour map.
func fieldPlotter(chk postfile.Checkpoint, name string, rmarks []float64) (plots.Plotter, error) {
	fld, err := chk.Field(name)
	if err != nil {
		return nil, err
	}
	return plots.SphericalScalar{
		Label:  name,
		RWalls: fld.RWalls(),
		TWalls: fld.TWalls(),
		Values: fld.Values,
		RMarks: rmarks,
	}, nil
}

func fieldPPCmd(a *app) *cobra.Command {
	var (
		flags postFlags
		plot  string
	)
	cmd := &cobra.Command{
		Use:   "field_pp",
		Short: "Plot a field of a post file checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd, "plot", &a.cfg.FieldPP.Plot, plot)
			return a.withPost(cmd, &flags, func(f *postfile.File) error {
				chk := f.Checkpoint(a.cfg.FortPP.Idump)
				p, err := fieldPlotter(chk, a.cfg.FieldPP.Plot, a.cfg.Plotting.Rmarks)
				if err != nil {
					return err
				}
				fig := plots.SinglePlot(p).WithTitle(checkpointTitle(chk))
				return a.save(fig, fmt.Sprintf("field_%s.pdf", a.cfg.FieldPP.Plot))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&plot, "plot", "", "field to plot (default rho)")
	return cmd
}

// contourName is the output file name of contour_pp.
func contourName(vars []string, over string) string {
	name := "contour_" + strings.Join(vars, "_")
	if over != "" {
		name += "__over_" + over
	}
	return name + ".pdf"
}

func contourPPCmd(a *app) *cobra.Command {
	var (
		flags postFlags
		plot  []string
		over  string
	)
	cmd := &cobra.Command{
		Use:   "contour_pp",
		Short: "Plot contours of a post file checkpoint, optionally over a field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd, "plot", &a.cfg.ContourPP.Plot, plot)
			override(cmd, "over", &a.cfg.ContourPP.Over, over)
			return a.withPost(cmd, &flags, func(f *postfile.File) error {
				cfg := a.cfg
				if len(cfg.ContourPP.Plot) == 0 {
					return errors.New("contour_pp.plot is empty")
				}
				chk := f.Checkpoint(cfg.FortPP.Idump)
				var ps []plots.Plotter
				if cfg.ContourPP.Over != "" {
					p, err := fieldPlotter(chk, cfg.ContourPP.Over, nil)
					if err != nil {
						return err
					}
					ps = append(ps, p)
				}
				for _, name := range cfg.ContourPP.Plot {
					c, err := chk.ContourField(name)
					if err != nil {
						return err
					}
					ps = append(ps, plots.SphericalContour{Label: c.Name, Radius: c.Radius, Theta: c.Theta})
				}
				if len(cfg.Plotting.Rmarks) > 0 {
					theta, err := chk.PPGrid("theta")
					if err != nil {
						return err
					}
					tmin, tmax := floats.Min(theta), floats.Max(theta)
					for _, r := range cfg.Plotting.Rmarks {
						c := postfile.ConstRadContour(r, tmin, tmax, fmt.Sprintf("r=%g", r), rmarkPoints)
						ps = append(ps, plots.SphericalContour{Label: c.Name, Radius: c.Radius, Theta: c.Theta})
					}
				}
				fig := plots.SameAxes(true, ps...).WithTitle(checkpointTitle(chk))
				return a.save(fig, contourName(cfg.ContourPP.Plot, cfg.ContourPP.Over))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&plot, "plot", nil, "contours to plot")
	cmd.Flags().StringVar(&over, "over", "", "field drawn under the contours")
	return cmd
}

func rprofPPCmd(a *app) *cobra.Command {
	var (
		flags  postFlags
		plot   string
		degree int
	)
	cmd := &cobra.Command{
		Use:   "rprof_pp",
		Short: "Plot a radial profile of a post file checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd, "plot", &a.cfg.RprofPP.Plot, plot)
			override(cmd, "degree", &a.cfg.RprofPP.Degree, degree)
			return a.withPost(cmd, &flags, func(f *postfile.File) error {
				cfg := a.cfg
				chk := f.Checkpoint(cfg.FortPP.Idump)
				rp, err := chk.Rprof(cfg.RprofPP.Plot, cfg.RprofPP.Degree)
				if err != nil {
					return err
				}
				fig := plots.SinglePlot(plots.Rprof{
					Label:  rp.Name,
					Radius: rp.Radius,
					Values: rp.Values,
					Marks:  cfg.Plotting.Rmarks,
					Log:    cfg.Plotting.Log,
				}).WithTitle(checkpointTitle(chk))
				return a.save(fig, fmt.Sprintf("rprof_%s.pdf", cfg.RprofPP.Plot))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&plot, "plot", "", "profile to plot (default rho)")
	cmd.Flags().IntVar(&degree, "degree", 0, "moment degree (default 1)")
	return cmd
}

// areaAlphas are the fill opacities of the error areas, in order.
var areaAlphas = []float64{0.5, 0.3}

func rprofTavePPCmd(a *app) *cobra.Command {
	var (
		flags   postFlags
		plot    string
		degree  int
		sdump   int
		edump   int
		errKind []string
	)
	cmd := &cobra.Command{
		Use:   "rprof_tave_pp",
		Short: "Plot a time-averaged radial profile with its spread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd, "plot", &a.cfg.RprofPP.Plot, plot)
			override(cmd, "degree", &a.cfg.RprofPP.Degree, degree)
			override(cmd, "sdump", &a.cfg.RprofTavePP.Sdump, sdump)
			override(cmd, "edump", &a.cfg.RprofTavePP.Edump, edump)
			override(cmd, "error", &a.cfg.RprofTavePP.Error, errKind)
			return a.withPost(cmd, &flags, func(f *postfile.File) error {
				cfg := a.cfg
				last := cfg.RprofTavePP.Edump
				if last == 0 {
					chks, err := f.Checkpoints()
					if err != nil {
						return err
					}
					if len(chks) == 0 {
						return errors.New("post file has no checkpoint")
					}
					last = chks[len(chks)-1].IDump
				}
				ts := f.Range(cfg.FortPP.Idump, last, cfg.RprofTavePP.Sdump)
				name, deg := cfg.RprofPP.Plot, cfg.RprofPP.Degree
				mean, err := ts.Rprof(name, deg)
				if err != nil {
					return err
				}
				ps := []plots.Plotter{plots.Rprof{
					Label:  mean.Name,
					Radius: mean.Radius,
					Values: mean.Values,
					Marks:  cfg.Plotting.Rmarks,
					Log:    cfg.Plotting.Log,
				}}
				for k, kind := range cfg.RprofTavePP.Error {
					var area postfile.RprofArea
					if kind == "range" {
						area, err = ts.RprofRange(name, deg)
					} else {
						area, err = ts.RprofStd(name, deg)
					}
					if err != nil {
						return err
					}
					ps = append(ps, plots.Area{
						Label:  area.Name,
						Radius: area.Radius,
						Bottom: area.Bottom,
						Top:    area.Top,
						Log:    cfg.Plotting.Log,
						Alpha:  areaAlphas[k],
					})
				}
				title := fmt.Sprintf("checkpoints %d:%d:%d", cfg.FortPP.Idump, last, cfg.RprofTavePP.Sdump)
				fig := plots.SameAxes(true, ps...).WithTitle(title)
				return a.save(fig, fmt.Sprintf("rprof_deg_%d_tave_%s.pdf", deg, name))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&plot, "plot", "", "profile to plot (default rho)")
	cmd.Flags().IntVar(&degree, "degree", 0, "moment degree (default 1)")
	cmd.Flags().IntVar(&sdump, "sdump", 0, "checkpoint step (default 1)")
	cmd.Flags().IntVar(&edump, "edump", 0, "last checkpoint (default the last one in the file)")
	cmd.Flags().StringSliceVar(&errKind, "error", nil, "spread areas: std, range (default std)")
	return cmd
}

func lmaxCmd(a *app) *cobra.Command {
	var (
		flags  postFlags
		normdr bool
	)
	cmd := &cobra.Command{
		Use:   "lmax",
		Short: "Plot the statistics of the maximal penetration depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd, "normdr", &a.cfg.Lmax.Normdr, normdr)
			return a.withPost(cmd, &flags, func(f *postfile.File) error {
				conv, err := f.LMax("conv")
				if err != nil {
					return err
				}
				ke, err := f.LMax("ke")
				if err != nil {
					return err
				}
				if a.cfg.Lmax.Normdr {
					dr, err := meanSpacing(f)
					if err != nil {
						return err
					}
					floats.Scale(1/dr, conv.Values)
					floats.Scale(1/dr, ke.Values)
				}
				fig, err := plots.Matrix(1, 3,
					plots.Hist{Label: conv.Name, Values: conv.Values},
					plots.Hist{Label: ke.Name, Values: ke.Values},
					plots.Series{Label: conv.Name, Time: conv.Time, Values: conv.Values},
				)
				if err != nil {
					return err
				}
				fig.Axes[2].Plotters = append(fig.Axes[2].Plotters,
					plots.Series{Label: ke.Name, Time: ke.Time, Values: ke.Values})
				fig.Axes[2].Legend = true
				return a.save(fig.WithTitle("lmax"), "lmax_hist.pdf")
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&normdr, "normdr", false, "express depths in radial cells")
	return cmd
}

// meanSpacing is the mean radial spacing of the evaluation grid of the
// first checkpoint.
func meanSpacing(f *postfile.File) (float64, error) {
	chks, err := f.Checkpoints()
	if err != nil {
		return 0, err
	}
	if len(chks) == 0 {
		return 0, errors.New("post file has no checkpoint")
	}
	rad, err := chks[0].PPGrid("rad")
	if err != nil {
		return 0, err
	}
	if len(rad) < 2 {
		return 0, fmt.Errorf("radial grid of checkpoint %d has %d points", chks[0].IDump, len(rad))
	}
	dr := make([]float64, len(rad)-1)
	floats.SubTo(dr, rad[1:], rad[:len(rad)-1])
	return stat.Mean(dr, nil), nil
}
