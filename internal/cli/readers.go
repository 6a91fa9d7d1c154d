package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/mutools/internal/fgong"
	"github.com/banshee-data/mutools/internal/lscale"
	"github.com/banshee-data/mutools/internal/mesa1d"
	"github.com/banshee-data/mutools/internal/plots"
)

// plotFlags registers the flags shared by the auxiliary file commands.
type plotFlags struct {
	figdir string
	rmarks []float64
	log    bool
}

func (f *plotFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.figdir, "figdir", "", "output directory for figures (default figures)")
	cmd.Flags().Float64SliceVar(&f.rmarks, "rmarks", nil, "radii to mark")
	cmd.Flags().BoolVar(&f.log, "log", false, "logarithmic vertical axis")
}

func (f *plotFlags) apply(cmd *cobra.Command, a *app) {
	override(cmd, "figdir", &a.cfg.Core.Figdir, f.figdir)
	override(cmd, "rmarks", &a.cfg.Plotting.Rmarks, f.rmarks)
	override(cmd, "log", &a.cfg.Plotting.Log, f.log)
}

func lscaleCmd(a *app) *cobra.Command {
	var (
		flags plotFlags
		tfile string
	)
	cmd := &cobra.Command{
		Use:   "lscale",
		Short: "Plot the temperature perturbation ratio of an lscale file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, a)
			override(cmd, "tfile", &a.cfg.Lscale.Tfile, tfile)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			d, err := lscale.ReadFile(cfg.Lscale.Tfile)
			if err != nil {
				return err
			}
			cm, err := plots.ColorMap("diverging")
			if err != nil {
				return err
			}
			fig := plots.SinglePlot(plots.SphericalScalar{
				Label:     "temp_pert/temp_prof",
				RWalls:    d.Rad,
				TWalls:    d.Theta,
				Values:    d.TempPertRatio(),
				ColorMap:  cm,
				Symmetric: true,
				RMarks:    cfg.Plotting.Rmarks,
			}).WithTitle(fmt.Sprintf("t=%.2f", d.Header.Time))
			return a.save(fig, "lscale_temp_pert.pdf")
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&tfile, "tfile", "", "lscale binary file (default lscale.bin)")
	return cmd
}

func mesa1dCmd(a *app) *cobra.Command {
	var (
		flags plotFlags
		mfile string
		plot  []string
	)
	cmd := &cobra.Command{
		Use:   "mesa1d",
		Short: "Plot radial profiles of a lyon1d binary file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, a)
			override(cmd, "mfile", &a.cfg.Mesa1d.Mfile, mfile)
			override(cmd, "plot", &a.cfg.Mesa1d.Plot, plot)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			d, err := mesa1d.ReadFile(cfg.Mesa1d.Mfile)
			if err != nil {
				return err
			}
			radius := d.Radius()
			for _, name := range cfg.Mesa1d.Plot {
				prof, err := d.Rprof(name)
				if err != nil {
					return fmt.Errorf("%w (known: %s)", err, strings.Join(d.Columns(), ", "))
				}
				fig := plots.SinglePlot(plots.Rprof{
					Label:  name,
					Radius: radius,
					Values: prof,
					Marks:  cfg.Plotting.Rmarks,
					Log:    cfg.Plotting.Log,
				})
				if err := a.save(fig, fmt.Sprintf("rprof_mesa_%s.pdf", name)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&mfile, "mfile", "", "lyon1d binary file (default lyon1d.bin)")
	cmd.Flags().StringSliceVar(&plot, "plot", nil, "profiles to plot (default rho,temperature)")
	return cmd
}

func fgongCmd(a *app) *cobra.Command {
	var (
		flags plotFlags
		file  string
		plot  string
	)
	cmd := &cobra.Command{
		Use:   "fgong",
		Short: "Plot a profile of an FGONG stellar model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, a)
			override(cmd, "file", &a.cfg.Fgong.File, file)
			override(cmd, "plot", &a.cfg.Fgong.Plot, plot)
			cfg, err := a.validated()
			if err != nil {
				return err
			}
			m, err := fgong.ReadFile(cfg.Fgong.File)
			if err != nil {
				return err
			}
			quantities := m.Quantities()
			get, ok := quantities[cfg.Fgong.Plot]
			if !ok {
				known := make([]string, 0, len(quantities))
				for k := range quantities {
					known = append(known, k)
				}
				sort.Strings(known)
				return fmt.Errorf("unknown FGONG quantity %q (known: %s)", cfg.Fgong.Plot, strings.Join(known, ", "))
			}
			fig := plots.SinglePlot(plots.Rprof{
				Label:  cfg.Fgong.Plot,
				Radius: m.Radius(),
				Values: get(),
				Marks:  cfg.Plotting.Rmarks,
				Log:    cfg.Plotting.Log,
			})
			return a.save(fig, fmt.Sprintf("fgong_%s.pdf", cfg.Fgong.Plot))
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "FGONG model file (default model.fgong)")
	cmd.Flags().StringVar(&plot, "plot", "", "quantity to plot (default bv_freq)")
	return cmd
}
