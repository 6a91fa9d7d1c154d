package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/mutools/internal/h5"
	"github.com/banshee-data/mutools/internal/postfile"
	"github.com/banshee-data/mutools/internal/runner"
	"github.com/banshee-data/mutools/internal/testutil"
	"github.com/banshee-data/mutools/internal/version"
)

// fixture is a run directory with a config file pointing at it.
type fixture struct {
	dir     string
	parfile string
	figdir  string
	config  string
	app     *app
	builder *runner.MockBuilder
	post    *h5.Mem
	written map[string]*h5.Mem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		parfile: testutil.DefaultRun().Write(t, dir),
		figdir:  filepath.Join(dir, "figures"),
		config:  filepath.Join(dir, "mutools.toml"),
		builder: runner.NewMockBuilder(),
		post:    newPostMem(t),
		written: map[string]*h5.Mem{},
	}
	toml := fmt.Sprintf("[core]\npath = %q\nfigdir = %q\nworkers = 2\n\n[cache]\npath = %q\n",
		f.parfile, f.figdir, filepath.Join(dir, "cache", "cache.db"))
	require.NoError(t, os.WriteFile(f.config, []byte(toml), 0o644))

	f.app = newApp()
	f.app.builder = f.builder
	f.app.openPost = func(string) (*postfile.File, error) { return postfile.New(f.post), nil }
	f.app.createH5 = func(path string) (h5.Writer, error) {
		m := h5.NewMem()
		f.written[path] = m
		return m, nil
	}
	return f
}

// run executes mutools with args and returns stdout.
func (f *fixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(f.app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, "", args...)
	require.NoError(t, err, strings.Join(args, " "))
	return out
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size(), path)
}

// newPostMem builds checkpoints 1..3 of a post file on a 3 radius x 4
// theta grid.
func newPostMem(t *testing.T) *h5.Mem {
	t.Helper()
	m := h5.NewMem()
	for idump := 1; idump <= 3; idump++ {
		base := fmt.Sprintf("checkpoints/%05d/", idump)
		w := func(name string, dims []int, data []float64) {
			require.NoError(t, m.WriteDataset(base+name, dims, data))
		}
		d := float64(idump)
		w("pp_parameters/eval_grid/rad", []int{3}, []float64{1, 1.5, 2})
		w("pp_parameters/eval_grid/theta", []int{4}, []float64{0.4, 1.2, 2, 2.8})
		w("pp_parameters/r_schwarz_preset", []int{1}, []float64{1.5})
		w("parameters/time", []int{1}, []float64{100 * d})
		temp := make([]float64, 12)
		for i := range temp {
			temp[i] = float64(i) + d
		}
		w("Field/temp", []int{4, 3}, temp)
		w("Contour_field/pen_depth_conv", []int{4}, []float64{1.6, 1.7, 1.5 + 0.1*d, 1.6})
		w("Contour_field/pen_depth_ke", []int{4}, []float64{1.8, 1.9, 1.7 + 0.05*d, 1.8})
		w("Moment_rad/ekin", []int{2, 3}, []float64{d, 2 * d, 3 * d, 10 * d, 20 * d, 30 * d})
		m.SetAttr(base+"Moment_rad/ekin", "degree", []float64{1, 2})
	}
	return m
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "version")
	assert.Contains(t, out, version.Version)
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "info")
	assert.Contains(t, out, "Dumps:  4")
	assert.Contains(t, out, "Prefix: run_")
	assert.NotContains(t, out, "Tconv")

	out = f.mustRun(t, "info", "--format", "yaml", "--tconv")
	var got runInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, f.parfile, got.Parfile)
	assert.Equal(t, 4, got.Dumps)
	require.NotNil(t, got.Tconv)
	assert.Positive(t, *got.Tconv)

	_, err := f.run(t, "", "info", "--format", "xml")
	require.Error(t, err)
}

func TestFieldAndMovie(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "field", "--plot", "rho", "--dumps", "0:2")
	assertFile(t, filepath.Join(f.figdir, "rho_00000000.png"))
	assertFile(t, filepath.Join(f.figdir, "rho_00000001.png"))
	assert.NoFileExists(t, filepath.Join(f.figdir, "rho_00000002.png"))

	f.mustRun(t, "field", "--dumps", "-1", "--velarrow")
	assertFile(t, filepath.Join(f.figdir, "vel_ampl_00000003.png"))

	f.mustRun(t, "movie", "--plot", "rho", "--framerate", "2")
	for i := 0; i < 4; i++ {
		assertFile(t, filepath.Join(f.figdir, "frames_rho", fmt.Sprintf("%08d.png", i)))
	}
	cmd := f.builder.LastCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ffmpeg", cmd.Name)
	assert.Contains(t, cmd.Args, "2")
	assert.Equal(t, filepath.Join(f.figdir, "rho.mp4"), cmd.Args[len(cmd.Args)-1])

	_, err := f.run(t, "", "field", "--dumps", "7")
	require.Error(t, err, "empty selection")
}

func TestTseriesProfAndCache(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "tseries", "--plot", "rho")
	assertFile(t, filepath.Join(f.figdir, "tseries_rho.pdf"))
	f.mustRun(t, "prof", "--plot", "rho", "--markers", "2", "--length-scale", "2")
	assertFile(t, filepath.Join(f.figdir, "prof_rho.pdf"))

	out := f.mustRun(t, "cache", "stats")
	var st struct {
		Reductions int `yaml:"reductions"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &st))
	assert.Positive(t, st.Reductions)

	out = f.mustRun(t, "cache", "purge", "--path", f.parfile)
	assert.Contains(t, out, "removed")
	out = f.mustRun(t, "cache", "stats")
	require.NoError(t, yaml.Unmarshal([]byte(out), &st))
	assert.Zero(t, st.Reductions)
}

func TestIGW(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "spectra")
	f.mustRun(t, "igw", "--ells", "0", "--output", out)
	m, ok := f.written[filepath.Join(out, "igw_vel_1_ell_0_dumps_0:4:1.h5")]
	require.True(t, ok, "spectrum written under its conventional name")
	assert.NotNil(t, m)
}

func TestPostCommands(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "pendepth", "--idump", "2")
	assertFile(t, filepath.Join(f.figdir, "pendepth.pdf"))

	f.mustRun(t, "field_pp", "--plot", "temp", "--rmarks", "1.5")
	assertFile(t, filepath.Join(f.figdir, "field_temp.pdf"))

	f.mustRun(t, "contour_pp", "--plot", "pen_depth_conv,pen_depth_ke", "--over", "temp", "--rmarks", "1.5")
	assertFile(t, filepath.Join(f.figdir, "contour_pen_depth_conv_pen_depth_ke__over_temp.pdf"))

	f.mustRun(t, "rprof_pp", "--plot", "ekin", "--degree", "2", "--log")
	assertFile(t, filepath.Join(f.figdir, "rprof_ekin.pdf"))

	f.mustRun(t, "rprof_tave_pp", "--plot", "ekin", "--error", "std,range")
	assertFile(t, filepath.Join(f.figdir, "rprof_deg_1_tave_ekin.pdf"))

	f.mustRun(t, "lmax", "--normdr")
	assertFile(t, filepath.Join(f.figdir, "lmax_hist.pdf"))

	_, err := f.run(t, "", "rprof_pp", "--plot", "ekin", "--degree", "3")
	require.ErrorIs(t, err, postfile.ErrNoDegree)
	_, err = f.run(t, "", "rprof_tave_pp", "--error", "minmax")
	require.Error(t, err)
}

func TestMeanSpacing(t *testing.T) {
	dr, err := meanSpacing(postfile.New(newPostMem(t)))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, dr, 1e-12)

	_, err = meanSpacing(postfile.New(h5.NewMem()))
	require.Error(t, err)
}

func TestContourName(t *testing.T) {
	assert.Equal(t, "contour_a_b.pdf", contourName([]string{"a", "b"}, ""))
	assert.Equal(t, "contour_a__over_rho.pdf", contourName([]string{"a"}, "rho"))
}

func TestDumpRange(t *testing.T) {
	start, stop, step := dumpRange([]int{2, 4, 6})
	assert.Equal(t, [3]int{2, 7, 2}, [3]int{start, stop, step})
	start, stop, step = dumpRange([]int{5})
	assert.Equal(t, [3]int{5, 6, 1}, [3]int{start, stop, step})
}

const batchScript = `#!/bin/bash
srun ./music params_run.nml > run_03.out 2>&1
`

func writeRestartRun(t *testing.T, dir string) {
	t.Helper()
	nml := "&io\n  input = 'init.music'\n  dataoutput = 'out/run_03_'\n/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch1"), []byte(batchScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "params_run.nml"), []byte(nml), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out", "run_03_00000007.music"), nil, 0o644))
}

func TestRestart(t *testing.T) {
	f := newFixture(t)
	writeRestartRun(t, f.dir)

	out, err := f.run(t, "n\n", "restart", "--dir", f.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "batch1: run_03.out > run_04.out")
	assert.Contains(t, out, "aborted")
	assert.Empty(t, f.builder.Lines())

	_, err = f.run(t, "y\n", "restart", "--dir", f.dir, "--batch", "batch1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sbatch batch1"}, f.builder.Lines())
	assert.Equal(t, f.dir, f.builder.LastCommand().Dir)

	got, err := os.ReadFile(filepath.Join(f.dir, "params_run.nml"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "input = 'out/run_03_00000007.music'")
	assert.Contains(t, string(got), "dataoutput = 'out/run_04_'")
}

func TestRenumber(t *testing.T) {
	f := newFixture(t)
	in := filepath.Join(f.dir, "dumps")
	require.NoError(t, os.MkdirAll(in, 0o755))
	for _, name := range []string{"b_00000010.music", "a_00000003.music"} {
		require.NoError(t, os.WriteFile(filepath.Join(in, name), []byte(name), 0o644))
	}
	outDir := filepath.Join(f.dir, "renumbered")
	out := f.mustRun(t, "renumber", "--path-in", in, "--path-out", outDir)
	assert.Contains(t, out, "moved 2 dumps")

	got, err := os.ReadFile(filepath.Join(outDir, "00000001.music"))
	require.NoError(t, err)
	assert.Equal(t, "a_00000003.music", string(got))

	_, err = f.run(t, "", "renumber", "--path-in", in, "--path-out", outDir)
	require.Error(t, err)
}

func TestOverride(t *testing.T) {
	f := newFixture(t)
	cmd := fieldCmd(f.app)
	require.NoError(t, cmd.ParseFlags([]string{"--plot", "rho"}))
	plot, velarrow := "default", true
	override(cmd, "plot", &plot, "rho")
	override(cmd, "velarrow", &velarrow, false)
	assert.Equal(t, "rho", plot)
	assert.True(t, velarrow, "unset flags keep the configured value")
}
