package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Core.Path != "params.nml" {
		t.Errorf("Core.Path = %q, want params.nml", cfg.Core.Path)
	}
	if cfg.Field.Plot != "vel_ampl" {
		t.Errorf("Field.Plot = %q, want vel_ampl", cfg.Field.Plot)
	}
	if cfg.RprofPP.Degree != 1 {
		t.Errorf("RprofPP.Degree = %d, want 1", cfg.RprofPP.Degree)
	}
	want := []string{"pen_depth_conv", "pen_depth_ke", "r_schwarz_max"}
	if diff := cmp.Diff(want, cfg.ContourPP.Plot); diff != "" {
		t.Errorf("ContourPP.Plot mismatch (-want +got):\n%s", diff)
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "mutools.toml", `
[core]
path = "run/params.nml"
dumps = "0:10:2,-1"
workers = 4

[plotting]
rmarks = [1.5, 2.5]
log = true

[rprof_tave_pp]
edump = 40
error = ["std", "range"]

[igw]
ells = [1, 2]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "run/params.nml", cfg.Core.Path)
	assert.Equal(t, "0:10:2,-1", cfg.Core.Dumps)
	assert.Equal(t, 4, cfg.Core.Workers)
	assert.Equal(t, "figures", cfg.Core.Figdir, "unset keys keep their default")
	assert.Equal(t, []float64{1.5, 2.5}, cfg.Plotting.Rmarks)
	assert.True(t, cfg.Plotting.Log)
	assert.Equal(t, 40, cfg.RprofTavePP.Edump)
	assert.Equal(t, 1, cfg.RprofTavePP.Sdump)
	assert.Equal(t, []string{"std", "range"}, cfg.RprofTavePP.Error)
	assert.Equal(t, []int{1, 2}, cfg.IGW.Ells)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errMsg  string
	}{
		{"extension", "mutools.json", `{}`, ".toml extension"},
		{"syntax", "bad.toml", "[core\npath=", "parse config TOML"},
		{"unknown key", "unknown.toml", "[core]\nfigdri = \"x\"\n[nope]\na = 1\n", "core.figdri"},
		{"bad error kind", "err.toml", "[rprof_tave_pp]\nerror = [\"var\"]\n", "std or range"},
		{"bad degree", "deg.toml", "[rprof_pp]\ndegree = 0\n", "rprof_pp.degree"},
		{"bad format", "fmt.toml", "[info]\nformat = \"json\"\n", "info.format"},
		{"edump before idump", "edump.toml", "[fort_pp]\nidump = 10\n[rprof_tave_pp]\nedump = 5\n", "edump"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.file, tc.content)
			_, err := Load(path)
			require.Error(t, err)
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("error %q does not mention %q", err, tc.errMsg)
			}
		})
	}
}

func TestLoadTooLarge(t *testing.T) {
	path := writeConfig(t, "big.toml", "# "+strings.Repeat("x", maxFileSize)+"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := writeConfig(t, "x.toml", "[field]\nvelarrow = true\n")
	cfg, err = LoadOptional(path)
	require.NoError(t, err)
	assert.True(t, cfg.Field.Velarrow)
}
