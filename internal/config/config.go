// Package config holds the settings of every mutools command. Defaults come
// from Default, an optional TOML file overrides them and command-line flags
// override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultConfigPath is the file picked up from the working directory when
// no --config flag is given.
const DefaultConfigPath = "mutools.toml"

// maxFileSize caps the size of a config file.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Core settings shared by the commands that read a run.
type Core struct {
	// Path is the parameter file of the run.
	Path string `toml:"path"`
	// Dumps is a selection such as "0:10:2,-1"; empty selects all dumps.
	Dumps   string `toml:"dumps"`
	Figdir  string `toml:"figdir"`
	Workers int    `toml:"workers"`
}

type Field struct {
	Plot     string `toml:"plot"`
	Velarrow bool   `toml:"velarrow"`
}

type Restart struct {
	Batch []string `toml:"batch"`
}

// FortPP locates the post_par file and checkpoint.
type FortPP struct {
	Postfile string `toml:"postfile"`
	Idump    int    `toml:"idump"`
}

type Plotting struct {
	Rmarks []float64 `toml:"rmarks"`
	Log    bool      `toml:"log"`
}

type FieldPP struct {
	Plot string `toml:"plot"`
}

type ContourPP struct {
	Plot []string `toml:"plot"`
	Over string   `toml:"over"`
}

type RprofPP struct {
	Plot   string `toml:"plot"`
	Degree int    `toml:"degree"`
}

// RprofTavePP averages rprofs over checkpoints idump, idump+sdump, ...
// up to edump included. Edump zero means the last checkpoint.
type RprofTavePP struct {
	Sdump int      `toml:"sdump"`
	Edump int      `toml:"edump"`
	Error []string `toml:"error"`
}

type Lmax struct {
	Normdr bool `toml:"normdr"`
}

type Lscale struct {
	Tfile string `toml:"tfile"`
}

type Mesa1d struct {
	Mfile string   `toml:"mfile"`
	Plot  []string `toml:"plot"`
}

type Fgong struct {
	File string `toml:"file"`
	Plot string `toml:"plot"`
}

type Tseries struct {
	Plot string `toml:"plot"`
}

type Prof struct {
	Plot        string    `toml:"plot"`
	Markers     []float64 `toml:"markers"`
	LengthScale float64   `toml:"length_scale"`
}

type Info struct {
	Tconv  bool   `toml:"tconv"`
	Format string `toml:"format"`
}

type IGW struct {
	Field      string  `toml:"field"`
	Ells       []int   `toml:"ells"`
	SpacingTol float64 `toml:"spacing_tol"`
	SHTTol     float64 `toml:"sht_tol"`
}

type Renumber struct {
	PathIn  string `toml:"path_in"`
	PathOut string `toml:"path_out"`
}

type Movie struct {
	Plot      string `toml:"plot"`
	Framerate int    `toml:"framerate"`
	FramesDir string `toml:"frames_dir"`
}

// Cache configures the reductions cache. An empty Path selects the user
// cache directory.
type Cache struct {
	Path    string `toml:"path"`
	Disable bool   `toml:"disable"`
}

// Config is the root configuration.
type Config struct {
	Core        Core        `toml:"core"`
	Field       Field       `toml:"field"`
	Restart     Restart     `toml:"restart"`
	FortPP      FortPP      `toml:"fort_pp"`
	Plotting    Plotting    `toml:"plotting"`
	FieldPP     FieldPP     `toml:"field_pp"`
	ContourPP   ContourPP   `toml:"contour_pp"`
	RprofPP     RprofPP     `toml:"rprof_pp"`
	RprofTavePP RprofTavePP `toml:"rprof_tave_pp"`
	Lmax        Lmax        `toml:"lmax"`
	Lscale      Lscale      `toml:"lscale"`
	Mesa1d      Mesa1d      `toml:"mesa1d"`
	Fgong       Fgong       `toml:"fgong"`
	Tseries     Tseries     `toml:"tseries"`
	Prof        Prof        `toml:"prof"`
	Info        Info        `toml:"info"`
	IGW         IGW         `toml:"igw"`
	Renumber    Renumber    `toml:"renumber"`
	Movie       Movie       `toml:"movie"`
	Cache       Cache       `toml:"cache"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Core:        Core{Path: "params.nml", Figdir: "figures"},
		Field:       Field{Plot: "vel_ampl"},
		FortPP:      FortPP{Postfile: "post.h5", Idump: 1},
		FieldPP:     FieldPP{Plot: "rho"},
		ContourPP:   ContourPP{Plot: []string{"pen_depth_conv", "pen_depth_ke", "r_schwarz_max"}},
		RprofPP:     RprofPP{Plot: "rho", Degree: 1},
		RprofTavePP: RprofTavePP{Sdump: 1, Error: []string{"std"}},
		Lscale:      Lscale{Tfile: "lscale.bin"},
		Mesa1d:      Mesa1d{Mfile: "lyon1d.bin", Plot: []string{"rho", "temperature"}},
		Fgong:       Fgong{File: "model.fgong", Plot: "bv_freq"},
		Tseries:     Tseries{Plot: "ekin"},
		Prof:        Prof{Plot: "vel_ampl"},
		Info:        Info{Format: "text"},
		IGW:         IGW{Field: "vel_1", Ells: []int{1, 2, 3, 4, 5}, SpacingTol: 0.1, SHTTol: 0.15},
		Renumber:    Renumber{PathIn: ".", PathOut: "renumbered"},
		Movie:       Movie{Plot: "vel_ampl", Framerate: 5},
	}
}

// Load reads a TOML file over the defaults. The file must have a .toml
// extension, be under 1MB, and only use known keys.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".toml" {
		return nil, fmt.Errorf("config file must have .toml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(cleanPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown config keys in %s: %s", cleanPath, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOptional loads path when it is set, DefaultConfigPath when that file
// exists, and the defaults otherwise.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return Load(DefaultConfigPath)
	}
	return Default(), nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Core.Workers < 0 {
		return fmt.Errorf("core.workers must be non-negative, got %d", c.Core.Workers)
	}
	if c.FortPP.Idump < 0 {
		return fmt.Errorf("fort_pp.idump must be non-negative, got %d", c.FortPP.Idump)
	}
	if c.RprofPP.Degree < 1 {
		return fmt.Errorf("rprof_pp.degree must be positive, got %d", c.RprofPP.Degree)
	}
	if c.RprofTavePP.Sdump < 1 {
		return fmt.Errorf("rprof_tave_pp.sdump must be positive, got %d", c.RprofTavePP.Sdump)
	}
	if c.RprofTavePP.Edump != 0 && c.RprofTavePP.Edump < c.FortPP.Idump {
		return fmt.Errorf("rprof_tave_pp.edump %d is before fort_pp.idump %d", c.RprofTavePP.Edump, c.FortPP.Idump)
	}
	if n := len(c.RprofTavePP.Error); n > 2 {
		return fmt.Errorf("rprof_tave_pp.error takes at most 2 kinds, got %d", n)
	}
	for _, e := range c.RprofTavePP.Error {
		if e != "std" && e != "range" {
			return fmt.Errorf("rprof_tave_pp.error must be std or range, got %q", e)
		}
	}
	if len(c.IGW.Ells) == 0 {
		return fmt.Errorf("igw.ells must not be empty")
	}
	for _, l := range c.IGW.Ells {
		if l < 0 {
			return fmt.Errorf("igw.ells must be non-negative, got %d", l)
		}
	}
	if c.IGW.SpacingTol <= 0 || c.IGW.SHTTol <= 0 {
		return fmt.Errorf("igw tolerances must be positive")
	}
	if c.Movie.Framerate < 1 {
		return fmt.Errorf("movie.framerate must be positive, got %d", c.Movie.Framerate)
	}
	switch c.Info.Format {
	case "text", "yaml":
	default:
		return fmt.Errorf("info.format must be text or yaml, got %q", c.Info.Format)
	}
	return nil
}
