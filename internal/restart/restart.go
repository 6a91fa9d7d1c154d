// Package restart prepares the next leg of a MUSIC batch run: it bumps the
// log number in the batch script, points the namelist at the latest dump
// and submits the script with sbatch.
package restart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/mutools/internal/fsutil"
	"github.com/banshee-data/mutools/internal/monitoring"
	"github.com/banshee-data/mutools/internal/namelist"
	"github.com/banshee-data/mutools/internal/runner"
)

var (
	// ErrBatchFormat is returned when a batch script does not end with
	// "<params> ... <log>.out ..." as MUSIC job scripts do.
	ErrBatchFormat = errors.New("restart: unexpected batch file layout")
	// ErrNoDump is returned when no dump of the previous leg exists.
	ErrNoDump = errors.New("restart: no dump to restart from")
	// ErrAborted is returned when the user does not confirm.
	ErrAborted = errors.New("restart: aborted")
)

// Plan lists the substitutions of one restart.
type Plan struct {
	Batch     string
	Params    string
	OldLog    string
	NewLog    string
	OldInput  string
	NewInput  string
	OldOutput string
	NewOutput string
}

// Print writes the planned changes, one "file: old > new" line each.
func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "%s: %s > %s\n", p.Batch, p.OldLog, p.NewLog)
	fmt.Fprintf(w, "%s: %s > %s\n", p.Params, p.OldInput, p.NewInput)
	fmt.Fprintf(w, "%s: %s > %s\n", p.Params, p.OldOutput, p.NewOutput)
}

// Restarter restarts batch runs found in Dir.
type Restarter struct {
	Dir    string
	FS     fsutil.FileSystem
	Runner runner.Runner
	Prompt Prompter
	Out    io.Writer
}

func (r *Restarter) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Dir, p)
}

// BatchFiles returns explicit when non-empty, otherwise the batch* files
// of Dir.
func (r *Restarter) BatchFiles(explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	matches, err := r.FS.Glob(filepath.Join(r.Dir, "batch*"))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Base(m)
	}
	return out, nil
}

// Plan computes the restart of batch without touching any file.
func (r *Restarter) Plan(batch string) (*Plan, error) {
	if err := fsutil.WithinDir(batch, r.Dir); err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}
	content, err := r.FS.ReadFile(r.path(batch))
	if err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}
	parts := strings.Fields(string(content))
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: %s", ErrBatchFormat, batch)
	}
	oldLog := parts[len(parts)-2]
	if len(oldLog) < 6 || !strings.HasSuffix(oldLog, ".out") {
		return nil, fmt.Errorf("%w: %s: log %q", ErrBatchFormat, batch, oldLog)
	}
	num, err := strconv.Atoi(oldLog[len(oldLog)-6 : len(oldLog)-4])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: log %q", ErrBatchFormat, batch, oldLog)
	}
	next := fmt.Sprintf("%02d", num+1)

	params := parts[len(parts)-4]
	if err := fsutil.WithinDir(params, r.Dir); err != nil {
		return nil, fmt.Errorf("restart: %s: %w", batch, err)
	}
	raw, err := r.FS.ReadFile(r.path(params))
	if err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}
	nml, err := namelist.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("restart: %s: %w", params, err)
	}
	oldInput, err := nml.String("io", "input")
	if err != nil {
		return nil, fmt.Errorf("restart: %s: %w", params, err)
	}
	oldOutput, err := nml.String("io", "dataoutput")
	if err != nil {
		return nil, fmt.Errorf("restart: %s: %w", params, err)
	}
	if len(oldOutput) < 3 {
		return nil, fmt.Errorf("%w: %s: dataoutput %q", ErrBatchFormat, params, oldOutput)
	}

	dumps, err := r.FS.Glob(r.path(oldOutput) + "*.music")
	if err != nil {
		return nil, err
	}
	if len(dumps) == 0 {
		return nil, fmt.Errorf("%w: %s*.music", ErrNoDump, oldOutput)
	}
	newInput := dumps[len(dumps)-1]
	if !filepath.IsAbs(oldOutput) {
		if rel, err := filepath.Rel(r.Dir, newInput); err == nil {
			newInput = rel
		}
	}

	return &Plan{
		Batch:     batch,
		Params:    params,
		OldLog:    oldLog,
		NewLog:    oldLog[:len(oldLog)-6] + next + ".out",
		OldInput:  oldInput,
		NewInput:  newInput,
		OldOutput: oldOutput,
		NewOutput: oldOutput[:len(oldOutput)-3] + next + "_",
	}, nil
}

// Apply rewrites the batch script and namelist of p and submits the batch.
// Only the first occurrence of each old value is replaced.
func (r *Restarter) Apply(ctx context.Context, p *Plan) error {
	batch, err := r.FS.ReadFile(r.path(p.Batch))
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	content := strings.Replace(string(batch), p.OldLog, p.NewLog, 1)
	if err := r.FS.WriteFile(r.path(p.Batch), []byte(content), 0o644); err != nil {
		return fmt.Errorf("restart: %w", err)
	}

	params, err := r.FS.ReadFile(r.path(p.Params))
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	content = strings.Replace(string(params), p.OldOutput, p.NewOutput, 1)
	content = strings.Replace(content, p.OldInput, p.NewInput, 1)
	if err := r.FS.WriteFile(r.path(p.Params), []byte(content), 0o644); err != nil {
		return fmt.Errorf("restart: %w", err)
	}

	out, err := r.Runner.Run(ctx, r.Dir, "sbatch", p.Batch)
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	monitoring.Logf("%s: %s", p.Batch, strings.TrimSpace(out))
	return nil
}

// Restart plans, prints, asks for confirmation and applies the restart of
// batch. ErrAborted is returned when the user declines.
func (r *Restarter) Restart(ctx context.Context, batch string) error {
	p, err := r.Plan(batch)
	if err != nil {
		return err
	}
	p.Print(r.Out)
	ok, err := r.Prompt.Confirm("Confirm (y/N)?")
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	if !ok {
		return ErrAborted
	}
	return r.Apply(ctx, p)
}
