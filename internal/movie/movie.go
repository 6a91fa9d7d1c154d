// Package movie renders a sequence of figures to PNG frames and assembles
// them into an mp4 with ffmpeg.
package movie

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/mutools/internal/monitoring"
	"github.com/banshee-data/mutools/internal/plots"
	"github.com/banshee-data/mutools/internal/runner"
)

// ErrNoFrames is returned when a movie would have no frame.
var ErrNoFrames = errors.New("movie: no frames")

// FramePattern names frame files inside the frames directory.
const FramePattern = "%08d.png"

// DefaultFramerate is the number of frames shown per second.
const DefaultFramerate = 5

// FrameFunc builds the figure of frame i.
type FrameFunc func(ctx context.Context, i int) (*plots.Figure, error)

// Movie renders frames into FramesDir and encodes them with ffmpeg.
type Movie struct {
	FramesDir string
	Runner    runner.Runner
	Framerate int
	Workers   int
}

// FramePath returns the path of frame i.
func (m *Movie) FramePath(i int) string {
	return filepath.Join(m.FramesDir, fmt.Sprintf(FramePattern, i))
}

// RenderFrames writes n frames concurrently.
func (m *Movie) RenderFrames(ctx context.Context, n int, frame FrameFunc) error {
	if n <= 0 {
		return ErrNoFrames
	}
	if err := os.MkdirAll(m.FramesDir, 0o755); err != nil {
		return fmt.Errorf("movie: %w", err)
	}
	workers := m.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fig, err := frame(ctx, i)
			if err != nil {
				return fmt.Errorf("movie: frame %d: %w", i, err)
			}
			if err := fig.Save(m.FramePath(i)); err != nil {
				return fmt.Errorf("movie: frame %d: %w", i, err)
			}
			monitoring.Debugf("movie: wrote %s", m.FramePath(i))
			return nil
		})
	}
	return g.Wait()
}

// Encode runs ffmpeg over the frames of FramesDir and writes out.
func (m *Movie) Encode(ctx context.Context, out string) error {
	rate := m.Framerate
	if rate <= 0 {
		rate = DefaultFramerate
	}
	_, err := m.Runner.Run(ctx, "", "ffmpeg", "-y",
		"-framerate", strconv.Itoa(rate),
		"-i", filepath.Join(m.FramesDir, FramePattern),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		out,
	)
	if err != nil {
		return fmt.Errorf("movie: encode %s: %w", out, err)
	}
	monitoring.Logf("movie: wrote %s", out)
	return nil
}

// Render writes the n frames and encodes them to out.
func (m *Movie) Render(ctx context.Context, out string, n int, frame FrameFunc) error {
	if err := m.RenderFrames(ctx, n, frame); err != nil {
		return err
	}
	return m.Encode(ctx, out)
}
