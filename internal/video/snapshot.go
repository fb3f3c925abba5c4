package video

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-meetsync/internal/ffmpeg"
)

// Snapshotter writes full-resolution PNG stills of a video.
type Snapshotter struct {
	ffmpegPath string
	videoPath  string
	cmd        commandRunner
}

// NewSnapshotter creates a Snapshotter for videoPath.
func NewSnapshotter(ffmpegPath, videoPath string, opts ...SnapshotterOption) *Snapshotter {
	s := &Snapshotter{ffmpegPath: ffmpegPath, videoPath: videoPath, cmd: osCommandRunner{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SnapshotterOption configures a Snapshotter.
type SnapshotterOption func(*Snapshotter)

// WithSnapshotCommandRunner sets a custom command runner (for testing).
func WithSnapshotCommandRunner(r commandRunner) SnapshotterOption {
	return func(s *Snapshotter) { s.cmd = r }
}

// Save writes the frame at t to outPath.
func (s *Snapshotter) Save(ctx context.Context, t time.Duration, outPath string) error {
	args := []string{
		"-hide_banner", "-y",
		"-ss", ffmpeg.FormatTime(t),
		"-i", s.videoPath,
		"-frames:v", "1",
		"-an",
		outPath,
	}
	_, stderr, err := s.cmd.Output(ctx, s.ffmpegPath, args)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: snapshot at %s: %s", ffmpeg.ErrMalformedMedia,
			ffmpeg.FormatTime(t), strings.TrimSpace(lastLine(string(stderr))))
	}
	return nil
}

// SaveAll writes one PNG per candidate into dir, in parallel.
// Returned paths are indexed like cands.
func (s *Snapshotter) SaveAll(ctx context.Context, cands []Candidate, dir string, parallel int) ([]string, error) {
	paths := make([]string, len(cands))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))

	for i, c := range cands {
		paths[i] = filepath.Join(dir, fmt.Sprintf("candidate_%04d.png", c.Index))
		g.Go(func() error {
			return s.Save(ctx, c.At, paths[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
