package video

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/format"
)

// Decoder yields frames of one video stream.
type Decoder interface {
	// Duration returns the stream length.
	Duration(ctx context.Context) (time.Duration, error)
	// FrameAt decodes the frame closest to t and returns it with its actual
	// timestamp, which may differ slightly from t. Past the last frame it
	// returns ErrEndOfStream.
	FrameAt(ctx context.Context, t time.Duration) (Image, time.Duration, error)
}

// Analysis raster defaults. Comparison runs on a downscaled gray image.
const (
	DefaultAnalysisWidth  = 640
	DefaultAnalysisHeight = 360
)

var _ Decoder = (*FFmpegDecoder)(nil)

// FFmpegDecoder seeks with ffmpeg and reads one raw gray frame per call.
type FFmpegDecoder struct {
	ffmpegPath string
	videoPath  string
	width      int
	height     int
	log        logrus.FieldLogger
	cmd        commandRunner

	mu       sync.Mutex
	probed   bool
	duration time.Duration
}

// DecoderOption configures an FFmpegDecoder.
type DecoderOption func(*FFmpegDecoder)

// WithAnalysisSize sets the raster size frames are scaled to.
func WithAnalysisSize(width, height int) DecoderOption {
	return func(d *FFmpegDecoder) {
		if width > 0 && height > 0 {
			d.width, d.height = width, height
		}
	}
}

// WithDecoderLogger sets the logger.
func WithDecoderLogger(l logrus.FieldLogger) DecoderOption {
	return func(d *FFmpegDecoder) {
		if l != nil {
			d.log = l
		}
	}
}

// WithDecoderCommandRunner sets a custom command runner (for testing).
func WithDecoderCommandRunner(r commandRunner) DecoderOption {
	return func(d *FFmpegDecoder) { d.cmd = r }
}

// NewFFmpegDecoder creates a decoder for videoPath.
func NewFFmpegDecoder(ffmpegPath, videoPath string, opts ...DecoderOption) *FFmpegDecoder {
	d := &FFmpegDecoder{
		ffmpegPath: ffmpegPath,
		videoPath:  videoPath,
		width:      DefaultAnalysisWidth,
		height:     DefaultAnalysisHeight,
		log:        discardLogger(),
		cmd:        osCommandRunner{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Duration probes the stream and caches the first successful result.
// Failures are not cached, so a canceled probe can be retried.
func (d *FFmpegDecoder) Duration(ctx context.Context) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.probed {
		return d.duration, nil
	}

	_, stderr, err := d.cmd.Output(ctx, d.ffmpegPath, []string{"-hide_banner", "-i", d.videoPath})
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	// ffmpeg exits 1 without an output file; the header is still printed.
	if err != nil && len(stderr) == 0 {
		return 0, fmt.Errorf("%w: probing %s: %v", ffmpeg.ErrMalformedMedia, d.videoPath, err)
	}
	if !strings.Contains(string(stderr), "Video:") {
		return 0, fmt.Errorf("%w: %s has no video stream", ffmpeg.ErrMalformedMedia, d.videoPath)
	}
	dur, err := ffmpeg.ParseDuration(string(stderr))
	if err != nil {
		return 0, err
	}
	d.duration, d.probed = dur, true
	return dur, nil
}

// ptsTimeRe matches the showinfo filter's presentation timestamp.
var ptsTimeRe = regexp.MustCompile(`pts_time:\s*(-?[0-9.]+)`)

// FrameAt decodes one frame at t scaled to the analysis size.
func (d *FFmpegDecoder) FrameAt(ctx context.Context, t time.Duration) (Image, time.Duration, error) {
	stdout, stderr, err := d.cmd.Output(ctx, d.ffmpegPath, frameArgs(d.videoPath, t, d.width, d.height))
	if err != nil {
		if ctx.Err() != nil {
			return Image{}, 0, ctx.Err()
		}
		if len(stdout) == 0 {
			return Image{}, 0, fmt.Errorf("%w: decoding frame at %s: %v", ffmpeg.ErrMalformedMedia,
				format.Duration(t), strings.TrimSpace(lastLine(string(stderr))))
		}
	}
	if len(stdout) == 0 {
		return Image{}, 0, ErrEndOfStream
	}

	size := d.width * d.height
	if len(stdout) < size {
		return Image{}, 0, fmt.Errorf("%w: short frame at %s (%d of %d bytes)",
			ffmpeg.ErrMalformedMedia, format.Duration(t), len(stdout), size)
	}

	actual := t
	if m := ptsTimeRe.FindSubmatch(stderr); m != nil {
		if s, perr := strconv.ParseFloat(string(m[1]), 64); perr == nil && s > 0 {
			// With input seeking, timestamps restart at the seek point.
			actual = t + format.FromSeconds(s)
		}
	}

	pix := make([]byte, size)
	copy(pix, stdout[:size])
	return Image{Width: d.width, Height: d.height, Pix: pix}, actual, nil
}

// frameArgs builds the ffmpeg arguments for a single raw gray frame on stdout.
func frameArgs(videoPath string, t time.Duration, width, height int) []string {
	return []string{
		"-hide_banner",
		"-ss", ffmpeg.FormatTime(t),
		"-i", videoPath,
		"-frames:v", "1",
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d,format=gray,showinfo", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
