package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/quality"
)

// Compile-time interface implementation check.
var _ Chunker = (*SilenceChunker)(nil)

// Default chunking parameters.
const (
	// DefaultCeiling keeps segments under the 25MB transcription upload limit.
	DefaultCeiling = 24 * 1024 * 1024

	// DefaultOverlap is the lead added before every segment after the first.
	DefaultOverlap = 5 * time.Second

	// DefaultNoiseDB is the silence detection threshold in dB.
	DefaultNoiseDB = -40.0

	// DefaultMinSilence is the minimum silence length accepted as a split point.
	DefaultMinSilence = 2 * time.Second

	// DefaultSearchWindow bounds how far a boundary may move to reach a silence.
	DefaultSearchWindow = 30 * time.Second

	// maxReplans bounds how often an oversized extraction triggers a finer plan.
	maxReplans = 3
)

// SilenceChunker splits audio at detected silences near uniform size targets.
// When silence detection fails it falls back to the uniform targets.
type SilenceChunker struct {
	ffmpegPath string
	params     PlanParams
	noiseDB    float64
	minSilence time.Duration
	sampleRate int
	bitrate    string
	log        logrus.FieldLogger

	// Injectable dependencies (defaults to OS implementations).
	cmd commandRunner
	fs  fileSystem
}

// SilenceChunkerOption configures a SilenceChunker.
type SilenceChunkerOption func(*SilenceChunker)

// WithCeiling sets the maximum bytes per segment.
func WithCeiling(bytes int64) SilenceChunkerOption {
	return func(sc *SilenceChunker) { sc.params.Ceiling = bytes }
}

// WithOverlap sets the lead added before every segment after the first.
func WithOverlap(d time.Duration) SilenceChunkerOption {
	return func(sc *SilenceChunker) { sc.params.Overlap = d }
}

// WithSearchWindow sets how far a boundary may move to reach a silence.
func WithSearchWindow(d time.Duration) SilenceChunkerOption {
	return func(sc *SilenceChunker) { sc.params.SearchWindow = d }
}

// WithNoiseDB sets the silence detection threshold in dB.
// Lower values (more negative) detect quieter sounds as silence.
func WithNoiseDB(db float64) SilenceChunkerOption {
	return func(sc *SilenceChunker) { sc.noiseDB = db }
}

// WithMinSilence sets the minimum silence duration to detect.
func WithMinSilence(d time.Duration) SilenceChunkerOption {
	return func(sc *SilenceChunker) { sc.minSilence = d }
}

// WithSegmentEncoding sets the sample rate and bitrate segments are written
// with. They should match the extracted source so real sizes follow the plan.
func WithSegmentEncoding(sampleRate int, bitrate string) SilenceChunkerOption {
	return func(sc *SilenceChunker) {
		if sampleRate > 0 {
			sc.sampleRate = sampleRate
		}
		if bitrate != "" {
			sc.bitrate = bitrate
		}
	}
}

// WithLogger sets the logger for fallback and extraction events.
func WithLogger(l logrus.FieldLogger) SilenceChunkerOption {
	return func(sc *SilenceChunker) {
		if l != nil {
			sc.log = l
		}
	}
}

// WithCommandRunner sets the command runner.
func WithCommandRunner(r commandRunner) SilenceChunkerOption {
	return func(sc *SilenceChunker) { sc.cmd = r }
}

// WithFileSystem sets the filesystem implementation.
func WithFileSystem(fs fileSystem) SilenceChunkerOption {
	return func(sc *SilenceChunker) { sc.fs = fs }
}

// NewSilenceChunker creates a SilenceChunker with functional options.
func NewSilenceChunker(ffmpegPath string, opts ...SilenceChunkerOption) (*SilenceChunker, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty: %w", ffmpeg.ErrNotFound)
	}

	sc := &SilenceChunker{
		ffmpegPath: ffmpegPath,
		params: PlanParams{
			Ceiling:      DefaultCeiling,
			Overlap:      DefaultOverlap,
			SearchWindow: DefaultSearchWindow,
		},
		noiseDB:    DefaultNoiseDB,
		minSilence: DefaultMinSilence,
		sampleRate: DefaultSampleRate,
		bitrate:    DefaultBitrate,
		log:        discardLogger(),
		cmd:        osCommandRunner{},
		fs:         osFileSystem{},
	}

	for _, opt := range opts {
		opt(sc)
	}

	if sc.params.Ceiling <= 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCeiling, sc.params.Ceiling)
	}
	sc.params.Overlap = max(sc.params.Overlap, 0)
	sc.params.SearchWindow = max(sc.params.SearchWindow, 0)

	return sc, nil
}

// Chunk splits the audio file into size-bounded segments.
// A file already under the ceiling is returned as a single segment pointing
// at the source, with no extraction.
func (sc *SilenceChunker) Chunk(ctx context.Context, audioPath string) (Chunking, error) {
	info, err := sc.fs.Stat(audioPath)
	if err != nil {
		return Chunking{}, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	size := info.Size()

	if size <= sc.params.Ceiling {
		total, err := sc.probeDuration(ctx, audioPath)
		if err != nil {
			return Chunking{}, err
		}
		segments := PlanSegments(total, size, nil, sc.params)
		if len(segments) == 0 {
			return Chunking{}, fmt.Errorf("%w: %s has zero duration", ffmpeg.ErrMalformedMedia, audioPath)
		}
		segments[0].Path = audioPath
		return Chunking{Segments: segments, Duration: total}, nil
	}

	var warnings []quality.Warning
	silences, total, err := sc.detectSilences(ctx, audioPath)
	if err != nil {
		if ctx.Err() != nil {
			return Chunking{}, ctx.Err()
		}
		sc.log.WithError(err).Warn("silence detection failed, splitting uniformly")
		warnings = append(warnings, quality.Warning{
			Kind:    quality.KindSilenceFallback,
			Stage:   "chunk",
			Message: fmt.Sprintf("silence detection failed (%v), boundaries are uniform", err),
		})
		if total, err = sc.probeDuration(ctx, audioPath); err != nil {
			return Chunking{}, err
		}
		silences = nil
	} else if len(silences) == 0 {
		sc.log.Warn("no silences detected, splitting uniformly")
		warnings = append(warnings, quality.Warning{
			Kind:    quality.KindSilenceFallback,
			Stage:   "chunk",
			Message: "no silences detected, boundaries are uniform (may cut mid-sentence)",
		})
	}

	tempDir, err := sc.fs.MkdirTemp("", tempDirPrefix+"*")
	if err != nil {
		return Chunking{}, fmt.Errorf("failed to create temp directory: %w", err)
	}

	params := sc.params
	for attempt := 0; ; attempt++ {
		segments := PlanSegments(total, size, silences, params)
		if len(segments) == 0 {
			_ = sc.fs.RemoveAll(tempDir)
			return Chunking{}, fmt.Errorf("%w: %s has zero duration", ffmpeg.ErrMalformedMedia, audioPath)
		}

		err := sc.extractAll(ctx, audioPath, tempDir, segments)
		if err == nil {
			return Chunking{
				Segments: segments,
				Duration: total,
				Warnings: warnings,
				dir:      tempDir,
			}, nil
		}
		if !errors.Is(err, ErrChunkTooLarge) || attempt >= maxReplans {
			_ = sc.fs.RemoveAll(tempDir) // best-effort cleanup; original error takes precedence
			return Chunking{}, err
		}
		params.MinSegments = len(segments) + 1
		sc.log.WithError(err).WithField("segments", params.MinSegments).Warn("segment over ceiling, re-planning")
	}
}

// extractAll extracts every planned segment in order.
func (sc *SilenceChunker) extractAll(ctx context.Context, audioPath, tempDir string, segments []Segment) error {
	for i := range segments {
		if err := sc.extractSegment(ctx, audioPath, tempDir, &segments[i]); err != nil {
			return err
		}
		sc.log.WithField("segment", segments[i].Index).Debug(segments[i].String())
	}
	return nil
}

// extractSegment writes the segment file and records its real size.
func (sc *SilenceChunker) extractSegment(ctx context.Context, audioPath, tempDir string, seg *Segment) error {
	seg.Path = filepath.Join(tempDir, fmt.Sprintf("segment_%03d.mp3", seg.Index))

	args := []string{
		"-y",
		"-i", audioPath,
		"-ss", ffmpeg.FormatTime(seg.ExtractStart()),
		"-to", ffmpeg.FormatTime(seg.End),
	}
	args = append(args, segmentEncodingArgs(sc.sampleRate, sc.bitrate)...)
	args = append(args, seg.Path)

	output, err := sc.cmd.CombinedOutput(ctx, sc.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: failed to extract segment %d: %v\nOutput: %s",
			ErrChunkingFailed, seg.Index, err, lastLines(string(output), 5))
	}

	info, err := sc.fs.Stat(seg.Path)
	if err != nil {
		return fmt.Errorf("%w: segment %d missing after extraction: %v", ErrChunkingFailed, seg.Index, err)
	}
	seg.Size = info.Size()
	if seg.Size > sc.params.Ceiling {
		return fmt.Errorf("%w: segment %d is %d bytes (ceiling %d)",
			ErrChunkTooLarge, seg.Index, seg.Size, sc.params.Ceiling)
	}
	return nil
}

// segmentEncodingArgs returns FFmpeg encoding arguments for segment extraction.
// Segments are re-encoded as mono MP3 at the source's rate and bitrate, so
// cuts land on valid frames and sizes stay proportional to duration.
func segmentEncodingArgs(sampleRate int, bitrate string) []string {
	return []string{
		"-vn",
		"-c:a", "libmp3lame",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-b:a", bitrate,
	}
}

// probeDuration returns the duration of an audio file using ffmpeg.
func (sc *SilenceChunker) probeDuration(ctx context.Context, audioPath string) (time.Duration, error) {
	args := []string{"-i", audioPath, "-f", "null", "-"}
	output, err := sc.cmd.CombinedOutput(ctx, sc.ffmpegPath, args)
	if err != nil && len(output) == 0 {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: probing %s: %v", ffmpeg.ErrMalformedMedia, audioPath, err)
	}
	// FFmpeg may exit non-zero after printing a valid header.
	d, perr := ffmpeg.ParseDuration(string(output))
	if perr != nil {
		return 0, fmt.Errorf("probing %s: %w", audioPath, perr)
	}
	return d, nil
}

// detectSilences runs FFmpeg silencedetect and parses the output.
// Returns silences and total audio duration.
func (sc *SilenceChunker) detectSilences(ctx context.Context, audioPath string) ([]Silence, time.Duration, error) {
	args := []string{
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%ddB:d=%.2f",
			int(sc.noiseDB),
			sc.minSilence.Seconds()),
		"-f", "null",
		"-",
	}

	output, err := sc.cmd.CombinedOutput(ctx, sc.ffmpegPath, args)
	if err != nil && len(output) == 0 {
		return nil, 0, err
	}

	out := string(output)
	total, err := ffmpeg.ParseDuration(out)
	if err != nil {
		return nil, 0, errors.New("could not determine audio duration")
	}
	return parseSilenceOutput(out), total, nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// parseSilenceOutput extracts silences from FFmpeg silencedetect output.
// FFmpeg outputs lines like:
//
//	[silencedetect @ 0x...] silence_start: 42.123
//	[silencedetect @ 0x...] silence_end: 43.456 | silence_duration: 1.333
//
// A trailing silence_start without an end (silence running to EOF) is dropped.
func parseSilenceOutput(output string) []Silence {
	var silences []Silence
	var currentStart time.Duration
	hasStart := false

	for line := range strings.SplitSeq(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if seconds, err := strconv.ParseFloat(m[1], 64); err == nil {
				currentStart = max(time.Duration(seconds*float64(time.Second)), 0)
				hasStart = true
			}
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && hasStart {
			if seconds, err := strconv.ParseFloat(m[1], 64); err == nil {
				silences = append(silences, Silence{
					Start: currentStart,
					End:   time.Duration(seconds * float64(time.Second)),
				})
				hasStart = false
			}
		}
	}

	return silences
}

// lastLines keeps the tail of noisy ffmpeg output for error messages.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
