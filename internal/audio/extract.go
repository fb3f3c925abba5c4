package audio

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/alnah/go-meetsync/internal/ffmpeg"
)

// Default extraction parameters: mono speech at 16kHz, 32kbit/s.
const (
	DefaultSampleRate = 16000
	DefaultBitrate    = "32k"
)

// Extractor pulls the audio track out of a recording, downmixed for speech.
// Nothing is trimmed or removed, so timestamps stay in recording time.
type Extractor struct {
	ffmpegPath string
	sampleRate int
	bitrate    string
	log        logrus.FieldLogger
	cmd        commandRunner
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithSampleRate sets the output sample rate in Hz.
func WithSampleRate(hz int) ExtractorOption {
	return func(e *Extractor) { e.sampleRate = hz }
}

// WithBitrate sets the output bitrate (ffmpeg notation, e.g. "32k").
func WithBitrate(b string) ExtractorOption {
	return func(e *Extractor) { e.bitrate = b }
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(l logrus.FieldLogger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithExtractorCommandRunner sets the command runner.
func WithExtractorCommandRunner(r commandRunner) ExtractorOption {
	return func(e *Extractor) { e.cmd = r }
}

// NewExtractor creates an Extractor.
func NewExtractor(ffmpegPath string, opts ...ExtractorOption) (*Extractor, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty: %w", ffmpeg.ErrNotFound)
	}
	e := &Extractor{
		ffmpegPath: ffmpegPath,
		sampleRate: DefaultSampleRate,
		bitrate:    DefaultBitrate,
		log:        discardLogger(),
		cmd:        osCommandRunner{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sampleRate <= 0 {
		e.sampleRate = DefaultSampleRate
	}
	if e.bitrate == "" {
		e.bitrate = DefaultBitrate
	}
	return e, nil
}

// Extract writes the mono speech track of mediaPath to outPath (MP3).
// A recording without a decodable audio stream is malformed media.
func (e *Extractor) Extract(ctx context.Context, mediaPath, outPath string) error {
	args := []string{
		"-y",
		"-i", mediaPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(e.sampleRate),
		"-c:a", "libmp3lame",
		"-b:a", e.bitrate,
		outPath,
	}

	e.log.WithField("input", mediaPath).Debug("extracting audio track")
	output, err := e.cmd.CombinedOutput(ctx, e.ffmpegPath, args)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: extracting audio from %s: %v\nOutput: %s",
			ffmpeg.ErrMalformedMedia, mediaPath, err, lastLines(string(output), 5))
	}
	return nil
}
