package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alnah/go-meetsync/internal/audio"
	"github.com/alnah/go-meetsync/internal/cache"
	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/interrupt"
	"github.com/alnah/go-meetsync/internal/ocr"
	"github.com/alnah/go-meetsync/internal/pipeline"
	"github.com/alnah/go-meetsync/internal/tag"
	"github.com/alnah/go-meetsync/internal/transcribe"
	"github.com/alnah/go-meetsync/internal/video"
)

// EnvOpenAIAPIKey is the environment variable holding the API key used for
// transcription and tagging.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	ToolResolver   ToolResolver
	SettingsLoader SettingsLoader
	Services       ServiceFactory

	// NewInterrupt builds the two-step shutdown handler for long-running commands.
	NewInterrupt func(parent context.Context) *interrupt.Handler
}

// ToolResolver locates external binaries.
type ToolResolver interface {
	Lookup(ctx context.Context, tool ffmpeg.Tool) (string, error)
}

// SettingsLoader resolves settings from a file path and the environment.
type SettingsLoader interface {
	Load(path string, getenv func(string) string) (config.Settings, error)
}

// ServiceRequest describes the collaborators a command needs.
type ServiceRequest struct {
	Settings      config.Settings
	FFmpegPath    string
	TesseractPath string // Empty when tesseract is unavailable.
	APIKey        string // Empty for frames-only runs without tagging.
	Logger        logrus.FieldLogger
}

// ServiceFactory builds pipeline collaborators.
type ServiceFactory interface {
	// NewDeps returns the pipeline dependencies and a function releasing
	// any connections they hold.
	NewDeps(ctx context.Context, req ServiceRequest) (pipeline.Deps, func() error, error)
	NewExtractor(req ServiceRequest) (pipeline.AudioExtractor, error)
	NewChunker(req ServiceRequest) (audio.Chunker, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) { e.Stdout = w }
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) { e.Stderr = w }
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) { e.Getenv = fn }
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) { e.Now = fn }
}

// WithToolResolver sets the binary resolver.
func WithToolResolver(r ToolResolver) EnvOption {
	return func(e *Env) { e.ToolResolver = r }
}

// WithSettingsLoader sets the settings loader.
func WithSettingsLoader(l SettingsLoader) EnvOption {
	return func(e *Env) { e.SettingsLoader = l }
}

// WithInterrupt sets the shutdown handler factory.
func WithInterrupt(fn func(parent context.Context) *interrupt.Handler) EnvOption {
	return func(e *Env) { e.NewInterrupt = fn }
}

// WithServices sets the service factory.
func WithServices(f ServiceFactory) EnvOption {
	return func(e *Env) { e.Services = f }
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		Getenv:         os.Getenv,
		Now:            time.Now,
		ToolResolver:   ffmpeg.NewResolver(),
		SettingsLoader: defaultSettingsLoader{},
		Services:       defaultServiceFactory{},
		NewInterrupt:   interrupt.NewHandler,
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultSettingsLoader struct{}

func (defaultSettingsLoader) Load(path string, getenv func(string) string) (config.Settings, error) {
	return config.Load(path, getenv)
}

type defaultServiceFactory struct{}

func (defaultServiceFactory) NewExtractor(req ServiceRequest) (pipeline.AudioExtractor, error) {
	a := req.Settings.Audio
	return audio.NewExtractor(req.FFmpegPath,
		audio.WithSampleRate(a.SampleRate),
		audio.WithBitrate(a.Bitrate),
		audio.WithExtractorLogger(req.Logger),
	)
}

func (defaultServiceFactory) NewChunker(req ServiceRequest) (audio.Chunker, error) {
	a := req.Settings.Audio
	return audio.NewSilenceChunker(req.FFmpegPath,
		audio.WithCeiling(a.CeilingBytes),
		audio.WithOverlap(a.Overlap),
		audio.WithNoiseDB(a.NoiseDB),
		audio.WithMinSilence(a.MinSilence),
		audio.WithSearchWindow(a.SearchWindow),
		audio.WithSegmentEncoding(a.SampleRate, a.Bitrate),
		audio.WithLogger(req.Logger),
	)
}

func (f defaultServiceFactory) NewDeps(ctx context.Context, req ServiceRequest) (pipeline.Deps, func() error, error) {
	s := req.Settings
	closer := func() error { return nil }

	deps := pipeline.Deps{
		Logger: req.Logger,
		Decoder: func(videoPath string) video.Decoder {
			return video.NewFFmpegDecoder(req.FFmpegPath, videoPath,
				video.WithAnalysisSize(s.Frames.AnalysisWidth, s.Frames.AnalysisHeight),
				video.WithDecoderLogger(req.Logger),
			)
		},
		Snapshotter: func(videoPath string) pipeline.SnapshotSaver {
			return video.NewSnapshotter(req.FFmpegPath, videoPath)
		},
	}
	if req.TesseractPath != "" {
		deps.OCR = ocr.NewTesseract(req.TesseractPath, ocr.WithLanguage(s.OCR.Language))
	}
	if s.Tagging.Enabled && req.APIKey != "" {
		deps.Tagger = tag.NewOpenAITagger(transcribe.NewClient(req.APIKey, ""),
			tag.WithModel(s.Tagging.Model),
			tag.WithBatchSize(s.Tagging.BatchSize),
			tag.WithLogger(req.Logger),
		)
	}
	if req.APIKey == "" {
		return deps, closer, nil
	}

	extractor, err := f.NewExtractor(req)
	if err != nil {
		return pipeline.Deps{}, closer, err
	}
	chunker, err := f.NewChunker(req)
	if err != nil {
		return pipeline.Deps{}, closer, err
	}

	var memo cache.Cache = cache.Nop{}
	if s.Cache.RedisURL != "" {
		rc, err := cache.Open(ctx, s.Cache.RedisURL)
		if err != nil {
			return pipeline.Deps{}, closer, err
		}
		memo, closer = rc, rc.Close
	}

	deps.Extractor = extractor
	deps.Chunker = chunker
	deps.Transcriber = transcribe.NewOpenAITranscriber(
		transcribe.NewClient(req.APIKey, s.Transcription.BaseURL),
		transcribe.WithModel(s.Transcription.Model),
		transcribe.WithRetryPolicy(s.RetryPolicy()),
		transcribe.WithRequestsPerMinute(s.Transcription.RequestsPerMinute),
		transcribe.WithCache(memo, s.Cache.TTL),
		transcribe.WithLogger(req.Logger),
	)
	return deps, closer, nil
}

// Compile-time interface verification.
var (
	_ ToolResolver   = (*ffmpeg.Resolver)(nil)
	_ SettingsLoader = defaultSettingsLoader{}
	_ ServiceFactory = defaultServiceFactory{}
)
