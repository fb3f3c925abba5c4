// Package config resolves meetsync settings from defaults, a YAML file and
// environment overrides. The processing core only sees validated Settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alnah/go-meetsync/internal/apierr"
	"github.com/alnah/go-meetsync/internal/audio"
	"github.com/alnah/go-meetsync/internal/frames"
	"github.com/alnah/go-meetsync/internal/lang"
	"github.com/alnah/go-meetsync/internal/ocr"
	"github.com/alnah/go-meetsync/internal/tag"
	"github.com/alnah/go-meetsync/internal/transcribe"
	"github.com/alnah/go-meetsync/internal/video"
)

// ErrInvalid indicates settings that cannot be used. It wraps an
// errors.Join of every violated field.
var ErrInvalid = errors.New("invalid configuration")

// Environment variable overrides.
const (
	EnvOutputDir          = "MEETSYNC_OUTPUT_DIR"
	EnvTranscriptionModel = "MEETSYNC_TRANSCRIPTION_MODEL"
	EnvTranscriptionURL   = "MEETSYNC_TRANSCRIPTION_BASE_URL"
	EnvRedisURL           = "MEETSYNC_REDIS_URL"
	EnvFramesMode         = "MEETSYNC_FRAMES_MODE"
	EnvFramesEnabled      = "MEETSYNC_FRAMES_ENABLED"
)

// FileName is the settings file name inside the config directory.
const FileName = "settings.yaml"

// Settings is the resolved configuration of a run.
type Settings struct {
	OutputDir     string                `yaml:"output_dir"`
	Audio         AudioSettings         `yaml:"audio"`
	Transcription TranscriptionSettings `yaml:"transcription"`
	Frames        FrameSettings         `yaml:"frames"`
	Dedup         DedupSettings         `yaml:"dedup"`
	OCR           OCRSettings           `yaml:"ocr"`
	Tagging       TaggingSettings       `yaml:"tagging"`
	Cache         CacheSettings         `yaml:"cache"`
}

// AudioSettings controls extraction and chunking.
type AudioSettings struct {
	CeilingBytes int64         `yaml:"ceiling_bytes"`
	Overlap      time.Duration `yaml:"overlap"`
	NoiseDB      float64       `yaml:"silence_db"`
	MinSilence   time.Duration `yaml:"min_silence"`
	SearchWindow time.Duration `yaml:"search_window"`
	SampleRate   int           `yaml:"sample_rate"`
	Bitrate      string        `yaml:"bitrate"`
}

// TranscriptionSettings controls the speech-to-text service.
type TranscriptionSettings struct {
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	Language          string        `yaml:"language"`
	Prompt            string        `yaml:"prompt"`
	Parallel          int           `yaml:"parallel"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Retry             RetrySettings `yaml:"retry"`
}

// RetrySettings mirrors apierr.RetryPolicy.
type RetrySettings struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// FrameSettings controls visual sampling.
type FrameSettings struct {
	Enabled          bool             `yaml:"enabled"`
	Mode             string           `yaml:"mode"`
	NoiseFloor       int              `yaml:"noise_floor"`
	AnalysisWidth    int              `yaml:"analysis_width"`
	AnalysisHeight   int              `yaml:"analysis_height"`
	SnapshotParallel int              `yaml:"snapshot_parallel"`
	Slides           ProfileSettings  `yaml:"slides"`
	Demo             ProfileSettings  `yaml:"demo"`
	Adaptive         AdaptiveSettings `yaml:"adaptive"`
}

// ProfileSettings mirrors video.Profile.
type ProfileSettings struct {
	Cadence      time.Duration `yaml:"cadence"`
	Threshold    float64       `yaml:"threshold"`
	MaxPerMinute int           `yaml:"max_per_minute"`
	MaxTotal     int           `yaml:"max_total"`
}

// AdaptiveSettings tunes hybrid mode.
type AdaptiveSettings struct {
	Window time.Duration `yaml:"window"`
	High   float64       `yaml:"high"`
	Low    float64       `yaml:"low"`
}

// DedupSettings mirrors frames.DedupConfig.
type DedupSettings struct {
	PixelThreshold float64 `yaml:"pixel_threshold"`
	TextThreshold  float64 `yaml:"text_threshold"`
	MinTokens      int     `yaml:"min_tokens"`
}

// OCRSettings controls frame text extraction.
type OCRSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language"`
	Parallel int    `yaml:"parallel"`
}

// TaggingSettings controls semantic frame tags.
type TaggingSettings struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// CacheSettings controls transcription memoization.
type CacheSettings struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the built-in settings.
func Default() Settings {
	slides, demo := video.SlidesProfile(), video.DemoProfile()
	adaptive := video.DefaultAdaptiveConfig()
	dedup := frames.DefaultDedupConfig()
	retry := transcribe.DefaultRetryPolicy

	return Settings{
		Audio: AudioSettings{
			CeilingBytes: audio.DefaultCeiling,
			Overlap:      audio.DefaultOverlap,
			NoiseDB:      audio.DefaultNoiseDB,
			MinSilence:   audio.DefaultMinSilence,
			SearchWindow: audio.DefaultSearchWindow,
			SampleRate:   audio.DefaultSampleRate,
			Bitrate:      audio.DefaultBitrate,
		},
		Transcription: TranscriptionSettings{
			Model:    transcribe.DefaultModel,
			Parallel: 4,
			Retry: RetrySettings{
				MaxAttempts: retry.MaxAttempts,
				BaseDelay:   retry.BaseDelay,
				MaxDelay:    retry.MaxDelay,
				Jitter:      retry.Jitter,
			},
		},
		Frames: FrameSettings{
			Enabled:          true,
			Mode:             string(video.ModeSlides),
			NoiseFloor:       video.DefaultNoiseFloor,
			AnalysisWidth:    video.DefaultAnalysisWidth,
			AnalysisHeight:   video.DefaultAnalysisHeight,
			SnapshotParallel: 4,
			Slides:           profileSettings(slides),
			Demo:             profileSettings(demo),
			Adaptive: AdaptiveSettings{
				Window: adaptive.Window,
				High:   adaptive.High,
				Low:    adaptive.Low,
			},
		},
		Dedup: DedupSettings{
			PixelThreshold: dedup.PixelThreshold,
			TextThreshold:  dedup.TextThreshold,
			MinTokens:      dedup.MinTokens,
		},
		OCR: OCRSettings{
			Enabled:  true,
			Language: ocr.DefaultLanguage,
			Parallel: 4,
		},
		Tagging: TaggingSettings{
			Model:     tag.DefaultModel,
			BatchSize: tag.DefaultBatchSize,
		},
		Cache: CacheSettings{TTL: 30 * 24 * time.Hour},
	}
}

func profileSettings(p video.Profile) ProfileSettings {
	return ProfileSettings{
		Cadence:      p.Cadence,
		Threshold:    p.Threshold,
		MaxPerMinute: p.MaxPerMinute,
		MaxTotal:     p.MaxTotal,
	}
}

// Load layers the settings file at path and environment overrides on top
// of Default, then validates the result. An empty path means the default
// location, which may be absent; an explicit path must exist.
// getenv is typically os.Getenv.
func Load(path string, getenv func(string) string) (Settings, error) {
	s := Default()

	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return s, err
		}
		path = p
	}

	// #nosec G304 -- settings path comes from the user or the config dir
	data, err := os.ReadFile(ExpandPath(path))
	switch {
	case err == nil:
		if err := decode(data, &s); err != nil {
			return s, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return s, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := s.applyEnv(getenv); err != nil {
		return s, err
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// decode applies YAML on top of s, rejecting unknown keys.
func decode(data []byte, s *Settings) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (s *Settings) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&s.OutputDir, EnvOutputDir)
	set(&s.Transcription.Model, EnvTranscriptionModel)
	set(&s.Transcription.BaseURL, EnvTranscriptionURL)
	set(&s.Cache.RedisURL, EnvRedisURL)
	set(&s.Frames.Mode, EnvFramesMode)

	if v := getenv(EnvFramesEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, EnvFramesEnabled, v)
		}
		s.Frames.Enabled = b
	}
	return nil
}

// Validate checks every field and reports all violations at once.
func (s Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	a := s.Audio
	check(a.CeilingBytes > 0, "audio.ceiling_bytes must be positive, got %d", a.CeilingBytes)
	check(a.Overlap >= 0, "audio.overlap must not be negative, got %s", a.Overlap)
	check(a.NoiseDB < 0, "audio.silence_db must be negative, got %g", a.NoiseDB)
	check(a.MinSilence > 0, "audio.min_silence must be positive, got %s", a.MinSilence)
	check(a.SearchWindow >= 0, "audio.search_window must not be negative, got %s", a.SearchWindow)
	check(a.SampleRate > 0, "audio.sample_rate must be positive, got %d", a.SampleRate)

	tr := s.Transcription
	check(tr.Model != "", "transcription.model must be set")
	if err := lang.Validate(tr.Language); err != nil {
		errs = append(errs, fmt.Errorf("transcription.language: %w", err))
	}
	check(tr.Parallel >= 1, "transcription.parallel must be at least 1, got %d", tr.Parallel)
	check(tr.RequestsPerMinute >= 0, "transcription.requests_per_minute must not be negative, got %d", tr.RequestsPerMinute)
	check(tr.Retry.MaxAttempts >= 1, "transcription.retry.max_attempts must be at least 1, got %d", tr.Retry.MaxAttempts)
	check(tr.Retry.BaseDelay > 0, "transcription.retry.base_delay must be positive, got %s", tr.Retry.BaseDelay)
	check(tr.Retry.MaxDelay >= tr.Retry.BaseDelay, "transcription.retry.max_delay must be at least base_delay")
	check(tr.Retry.Jitter >= 0 && tr.Retry.Jitter <= 1, "transcription.retry.jitter must be within [0,1], got %g", tr.Retry.Jitter)

	f := s.Frames
	if f.Enabled {
		if _, err := video.ParseMode(f.Mode); err != nil {
			errs = append(errs, fmt.Errorf("frames.mode: %w", err))
		}
		check(f.NoiseFloor >= 0 && f.NoiseFloor <= 255, "frames.noise_floor must be within [0,255], got %d", f.NoiseFloor)
		check(f.AnalysisWidth > 0 && f.AnalysisHeight > 0,
			"frames.analysis size must be positive, got %dx%d", f.AnalysisWidth, f.AnalysisHeight)
		check(f.SnapshotParallel >= 1, "frames.snapshot_parallel must be at least 1, got %d", f.SnapshotParallel)
		if err := s.SampleConfig().Adaptive.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	d := s.Dedup
	check(d.PixelThreshold > 0 && d.PixelThreshold <= 1, "dedup.pixel_threshold must be within (0,1], got %g", d.PixelThreshold)
	check(d.TextThreshold > 0 && d.TextThreshold <= 1, "dedup.text_threshold must be within (0,1], got %g", d.TextThreshold)
	check(d.MinTokens >= 1, "dedup.min_tokens must be at least 1, got %d", d.MinTokens)

	if s.OCR.Enabled {
		check(s.OCR.Language != "", "ocr.language must be set")
		check(s.OCR.Parallel >= 1, "ocr.parallel must be at least 1, got %d", s.OCR.Parallel)
	}
	if s.Tagging.Enabled {
		check(s.Tagging.Model != "", "tagging.model must be set")
		check(s.Tagging.BatchSize >= 1, "tagging.batch_size must be at least 1, got %d", s.Tagging.BatchSize)
	}
	check(s.Cache.TTL >= 0, "cache.ttl must not be negative, got %s", s.Cache.TTL)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// SampleConfig converts the frame settings for the sampler.
func (s Settings) SampleConfig() video.SampleConfig {
	slides := video.Profile{Name: string(video.ModeSlides)}
	demo := video.Profile{Name: string(video.ModeDemo)}
	s.Frames.Slides.apply(&slides)
	s.Frames.Demo.apply(&demo)

	return video.SampleConfig{
		Enabled:    s.Frames.Enabled,
		Mode:       video.Mode(s.Frames.Mode),
		NoiseFloor: uint8(min(max(s.Frames.NoiseFloor, 0), 255)), // #nosec G115 -- clamped
		Adaptive: video.AdaptiveConfig{
			Window: s.Frames.Adaptive.Window,
			High:   s.Frames.Adaptive.High,
			Low:    s.Frames.Adaptive.Low,
			Slides: slides,
			Demo:   demo,
		},
	}
}

func (p ProfileSettings) apply(dst *video.Profile) {
	dst.Cadence = p.Cadence
	dst.Threshold = p.Threshold
	dst.MaxPerMinute = p.MaxPerMinute
	dst.MaxTotal = p.MaxTotal
}

// DedupConfig converts the dedup settings.
func (s Settings) DedupConfig() frames.DedupConfig {
	return frames.DedupConfig{
		PixelThreshold: s.Dedup.PixelThreshold,
		TextThreshold:  s.Dedup.TextThreshold,
		MinTokens:      s.Dedup.MinTokens,
		NoiseFloor:     s.SampleConfig().NoiseFloor,
	}
}

// RetryPolicy converts the transcription retry settings.
func (s Settings) RetryPolicy() apierr.RetryPolicy {
	r := s.Transcription.Retry
	return apierr.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Jitter:      r.Jitter,
	}
}

// Encode writes s as YAML.
func Encode(w io.Writer, s Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}

// Dir returns the configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/meetsync.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "meetsync"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "meetsync"), nil
}

// Path returns the default settings file location.
func Path() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, FileName), nil
}

// ValidOutputDir checks that d is a usable output directory, creating it
// when missing.
func ValidOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", d)
	}

	f, err := os.CreateTemp(d, ".meetsync-write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}
