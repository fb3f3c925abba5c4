package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/lang"
	"github.com/alnah/go-meetsync/internal/transcribe"
)

// runFlags are the overrides shared by commands that process recordings.
// Only flags set on the command line replace loaded settings.
type runFlags struct {
	configPath string
	output     string
	noFrames   bool
	mode       string
	parallel   int
	language   string
	ocrLang    string
	noOCR      bool
	tags       bool
}

func bindRunFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.StringVarP(&f.configPath, "config", "c", "", "Settings file (default: $XDG_CONFIG_HOME/meetsync/settings.yaml)")
	fs.StringVarP(&f.output, "output", "o", "", "Directory receiving one folder per run (default: current directory)")
	fs.BoolVar(&f.noFrames, "no-frames", false, "Transcribe only, skip frame sampling")
	fs.StringVarP(&f.mode, "mode", "m", "", "Frame sampling mode: slides, demo, hybrid")
	fs.IntVarP(&f.parallel, "parallel", "p", 0, "Max concurrent transcription requests (1-10)")
	fs.StringVarP(&f.language, "language", "l", "", "Spoken language (ISO 639-1 code, e.g., en, fr, pt-BR)")
	fs.StringVar(&f.ocrLang, "ocr-lang", "", "Tesseract language pack for slide text (default: derived from --language)")
	fs.BoolVar(&f.noOCR, "no-ocr", false, "Skip slide text recognition")
	fs.BoolVar(&f.tags, "tags", false, "Tag frames with a chat model")
}

// clampParallel constrains parallel request count to valid range [1, MaxRecommendedParallel].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > transcribe.MaxRecommendedParallel {
		return transcribe.MaxRecommendedParallel
	}
	return n
}

// apply overlays the flags that were set on s.
func (f *runFlags) apply(fs *pflag.FlagSet, s *config.Settings) error {
	if fs.Changed("output") {
		s.OutputDir = f.output
	}
	if fs.Changed("no-frames") {
		s.Frames.Enabled = !f.noFrames
	}
	if fs.Changed("mode") {
		s.Frames.Mode = f.mode
	}
	if fs.Changed("parallel") {
		s.Transcription.Parallel = clampParallel(f.parallel)
	}
	if fs.Changed("language") {
		if err := lang.Validate(f.language); err != nil {
			return err
		}
		s.Transcription.Language = f.language
		if pack := lang.Tesseract(f.language); pack != "" {
			s.OCR.Language = pack
		}
	}
	if fs.Changed("ocr-lang") {
		s.OCR.Language = f.ocrLang
	}
	if fs.Changed("no-ocr") {
		s.OCR.Enabled = !f.noOCR
	}
	if fs.Changed("tags") {
		s.Tagging.Enabled = f.tags
	}
	return nil
}

// loadSettings resolves settings from the file, the environment and the
// command line, in that order.
func loadSettings(env *Env, fs *pflag.FlagSet, f *runFlags) (config.Settings, error) {
	s, err := env.SettingsLoader.Load(config.ExpandPath(f.configPath), env.Getenv)
	if err != nil {
		return config.Settings{}, err
	}
	if err := f.apply(fs, &s); err != nil {
		return config.Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}
	// The transcription endpoint accepts base codes only.
	s.Transcription.Language = lang.BaseCode(s.Transcription.Language)
	if s.OutputDir == "" {
		s.OutputDir = "."
	}
	s.OutputDir = config.ExpandPath(s.OutputDir)
	if err := config.ValidOutputDir(s.OutputDir); err != nil {
		return config.Settings{}, fmt.Errorf("%w: %w", ErrInvalidOutputDir, err)
	}
	return s, nil
}
