package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/output"
	"github.com/alnah/go-meetsync/internal/pipeline"
	"github.com/alnah/go-meetsync/internal/transcribe"
	"github.com/alnah/go-meetsync/internal/watch"
)

// ProcessCmd creates the process command.
// The env parameter provides injectable dependencies for testing.
func ProcessCmd(env *Env) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "process <video>...",
		Short: "Transcribe a recording and align it with its key frames",
		Long: `Transcribe a meeting recording and align every spoken passage with the
slide or screen that was visible while it was said.

Audio is extracted, split at silences and transcribed in parallel while the video
is sampled for frames that changed. Near-duplicate frames are merged, their text is
read with tesseract when available, and each speech unit is attached to the frame
shown when it started.

Each recording gets its own folder under --output holding result.json,
transcript.srt, transcript.vtt, transcript.txt and frames/.

Supported formats: ` + supportedFormatsList(),
		Example: `  meetsync process weekly-sync.mp4
  meetsync process demo.mkv --mode demo -o ~/notes
  meetsync process lecture.mp4 -l fr --tags
  meetsync process call.webm --no-frames  # Transcript only`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), env, cmd.Flags(), &flags, args, true)
		},
	}

	bindRunFlags(cmd.Flags(), &flags)
	return cmd
}

// supportedFormatsList returns a comma-separated list for error messages.
func supportedFormatsList() string {
	formats := make([]string, 0, len(watch.VideoExtensions))
	for _, ext := range watch.VideoExtensions {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// checkRecording validates that path is an existing file in a supported format.
func checkRecording(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(watch.VideoExtensions, ext) {
		return fmt.Errorf("unsupported format %q (supported: %s): %w",
			ext, supportedFormatsList(), ErrUnsupportedFormat)
	}
	return nil
}

// runProcess validates every input before processing the first one.
func runProcess(ctx context.Context, env *Env, fs *pflag.FlagSet, flags *runFlags, paths []string, withSpeech bool) error {
	for _, p := range paths {
		if err := checkRecording(p); err != nil {
			return err
		}
	}

	r, err := newRunner(ctx, env, fs, flags, withSpeech)
	if err != nil {
		return err
	}
	defer r.close()

	for _, p := range paths {
		if _, err := r.process(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// runner processes recordings with one resolved configuration.
type runner struct {
	env        *Env
	settings   config.Settings
	pipeline   *pipeline.Pipeline
	log        logrus.FieldLogger
	withSpeech bool
	release    func() error
}

// newRunner resolves settings, binaries and services.
// Validation order: settings -> API key -> logger -> ffmpeg -> tesseract -> services
func newRunner(ctx context.Context, env *Env, fs *pflag.FlagSet, flags *runFlags, withSpeech bool) (*runner, error) {
	settings, err := loadSettings(env, fs, flags)
	if err != nil {
		return nil, err
	}

	needKey := withSpeech || settings.Tagging.Enabled
	apiKey := env.Getenv(EnvOpenAIAPIKey)
	if needKey && apiKey == "" {
		return nil, fmt.Errorf("%w (set it with: export %s=sk-...)", transcribe.ErrAPIKeyMissing, EnvOpenAIAPIKey)
	}

	log, err := env.logger()
	if err != nil {
		return nil, err
	}

	ffmpegPath, err := env.ToolResolver.Lookup(ctx, ffmpeg.FFmpeg)
	if err != nil {
		return nil, err
	}

	var tesseractPath string
	if settings.Frames.Enabled && settings.OCR.Enabled {
		tesseractPath, err = env.ToolResolver.Lookup(ctx, ffmpeg.Tesseract)
		if err != nil {
			log.WithError(err).Warn("tesseract not found, slide text disabled")
			tesseractPath = ""
		}
	}

	req := ServiceRequest{
		Settings:      settings,
		FFmpegPath:    ffmpegPath,
		TesseractPath: tesseractPath,
		Logger:        log,
	}
	if needKey {
		req.APIKey = apiKey
	}
	deps, release, err := env.Services.NewDeps(ctx, req)
	if err != nil {
		return nil, err
	}
	if !withSpeech {
		deps.Extractor, deps.Chunker, deps.Transcriber = nil, nil, nil
	}
	deps.OnStage = func(stage string) {
		log.WithField("stage", stage).Debug("stage started")
	}

	p, err := pipeline.New(settings, deps)
	if err != nil {
		_ = release()
		return nil, err
	}
	return &runner{
		env:        env,
		settings:   settings,
		pipeline:   p,
		log:        log,
		withSpeech: withSpeech,
		release:    release,
	}, nil
}

func (r *runner) close() {
	if err := r.release(); err != nil {
		r.log.WithError(err).Warn("failed to release services")
	}
}

// process runs one recording and writes its outputs.
func (r *runner) process(ctx context.Context, path string) (output.Paths, error) {
	fmt.Fprintf(r.env.Stderr, "Processing %s...\n", filepath.Base(path))

	run := r.pipeline.Frames
	if r.withSpeech {
		run = r.pipeline.Run
	}
	res, err := run(ctx, path)
	if err != nil {
		return output.Paths{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			r.log.WithError(err).Warn("failed to remove work directory")
		}
	}()

	paths, err := output.Write(r.settings.OutputDir, res)
	if err != nil {
		return output.Paths{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	r.report(res, paths)
	return paths, nil
}

// report prints the run summary: the output folder on stdout, details on stderr.
func (r *runner) report(res *pipeline.Result, paths output.Paths) {
	fmt.Fprintf(r.env.Stderr, "Done in %s: %d speech units, %d frames (mode %s)\n",
		res.Elapsed.Round(100*time.Millisecond), len(res.Speech), len(res.Frames), res.Mode)
	for _, w := range res.Warnings {
		fmt.Fprintf(r.env.Stderr, "  warning [%s] %s\n", w.Kind, w.Message)
	}
	if res.Degraded {
		fmt.Fprintln(r.env.Stderr, "Output is degraded; see warnings in result.json")
	}
	fmt.Fprintln(r.env.Stdout, paths.Dir)
}

// isInterrupted reports whether err stems from cancellation.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
