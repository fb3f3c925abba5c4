// Package pipeline runs one recording through every stage: the audio
// branch (extract, chunk, transcribe, merge) and the video branch (sample,
// snapshot, OCR, deduplicate, tag) run concurrently, then the timelines are
// aligned.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-meetsync/internal/align"
	"github.com/alnah/go-meetsync/internal/audio"
	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/frames"
	"github.com/alnah/go-meetsync/internal/ocr"
	"github.com/alnah/go-meetsync/internal/quality"
	"github.com/alnah/go-meetsync/internal/speech"
	"github.com/alnah/go-meetsync/internal/tag"
	"github.com/alnah/go-meetsync/internal/transcribe"
	"github.com/alnah/go-meetsync/internal/video"
)

// ErrRecordingNotFound indicates the input video does not exist.
var ErrRecordingNotFound = errors.New("recording not found")

// ErrMissingDependency indicates a required collaborator was not provided.
var ErrMissingDependency = errors.New("missing pipeline dependency")

// workDirPrefix names run directories so removeWorkDir can recognize them.
const workDirPrefix = "meetsync-run-"

// AudioExtractor writes the speech track of a recording to a file.
type AudioExtractor interface {
	Extract(ctx context.Context, mediaPath, outPath string) error
}

// SnapshotSaver writes full-resolution images for candidates.
type SnapshotSaver interface {
	SaveAll(ctx context.Context, cands []video.Candidate, dir string, parallel int) ([]string, error)
}

// Deps holds the collaborators of a run.
// OCR, Tagger and Snapshotter are optional; a nil value skips the stage.
type Deps struct {
	Extractor   AudioExtractor
	Chunker     audio.Chunker
	Transcriber transcribe.Transcriber
	Decoder     func(videoPath string) video.Decoder
	Snapshotter func(videoPath string) SnapshotSaver
	OCR         ocr.Reader
	Tagger      tag.Tagger

	Logger logrus.FieldLogger
	// OnStage, when set, is called as each stage begins. The audio and
	// video branches call it concurrently.
	OnStage func(stage string)

	now      func() time.Time
	newRunID func() string
}

// Pipeline processes recordings with fixed settings.
type Pipeline struct {
	settings config.Settings
	deps     Deps
	sampler  *video.Sampler
}

// New validates settings and returns a Pipeline.
func New(settings config.Settings, deps Deps) (*Pipeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.newRunID == nil {
		deps.newRunID = uuid.NewString
	}

	sampler, err := video.NewSampler(settings.SampleConfig(), video.WithSamplerLogger(deps.Logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return &Pipeline{settings: settings, deps: deps, sampler: sampler}, nil
}

// Run processes a recording end to end. Call Result.Cleanup once the
// artifacts have been written.
func (p *Pipeline) Run(ctx context.Context, videoPath string) (*Result, error) {
	if p.deps.Extractor == nil || p.deps.Chunker == nil || p.deps.Transcriber == nil {
		return nil, fmt.Errorf("%w: audio extractor, chunker and transcriber are required", ErrMissingDependency)
	}
	return p.run(ctx, videoPath, true)
}

// Frames runs the video branch only: no transcription, no alignment.
func (p *Pipeline) Frames(ctx context.Context, videoPath string) (*Result, error) {
	return p.run(ctx, videoPath, false)
}

func (p *Pipeline) run(ctx context.Context, videoPath string, withSpeech bool) (res *Result, err error) {
	if p.deps.Decoder == nil {
		return nil, fmt.Errorf("%w: video decoder is required", ErrMissingDependency)
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordingNotFound, videoPath)
	}

	workDir, err := os.MkdirTemp("", workDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("cannot create work directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = removeWorkDir(workDir)
		}
	}()

	st := newState(p.deps.newRunID(), videoPath, p.deps.now(), workDir, p.deps.Logger)
	st.log.Info("processing recording")

	var (
		timeline speech.Timeline
		audioDur time.Duration
		segments int
		vis      visual
	)

	g, gctx := errgroup.WithContext(ctx)
	if withSpeech {
		g.Go(func() error {
			var err error
			timeline, audioDur, segments, err = p.audioBranch(gctx, st, videoPath)
			return err
		})
	}
	g.Go(func() error {
		var err error
		vis, err = p.videoBranch(gctx, st, videoPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res = &Result{
		RunID:        st.RunID,
		Recording:    videoPath,
		StartedAt:    st.StartedAt,
		Duration:     max(audioDur, vis.duration),
		Mode:         vis.mode,
		Segments:     segments,
		Speech:       timeline.Units,
		Frames:       vis.frames,
		ModeSwitches: vis.switches,
		workDir:      workDir,
	}

	if withSpeech {
		p.stage(StageAlign)
		aligned, err := align.Align(timeline.Units, vis.frames)
		if err != nil {
			return nil, err
		}
		res.Aligned = aligned
	}

	res.Warnings = st.warnings()
	res.Degraded = quality.Degraded(res.Warnings)
	res.Elapsed = p.deps.now().Sub(st.StartedAt)

	st.log.WithFields(logrus.Fields{
		"frames":   len(res.Frames),
		"units":    len(res.Speech),
		"warnings": len(res.Warnings),
		"degraded": res.Degraded,
	}).Info("recording processed")
	return res, nil
}

// audioBranch extracts, chunks, transcribes and merges the speech track.
func (p *Pipeline) audioBranch(ctx context.Context, st *State, videoPath string) (speech.Timeline, time.Duration, int, error) {
	p.stage(StageExtract)
	audioPath := filepath.Join(st.WorkDir, "audio.mp3")
	if err := p.deps.Extractor.Extract(ctx, videoPath, audioPath); err != nil {
		return speech.Timeline{}, 0, 0, err
	}

	p.stage(StageChunk)
	chunking, err := p.deps.Chunker.Chunk(ctx, audioPath)
	if err != nil {
		return speech.Timeline{}, 0, 0, err
	}
	defer func() {
		if err := chunking.Cleanup(); err != nil {
			st.logger(StageChunk).WithError(err).Warn("failed to remove segment files")
		}
	}()
	st.warnAudio(chunking.Warnings...)
	st.logger(StageChunk).WithField("segments", len(chunking.Segments)).Info("audio chunked")

	p.stage(StageTranscribe)
	opts := transcribe.Options{
		Prompt:   p.settings.Transcription.Prompt,
		Language: p.settings.Transcription.Language,
	}
	results, err := transcribe.TranscribeAll(ctx, chunking.Segments, p.deps.Transcriber, opts, p.settings.Transcription.Parallel)
	if err != nil {
		return speech.Timeline{}, 0, 0, err
	}

	p.stage(StageMerge)
	timeline, err := speech.Merge(results)
	if err != nil {
		return speech.Timeline{}, 0, 0, err
	}
	st.warnAudio(timeline.Warnings...)
	return timeline, chunking.Duration, len(chunking.Segments), nil
}

// visual is the video branch outcome.
type visual struct {
	frames   []frames.Frame
	switches []video.ModeSwitch
	duration time.Duration
	mode     string
}

// videoBranch samples, snapshots, reads, deduplicates and tags frames.
func (p *Pipeline) videoBranch(ctx context.Context, st *State, videoPath string) (visual, error) {
	if !p.settings.Frames.Enabled {
		st.logger(StageSample).Info("frame sampling disabled")
		return visual{mode: "off"}, nil
	}

	p.stage(StageSample)
	sampling, err := p.sampler.Sample(ctx, p.deps.Decoder(videoPath))
	if err != nil {
		return visual{}, err
	}
	st.warnVideo(sampling.Warnings...)
	for _, sw := range sampling.ModeSwitches {
		st.logger(StageSample).WithFields(logrus.Fields{
			"from": sw.From, "to": sw.To, "at": sw.At, "rate": sw.Rate,
		}).Warn("frame profile switched")
	}
	out := visual{
		switches: sampling.ModeSwitches,
		duration: sampling.Duration,
		mode:     p.settings.Frames.Mode,
	}
	if sampling.Skipped {
		out.mode = "off"
		return out, nil
	}
	st.logger(StageSample).WithField("candidates", len(sampling.Candidates)).Info("frames sampled")

	paths, err := p.snapshots(ctx, st, videoPath, sampling.Candidates)
	if err != nil {
		return visual{}, err
	}
	texts, err := p.readText(ctx, st, paths, len(sampling.Candidates))
	if err != nil {
		return visual{}, err
	}

	p.stage(StageDedup)
	fs := frames.Deduplicate(frames.FromSampling(sampling.Candidates, texts, paths), p.settings.DedupConfig())
	st.logger(StageDedup).WithField("frames", len(fs)).Info("frames deduplicated")

	if err := p.tag(ctx, st, fs); err != nil {
		return visual{}, err
	}
	out.frames = fs
	return out, nil
}

func (p *Pipeline) snapshots(ctx context.Context, st *State, videoPath string, cands []video.Candidate) ([]string, error) {
	if p.deps.Snapshotter == nil || len(cands) == 0 {
		return nil, nil
	}
	p.stage(StageSnapshot)
	dir := filepath.Join(st.WorkDir, "snapshots")
	if err := os.MkdirAll(dir, 0750); err != nil { // #nosec G301 -- run work dir
		return nil, fmt.Errorf("cannot create snapshot directory: %w", err)
	}
	return p.deps.Snapshotter(videoPath).SaveAll(ctx, cands, dir, p.settings.Frames.SnapshotParallel)
}

// readText runs OCR over snapshots. Missing OCR is a warning, not an error.
func (p *Pipeline) readText(ctx context.Context, st *State, paths []string, n int) ([]string, error) {
	if !p.settings.OCR.Enabled || n == 0 {
		return nil, nil
	}
	if p.deps.OCR == nil || len(paths) == 0 {
		st.warnVideo(quality.Warning{
			Kind:    quality.KindOCRSkipped,
			Stage:   StageOCR,
			Message: "OCR unavailable; deduplication uses pixels only",
		})
		return nil, nil
	}

	p.stage(StageOCR)
	texts, ws, err := ocr.ReadAll(ctx, p.deps.OCR, paths, p.settings.OCR.Parallel)
	if err != nil {
		return nil, err
	}
	st.warnVideo(ws...)
	return texts, nil
}

// tag assigns tags in place. Tagging failures leave frames untagged.
func (p *Pipeline) tag(ctx context.Context, st *State, fs []frames.Frame) error {
	if !p.settings.Tagging.Enabled || len(fs) == 0 {
		return nil
	}
	if p.deps.Tagger == nil {
		st.warnVideo(quality.Warning{
			Kind:    quality.KindTaggingSkipped,
			Stage:   StageTag,
			Message: "no tagger configured",
		})
		return nil
	}

	p.stage(StageTag)
	tags, err := p.deps.Tagger.Tag(ctx, fs)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		st.warnVideo(quality.Warning{
			Kind:    quality.KindTaggingSkipped,
			Stage:   StageTag,
			Message: err.Error(),
		})
		return nil
	}
	for i := range fs {
		if i < len(tags) {
			fs[i].Tags = tags[i]
		}
	}
	return nil
}

func (p *Pipeline) stage(name string) {
	if p.deps.OnStage != nil {
		p.deps.OnStage(name)
	}
}

// removeWorkDir deletes a run directory created by this package.
func removeWorkDir(dir string) error {
	if dir == "" {
		return nil
	}
	if !strings.HasPrefix(filepath.Base(dir), workDirPrefix) {
		return fmt.Errorf("refusing to remove %s: not a run directory", dir)
	}
	return os.RemoveAll(dir)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
