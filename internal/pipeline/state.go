package pipeline

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alnah/go-meetsync/internal/align"
	"github.com/alnah/go-meetsync/internal/frames"
	"github.com/alnah/go-meetsync/internal/quality"
	"github.com/alnah/go-meetsync/internal/speech"
	"github.com/alnah/go-meetsync/internal/video"
)

// Stage names used in logs, warnings and progress callbacks.
const (
	StageExtract    = "extract"
	StageChunk      = "chunk"
	StageTranscribe = "transcribe"
	StageMerge      = "merge"
	StageSample     = "sample"
	StageSnapshot   = "snapshot"
	StageOCR        = "ocr"
	StageDedup      = "dedup"
	StageTag        = "tag"
	StageAlign      = "align"
)

// State is owned by a single recording run. Nothing in it survives the run,
// so two recordings never share adaptive history or warnings.
type State struct {
	RunID     string
	Recording string
	StartedAt time.Time
	WorkDir   string

	log logrus.FieldLogger

	mu            sync.Mutex
	audioWarnings []quality.Warning
	videoWarnings []quality.Warning
}

func newState(runID, recording string, now time.Time, workDir string, log logrus.FieldLogger) *State {
	return &State{
		RunID:     runID,
		Recording: recording,
		StartedAt: now,
		WorkDir:   workDir,
		log: log.WithFields(logrus.Fields{
			"run_id":    runID,
			"recording": filepath.Base(recording),
		}),
	}
}

// logger returns the run logger tagged with stage.
func (s *State) logger(stage string) logrus.FieldLogger {
	return s.log.WithField("stage", stage)
}

// warnAudio records audio-branch warnings.
func (s *State) warnAudio(ws ...quality.Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioWarnings = append(s.audioWarnings, ws...)
	s.logWarnings(ws)
}

// warnVideo records video-branch warnings.
func (s *State) warnVideo(ws ...quality.Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoWarnings = append(s.videoWarnings, ws...)
	s.logWarnings(ws)
}

func (s *State) logWarnings(ws []quality.Warning) {
	for _, w := range ws {
		s.logger(w.Stage).WithField("kind", w.Kind).Warn(w.Message)
	}
}

// warnings returns audio warnings followed by video warnings, so the order
// does not depend on which branch finished first.
func (s *State) warnings() []quality.Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]quality.Warning, 0, len(s.audioWarnings)+len(s.videoWarnings))
	out = append(out, s.audioWarnings...)
	return append(out, s.videoWarnings...)
}

// Result is everything a run produced.
type Result struct {
	RunID     string
	Recording string
	StartedAt time.Time
	Elapsed   time.Duration
	Duration  time.Duration // Recording length.
	Mode      string        // Frame mode, or "off" when frames were disabled.
	Segments  int           // Audio segments sent for transcription.

	Speech       []speech.Unit
	Frames       []frames.Frame
	Aligned      []align.Unit
	ModeSwitches []video.ModeSwitch
	Warnings     []quality.Warning
	Degraded     bool

	// workDir holds snapshots referenced by Frames[i].ImagePath.
	workDir string
}

// Cleanup removes the run's working files, including frame snapshots.
// Copy what you need (see output.Write) before calling it.
func (r *Result) Cleanup() error {
	return removeWorkDir(r.workDir)
}
