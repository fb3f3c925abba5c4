// Package quality records degraded-but-successful outcomes of a run.
//
// A Warning never aborts processing: the recording still yields a usable,
// if incomplete, result. Fatal conditions are errors, not warnings.
package quality

import (
	"fmt"
	"time"

	"github.com/alnah/go-meetsync/internal/format"
)

// Kind classifies a Warning.
type Kind string

// Warning kinds.
const (
	// KindSpeechGap marks a segment whose transcription exhausted its retries
	// and was replaced by an empty placeholder.
	KindSpeechGap Kind = "speech_gap"
	// KindFrameCapReached marks early termination of sampling at max_total.
	KindFrameCapReached Kind = "frame_cap_reached"
	// KindSilenceFallback marks uniform time splitting after silence detection failed.
	KindSilenceFallback Kind = "silence_fallback"
	// KindAdaptiveFallback marks a hybrid run that could not evaluate its window.
	KindAdaptiveFallback Kind = "adaptive_fallback"
	// KindOCRSkipped marks frames left without OCR text.
	KindOCRSkipped Kind = "ocr_skipped"
	// KindTaggingSkipped marks frames left without tags.
	KindTaggingSkipped Kind = "tagging_skipped"
)

// Warning is a structured quality note attached to a result.
type Warning struct {
	Kind    Kind          `json:"kind"`
	Stage   string        `json:"stage"`
	Start   time.Duration `json:"start,omitempty"`
	End     time.Duration `json:"end,omitempty"`
	Message string        `json:"message"`
}

// String returns a human-readable representation for logging.
func (w Warning) String() string {
	if w.End > w.Start {
		return fmt.Sprintf("[%s] %s (%s-%s): %s", w.Stage, w.Kind,
			format.Duration(w.Start), format.Duration(w.End), w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Stage, w.Kind, w.Message)
}

// Degrades reports whether the warning means content is missing from the result.
func (w Warning) Degrades() bool {
	return w.Kind == KindSpeechGap || w.Kind == KindFrameCapReached
}

// Degraded reports whether any warning degrades the result.
func Degraded(ws []Warning) bool {
	for _, w := range ws {
		if w.Degrades() {
			return true
		}
	}
	return false
}
