// Package speech holds the speech timeline and reassembles per-segment
// transcription results into it.
package speech

import (
	"fmt"
	"strings"
	"time"

	"github.com/alnah/go-meetsync/internal/audio"
	"github.com/alnah/go-meetsync/internal/format"
)

// Unit is a transcribed phrase. Times are segment-local when returned by a
// transcriber and recording-global after Merge.
type Unit struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// String returns a human-readable representation for logging.
func (u Unit) String() string {
	return fmt.Sprintf("[%s-%s] %s", format.Duration(u.Start), format.Duration(u.End), u.Text)
}

// Empty reports whether the unit carries no speech (a placeholder).
func (u Unit) Empty() bool {
	return strings.TrimSpace(u.Text) == ""
}

// SegmentResult pairs a segment with its transcription outcome.
// Err is set when the segment could not be transcribed after retries.
type SegmentResult struct {
	Segment audio.Segment
	Units   []Unit
	Err     error
}
