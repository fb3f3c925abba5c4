// Package align joins the speech timeline with the frame timeline.
package align

import (
	"fmt"
	"time"

	"github.com/alnah/go-meetsync/internal/format"
	"github.com/alnah/go-meetsync/internal/frames"
	"github.com/alnah/go-meetsync/internal/invariant"
	"github.com/alnah/go-meetsync/internal/speech"
)

// Unit pairs a span of speech with the frame visible when it began.
// A frame that captured no speech yields one Unit with empty Speech.
type Unit struct {
	Start     time.Duration `json:"start"`
	End       time.Duration `json:"end"`
	Speech    string        `json:"speech"`
	FrameID   frames.ID     `json:"frame_id"`
	SlideText string        `json:"slide_text,omitempty"`
}

// String returns a human-readable representation for logging.
func (u Unit) String() string {
	return fmt.Sprintf("[%s-%s] frame %s: %s", format.Duration(u.Start), format.Duration(u.End), u.FrameID, u.Speech)
}

// Align assigns every speech unit to the last frame whose timestamp is at
// or before the unit's start, or to the first frame when none precedes it.
// Both inputs must already be sorted; unsorted input is an invariant
// violation, not something to repair here. With no frames, units are
// returned with a zero FrameID.
func Align(units []speech.Unit, fs []frames.Frame) ([]Unit, error) {
	for i := 1; i < len(units); i++ {
		if units[i].Start < units[i-1].Start {
			return nil, invariant.Violationf("speech unit %d starts at %v before unit %d at %v",
				i, units[i].Start, i-1, units[i-1].Start)
		}
	}
	for i, f := range fs {
		if f.ID.IsZero() {
			return nil, invariant.Violationf("frame at %v has no id", f.At)
		}
		if i > 0 && f.At < fs[i-1].At {
			return nil, invariant.Violationf("frame %s at %v precedes frame %s at %v",
				f.ID, f.At, fs[i-1].ID, fs[i-1].At)
		}
	}

	if len(fs) == 0 {
		out := make([]Unit, len(units))
		for i, u := range units {
			out[i] = Unit{Start: u.Start, End: u.End, Speech: u.Text}
		}
		return out, nil
	}

	out := make([]Unit, 0, len(units)+len(fs))
	k := 0 // current frame
	ui := 0

	for k < len(fs) {
		f := fs[k]
		owned := 0
		// Units starting before the next frame belong to this one.
		for ui < len(units) && (k+1 == len(fs) || units[ui].Start < fs[k+1].At) {
			u := units[ui]
			out = append(out, Unit{Start: u.Start, End: u.End, Speech: u.Text, FrameID: f.ID, SlideText: f.Text})
			ui++
			owned++
		}
		if owned == 0 {
			out = append(out, Unit{Start: f.At, End: placeholderEnd(fs, k, units), FrameID: f.ID, SlideText: f.Text})
		}
		k++
	}
	return out, nil
}

// placeholderEnd closes a silent frame's span at the next frame, or for the
// last frame at the end of speech when that comes later.
func placeholderEnd(fs []frames.Frame, k int, units []speech.Unit) time.Duration {
	if k+1 < len(fs) {
		return fs[k+1].At
	}
	end := fs[k].At
	if n := len(units); n > 0 {
		end = max(end, units[n-1].End)
	}
	return end
}
