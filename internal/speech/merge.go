package speech

import (
	"fmt"

	"github.com/alnah/go-meetsync/internal/invariant"
	"github.com/alnah/go-meetsync/internal/quality"
)

// Timeline is the merged, recording-global speech sequence.
type Timeline struct {
	Units    []Unit
	Warnings []quality.Warning
}

// Merge turns per-segment results into one global timeline.
//
// Results must arrive in segment index order with contiguous nominal
// bounds. Units starting inside a segment's lead were already captured at
// the tail of the previous segment and are dropped. The rest are shifted by
// the segment's nominal start minus its lead, so offsets never accumulate
// drift from padded boundaries. Units are bounded by the next segment's
// nominal start; the last segment's units pass through untouched, so a
// single segment merges to its raw output. A failed segment becomes one empty unit
// spanning its nominal range plus a speech gap warning.
//
// Out-of-order input is reported as invariant.ErrViolation, never reordered.
func Merge(results []SegmentResult) (Timeline, error) {
	var tl Timeline

	for i, r := range results {
		seg := r.Segment
		if seg.Index != i {
			return Timeline{}, invariant.Violationf("segment %d received at position %d", seg.Index, i)
		}
		if i > 0 && seg.Start != results[i-1].Segment.End {
			return Timeline{}, invariant.Violationf("segment %d starts at %v but segment %d ends at %v",
				seg.Index, seg.Start, i-1, results[i-1].Segment.End)
		}

		if r.Err != nil {
			tl.Units = append(tl.Units, Unit{Start: seg.Start, End: seg.End})
			tl.Warnings = append(tl.Warnings, quality.Warning{
				Kind:    quality.KindSpeechGap,
				Stage:   "merge",
				Start:   seg.Start,
				End:     seg.End,
				Message: fmt.Sprintf("segment %d not transcribed: %v", seg.Index, r.Err),
			})
			continue
		}

		offset := seg.Start - seg.Lead
		hasNext := i < len(results)-1
		prev := r.Units
		for j, u := range r.Units {
			if j > 0 && u.Start < prev[j-1].Start {
				return Timeline{}, invariant.Violationf("segment %d: unit %d starts at %v before unit %d at %v",
					seg.Index, j, u.Start, j-1, prev[j-1].Start)
			}
			if u.Start < seg.Lead {
				continue
			}

			g := Unit{Start: u.Start + offset, End: u.End + offset, Text: u.Text}
			if hasNext {
				if g.Start > seg.End {
					// The next segment owns this audio.
					continue
				}
				g.End = max(min(g.End, seg.End), g.Start)
			}
			tl.Units = append(tl.Units, g)
		}
	}

	return tl, nil
}
