package audio

import (
	"time"
)

// Silence is a detected stretch of audio below the noise threshold.
type Silence struct {
	Start time.Duration
	End   time.Duration
}

// Midpoint returns the middle of the silence, ideal for cutting.
func (s Silence) Midpoint() time.Duration {
	return s.Start + (s.End-s.Start)/2
}

// distance returns how far t lies from the silence (0 when inside).
func (s Silence) distance(t time.Duration) time.Duration {
	switch {
	case t < s.Start:
		return s.Start - t
	case t > s.End:
		return t - s.End
	default:
		return 0
	}
}

// PlanParams bounds segment planning.
type PlanParams struct {
	Ceiling      int64         // Maximum bytes per segment.
	Overlap      time.Duration // Lead added before every segment after the first.
	SearchWindow time.Duration // How far a boundary may move to reach a silence.
	MinSegments  int           // Lower bound on the segment count (0 or 1 means none).
}

// PlanSegments splits a recording of the given duration and byte size into
// at least ceil(size/Ceiling) segments. Each boundary starts at the uniform
// target and snaps to the nearest silence within SearchWindow, otherwise
// stays at the target. The last segment always runs to total.
//
// The count is raised until every estimated size, lead included, fits the
// ceiling. The effective window is kept below half a target segment, so
// snapped boundaries stay strictly increasing and no segment collapses to
// zero length. Byte sizes are proportional estimates; Path is left empty.
func PlanSegments(total time.Duration, size int64, silences []Silence, p PlanParams) []Segment {
	if total <= 0 {
		return nil
	}

	n := max(p.MinSegments, 1)
	if p.Ceiling > 0 && size > p.Ceiling {
		n = max(n, int((size+p.Ceiling-1)/p.Ceiling))
	}
	if n == 1 {
		return []Segment{{Index: 0, Start: 0, End: total, Size: size}}
	}

	// A lead alone may outweigh the ceiling; stop once segments reach a second.
	limit := max(n, int(total/time.Second))
	for {
		segments := planFixed(total, size, silences, p, n)
		if p.Ceiling <= 0 || n >= limit || fitsCeiling(segments, p.Ceiling) {
			return segments
		}
		n++
	}
}

// planFixed places n segments.
func planFixed(total time.Duration, size int64, silences []Silence, p PlanParams, n int) []Segment {
	target := total / time.Duration(n)
	window := max(min(p.SearchWindow, target/2-time.Millisecond), 0)

	bounds := make([]time.Duration, 0, n+1)
	bounds = append(bounds, 0)
	used := make([]bool, len(silences))
	for i := 1; i < n; i++ {
		raw := target * time.Duration(i)
		cut := raw
		if j, ok := nearestSilence(silences, raw, window, used); ok {
			used[j] = true
			cut = min(max(silences[j].Midpoint(), raw-window), raw+window)
		}
		if cut <= bounds[len(bounds)-1] {
			cut = raw
		}
		bounds = append(bounds, cut)
	}
	bounds = append(bounds, total)

	segments := make([]Segment, 0, n)
	for i := range n {
		start, end := bounds[i], bounds[i+1]
		var lead time.Duration
		if i > 0 {
			lead = min(p.Overlap, start)
		}
		est := int64(float64(size) * float64(end-start+lead) / float64(total))
		segments = append(segments, Segment{
			Index: i,
			Start: start,
			End:   end,
			Lead:  lead,
			Size:  est,
		})
	}
	return segments
}

func fitsCeiling(segments []Segment, ceiling int64) bool {
	for _, s := range segments {
		if s.Size > ceiling {
			return false
		}
	}
	return true
}

// nearestSilence returns the unused silence closest to t within window.
// Ties go to the earlier silence.
func nearestSilence(silences []Silence, t, window time.Duration, used []bool) (int, bool) {
	best := -1
	var bestDist time.Duration
	for i, s := range silences {
		if used[i] {
			continue
		}
		d := s.distance(t)
		if d > window {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}
