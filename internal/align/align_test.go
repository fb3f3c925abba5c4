package align_test

// Notes:
// - Frames are minted through frames.Deduplicate with visually distinct
//   rasters, since IDs cannot be built any other way.

import (
	"errors"
	"testing"
	"time"

	"github.com/alnah/go-meetsync/internal/align"
	"github.com/alnah/go-meetsync/internal/frames"
	"github.com/alnah/go-meetsync/internal/invariant"
	"github.com/alnah/go-meetsync/internal/speech"
	"github.com/alnah/go-meetsync/internal/video"
)

func sec(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// mintFrames returns one frame per timestamp, each with OCR text "slide N".
func mintFrames(t *testing.T, at ...float64) []frames.Frame {
	t.Helper()
	cands := make([]frames.Candidate, len(at))
	for i, s := range at {
		pix := make([]byte, 16)
		for j := range pix {
			pix[j] = byte(i * 40)
		}
		cands[i] = frames.Candidate{
			Index: i,
			At:    sec(s),
			Image: video.Image{Width: 4, Height: 4, Pix: pix},
		}
	}
	fs := frames.Deduplicate(cands, frames.DefaultDedupConfig())
	if len(fs) != len(at) {
		t.Fatalf("fixture collapsed: %d frames from %d", len(fs), len(at))
	}
	for i := range fs {
		fs[i].Text = "slide " + fs[i].ID.String()
	}
	return fs
}

func units(spans ...[2]float64) []speech.Unit {
	out := make([]speech.Unit, len(spans))
	for i, s := range spans {
		out[i] = speech.Unit{Start: sec(s[0]), End: sec(s[1]), Text: string(rune('a' + i))}
	}
	return out
}

// ---------------------------------------------------------------------------
// Align - ownership and placeholders
// ---------------------------------------------------------------------------

func TestAlign(t *testing.T) {
	t.Parallel()

	t.Run("units go to the frame visible when speech began", func(t *testing.T) {
		t.Parallel()

		fs := mintFrames(t, 0, 30, 60)
		got, err := align.Align(units(
			[2]float64{1, 10},
			[2]float64{29, 31}, // began on slide 1
			[2]float64{30, 40}, // exactly at slide 2
			[2]float64{70, 80},
		), fs)
		if err != nil {
			t.Fatalf("Align() error = %v", err)
		}

		want := []string{"001", "001", "002", "003"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %d units", got, len(want))
		}
		for i, id := range want {
			if got[i].FrameID.String() != id {
				t.Errorf("unit %d frame = %s, want %s", i, got[i].FrameID, id)
			}
			if got[i].SlideText != "slide "+id {
				t.Errorf("unit %d slide text = %q", i, got[i].SlideText)
			}
		}
	})

	t.Run("speech before first frame attaches to first frame", func(t *testing.T) {
		t.Parallel()

		fs := mintFrames(t, 10, 20)
		got, err := align.Align(units([2]float64{2, 5}, [2]float64{12, 15}, [2]float64{25, 26}), fs)
		if err != nil {
			t.Fatalf("Align() error = %v", err)
		}
		if got[0].FrameID.String() != "001" || got[1].FrameID.String() != "001" || got[2].FrameID.String() != "002" {
			t.Errorf("frames = %s %s %s", got[0].FrameID, got[1].FrameID, got[2].FrameID)
		}
	})

	t.Run("silent frames get placeholders in time order", func(t *testing.T) {
		t.Parallel()

		fs := mintFrames(t, 0, 30, 60, 90)
		got, err := align.Align(units([2]float64{5, 10}, [2]float64{65, 70}), fs)
		if err != nil {
			t.Fatalf("Align() error = %v", err)
		}

		want := []struct {
			frame      string
			start, end time.Duration
			speech     string
		}{
			{"001", sec(5), sec(10), "a"},
			{"002", sec(30), sec(60), ""},
			{"003", sec(65), sec(70), "b"},
			{"004", sec(90), sec(90), ""},
		}
		if len(got) != len(want) {
			t.Fatalf("got %v", got)
		}
		for i, w := range want {
			g := got[i]
			if g.FrameID.String() != w.frame || g.Start != w.start || g.End != w.end || g.Speech != w.speech {
				t.Errorf("unit %d = %v, want frame %s %v-%v %q", i, g, w.frame, w.start, w.end, w.speech)
			}
		}
	})

	t.Run("last silent frame closes at end of speech", func(t *testing.T) {
		t.Parallel()

		fs := mintFrames(t, 0, 10)
		// Unit owned by frame 1 runs past frame 2's timestamp; frame 2 has no unit.
		got, err := align.Align(units([2]float64{1, 25}), fs)
		if err != nil {
			t.Fatalf("Align() error = %v", err)
		}
		if len(got) != 2 || got[1].Start != sec(10) || got[1].End != sec(25) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("no frames leaves frame id empty", func(t *testing.T) {
		t.Parallel()

		got, err := align.Align(units([2]float64{0, 1}, [2]float64{1, 2}), nil)
		if err != nil {
			t.Fatalf("Align() error = %v", err)
		}
		if len(got) != 2 || !got[0].FrameID.IsZero() || got[1].Speech != "b" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("frames without speech", func(t *testing.T) {
		t.Parallel()

		got, err := align.Align(nil, mintFrames(t, 0, 5))
		if err != nil {
			t.Fatalf("Align() error = %v", err)
		}
		if len(got) != 2 || got[0].End != sec(5) || got[1].End != sec(5) {
			t.Errorf("got %v", got)
		}
	})
}

// ---------------------------------------------------------------------------
// Align - totality property
// ---------------------------------------------------------------------------

func TestAlign_Total(t *testing.T) {
	t.Parallel()

	fs := mintFrames(t, 3, 17, 18, 40, 41, 90)
	us := units(
		[2]float64{0, 2}, [2]float64{2, 4}, [2]float64{16, 17}, [2]float64{17, 19},
		[2]float64{19, 30}, [2]float64{42, 50}, [2]float64{50, 60}, [2]float64{95, 99},
	)

	got, err := align.Align(us, fs)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}

	speechSeen := 0
	frameSeen := map[string]int{}
	for i, u := range got {
		if u.Speech != "" {
			speechSeen++
		}
		frameSeen[u.FrameID.String()]++
		if i > 0 && u.Start < got[i-1].Start {
			t.Errorf("unit %d starts at %v before %v", i, u.Start, got[i-1].Start)
		}
	}
	if speechSeen != len(us) {
		t.Errorf("speech units in output = %d, want %d", speechSeen, len(us))
	}
	for _, f := range fs {
		if frameSeen[f.ID.String()] == 0 {
			t.Errorf("frame %s missing from output", f.ID)
		}
	}
}

// ---------------------------------------------------------------------------
// Align - unsorted input is fatal
// ---------------------------------------------------------------------------

func TestAlign_Violations(t *testing.T) {
	t.Parallel()

	t.Run("unsorted speech", func(t *testing.T) {
		t.Parallel()

		_, err := align.Align(units([2]float64{10, 11}, [2]float64{5, 6}), mintFrames(t, 0))
		if !errors.Is(err, invariant.ErrViolation) {
			t.Errorf("error = %v, want ErrViolation", err)
		}
	})

	t.Run("unsorted frames", func(t *testing.T) {
		t.Parallel()

		fs := mintFrames(t, 0, 10)
		fs[0], fs[1] = fs[1], fs[0]
		_, err := align.Align(units([2]float64{1, 2}), fs)
		if !errors.Is(err, invariant.ErrViolation) {
			t.Errorf("error = %v, want ErrViolation", err)
		}
	})

	t.Run("frame without id", func(t *testing.T) {
		t.Parallel()

		_, err := align.Align(nil, []frames.Frame{{At: sec(1)}})
		if !errors.Is(err, invariant.ErrViolation) {
			t.Errorf("error = %v, want ErrViolation", err)
		}
	})
}
