package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-meetsync/internal/format"
	"github.com/alnah/go-meetsync/internal/quality"
)

// Segment is a size-bounded slice of the recording handed to transcription.
//
// Start and End are the nominal, non-overlapping bounds in recording time.
// The file at Path begins Lead before Start, so words spoken across a cut
// appear at the tail of the previous segment and again at the head of this one.
// A Segment is immutable once the chunker returns it.
type Segment struct {
	Index int           // Zero-based position in the recording.
	Start time.Duration // Nominal start in recording time.
	End   time.Duration // Nominal end in recording time.
	Lead  time.Duration // Overlap included before Start (0 for the first segment).
	Size  int64         // Byte size of the segment file (estimated until extracted).
	Path  string        // Audio file for this segment.
}

// ExtractStart returns the recording time at which the segment file begins.
func (s Segment) ExtractStart() time.Duration {
	return s.Start - s.Lead
}

// Duration returns the nominal length of this segment.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// String returns a human-readable representation for logging.
func (s Segment) String() string {
	return fmt.Sprintf("segment %d: %s-%s (lead %s, %s)",
		s.Index,
		format.Duration(s.Start),
		format.Duration(s.End),
		s.Lead,
		format.Size(s.Size))
}

// Chunking is the outcome of splitting one audio file.
type Chunking struct {
	Segments []Segment
	Duration time.Duration // Total duration of the source audio.
	Warnings []quality.Warning

	// dir is the temporary directory owning extracted segment files.
	// Empty when the source was small enough to be used as is.
	dir string
}

// Cleanup removes extracted segment files. The source audio is never touched.
func (c Chunking) Cleanup() error {
	if c.dir == "" {
		return nil
	}
	// Safety check: only remove directories this package created.
	if !strings.HasPrefix(filepath.Base(c.dir), tempDirPrefix) {
		return fmt.Errorf("refusing to remove %s: not a segment directory", c.dir)
	}
	return os.RemoveAll(c.dir)
}

// Chunker splits an audio file into segments suitable for transcription.
type Chunker interface {
	// Chunk returns segments ordered by position, covering the whole file
	// without gaps. Call Cleanup on the result once transcription is done.
	Chunk(ctx context.Context, audioPath string) (Chunking, error)
}

// tempDirPrefix names segment directories so Cleanup can recognize them.
const tempDirPrefix = "meetsync-segments-"
