// Package frames deduplicates sampled frames and mints their stable IDs.
package frames

import (
	"fmt"
	"time"

	"github.com/alnah/go-meetsync/internal/video"
)

// ID identifies a final frame. IDs are minted only by Deduplicate, once,
// after timestamp ordering; other packages can read but never create them.
// The zero ID means "no frame".
type ID struct{ n int }

// String returns the zero-padded ordinal ("001", "002", ...).
func (id ID) String() string {
	if id.n == 0 {
		return ""
	}
	return fmt.Sprintf("%03d", id.n)
}

// IsZero reports whether id refers to no frame.
func (id ID) IsZero() bool { return id.n == 0 }

// MarshalText encodes the ID as its ordinal string.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// Candidate is a sampled frame awaiting deduplication.
// Index is its position in the sampling arena and carries no identity.
type Candidate struct {
	Index     int
	At        time.Duration
	Image     video.Image
	Text      string // OCR text, empty when unavailable.
	ImagePath string // Full-resolution snapshot, if taken.
}

// Frame is a deduplicated frame with its final ID.
type Frame struct {
	ID        ID            `json:"id"`
	At        time.Duration `json:"timestamp"`
	Text      string        `json:"text,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	ImagePath string        `json:"image,omitempty"`

	// Sources lists the arena indices collapsed into this frame, winner first.
	Sources []int       `json:"-"`
	Image   video.Image `json:"-"`
}

// String returns a human-readable representation for logging.
func (f Frame) String() string {
	return fmt.Sprintf("frame %s at %s (%d sources)", f.ID, f.At, len(f.Sources))
}

// Candidate converts a frame back into a candidate at arena index i.
func (f Frame) Candidate(i int) Candidate {
	return Candidate{Index: i, At: f.At, Image: f.Image, Text: f.Text, ImagePath: f.ImagePath}
}

// FromSampling builds candidates from sampler output. texts and paths are
// indexed like cands and may be nil.
func FromSampling(cands []video.Candidate, texts, paths []string) []Candidate {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		out[i] = Candidate{Index: i, At: c.At, Image: c.Image}
		if i < len(texts) {
			out[i].Text = texts[i]
		}
		if i < len(paths) {
			out[i].ImagePath = paths[i]
		}
	}
	return out
}
