package frames

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/alnah/go-meetsync/internal/video"
)

// DedupConfig holds the duplicate thresholds.
type DedupConfig struct {
	PixelThreshold float64 // Pixel similarity at or above which frames are duplicates.
	TextThreshold  float64 // Text similarity at or above which frames are duplicates.
	MinTokens      int     // Token count needed on both sides for Jaccard scoring.
	NoiseFloor     uint8
}

// DefaultDedupConfig returns the default thresholds.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		PixelThreshold: 0.90,
		TextThreshold:  0.85,
		MinTokens:      3,
		NoiseFloor:     video.DefaultNoiseFloor,
	}
}

// node is a surviving frame during deduplication.
type node struct {
	cand    Candidate
	thumb   video.Image
	sources []int
}

// Duplicate reports whether a and b show the same content. Text is
// compared only when both sides carry some.
func (cfg DedupConfig) Duplicate(a, b Candidate) bool {
	return cfg.duplicate(
		node{cand: a, thumb: thumbnail(a.Image)},
		node{cand: b, thumb: thumbnail(b.Image)},
	)
}

func (cfg DedupConfig) duplicate(a, b node) bool {
	if a.thumb.Valid() && b.thumb.Valid() &&
		video.Similarity(a.thumb, b.thumb, cfg.NoiseFloor) >= cfg.PixelThreshold {
		return true
	}
	ta, tb := strings.TrimSpace(a.cand.Text), strings.TrimSpace(b.cand.Text)
	if ta == "" || tb == "" {
		return false
	}
	return TextSimilarity(ta, tb, cfg.MinTokens) >= cfg.TextThreshold
}

// wins reports whether a is kept over b: more OCR text first, then the
// earlier timestamp, then the earlier arena slot.
func wins(a, b Candidate) bool {
	la := utf8.RuneCountInString(strings.TrimSpace(a.Text))
	lb := utf8.RuneCountInString(strings.TrimSpace(b.Text))
	if la != lb {
		return la > lb
	}
	if a.At != b.At {
		return a.At < b.At
	}
	return a.Index < b.Index
}

// Deduplicate collapses duplicate candidates and assigns final IDs.
//
// Each candidate is compared with every surviving frame, not just its
// neighbor, so a slide revisited later folds into its first appearance.
// Passes repeat until one makes no merge, which makes the result a fixed
// point: deduplicating the output again changes nothing. Survivors are
// then sorted by timestamp and numbered from "001". This is the only place
// IDs are minted.
func Deduplicate(cands []Candidate, cfg DedupConfig) []Frame {
	nodes := make([]node, len(cands))
	for i, c := range cands {
		nodes[i] = node{cand: c, thumb: thumbnail(c.Image), sources: []int{c.Index}}
	}

	for {
		var merged bool
		nodes, merged = dedupPass(nodes, cfg)
		if !merged {
			break
		}
	}

	slices.SortStableFunc(nodes, func(a, b node) int {
		return cmp.Or(cmp.Compare(a.cand.At, b.cand.At), cmp.Compare(a.cand.Index, b.cand.Index))
	})

	out := make([]Frame, len(nodes))
	for i, n := range nodes {
		out[i] = Frame{
			ID:        ID{n: i + 1},
			At:        n.cand.At,
			Text:      n.cand.Text,
			ImagePath: n.cand.ImagePath,
			Sources:   n.sources,
			Image:     n.cand.Image,
		}
	}
	return out
}

// dedupPass folds each node into the first earlier survivor it duplicates.
func dedupPass(nodes []node, cfg DedupConfig) ([]node, bool) {
	survivors := make([]node, 0, len(nodes))
	merged := false

	for _, n := range nodes {
		j := slices.IndexFunc(survivors, func(s node) bool { return cfg.duplicate(s, n) })
		if j < 0 {
			survivors = append(survivors, n)
			continue
		}
		merged = true
		s := survivors[j]
		if wins(n.cand, s.cand) {
			n.sources = append(n.sources, s.sources...)
			survivors[j] = n
		} else {
			s.sources = append(s.sources, n.sources...)
			survivors[j] = s
		}
	}
	return survivors, merged
}
