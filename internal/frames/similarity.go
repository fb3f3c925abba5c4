package frames

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/alnah/go-meetsync/internal/video"
)

// thumbWidth bounds the raster used for pairwise pixel comparison.
const thumbWidth = 80

// thumbnail box-averages im down to at most thumbWidth columns.
func thumbnail(im video.Image) video.Image {
	f := (im.Width + thumbWidth - 1) / thumbWidth
	if f <= 1 || !im.Valid() {
		return im
	}
	w, h := im.Width/f, im.Height/f
	if w == 0 || h == 0 {
		return im
	}
	pix := make([]byte, w*h)
	for y := range h {
		for x := range w {
			sum := 0
			for dy := range f {
				row := (y*f + dy) * im.Width
				for dx := range f {
					sum += int(im.Pix[row+x*f+dx])
				}
			}
			pix[y*w+x] = byte(sum / (f * f))
		}
	}
	return video.Image{Width: w, Height: h, Pix: pix}
}

var folder = cases.Fold()

// normalizeText folds case and compatibility forms, then splits into
// letter/digit tokens.
func normalizeText(s string) []string {
	s = folder.String(norm.NFKC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TextSimilarity scores two OCR texts in [0,1].
// With at least minTokens tokens on both sides it is the Jaccard index of
// the token sets; otherwise it is a Levenshtein ratio of the normalized
// strings. Empty text on either side scores 0.
func TextSimilarity(a, b string, minTokens int) float64 {
	ta, tb := normalizeText(a), normalizeText(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) >= minTokens && len(tb) >= minTokens {
		return jaccard(ta, tb)
	}
	return levenshteinRatio(strings.Join(ta, " "), strings.Join(tb, " "))
}

func jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// levenshteinRatio returns 1 - distance/maxLen over runes.
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return 1 - float64(prev[len(rb)])/float64(longest)
}
