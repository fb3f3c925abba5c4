package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/alnah/go-meetsync/internal/format"
	"github.com/alnah/go-meetsync/internal/speech"
)

// WriteSRT writes units as SubRip cues. Empty units (speech gaps) are
// skipped and cues are numbered consecutively.
func WriteSRT(w io.Writer, units []speech.Unit) error {
	bw := bufio.NewWriter(w)
	n := 0
	for _, u := range units {
		if u.Empty() {
			continue
		}
		n++
		if n > 1 {
			_, _ = bw.WriteString("\n")
		}
		_, _ = fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n", n,
			format.Timestamp(u.Start, ','), format.Timestamp(u.End, ','), cueText(u.Text))
	}
	return bw.Flush()
}

// WriteVTT writes units as a WebVTT document.
func WriteVTT(w io.Writer, units []speech.Unit) error {
	bw := bufio.NewWriter(w)
	_, _ = bw.WriteString("WEBVTT\n")
	for _, u := range units {
		if u.Empty() {
			continue
		}
		_, _ = fmt.Fprintf(bw, "\n%s --> %s\n%s\n",
			format.Timestamp(u.Start, '.'), format.Timestamp(u.End, '.'), cueText(u.Text))
	}
	return bw.Flush()
}

// WriteText writes one "[MM:SS] text" line per unit. Speech gaps are
// marked so readers know audio is missing.
func WriteText(w io.Writer, units []speech.Unit) error {
	bw := bufio.NewWriter(w)
	for _, u := range units {
		text := u.Text
		if u.Empty() {
			text = "[untranscribed]"
		}
		_, _ = fmt.Fprintf(bw, "[%s] %s\n", format.Duration(u.Start), strings.Join(strings.Fields(text), " "))
	}
	return bw.Flush()
}

// cueText keeps a cue on its own block: blank lines would end it early.
func cueText(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
