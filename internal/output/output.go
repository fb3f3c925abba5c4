// Package output writes the artifacts of a processed recording:
// result.json, transcripts and frame images.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-meetsync/internal/format"
	"github.com/alnah/go-meetsync/internal/pipeline"
)

// ErrOutputExists indicates the run directory already holds artifacts.
var ErrOutputExists = errors.New("output already exists")

// Artifact names inside a run directory.
const (
	ResultFile = "result.json"
	SRTFile    = "transcript.srt"
	VTTFile    = "transcript.vtt"
	TextFile   = "transcript.txt"
	FramesDir  = "frames"
)

// SchemaVersion is bumped when result.json changes incompatibly.
const SchemaVersion = 1

// Document is the result.json schema. Times are seconds from the start
// of the recording.
type Document struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Recording string    `json:"recording"`
	CreatedAt time.Time `json:"created_at"`
	Duration  float64   `json:"duration"`
	Mode      string    `json:"mode"`
	Degraded  bool      `json:"degraded"`

	Frames       []FrameRecord   `json:"frames"`
	Aligned      []AlignedRecord `json:"aligned"`
	Transcript   []SpeechRecord  `json:"transcript"`
	ModeSwitches []SwitchRecord  `json:"mode_switches"`
	Warnings     []WarningRecord `json:"warnings"`
}

// FrameRecord is one deduplicated frame.
type FrameRecord struct {
	ID        string   `json:"id"`
	Timestamp float64  `json:"timestamp"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags"`
	Image     string   `json:"image,omitempty"`
}

// AlignedRecord is one speech span with its visible frame.
type AlignedRecord struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Speech    string  `json:"speech"`
	FrameID   string  `json:"frame_id,omitempty"`
	SlideText string  `json:"slide_text,omitempty"`
}

// SpeechRecord is one merged transcript unit.
type SpeechRecord struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SwitchRecord is one adaptive profile change.
type SwitchRecord struct {
	At   float64 `json:"at"`
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

// WarningRecord is one quality warning.
type WarningRecord struct {
	Kind    string   `json:"kind"`
	Stage   string   `json:"stage"`
	Start   *float64 `json:"start,omitempty"`
	End     *float64 `json:"end,omitempty"`
	Message string   `json:"message"`
}

// NewDocument converts a run result. Frame images are referenced by their
// path relative to the run directory.
func NewDocument(r *pipeline.Result) Document {
	doc := Document{
		Version:      SchemaVersion,
		RunID:        r.RunID,
		Recording:    filepath.Base(r.Recording),
		CreatedAt:    r.StartedAt.UTC(),
		Duration:     format.Seconds(r.Duration),
		Mode:         r.Mode,
		Degraded:     r.Degraded,
		Frames:       make([]FrameRecord, len(r.Frames)),
		Aligned:      make([]AlignedRecord, len(r.Aligned)),
		Transcript:   make([]SpeechRecord, len(r.Speech)),
		ModeSwitches: make([]SwitchRecord, len(r.ModeSwitches)),
		Warnings:     make([]WarningRecord, len(r.Warnings)),
	}

	for i, f := range r.Frames {
		rec := FrameRecord{
			ID:        f.ID.String(),
			Timestamp: format.Seconds(f.At),
			Text:      f.Text,
			Tags:      f.Tags,
		}
		if rec.Tags == nil {
			rec.Tags = []string{}
		}
		if f.ImagePath != "" {
			rec.Image = framePath(rec.ID)
		}
		doc.Frames[i] = rec
	}
	for i, u := range r.Aligned {
		doc.Aligned[i] = AlignedRecord{
			Start:     format.Seconds(u.Start),
			End:       format.Seconds(u.End),
			Speech:    u.Speech,
			FrameID:   u.FrameID.String(),
			SlideText: u.SlideText,
		}
	}
	for i, u := range r.Speech {
		doc.Transcript[i] = SpeechRecord{Start: format.Seconds(u.Start), End: format.Seconds(u.End), Text: u.Text}
	}
	for i, s := range r.ModeSwitches {
		doc.ModeSwitches[i] = SwitchRecord{At: format.Seconds(s.At), From: s.From, To: s.To, Rate: s.Rate}
	}
	for i, w := range r.Warnings {
		rec := WarningRecord{Kind: string(w.Kind), Stage: w.Stage, Message: w.Message}
		if w.End > w.Start {
			start, end := format.Seconds(w.Start), format.Seconds(w.End)
			rec.Start, rec.End = &start, &end
		}
		doc.Warnings[i] = rec
	}
	return doc
}

// framePath is the image location of a frame inside the run directory.
func framePath(id string) string {
	return filepath.ToSlash(filepath.Join(FramesDir, id+".png"))
}

// WriteResult encodes doc as indented JSON.
func WriteResult(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// RunDirName names the directory holding one run's artifacts:
// the recording stem followed by the first block of the run ID.
func RunDirName(r *pipeline.Result) string {
	stem := strings.TrimSuffix(filepath.Base(r.Recording), filepath.Ext(r.Recording))
	id, _, _ := strings.Cut(r.RunID, "-")
	if id == "" {
		return stem
	}
	return stem + "-" + id
}

// Paths lists the files written for a run.
type Paths struct {
	Dir    string
	Result string
	SRT    string
	VTT    string
	Text   string
	Frames []string
}

// Write stores every artifact of r in a new directory under root.
// Existing artifacts are never overwritten.
func Write(root string, r *pipeline.Result) (Paths, error) {
	dir := filepath.Join(root, RunDirName(r))
	if err := os.MkdirAll(dir, 0750); err != nil { // #nosec G301 -- user output dir
		return Paths{}, fmt.Errorf("cannot create output directory: %w", err)
	}

	p := Paths{
		Dir:    dir,
		Result: filepath.Join(dir, ResultFile),
		SRT:    filepath.Join(dir, SRTFile),
		VTT:    filepath.Join(dir, VTTFile),
		Text:   filepath.Join(dir, TextFile),
	}

	frames, err := copyFrames(dir, r)
	if err != nil {
		return p, err
	}
	p.Frames = frames

	writes := []struct {
		path  string
		write func(io.Writer) error
	}{
		{p.SRT, func(w io.Writer) error { return WriteSRT(w, r.Speech) }},
		{p.VTT, func(w io.Writer) error { return WriteVTT(w, r.Speech) }},
		{p.Text, func(w io.Writer) error { return WriteText(w, r.Speech) }},
		{p.Result, func(w io.Writer) error { return WriteResult(w, NewDocument(r)) }},
	}
	if len(r.Speech) == 0 && len(r.Aligned) == 0 {
		writes = writes[3:]
		p.SRT, p.VTT, p.Text = "", "", ""
	}
	for _, wr := range writes {
		if err := writeFileAtomic(wr.path, wr.write); err != nil {
			return p, err
		}
	}
	return p, nil
}

// copyFrames copies each frame snapshot to frames/<id>.png.
func copyFrames(dir string, r *pipeline.Result) ([]string, error) {
	var out []string
	for _, f := range r.Frames {
		if f.ImagePath == "" {
			continue
		}
		if len(out) == 0 {
			if err := os.MkdirAll(filepath.Join(dir, FramesDir), 0750); err != nil { // #nosec G301 -- user output dir
				return nil, fmt.Errorf("cannot create frames directory: %w", err)
			}
		}
		dst := filepath.Join(dir, filepath.FromSlash(framePath(f.ID.String())))
		if err := copyFile(f.ImagePath, dst); err != nil {
			return nil, fmt.Errorf("frame %s: %w", f.ID, err)
		}
		out = append(out, dst)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- snapshot written by this run
	if err != nil {
		return fmt.Errorf("cannot open snapshot: %w", err)
	}
	defer func() { _ = in.Close() }()

	return writeFileAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeFileAtomic writes path through a temporary file in the same
// directory and renames it into place. It fails if path already exists.
// On failure, the temporary file is removed.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrOutputExists)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	tmpName := tmp.Name()

	writeErr := func() error {
		defer func() { _ = tmp.Close() }()
		if err := write(tmp); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
		return tmp.Sync()
	}()
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return writeErr
	}

	// #nosec G302 -- artifacts are user documents
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("cannot set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("cannot move output into place: %w", err)
	}
	return nil
}
