package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/alnah/go-meetsync/internal/apierr"
	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/lang"
	"github.com/alnah/go-meetsync/internal/output"
	"github.com/alnah/go-meetsync/internal/transcribe"
)

// Notes:
// - Commands are executed through cobra with a fully mocked Env; the real
//   pipeline and output packages run against mock collaborators.
// - The mock recording lasts 20s with one scene change at 10s, so a
//   successful run yields two frames.

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

func TestCheckRecording(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"mp4", write("a.mp4"), nil},
		{"uppercase extension", write("b.MKV"), nil},
		{"audio only", write("c.ogg"), ErrUnsupportedFormat},
		{"directory", dir, ErrUnsupportedFormat},
		{"missing", filepath.Join(dir, "missing.mp4"), ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := checkRecording(tt.path)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("checkRecording() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("checkRecording() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSupportedFormatsList(t *testing.T) {
	t.Parallel()

	got := supportedFormatsList()
	for _, f := range []string{"mp4", "mkv", "webm"} {
		if !strings.Contains(got, f) {
			t.Errorf("expected %q in %q", f, got)
		}
	}
}

// ---------------------------------------------------------------------------
// process
// ---------------------------------------------------------------------------

func TestProcessCmd_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withKey())
	video := createVideo(t, "weekly sync.mp4")

	if err := execute(t, ProcessCmd(env.Env), video); err != nil {
		t.Fatalf("process unexpected error: %v", err)
	}

	dir := strings.TrimSpace(env.stdout.String())
	if filepath.Dir(dir) != env.outDir {
		t.Fatalf("run directory %q not under %q", dir, env.outDir)
	}
	if !strings.HasPrefix(filepath.Base(dir), "weekly sync-") {
		t.Errorf("run directory = %q, want weekly sync-<id>", filepath.Base(dir))
	}
	for _, name := range []string{output.ResultFile, output.SRTFile, output.VTTFile, output.TextFile, "frames/001.png", "frames/002.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	txt, err := os.ReadFile(filepath.Join(dir, output.TextFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(txt), "welcome everyone") || !strings.Contains(string(txt), "second slide") {
		t.Errorf("transcript = %q, want both passages", txt)
	}

	reqs := env.mocks.services.Requests()
	if len(reqs) != 1 {
		t.Fatalf("NewDeps called %d times, want 1", len(reqs))
	}
	if reqs[0].APIKey != "sk-test" || reqs[0].FFmpegPath != "/usr/bin/ffmpeg" || reqs[0].TesseractPath != "/usr/bin/tesseract" {
		t.Errorf("request = %+v", reqs[0])
	}
	if got := env.mocks.services.Releases(); got != 1 {
		t.Errorf("services released %d times, want 1", got)
	}
}

func TestProcessCmd_MultipleRecordings(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withKey())
	a, b := createVideo(t, "a.mp4"), createVideo(t, "b.webm")

	if err := execute(t, ProcessCmd(env.Env), a, b); err != nil {
		t.Fatalf("process unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(env.stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("stdout = %q, want two run directories", env.stdout.String())
	}
	if got := len(env.mocks.services.Requests()); got != 1 {
		t.Errorf("services built %d times, want once per invocation", got)
	}
}

func TestProcessCmd_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		vars    map[string]string
		args    func(t *testing.T) []string
		wantErr error
	}{
		{
			name:    "missing file",
			vars:    withKey(),
			args:    func(t *testing.T) []string { return []string{filepath.Join(t.TempDir(), "nope.mp4")} },
			wantErr: ErrFileNotFound,
		},
		{
			name:    "second input invalid",
			vars:    withKey(),
			args:    func(t *testing.T) []string { return []string{createVideo(t, "a.mp4"), createVideo(t, "b.txt")} },
			wantErr: ErrUnsupportedFormat,
		},
		{
			name:    "missing api key",
			vars:    map[string]string{},
			args:    func(t *testing.T) []string { return []string{createVideo(t, "a.mp4")} },
			wantErr: transcribe.ErrAPIKeyMissing,
		},
		{
			name:    "invalid language",
			vars:    withKey(),
			args:    func(t *testing.T) []string { return []string{createVideo(t, "a.mp4"), "-l", "xx"} },
			wantErr: lang.ErrInvalid,
		},
		{
			name:    "invalid log level",
			vars:    map[string]string{EnvOpenAIAPIKey: "sk-test", EnvLogLevel: "loud"},
			args:    func(t *testing.T) []string { return []string{createVideo(t, "a.mp4")} },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, tt.vars)
			err := execute(t, ProcessCmd(env.Env), tt.args(t)...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("process error = %v, want %v", err, tt.wantErr)
			}
			if got := len(env.mocks.services.Requests()); got != 0 {
				t.Errorf("services built %d times before validation passed", got)
			}
		})
	}
}

func TestProcessCmd_FFmpegMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withKey())
	env.mocks.tools.Missing = map[string]bool{"ffmpeg": true}

	err := execute(t, ProcessCmd(env.Env), createVideo(t, "a.mp4"))
	if !errors.Is(err, ffmpeg.ErrNotFound) {
		t.Fatalf("process error = %v, want ErrNotFound", err)
	}
}

func TestProcessCmd_TesseractMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withKey())
	env.mocks.tools.Missing = map[string]bool{"tesseract": true}

	if err := execute(t, ProcessCmd(env.Env), createVideo(t, "a.mp4")); err != nil {
		t.Fatalf("process unexpected error: %v", err)
	}
	if !strings.Contains(env.stderr.String(), "ocr_skipped") {
		t.Errorf("stderr = %q, want an ocr_skipped warning", env.stderr.String())
	}
}

func TestProcessCmd_FlagsOverrideSettings(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withKey())
	err := execute(t, ProcessCmd(env.Env), createVideo(t, "a.mp4"),
		"-l", "pt-BR", "--mode", "hybrid", "-p", "50", "--no-ocr")
	if err != nil {
		t.Fatalf("process unexpected error: %v", err)
	}

	s := env.mocks.services.Requests()[0].Settings
	if s.Transcription.Language != "pt" {
		t.Errorf("language = %q, want pt", s.Transcription.Language)
	}
	if s.OCR.Language != "por" {
		t.Errorf("ocr language = %q, want por", s.OCR.Language)
	}
	if s.OCR.Enabled {
		t.Error("ocr should be disabled")
	}
	if s.Frames.Mode != "hybrid" {
		t.Errorf("mode = %q, want hybrid", s.Frames.Mode)
	}
	if s.Transcription.Parallel != transcribe.MaxRecommendedParallel {
		t.Errorf("parallel = %d, want clamp to %d", s.Transcription.Parallel, transcribe.MaxRecommendedParallel)
	}
	if slices.Contains(env.mocks.tools.Lookups(), "tesseract") {
		t.Error("tesseract looked up although OCR is disabled")
	}
}

func TestProcessCmd_NoFrames(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withKey())
	if err := execute(t, ProcessCmd(env.Env), createVideo(t, "a.mp4"), "--no-frames"); err != nil {
		t.Fatalf("process unexpected error: %v", err)
	}

	dir := strings.TrimSpace(env.stdout.String())
	if _, err := os.Stat(filepath.Join(dir, "frames")); !os.IsNotExist(err) {
		t.Errorf("frames directory should not exist, stat error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, output.SRTFile)); err != nil {
		t.Errorf("missing transcript: %v", err)
	}
}

func TestProcessCmd_TranscriptionFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withKey())
	env.mocks.services.TranscribeErr = apierr.ErrAuthFailed

	err := execute(t, ProcessCmd(env.Env), createVideo(t, "a.mp4"))
	if !errors.Is(err, apierr.ErrAuthFailed) {
		t.Fatalf("process error = %v, want ErrAuthFailed", err)
	}
	if got := env.mocks.services.Releases(); got != 1 {
		t.Errorf("services released %d times, want 1", got)
	}
	entries, _ := os.ReadDir(env.outDir)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			t.Errorf("failed run left %s in the output directory", e.Name())
		}
	}
}

// ---------------------------------------------------------------------------
// frames
// ---------------------------------------------------------------------------

func TestFramesCmd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, map[string]string{EnvLogLevel: "error"})
	if err := execute(t, FramesCmd(env.Env), createVideo(t, "demo.mkv")); err != nil {
		t.Fatalf("frames unexpected error: %v", err)
	}

	dir := strings.TrimSpace(env.stdout.String())
	if _, err := os.Stat(filepath.Join(dir, output.ResultFile)); err != nil {
		t.Errorf("missing result: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, output.SRTFile)); !os.IsNotExist(err) {
		t.Errorf("frames-only run wrote a transcript, stat error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "frames", "002.png")); err != nil {
		t.Errorf("missing frame: %v", err)
	}
	if key := env.mocks.services.Requests()[0].APIKey; key != "" {
		t.Errorf("frames-only request carried API key %q", key)
	}
}

func TestFramesCmd_TagsNeedKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, map[string]string{EnvLogLevel: "error"})
	err := execute(t, FramesCmd(env.Env), createVideo(t, "demo.mkv"), "--tags")
	if !errors.Is(err, transcribe.ErrAPIKeyMissing) {
		t.Fatalf("frames --tags error = %v, want ErrAPIKeyMissing", err)
	}
}
