package cli

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/alnah/go-meetsync/internal/config"
)

func TestNewEnv(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		env := NewEnv()
		if env.Stdout != os.Stdout || env.Stderr != os.Stderr {
			t.Error("default writers should be stdout and stderr")
		}
		if env.Getenv == nil || env.Now == nil || env.ToolResolver == nil ||
			env.SettingsLoader == nil || env.Services == nil || env.NewInterrupt == nil {
			t.Errorf("missing default: %+v", env)
		}
	})

	t.Run("options override", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
		env := NewEnv(
			WithStdout(&out),
			WithNow(func() time.Time { return fixed }),
			WithGetenv(func(string) string { return "x" }),
		)
		if env.Stdout != &out || !env.Now().Equal(fixed) || env.Getenv("ANY") != "x" {
			t.Error("options not applied")
		}
	})
}

func TestDefaultServiceFactory(t *testing.T) {
	t.Parallel()

	req := ServiceRequest{Settings: config.Default(), FFmpegPath: "/usr/bin/ffmpeg"}

	t.Run("frames only without key", func(t *testing.T) {
		t.Parallel()

		deps, release, err := defaultServiceFactory{}.NewDeps(context.Background(), req)
		if err != nil {
			t.Fatalf("NewDeps() unexpected error: %v", err)
		}
		defer func() { _ = release() }()
		if deps.Transcriber != nil || deps.Extractor != nil || deps.Chunker != nil {
			t.Error("audio collaborators built without an API key")
		}
		if deps.Decoder == nil || deps.Snapshotter == nil {
			t.Error("video collaborators missing")
		}
		if deps.OCR != nil {
			t.Error("OCR built without a tesseract path")
		}
	})

	t.Run("full run", func(t *testing.T) {
		t.Parallel()

		r := req
		r.APIKey = "sk-test"
		r.TesseractPath = "/usr/bin/tesseract"
		r.Settings.Tagging.Enabled = true
		deps, release, err := defaultServiceFactory{}.NewDeps(context.Background(), r)
		if err != nil {
			t.Fatalf("NewDeps() unexpected error: %v", err)
		}
		defer func() { _ = release() }()
		if deps.Transcriber == nil || deps.Extractor == nil || deps.Chunker == nil || deps.OCR == nil || deps.Tagger == nil {
			t.Errorf("missing collaborator: %+v", deps)
		}
	})
}
