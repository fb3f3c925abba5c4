package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alnah/go-meetsync/internal/audio"
	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/pipeline"
	"github.com/alnah/go-meetsync/internal/speech"
	"github.com/alnah/go-meetsync/internal/transcribe"
	"github.com/alnah/go-meetsync/internal/video"
)

// ---------------------------------------------------------------------------
// Mock ToolResolver
// ---------------------------------------------------------------------------

type mockToolResolver struct {
	// Missing lists tools reported as not installed.
	Missing map[string]bool

	mu      sync.Mutex
	lookups []string
}

func (m *mockToolResolver) Lookup(_ context.Context, tool ffmpeg.Tool) (string, error) {
	m.mu.Lock()
	m.lookups = append(m.lookups, tool.Name)
	m.mu.Unlock()

	if m.Missing[tool.Name] {
		return "", fmt.Errorf("%s: %w", tool.Name, ffmpeg.ErrNotFound)
	}
	return "/usr/bin/" + tool.Name, nil
}

func (m *mockToolResolver) Lookups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lookups...)
}

// ---------------------------------------------------------------------------
// Mock SettingsLoader
// ---------------------------------------------------------------------------

type mockSettingsLoader struct {
	LoadFunc func(path string) (config.Settings, error)

	mu    sync.Mutex
	paths []string
}

func (m *mockSettingsLoader) Load(path string, _ func(string) string) (config.Settings, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(path)
	}
	return config.Default(), nil
}

func (m *mockSettingsLoader) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// ---------------------------------------------------------------------------
// Mock ServiceFactory + pipeline collaborators
// ---------------------------------------------------------------------------

type mockServiceFactory struct {
	NewDepsErr error
	// TranscribeErr is returned for every segment when set.
	TranscribeErr error

	mu       sync.Mutex
	requests []ServiceRequest
	releases int
}

func (m *mockServiceFactory) NewDeps(_ context.Context, req ServiceRequest) (pipeline.Deps, func() error, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.NewDepsErr != nil {
		return pipeline.Deps{}, nil, m.NewDepsErr
	}
	release := func() error {
		m.mu.Lock()
		m.releases++
		m.mu.Unlock()
		return nil
	}
	deps := pipeline.Deps{
		Extractor:   &mockExtractor{},
		Chunker:     &mockChunker{},
		Transcriber: &mockTranscriber{err: m.TranscribeErr},
		Decoder: func(string) video.Decoder {
			return &mockDecoder{dur: 20 * time.Second, change: 10 * time.Second}
		},
		Snapshotter: func(string) pipeline.SnapshotSaver { return &mockSnapshotter{} },
	}
	if req.TesseractPath != "" {
		deps.OCR = &mockOCR{}
	}
	return deps, release, nil
}

func (m *mockServiceFactory) NewExtractor(ServiceRequest) (pipeline.AudioExtractor, error) {
	return &mockExtractor{}, nil
}

func (m *mockServiceFactory) NewChunker(ServiceRequest) (audio.Chunker, error) {
	return &mockChunker{}, nil
}

func (m *mockServiceFactory) Requests() []ServiceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ServiceRequest(nil), m.requests...)
}

func (m *mockServiceFactory) Releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

type mockExtractor struct{}

func (mockExtractor) Extract(_ context.Context, _, outPath string) error {
	return os.WriteFile(outPath, []byte("audio"), 0644)
}

// mockChunker splits any file in two segments of a 20s recording.
type mockChunker struct{}

func (mockChunker) Chunk(_ context.Context, audioPath string) (audio.Chunking, error) {
	return audio.Chunking{
		Duration: 20 * time.Second,
		Segments: []audio.Segment{
			{Index: 0, Start: 0, End: 12 * time.Second, Size: 4096, Path: "seg0"},
			{Index: 1, Start: 12 * time.Second, End: 20 * time.Second, Lead: 2 * time.Second, Size: 2048, Path: "seg1"},
		},
	}, nil
}

type mockTranscriber struct{ err error }

func (m *mockTranscriber) Transcribe(_ context.Context, path string, _ transcribe.Options) ([]speech.Unit, error) {
	if m.err != nil {
		return nil, m.err
	}
	switch path {
	case "seg0":
		return []speech.Unit{{Start: 0, End: 5 * time.Second, Text: "welcome everyone"}}, nil
	default:
		return []speech.Unit{{Start: 3 * time.Second, End: 7 * time.Second, Text: "second slide"}}, nil
	}
}

// mockDecoder shows a black frame until change, then a white one.
type mockDecoder struct {
	dur    time.Duration
	change time.Duration
}

func (d *mockDecoder) Duration(context.Context) (time.Duration, error) { return d.dur, nil }

func (d *mockDecoder) FrameAt(_ context.Context, t time.Duration) (video.Image, time.Duration, error) {
	if t >= d.dur {
		return video.Image{}, 0, video.ErrEndOfStream
	}
	v := byte(0)
	if t >= d.change {
		v = 255
	}
	pix := make([]byte, 16)
	for i := range pix {
		pix[i] = v
	}
	return video.Image{Width: 4, Height: 4, Pix: pix}, t, nil
}

type mockSnapshotter struct{}

func (mockSnapshotter) SaveAll(_ context.Context, cands []video.Candidate, dir string, _ int) ([]string, error) {
	paths := make([]string, len(cands))
	for i := range cands {
		paths[i] = filepath.Join(dir, fmt.Sprintf("candidate_%04d.png", i))
		if err := os.WriteFile(paths[i], []byte("png"), 0644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

type mockOCR struct{}

func (mockOCR) Read(_ context.Context, path string) (string, error) {
	return "slide " + filepath.Base(path), nil
}

// Compile-time interface checks.
var (
	_ ToolResolver   = (*mockToolResolver)(nil)
	_ SettingsLoader = (*mockSettingsLoader)(nil)
	_ ServiceFactory = (*mockServiceFactory)(nil)
)
