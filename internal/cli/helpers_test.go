package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alnah/go-meetsync/internal/config"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

type testMocks struct {
	tools    *mockToolResolver
	settings *mockSettingsLoader
	services *mockServiceFactory
}

type testEnv struct {
	*Env
	mocks  *testMocks
	stdout *syncBuffer
	stderr *syncBuffer
	outDir string
}

// newTestEnv returns an Env whose settings write into a temp output
// directory. vars seeds the environment.
func newTestEnv(t *testing.T, vars map[string]string) *testEnv {
	t.Helper()

	outDir := t.TempDir()
	mocks := &testMocks{
		tools: &mockToolResolver{},
		settings: &mockSettingsLoader{LoadFunc: func(string) (config.Settings, error) {
			s := config.Default()
			s.OutputDir = outDir
			return s, nil
		}},
		services: &mockServiceFactory{},
	}
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	env := NewEnv(
		WithStdout(stdout),
		WithStderr(stderr),
		WithGetenv(func(k string) string { return vars[k] }),
		WithToolResolver(mocks.tools),
		WithSettingsLoader(mocks.settings),
		WithServices(mocks.services),
	)
	return &testEnv{Env: env, mocks: mocks, stdout: stdout, stderr: stderr, outDir: outDir}
}

// withKey is the environment of a configured user.
func withKey() map[string]string {
	return map[string]string{EnvOpenAIAPIKey: "sk-test", EnvLogLevel: "error"}
}

// createVideo writes a placeholder recording.
func createVideo(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}
